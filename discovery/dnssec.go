package discovery

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	// defaultUpstream is the recursive resolver queried when none is
	// configured.
	defaultUpstream = "8.8.8.8:53"

	dnssecTimeout = 10 * time.Second
	edns0BufSize  = 4096
)

// DNSSECResolver is a DNSResolver that requires DNSSEC-validated answers.
// Validation is delegated to the upstream recursive resolver: queries carry
// the DO flag, and any response without the AD (Authenticated Data) flag is
// refused. Discovery feeds the encryption quorum and the authorization
// oracle, so a spoofable answer must never be accepted.
type DNSSECResolver struct {
	upstream string

	// exchange performs one DNS round trip. Swapped in tests.
	exchange func(msg *dns.Msg, addr string) (*dns.Msg, error)
}

// Compile-time interface check.
var _ DNSResolver = (*DNSSECResolver)(nil)

// NewDNSSECResolver creates a validating resolver against upstream.
// An empty upstream selects the default recursive resolver.
func NewDNSSECResolver(upstream string) *DNSSECResolver {
	if upstream == "" {
		upstream = defaultUpstream
	}
	client := &dns.Client{Timeout: dnssecTimeout}
	return &DNSSECResolver{
		upstream: upstream,
		exchange: func(msg *dns.Msg, addr string) (*dns.Msg, error) {
			resp, _, err := client.Exchange(msg, addr)
			return resp, err
		},
	}
}

// Upstream returns the configured recursive resolver address.
func (r *DNSSECResolver) Upstream() string { return r.upstream }

// query runs one validated lookup and returns the answer section.
func (r *DNSSECResolver) query(name string, qtype uint16) ([]dns.RR, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true
	msg.SetEdns0(edns0BufSize, true)

	resp, err := r.exchange(msg, r.upstream)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w",
			ErrDNSLookupFailed, name, dns.TypeToString[qtype], err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%w: %s %s: rcode %s",
			ErrDNSLookupFailed, name, dns.TypeToString[qtype], dns.RcodeToString[resp.Rcode])
	}
	if !resp.AuthenticatedData {
		return nil, fmt.Errorf("%w: answer for %s %s lacks the AD flag",
			ErrDNSSECValidationFailed, name, dns.TypeToString[qtype])
	}
	return resp.Answer, nil
}

// LookupSRV performs a validated SRV lookup. The canonical-name return is
// always empty.
func (r *DNSSECResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	qname := fmt.Sprintf("_%s._%s.%s", service, proto, name)
	answers, err := r.query(qname, dns.TypeSRV)
	if err != nil {
		return "", nil, err
	}

	var srvs []*net.SRV
	for _, rr := range answers {
		srv, ok := rr.(*dns.SRV)
		if !ok {
			continue
		}
		srvs = append(srvs, &net.SRV{
			Target:   strings.TrimSuffix(srv.Target, "."),
			Port:     srv.Port,
			Priority: srv.Priority,
			Weight:   srv.Weight,
		})
	}
	if len(srvs) == 0 {
		return "", nil, fmt.Errorf("%w: no validated SRV records for %s", ErrNoEndpoints, qname)
	}
	return "", srvs, nil
}

// LookupTXT performs a validated TXT lookup. Split character-strings within
// one record are joined.
func (r *DNSSECResolver) LookupTXT(name string) ([]string, error) {
	answers, err := r.query(name, dns.TypeTXT)
	if err != nil {
		return nil, err
	}

	var txts []string
	for _, rr := range answers {
		if txt, ok := rr.(*dns.TXT); ok {
			txts = append(txts, strings.Join(txt.Txt, ""))
		}
	}
	if len(txts) == 0 {
		return nil, fmt.Errorf("%w: no validated TXT records for %s", ErrNoEndpoints, name)
	}
	return txts, nil
}
