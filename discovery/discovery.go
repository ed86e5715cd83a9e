// Package discovery resolves key-server and blob-network endpoints from DNS.
// Deployments publish SRV records (_sealkeys._tcp, _blobnet._tcp) and TXT
// records carrying on-chain object identifiers, so clients need only a domain
// in their configuration.
package discovery

import (
	"fmt"
	"net"
	"sort"
	"strings"
)

// DNSResolver defines the interface for DNS lookups.
// This allows tests to mock DNS resolution.
type DNSResolver interface {
	// LookupSRV looks up SRV records for the given service, proto, and name.
	LookupSRV(service, proto, name string) (string, []*net.SRV, error)

	// LookupTXT looks up TXT records for the given name.
	LookupTXT(name string) ([]string, error)
}

// defaultDNSResolver wraps the standard net package DNS functions.
type defaultDNSResolver struct{}

func (d *defaultDNSResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	return net.LookupSRV(service, proto, name)
}

func (d *defaultDNSResolver) LookupTXT(name string) ([]string, error) {
	return net.LookupTXT(name)
}

// DefaultDNSResolver is the production DNS resolver using the net package.
var DefaultDNSResolver DNSResolver = &defaultDNSResolver{}

// SRV service labels.
const (
	SRVKeyServer = "sealkeys" // _sealkeys._tcp.{domain}
	SRVBlobNet   = "blobnet"  // _blobnet._tcp.{domain}
)

// txtObjectPrefix marks TXT records carrying an on-chain object identifier.
const txtObjectPrefix = "sealobj="

// ResolveEndpoints resolves SRV records for a domain.
// service should be SRVKeyServer or SRVBlobNet.
// Returns HTTPS base URLs sorted by priority then weight.
func ResolveEndpoints(domain string, service string) ([]string, error) {
	return ResolveEndpointsWithResolver(domain, service, DefaultDNSResolver)
}

// ResolveEndpointsWithResolver resolves SRV records using the provided resolver.
func ResolveEndpointsWithResolver(domain string, service string, resolver DNSResolver) ([]string, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrDNSLookupFailed)
	}
	if service == "" {
		return nil, fmt.Errorf("%w: empty service", ErrDNSLookupFailed)
	}

	_, addrs, err := resolver.LookupSRV(service, "tcp", domain)
	if err != nil {
		return nil, fmt.Errorf("%w: SRV lookup for _%s._tcp.%s: %w", ErrDNSLookupFailed, service, domain, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: no SRV records for _%s._tcp.%s", ErrNoEndpoints, service, domain)
	}

	// Sort by priority (ascending), then by weight (descending).
	sort.Slice(addrs, func(i, j int) bool {
		if addrs[i].Priority != addrs[j].Priority {
			return addrs[i].Priority < addrs[j].Priority
		}
		return addrs[i].Weight > addrs[j].Weight
	})

	endpoints := make([]string, 0, len(addrs))
	for _, a := range addrs {
		host := strings.TrimSuffix(a.Target, ".")
		if host == "" {
			continue
		}
		endpoints = append(endpoints, fmt.Sprintf("https://%s:%d", host, a.Port))
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("%w: all SRV targets empty for _%s._tcp.%s", ErrNoEndpoints, service, domain)
	}
	return endpoints, nil
}

// ResolveObjectID looks up the on-chain object identifier published for a
// domain via a "sealobj=" TXT record. The identifier names the external
// program instance whose seal_approve entry point authorizes decryption.
func ResolveObjectID(domain string, resolver DNSResolver) (string, error) {
	if resolver == nil {
		resolver = DefaultDNSResolver
	}
	if domain == "" {
		return "", fmt.Errorf("%w: empty domain", ErrDNSLookupFailed)
	}

	records, err := resolver.LookupTXT(domain)
	if err != nil {
		return "", fmt.Errorf("%w: TXT lookup for %s: %w", ErrDNSLookupFailed, domain, err)
	}

	for _, rec := range records {
		rec = strings.TrimSpace(rec)
		if strings.HasPrefix(rec, txtObjectPrefix) {
			id := strings.TrimPrefix(rec, txtObjectPrefix)
			if id == "" {
				return "", fmt.Errorf("%w: empty object id in TXT record", ErrInvalidRecord)
			}
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: no %q TXT record for %s", ErrNoEndpoints, txtObjectPrefix, domain)
}
