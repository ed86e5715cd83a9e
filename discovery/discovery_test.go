package discovery

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockResolver is a test double for DNSResolver.
type mockResolver struct {
	srv    []*net.SRV
	srvErr error
	txt    []string
	txtErr error
}

func (m *mockResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	return "", m.srv, m.srvErr
}

func (m *mockResolver) LookupTXT(name string) ([]string, error) {
	return m.txt, m.txtErr
}

func TestResolveEndpoints_SortedByPriorityThenWeight(t *testing.T) {
	r := &mockResolver{srv: []*net.SRV{
		{Target: "ks-backup.example.com.", Port: 443, Priority: 20, Weight: 10},
		{Target: "ks2.example.com.", Port: 8443, Priority: 10, Weight: 5},
		{Target: "ks1.example.com.", Port: 443, Priority: 10, Weight: 50},
	}}

	endpoints, err := ResolveEndpointsWithResolver("example.com", SRVKeyServer, r)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://ks1.example.com:443",
		"https://ks2.example.com:8443",
		"https://ks-backup.example.com:443",
	}, endpoints)
}

func TestResolveEndpoints_EmptyDomain(t *testing.T) {
	_, err := ResolveEndpointsWithResolver("", SRVKeyServer, &mockResolver{})
	assert.ErrorIs(t, err, ErrDNSLookupFailed)
}

func TestResolveEndpoints_LookupError(t *testing.T) {
	r := &mockResolver{srvErr: errors.New("servfail")}
	_, err := ResolveEndpointsWithResolver("example.com", SRVKeyServer, r)
	assert.ErrorIs(t, err, ErrDNSLookupFailed)
}

func TestResolveEndpoints_NoRecords(t *testing.T) {
	_, err := ResolveEndpointsWithResolver("example.com", SRVBlobNet, &mockResolver{})
	assert.ErrorIs(t, err, ErrNoEndpoints)
}

func TestResolveObjectID(t *testing.T) {
	r := &mockResolver{txt: []string{
		"v=spf1 -all",
		"sealobj=0x7b226b65",
	}}
	id, err := ResolveObjectID("example.com", r)
	require.NoError(t, err)
	assert.Equal(t, "0x7b226b65", id)
}

func TestResolveObjectID_Missing(t *testing.T) {
	r := &mockResolver{txt: []string{"v=spf1 -all"}}
	_, err := ResolveObjectID("example.com", r)
	assert.ErrorIs(t, err, ErrNoEndpoints)
}

func TestResolveObjectID_EmptyValue(t *testing.T) {
	r := &mockResolver{txt: []string{"sealobj="}}
	_, err := ResolveObjectID("example.com", r)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}
