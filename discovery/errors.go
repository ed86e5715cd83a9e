package discovery

import "errors"

var (
	// ErrDNSLookupFailed indicates the DNS query itself failed.
	ErrDNSLookupFailed = errors.New("discovery: DNS lookup failed")

	// ErrNoEndpoints indicates the lookup succeeded but returned no usable records.
	ErrNoEndpoints = errors.New("discovery: no endpoints found")

	// ErrInvalidRecord indicates a record was present but malformed.
	ErrInvalidRecord = errors.New("discovery: invalid record")

	// ErrDNSSECValidationFailed indicates the response was not authenticated.
	ErrDNSSECValidationFailed = errors.New("discovery: DNSSEC validation failed")
)
