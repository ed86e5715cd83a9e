package sealcrypt

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yashvikram30/decentralized-canva-sub000/ledger"
	"github.com/yashvikram30/decentralized-canva-sub000/policy"
)

// ShareRequest asks a key server to derive its share of a data key.
// For decryption the approval fields must carry a ledger-accepted
// seal_approve transaction; servers refuse to release shares without one.
type ShareRequest struct {
	PolicyID policy.PolicyID `json:"policyId"`
	Identity policy.Identity `json:"identity"`
	Seed     []byte          `json:"seed"`

	// Approval proof, present on decrypt requests only.
	ApprovalTx  []byte `json:"approvalTx,omitempty"`
	ApprovalSig []byte `json:"approvalSig,omitempty"`
	PubKey      []byte `json:"pubKey,omitempty"`
}

// KeyServer is a single member of the key-server network.
type KeyServer interface {
	// Endpoint returns the server's base URL, recorded in envelopes.
	Endpoint() string

	// FetchShare derives this server's share for the request. Derivation is
	// deterministic in (policy, seed) so decryption can re-derive the key.
	FetchShare(ctx context.Context, req *ShareRequest) ([]byte, error)
}

// MockKeyServer is a test double for KeyServer.
type MockKeyServer struct {
	EndpointVal  string
	FetchShareFn func(ctx context.Context, req *ShareRequest) ([]byte, error)
}

func (m *MockKeyServer) Endpoint() string { return m.EndpointVal }

func (m *MockKeyServer) FetchShare(ctx context.Context, req *ShareRequest) ([]byte, error) {
	return m.FetchShareFn(ctx, req)
}

// HTTPKeyServer talks to a key server over its JSON HTTP API.
type HTTPKeyServer struct {
	baseURL string
	client  *http.Client
}

// Compile-time interface check.
var _ KeyServer = (*HTTPKeyServer)(nil)

// NewHTTPKeyServer creates a client for the key server at baseURL.
func NewHTTPKeyServer(baseURL string) *HTTPKeyServer {
	return &HTTPKeyServer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Endpoint returns the server's base URL.
func (s *HTTPKeyServer) Endpoint() string { return s.baseURL }

// FetchShare requests the server's key share.
// POST {base}/v1/keys/derive, JSON body, JSON response {"share": base64}.
func (s *HTTPKeyServer) FetchShare(ctx context.Context, req *ShareRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("sealcrypt: marshal share request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/keys/derive", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sealcrypt: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, s.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s refused share release", ErrAccessDenied, s.baseURL)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s has no such policy", ErrInvalidPolicy, s.baseURL)
	default:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: %s: HTTP %d: %s", ErrBackendUnavailable, s.baseURL, resp.StatusCode, string(respBody))
	}

	var out struct {
		Share []byte `json:"share"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %s: decode share: %v", ErrBackendUnavailable, s.baseURL, err)
	}
	if len(out.Share) == 0 {
		return nil, fmt.Errorf("%w: %s returned empty share", ErrBackendUnavailable, s.baseURL)
	}
	return out.Share, nil
}

// NetworkEncrypter is the production strategy. Encryption derives a data key
// from a quorum of key-server shares; decryption first obtains on-chain
// approval via the ledger and presents it to the same quorum. A real
// threshold-IBE construction can replace the share transport without
// changing this interface.
type NetworkEncrypter struct {
	policies  policy.Store
	approver  ledger.Approver
	pool      []KeyServer
	threshold uint32
	now       func() time.Time

	// dial creates a client for an envelope-listed endpoint that is not in
	// the pool (e.g., an envelope produced under an older configuration).
	dial func(endpoint string) KeyServer
}

// Compile-time interface check.
var _ Encrypter = (*NetworkEncrypter)(nil)

// NewNetwork creates a NetworkEncrypter over HTTP key servers at the given
// endpoints.
func NewNetwork(policies policy.Store, approver ledger.Approver, endpoints []string, threshold uint32) *NetworkEncrypter {
	pool := make([]KeyServer, 0, len(endpoints))
	for _, ep := range endpoints {
		pool = append(pool, NewHTTPKeyServer(ep))
	}
	return newNetworkWithPool(policies, approver, pool, threshold)
}

// NewNetworkWithServers creates a NetworkEncrypter over explicit KeyServer
// implementations. Used by tests and embedded deployments.
func NewNetworkWithServers(policies policy.Store, approver ledger.Approver, servers []KeyServer, threshold uint32) *NetworkEncrypter {
	return newNetworkWithPool(policies, approver, servers, threshold)
}

func newNetworkWithPool(policies policy.Store, approver ledger.Approver, pool []KeyServer, threshold uint32) *NetworkEncrypter {
	return &NetworkEncrypter{
		policies:  policies,
		approver:  approver,
		pool:      pool,
		threshold: threshold,
		now:       time.Now,
		dial:      func(endpoint string) KeyServer { return NewHTTPKeyServer(endpoint) },
	}
}

// Encrypt derives a fresh data key from a quorum of key-server shares and
// encrypts plaintext under it with AES-256-GCM.
func (n *NetworkEncrypter) Encrypt(ctx context.Context, plaintext []byte, identity policy.Identity, policyID policy.PolicyID) (*Envelope, error) {
	if err := validateInputs(identity, policyID); err != nil {
		return nil, err
	}
	if _, err := n.policies.Get(policyID); err != nil {
		if errors.Is(err, policy.ErrPolicyNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
		}
		return nil, fmt.Errorf("sealcrypt: policy lookup: %w", err)
	}

	seed := make([]byte, SeedLen)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("sealcrypt: generate seed: %w", err)
	}

	req := &ShareRequest{PolicyID: policyID, Identity: identity, Seed: seed}
	shares, quorum, err := n.collectShares(ctx, n.pool, req)
	if err != nil {
		return nil, err
	}

	key, err := deriveDataKey(shares, seed)
	if err != nil {
		return nil, err
	}

	sealed, err := aesGCMEncrypt(plaintext, key, []byte(policyID))
	if err != nil {
		return nil, err
	}

	ciphertext := make([]byte, 0, SeedLen+len(sealed))
	ciphertext = append(ciphertext, seed...)
	ciphertext = append(ciphertext, sealed...)

	return &Envelope{
		Ciphertext:     ciphertext,
		AccessPolicyID: policyID,
		KeyServers:     quorum,
		Threshold:      n.threshold,
		Algorithm:      AlgorithmThreshold,
		CreatedAt:      n.now(),
	}, nil
}

// Decrypt obtains on-chain approval, re-derives the data key from the
// envelope's quorum, and decrypts. The authorization check runs before any
// cryptographic operation or key-server contact.
func (n *NetworkEncrypter) Decrypt(ctx context.Context, env *Envelope, identity policy.Identity) ([]byte, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if env.Algorithm != AlgorithmThreshold {
		return nil, fmt.Errorf("%w: algorithm %q not handled by network strategy", ErrInvalidEnvelope, env.Algorithm)
	}
	if !policy.ValidIdentity(identity) {
		return nil, ErrInvalidIdentity
	}
	if err := authorize(n.policies, env.AccessPolicyID, identity, n.now()); err != nil {
		return nil, err
	}

	approval, err := n.approver.Approve(ctx, identity, env.AccessPolicyID)
	if err != nil {
		if errors.Is(err, ledger.ErrApprovalRejected) {
			return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
		return nil, fmt.Errorf("%w: ledger approval: %v", ErrBackendUnavailable, err)
	}

	if len(env.Ciphertext) < SeedLen+NonceLen {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrInvalidEnvelope)
	}
	seed := env.Ciphertext[:SeedLen]
	sealed := env.Ciphertext[SeedLen:]

	req := &ShareRequest{
		PolicyID:    env.AccessPolicyID,
		Identity:    identity,
		Seed:        seed,
		ApprovalTx:  approval.RawTx,
		ApprovalSig: approval.Signature,
		PubKey:      approval.PubKey,
	}

	// The envelope's quorum must cooperate; every listed share feeds the key.
	servers := make([]KeyServer, 0, len(env.KeyServers))
	for _, ep := range env.KeyServers {
		servers = append(servers, n.serverFor(ep))
	}
	shares := make([][]byte, 0, len(servers))
	for _, srv := range servers {
		share, err := srv.FetchShare(ctx, req)
		if err != nil {
			if errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrInvalidPolicy) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		shares = append(shares, share)
	}

	key, err := deriveDataKey(shares, seed)
	if err != nil {
		return nil, err
	}
	return aesGCMDecrypt(sealed, key, []byte(env.AccessPolicyID))
}

// ValidateAccess reports whether identity currently holds read access.
func (n *NetworkEncrypter) ValidateAccess(ctx context.Context, policyID policy.PolicyID, identity policy.Identity) (bool, error) {
	return validateAccess(n.policies, policyID, identity)
}

// collectShares gathers shares from the pool until the threshold is met,
// skipping unreachable servers. Fewer than threshold reachable servers is
// ErrBackendUnavailable carrying the last per-server failure.
func (n *NetworkEncrypter) collectShares(ctx context.Context, pool []KeyServer, req *ShareRequest) ([][]byte, []string, error) {
	var (
		shares  [][]byte
		quorum  []string
		lastErr error
	)
	for _, srv := range pool {
		if uint32(len(shares)) == n.threshold {
			break
		}
		share, err := srv.FetchShare(ctx, req)
		if err != nil {
			// Denial and unknown-policy are definitive, not routed around.
			if errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrInvalidPolicy) {
				return nil, nil, err
			}
			lastErr = err
			continue
		}
		shares = append(shares, share)
		quorum = append(quorum, srv.Endpoint())
	}
	if uint32(len(shares)) < n.threshold {
		if lastErr == nil {
			lastErr = fmt.Errorf("only %d of %d required servers responded", len(shares), n.threshold)
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, lastErr)
	}
	return shares, quorum, nil
}

// serverFor returns the pooled client for an endpoint, dialing a new one for
// endpoints no longer in the configured pool.
func (n *NetworkEncrypter) serverFor(endpoint string) KeyServer {
	for _, srv := range n.pool {
		if srv.Endpoint() == endpoint {
			return srv
		}
	}
	return n.dial(endpoint)
}
