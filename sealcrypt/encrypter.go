// Package sealcrypt wraps the threshold encryption backend behind one
// interface with two swappable strategies: a reversible mock for tests and
// offline development, and a network strategy backed by a key-server quorum
// with an on-chain authorization check. The strategy is chosen once at
// construction from configuration; there is no runtime fallback.
package sealcrypt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yashvikram30/decentralized-canva-sub000/config"
	"github.com/yashvikram30/decentralized-canva-sub000/discovery"
	"github.com/yashvikram30/decentralized-canva-sub000/ledger"
	"github.com/yashvikram30/decentralized-canva-sub000/policy"
)

// Encrypter is the backend-agnostic threshold encryption contract.
type Encrypter interface {
	// Encrypt encrypts plaintext for the given policy. Ciphertexts are fresh:
	// two calls with identical inputs never produce equal output.
	Encrypt(ctx context.Context, plaintext []byte, identity policy.Identity, policyID policy.PolicyID) (*Envelope, error)

	// Decrypt authorizes identity against the envelope's policy and, only if
	// authorized, decrypts. Denial surfaces before any cryptographic work so
	// "denied" and "garbled" are not distinguishable by timing.
	Decrypt(ctx context.Context, env *Envelope, identity policy.Identity) ([]byte, error)

	// ValidateAccess is a side-effect-free pre-check so callers can
	// short-circuit before paying for a decrypt attempt.
	ValidateAccess(ctx context.Context, policyID policy.PolicyID, identity policy.Identity) (bool, error)
}

// New constructs the Encrypter selected by cfg.EncryptionMode.
//
// Selecting the mock strategy logs a prominent warning: envelopes it produces
// are tagged AlgorithmMock and are not protected. If the network strategy
// cannot be initialized the error is returned as ErrInitFailed — the caller
// must not fall back to the mock, or mock-"encrypted" data could be persisted
// in the belief that it is protected.
func New(cfg *config.Config, policies policy.Store, approver ledger.Approver, log *logrus.Logger) (Encrypter, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	switch cfg.EncryptionMode {
	case config.ModeMock:
		log.Warn("sealcrypt: mock-reversible strategy selected; persisted envelopes are NOT cryptographically protected")
		return NewMock(policies), nil

	case config.ModeNetwork:
		endpoints := cfg.KeyServers
		if len(endpoints) == 0 {
			// Discovery answers pick the servers that hold key shares, so
			// only DNSSEC-validated records are accepted.
			resolver := discovery.NewDNSSECResolver(cfg.DNSSECUpstream)
			resolved, err := discovery.ResolveEndpointsWithResolver(cfg.KeyServerDomain, discovery.SRVKeyServer, resolver)
			if err != nil {
				return nil, fmt.Errorf("%w: key server discovery: %w", ErrInitFailed, err)
			}
			endpoints = resolved
		}
		if int(cfg.Threshold) > len(endpoints) {
			return nil, fmt.Errorf("%w: threshold %d exceeds %d key servers",
				ErrInitFailed, cfg.Threshold, len(endpoints))
		}
		if approver == nil {
			return nil, fmt.Errorf("%w: network strategy requires a ledger approver", ErrInitFailed)
		}
		return NewNetwork(policies, approver, endpoints, cfg.Threshold), nil

	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInitFailed, cfg.EncryptionMode)
	}
}

// validateInputs checks the caller-supplied identity and policy id shape.
func validateInputs(identity policy.Identity, policyID policy.PolicyID) error {
	if !policy.ValidIdentity(identity) {
		return ErrInvalidIdentity
	}
	if policyID == "" {
		return ErrInvalidPolicy
	}
	return nil
}

// authorize performs the local policy check shared by both strategies.
// Unknown policies collapse to denied (with the cause preserved for
// diagnostics); expiry is reported distinctly from plain denial.
func authorize(policies policy.Store, policyID policy.PolicyID, identity policy.Identity, now time.Time) error {
	p, err := policies.Get(policyID)
	if err != nil {
		if errors.Is(err, policy.ErrPolicyNotFound) {
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
		return fmt.Errorf("sealcrypt: policy lookup: %w", err)
	}
	if p.Expired(now) {
		return ErrPolicyExpired
	}
	if !p.Allows(identity, policy.ActionRead) {
		return ErrAccessDenied
	}
	return nil
}

// validateAccess is the shared ValidateAccess implementation.
func validateAccess(policies policy.Store, policyID policy.PolicyID, identity policy.Identity) (bool, error) {
	if err := validateInputs(identity, policyID); err != nil {
		return false, err
	}
	ok, err := policies.Check(policyID, identity, policy.ActionRead)
	if err != nil {
		if errors.Is(err, policy.ErrPolicyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("sealcrypt: policy check: %w", err)
	}
	return ok, nil
}
