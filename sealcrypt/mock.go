package sealcrypt

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/yashvikram30/decentralized-canva-sub000/policy"
)

// mockIVLen is the length of the per-envelope randomizer for the mock strategy.
const mockIVLen = 16

// hkdfMockInfo is the HKDF info string for the mock keystream key.
const hkdfMockInfo = "mock-reversible"

// MockEncrypter is the reversible mock strategy. The keystream key is derived
// from the policy id and a random IV — both stored in the clear — so anyone
// holding the envelope can reverse it. It exists for tests and offline
// development only and tags every envelope AlgorithmMock so stored data's
// protection level is inspectable. Access control is still enforced: decrypt
// performs the same authorization checks as the network strategy.
type MockEncrypter struct {
	policies policy.Store
	now      func() time.Time
}

// Compile-time interface check.
var _ Encrypter = (*MockEncrypter)(nil)

// NewMock creates a MockEncrypter over the given policy store.
func NewMock(policies policy.Store) *MockEncrypter {
	return &MockEncrypter{policies: policies, now: time.Now}
}

// Encrypt applies a fresh AES-CTR keystream derived from the policy id.
func (m *MockEncrypter) Encrypt(ctx context.Context, plaintext []byte, identity policy.Identity, policyID policy.PolicyID) (*Envelope, error) {
	if err := validateInputs(identity, policyID); err != nil {
		return nil, err
	}
	if _, err := m.policies.Get(policyID); err != nil {
		if errors.Is(err, policy.ErrPolicyNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
		}
		return nil, fmt.Errorf("sealcrypt: policy lookup: %w", err)
	}

	iv := make([]byte, mockIVLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("sealcrypt: generate iv: %w", err)
	}

	out := make([]byte, mockIVLen+len(plaintext))
	copy(out, iv)
	if err := mockKeystream(policyID, iv, plaintext, out[mockIVLen:]); err != nil {
		return nil, err
	}

	return &Envelope{
		Ciphertext:     out,
		AccessPolicyID: policyID,
		Algorithm:      AlgorithmMock,
		CreatedAt:      m.now(),
	}, nil
}

// Decrypt authorizes identity and reverses the keystream.
func (m *MockEncrypter) Decrypt(ctx context.Context, env *Envelope, identity policy.Identity) ([]byte, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if env.Algorithm != AlgorithmMock {
		return nil, fmt.Errorf("%w: algorithm %q not handled by mock strategy", ErrInvalidEnvelope, env.Algorithm)
	}
	if !policy.ValidIdentity(identity) {
		return nil, ErrInvalidIdentity
	}
	if err := authorize(m.policies, env.AccessPolicyID, identity, m.now()); err != nil {
		return nil, err
	}

	if len(env.Ciphertext) < mockIVLen {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrInvalidEnvelope)
	}
	iv := env.Ciphertext[:mockIVLen]
	body := env.Ciphertext[mockIVLen:]

	plaintext := make([]byte, len(body))
	if err := mockKeystream(env.AccessPolicyID, iv, body, plaintext); err != nil {
		return nil, err
	}
	return plaintext, nil
}

// ValidateAccess reports whether identity currently holds read access.
func (m *MockEncrypter) ValidateAccess(ctx context.Context, policyID policy.PolicyID, identity policy.Identity) (bool, error) {
	return validateAccess(m.policies, policyID, identity)
}

// mockKeystream XORs src into dst under an AES-CTR keystream keyed from the
// policy id and iv. Applying it twice with the same parameters round-trips.
func mockKeystream(policyID policy.PolicyID, iv, src, dst []byte) error {
	r := hkdf.New(sha256.New, []byte(policyID), iv, []byte(hkdfMockInfo))
	key := make([]byte, KeyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return fmt.Errorf("sealcrypt: derive mock key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("sealcrypt: mock cipher init: %w", err)
	}
	cipher.NewCTR(block, iv).XORKeyStream(dst, src)
	return nil
}
