package sealcrypt

import (
	"time"

	"github.com/yashvikram30/decentralized-canva-sub000/policy"
)

// Algorithm tags. The tag is persisted with every envelope so the protection
// level of stored data is always inspectable.
const (
	// AlgorithmMock marks the reversible mock strategy. Envelopes carrying
	// this tag are NOT cryptographically protected.
	AlgorithmMock = "mock-reversible"

	// AlgorithmThreshold marks the key-server-backed strategy: a data key
	// combined from a quorum of server shares via HKDF, AES-256-GCM payload.
	AlgorithmThreshold = "threshold-aes256gcm-hkdf"
)

// Envelope is the encrypted payload plus the metadata needed to decrypt it.
// It is opaque to every component except this package: callers move envelopes
// between the blob network and the adapter without inspecting them.
type Envelope struct {
	// Ciphertext is the opaque encrypted payload. Encoded as base64 in JSON.
	Ciphertext []byte `json:"ciphertext,omitempty"`

	// AccessPolicyID binds the envelope to an access policy.
	AccessPolicyID policy.PolicyID `json:"accessPolicyId"`

	// KeyServers lists the endpoints whose shares built the data key.
	KeyServers []string `json:"keyServerSet,omitempty"`

	// Threshold is the number of cooperating servers required to decrypt.
	Threshold uint32 `json:"threshold"`

	// Algorithm identifies the encryption strategy that produced this envelope.
	Algorithm string `json:"algorithm"`

	// CreatedAt records when the envelope was produced.
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks the envelope's structural invariants.
func (e *Envelope) Validate() error {
	if e == nil {
		return ErrInvalidEnvelope
	}
	if e.AccessPolicyID == "" {
		return ErrInvalidEnvelope
	}
	if len(e.Ciphertext) == 0 {
		return ErrInvalidEnvelope
	}
	switch e.Algorithm {
	case AlgorithmMock:
		// The mock strategy uses no key servers.
	case AlgorithmThreshold:
		if e.Threshold == 0 || int(e.Threshold) > len(e.KeyServers) {
			return ErrInvalidEnvelope
		}
	default:
		return ErrInvalidEnvelope
	}
	return nil
}
