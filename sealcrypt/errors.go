package sealcrypt

import "errors"

var (
	// ErrInvalidIdentity indicates an empty or malformed identity.
	ErrInvalidIdentity = errors.New("sealcrypt: invalid identity")

	// ErrInvalidPolicy indicates an empty, malformed, or unknown policy id.
	ErrInvalidPolicy = errors.New("sealcrypt: invalid policy")

	// ErrAccessDenied indicates the identity is not authorized to decrypt
	// under the envelope's policy. Returned before any cryptographic work.
	ErrAccessDenied = errors.New("sealcrypt: access denied")

	// ErrPolicyExpired indicates the policy's expiry is in the past. Kept
	// distinct from ErrAccessDenied so callers can report it precisely.
	ErrPolicyExpired = errors.New("sealcrypt: policy expired")

	// ErrBackendUnavailable indicates the key-server network or the ledger
	// could not be reached. Never silently downgraded to a no-op.
	ErrBackendUnavailable = errors.New("sealcrypt: encryption backend unavailable")

	// ErrInvalidEnvelope indicates a structurally invalid encryption envelope.
	ErrInvalidEnvelope = errors.New("sealcrypt: invalid envelope")

	// ErrDecryptionFailed indicates authenticated decryption failed.
	ErrDecryptionFailed = errors.New("sealcrypt: decryption failed")

	// ErrInitFailed indicates the configured strategy could not be
	// constructed. There is no fallback between strategies.
	ErrInitFailed = errors.New("sealcrypt: strategy initialization failed")
)
