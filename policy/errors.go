package policy

import "errors"

var (
	// ErrPolicyNotFound indicates no policy exists for the given identifier.
	// Callers must be able to distinguish this from a plain permission denial.
	ErrPolicyNotFound = errors.New("policy: not found")

	// ErrInvalidOwner indicates an empty or malformed owner identity.
	ErrInvalidOwner = errors.New("policy: invalid owner identity")

	// ErrInvalidIdentity indicates an empty identity in a grant/revoke call.
	ErrInvalidIdentity = errors.New("policy: invalid identity")

	// ErrOwnerImmutable indicates an attempt to revoke the policy owner.
	ErrOwnerImmutable = errors.New("policy: owner cannot be revoked")

	// ErrStoreClosed indicates an operation on a closed durable store.
	ErrStoreClosed = errors.New("policy: store is closed")
)
