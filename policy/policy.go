// Package policy implements the access-policy registry: a mapping from policy
// identifiers to an owner and three permission sets (read, write, admin).
// Policies are mutated only through explicit grant/revoke operations and are
// never implicitly widened.
package policy

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Identity names a principal (a wallet address or user identifier).
type Identity string

// PolicyID uniquely identifies an access policy.
type PolicyID string

// Action is a permission class checked against a policy.
type Action int

const (
	ActionRead Action = iota
	ActionWrite
	ActionAdmin
)

// String returns the lowercase action name.
func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionWrite:
		return "write"
	case ActionAdmin:
		return "admin"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Grants holds optional initial permission sets for policy creation.
// Nil sets default to {owner}.
type Grants struct {
	Read  []Identity
	Write []Identity
	Admin []Identity
}

// AccessPolicy is an access-control record. The owner is always present in
// all three permission sets at creation time.
type AccessPolicy struct {
	ID        PolicyID              `json:"id"`
	Owner     Identity              `json:"owner"`
	Read      map[Identity]bool     `json:"read"`
	Write     map[Identity]bool     `json:"write"`
	Admin     map[Identity]bool     `json:"admin"`
	Encrypted bool                  `json:"encrypted"`
	ExpiresAt *time.Time            `json:"expiresAt,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
}

// Patch describes an updatePolicy mutation. Nil fields are left unchanged.
// Replacing a permission set always re-adds the owner.
type Patch struct {
	Encrypted *bool
	ExpiresAt *time.Time
	Read      []Identity
	Write     []Identity
	Admin     []Identity
}

// Allows reports whether identity is present in the permission set for action.
// It does not consider expiry; see Expired.
func (p *AccessPolicy) Allows(identity Identity, action Action) bool {
	switch action {
	case ActionRead:
		return p.Read[identity]
	case ActionWrite:
		return p.Write[identity]
	case ActionAdmin:
		return p.Admin[identity]
	}
	return false
}

// Expired reports whether the policy's expiry, if set, is in the past.
func (p *AccessPolicy) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}

// Clone returns a deep copy so callers cannot mutate store state.
func (p *AccessPolicy) Clone() *AccessPolicy {
	c := *p
	c.Read = cloneSet(p.Read)
	c.Write = cloneSet(p.Write)
	c.Admin = cloneSet(p.Admin)
	if p.ExpiresAt != nil {
		exp := *p.ExpiresAt
		c.ExpiresAt = &exp
	}
	return &c
}

func cloneSet(s map[Identity]bool) map[Identity]bool {
	c := make(map[Identity]bool, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// newSet builds a permission set from identities, always including owner.
func newSet(owner Identity, ids []Identity) map[Identity]bool {
	s := map[Identity]bool{owner: true}
	for _, id := range ids {
		if id != "" {
			s[id] = true
		}
	}
	return s
}

// NewPolicyID generates a fresh random policy identifier.
func NewPolicyID() (PolicyID, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("policy: generate id: %w", err)
	}
	return PolicyID(hex.EncodeToString(b[:])), nil
}
