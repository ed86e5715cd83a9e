package policy

import (
	"strings"
	"sync"
	"time"
)

// Store is the access-policy registry contract. Implementations must treat
// unknown policies as ErrPolicyNotFound rather than silently reporting "no
// access", so callers can distinguish the two for diagnostics. Check itself
// collapses both to denied for safety.
type Store interface {
	// Create registers a new policy owned by owner. Permission sets default
	// to {owner} when not given; the owner is always added to all three sets.
	Create(owner Identity, grants *Grants) (PolicyID, *AccessPolicy, error)

	// Get returns a copy of the policy, or ErrPolicyNotFound.
	Get(id PolicyID) (*AccessPolicy, error)

	// Check reports whether identity may perform action under the policy.
	// Returns (false, ErrPolicyNotFound) for unknown policies and
	// (false, nil) for expired policies or absent identities. No side effects.
	Check(id PolicyID, identity Identity, action Action) (bool, error)

	// Grant adds identity to the permission sets for the given actions.
	Grant(id PolicyID, identity Identity, actions ...Action) (*AccessPolicy, error)

	// Revoke removes identity from all three permission sets.
	// Returns false with ErrPolicyNotFound if the policy is unknown.
	Revoke(id PolicyID, identity Identity) (bool, error)

	// Update applies a patch and returns the updated policy.
	Update(id PolicyID, patch *Patch) (*AccessPolicy, error)

	// Delete removes the policy. Deleting an unknown policy is not an error.
	Delete(id PolicyID) error
}

// ValidIdentity reports whether id is usable as a principal name: non-empty
// and free of whitespace.
func ValidIdentity(id Identity) bool {
	s := string(id)
	return s != "" && strings.TrimSpace(s) == s && !strings.ContainsAny(s, " \t\n")
}

// MemoryStore is an in-memory Store guarded by a RWMutex. It is the test and
// single-process implementation; BoltStore is the durable one.
type MemoryStore struct {
	mu       sync.RWMutex
	policies map[PolicyID]*AccessPolicy
	now      func() time.Time
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory policy store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies: make(map[PolicyID]*AccessPolicy),
		now:      time.Now,
	}
}

// Create registers a new policy owned by owner.
func (s *MemoryStore) Create(owner Identity, grants *Grants) (PolicyID, *AccessPolicy, error) {
	if !ValidIdentity(owner) {
		return "", nil, ErrInvalidOwner
	}

	id, err := NewPolicyID()
	if err != nil {
		return "", nil, err
	}

	if grants == nil {
		grants = &Grants{}
	}
	p := &AccessPolicy{
		ID:        id,
		Owner:     owner,
		Read:      newSet(owner, grants.Read),
		Write:     newSet(owner, grants.Write),
		Admin:     newSet(owner, grants.Admin),
		Encrypted: true,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.policies[id] = p
	s.mu.Unlock()

	return id, p.Clone(), nil
}

// Get returns a copy of the policy, or ErrPolicyNotFound.
func (s *MemoryStore) Get(id PolicyID) (*AccessPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, ErrPolicyNotFound
	}
	return p.Clone(), nil
}

// Check reports whether identity may perform action under the policy.
func (s *MemoryStore) Check(id PolicyID, identity Identity, action Action) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return false, ErrPolicyNotFound
	}
	if p.Expired(s.now()) {
		return false, nil
	}
	return p.Allows(identity, action), nil
}

// Grant adds identity to the permission sets for the given actions.
func (s *MemoryStore) Grant(id PolicyID, identity Identity, actions ...Action) (*AccessPolicy, error) {
	if !ValidIdentity(identity) {
		return nil, ErrInvalidIdentity
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, ErrPolicyNotFound
	}
	for _, a := range actions {
		switch a {
		case ActionRead:
			p.Read[identity] = true
		case ActionWrite:
			p.Write[identity] = true
		case ActionAdmin:
			p.Admin[identity] = true
		}
	}
	return p.Clone(), nil
}

// Revoke removes identity from all three permission sets. The owner cannot
// be revoked; delete the policy instead.
func (s *MemoryStore) Revoke(id PolicyID, identity Identity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[id]
	if !ok {
		return false, ErrPolicyNotFound
	}
	if identity == p.Owner {
		return false, ErrOwnerImmutable
	}
	delete(p.Read, identity)
	delete(p.Write, identity)
	delete(p.Admin, identity)
	return true, nil
}

// Update applies a patch and returns the updated policy.
func (s *MemoryStore) Update(id PolicyID, patch *Patch) (*AccessPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, ErrPolicyNotFound
	}
	applyPatch(p, patch)
	return p.Clone(), nil
}

// Delete removes the policy.
func (s *MemoryStore) Delete(id PolicyID) error {
	s.mu.Lock()
	delete(s.policies, id)
	s.mu.Unlock()
	return nil
}

// applyPatch mutates p in place. Replaced permission sets re-add the owner so
// the creation invariant survives every update.
func applyPatch(p *AccessPolicy, patch *Patch) {
	if patch == nil {
		return
	}
	if patch.Encrypted != nil {
		p.Encrypted = *patch.Encrypted
	}
	if patch.ExpiresAt != nil {
		exp := *patch.ExpiresAt
		p.ExpiresAt = &exp
	}
	if patch.Read != nil {
		p.Read = newSet(p.Owner, patch.Read)
	}
	if patch.Write != nil {
		p.Write = newSet(p.Owner, patch.Write)
	}
	if patch.Admin != nil {
		p.Admin = newSet(p.Owner, patch.Admin)
	}
}
