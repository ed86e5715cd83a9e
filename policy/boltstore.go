package policy

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"
)

var bucketPolicies = []byte("policies")

// BoltStore is a durable Store backed by bbolt. It offers the same semantics
// as MemoryStore; bbolt serializes writers, so no extra locking is needed.
// Operations after Close return ErrStoreClosed.
type BoltStore struct {
	db     *bbolt.DB
	now    func() time.Time
	closed atomic.Bool
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the policy database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("policy: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("policy: open bolt db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPolicies)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("policy: create bucket: %w", err)
	}
	return &BoltStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database. Further operations on the store
// return ErrStoreClosed.
func (s *BoltStore) Close() error {
	s.closed.Store(true)
	return s.db.Close()
}

// guard rejects operations on a closed store before bbolt sees them.
func (s *BoltStore) guard() error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return nil
}

func encodePolicy(p *AccessPolicy) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, fmt.Errorf("policy: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func decodePolicy(data []byte) (*AccessPolicy, error) {
	var p AccessPolicy
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, fmt.Errorf("policy: decode: %w", err)
	}
	return &p, nil
}

// Create registers a new policy owned by owner.
func (s *BoltStore) Create(owner Identity, grants *Grants) (PolicyID, *AccessPolicy, error) {
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
	if err := s.put(p); err != nil {
		return "", nil, err
	}
	return id, p, nil
}

// Get returns the policy, or ErrPolicyNotFound.
func (s *BoltStore) Get(id PolicyID) (*AccessPolicy, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	var p *AccessPolicy
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketPolicies).Get([]byte(id))
		if data == nil {
			return ErrPolicyNotFound
		}
		var derr error
		p, derr = decodePolicy(data)
		return derr
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Check reports whether identity may perform action under the policy.
func (s *BoltStore) Check(id PolicyID, identity Identity, action Action) (bool, error) {
	p, err := s.Get(id)
	if err != nil {
		return false, err
	}
	if p.Expired(s.now()) {
		return false, nil
	}
	return p.Allows(identity, action), nil
}

// Grant adds identity to the permission sets for the given actions.
func (s *BoltStore) Grant(id PolicyID, identity Identity, actions ...Action) (*AccessPolicy, error) {
	if !ValidIdentity(identity) {
		return nil, ErrInvalidIdentity
	}
	return s.mutate(id, func(p *AccessPolicy) error {
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
		return nil
	})
}

// Revoke removes identity from all three permission sets.
func (s *BoltStore) Revoke(id PolicyID, identity Identity) (bool, error) {
	_, err := s.mutate(id, func(p *AccessPolicy) error {
		if identity == p.Owner {
			return ErrOwnerImmutable
		}
		delete(p.Read, identity)
		delete(p.Write, identity)
		delete(p.Admin, identity)
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Update applies a patch and returns the updated policy.
func (s *BoltStore) Update(id PolicyID, patch *Patch) (*AccessPolicy, error) {
	return s.mutate(id, func(p *AccessPolicy) error {
		applyPatch(p, patch)
		return nil
	})
}

// Delete removes the policy.
func (s *BoltStore) Delete(id PolicyID) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPolicies).Delete([]byte(id))
	})
}

func (s *BoltStore) put(p *AccessPolicy) error {
	if err := s.guard(); err != nil {
		return err
	}
	data, err := encodePolicy(p)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPolicies).Put([]byte(p.ID), data)
	})
}

// mutate loads, mutates, and writes back a policy inside one transaction.
func (s *BoltStore) mutate(id PolicyID, fn func(*AccessPolicy) error) (*AccessPolicy, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	var out *AccessPolicy
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPolicies)
		data := b.Get([]byte(id))
		if data == nil {
			return ErrPolicyNotFound
		}
		p, err := decodePolicy(data)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		enc, err := encodePolicy(p)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(id), enc); err != nil {
			return fmt.Errorf("policy: put: %w", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
