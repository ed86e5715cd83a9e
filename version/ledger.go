// Package version keeps per-document version histories. Version numbers are
// strictly monotonic per document: they are assigned from a counter that is
// never reset, so pruning old records can never cause a number to be reused.
package version

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yashvikram30/decentralized-canva-sub000/policy"
)

// Record is one entry in a document's version history.
type Record struct {
	Version     uint64
	Timestamp   time.Time
	Payload     []byte
	ChangedBy   policy.Identity
	Description string
}

// Ledger is the version-history contract.
type Ledger interface {
	// Append records a new version of docID and returns its assigned number.
	// rec.Version and rec.Timestamp are set by the ledger.
	Append(docID string, rec *Record) (uint64, error)

	// Get returns a specific version.
	Get(docID string, v uint64) (*Record, error)

	// List returns all retained versions, oldest first.
	List(docID string) ([]*Record, error)

	// Latest returns the most recent version.
	Latest(docID string) (*Record, error)

	// Rollback appends a NEW version carrying the payload of version target.
	// History is never rewritten; a rollback is itself a recorded change.
	Rollback(docID string, target uint64, by policy.Identity) (*Record, error)

	// Prune drops the oldest retained versions of docID, keeping the newest
	// keep records. The latest version is never dropped. Returns the number
	// of records removed.
	Prune(docID string, keep int) (int, error)
}

func validateRecord(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("%w: record", ErrNilParam)
	}
	if len(rec.Payload) == 0 || rec.ChangedBy == "" {
		return ErrInvalidRecord
	}
	return nil
}

// history is one document's in-memory state. counter only grows.
type history struct {
	counter uint64
	records map[uint64]*Record
}

// MemoryLedger is the in-memory Ledger implementation.
type MemoryLedger struct {
	mu   sync.RWMutex
	docs map[string]*history
	now  func() time.Time
}

// Compile-time interface check.
var _ Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger creates an empty in-memory version ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{docs: make(map[string]*history), now: time.Now}
}

func (l *MemoryLedger) Append(docID string, rec *Record) (uint64, error) {
	if docID == "" {
		return 0, fmt.Errorf("%w: docID", ErrNilParam)
	}
	if err := validateRecord(rec); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.docs[docID]
	if !ok {
		h = &history{records: make(map[uint64]*Record)}
		l.docs[docID] = h
	}
	h.counter++
	stored := cloneRecord(rec)
	stored.Version = h.counter
	stored.Timestamp = l.now()
	h.records[stored.Version] = stored
	rec.Version = stored.Version
	rec.Timestamp = stored.Timestamp
	return stored.Version, nil
}

func (l *MemoryLedger) Get(docID string, v uint64) (*Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h, ok := l.docs[docID]
	if !ok {
		return nil, ErrHistoryEmpty
	}
	rec, ok := h.records[v]
	if !ok {
		return nil, ErrVersionNotFound
	}
	return cloneRecord(rec), nil
}

func (l *MemoryLedger) List(docID string) ([]*Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h, ok := l.docs[docID]
	if !ok || len(h.records) == 0 {
		return nil, ErrHistoryEmpty
	}
	out := make([]*Record, 0, len(h.records))
	for _, rec := range h.records {
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (l *MemoryLedger) Latest(docID string) (*Record, error) {
	recs, err := l.List(docID)
	if err != nil {
		return nil, err
	}
	return recs[len(recs)-1], nil
}

func (l *MemoryLedger) Rollback(docID string, target uint64, by policy.Identity) (*Record, error) {
	targetRec, err := l.Get(docID, target)
	if err != nil {
		return nil, err
	}
	rec := &Record{
		Payload:     targetRec.Payload,
		ChangedBy:   by,
		Description: fmt.Sprintf("rollback to version %d", target),
	}
	if _, err := l.Append(docID, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (l *MemoryLedger) Prune(docID string, keep int) (int, error) {
	if keep < 1 {
		return 0, ErrLastVersion
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.docs[docID]
	if !ok || len(h.records) == 0 {
		return 0, ErrHistoryEmpty
	}

	versions := make([]uint64, 0, len(h.records))
	for v := range h.records {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	drop := len(versions) - keep
	if drop <= 0 {
		return 0, nil
	}
	for _, v := range versions[:drop] {
		delete(h.records, v)
	}
	// h.counter is untouched: the next Append continues the sequence.
	return drop, nil
}

func cloneRecord(rec *Record) *Record {
	cp := *rec
	cp.Payload = make([]byte, len(rec.Payload))
	copy(cp.Payload, rec.Payload)
	return &cp
}
