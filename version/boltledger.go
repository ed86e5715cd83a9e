package version

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/yashvikram30/decentralized-canva-sub000/policy"
)

var (
	bucketVersions = []byte("versions")
	bucketCounters = []byte("version_counters")
)

// BoltLedger is the durable Ledger implementation. Each document gets a
// sub-bucket of "versions" keyed by 8-byte big-endian version numbers, so a
// cursor walks history in order. The per-document counter lives in a separate
// bucket and survives pruning.
type BoltLedger struct {
	db  *bbolt.DB
	now func() time.Time
}

// Compile-time interface check.
var _ Ledger = (*BoltLedger)(nil)

// OpenBoltLedger opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltLedger(dbPath string) (*BoltLedger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("version: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("version: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketVersions, bucketCounters} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("version: create buckets: %w", err)
	}

	return &BoltLedger{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (l *BoltLedger) Close() error { return l.db.Close() }

// versionKey encodes a version number as an 8-byte big-endian key.
func versionKey(v uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, v)
	return k
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (l *BoltLedger) Append(docID string, rec *Record) (uint64, error) {
	if docID == "" {
		return 0, fmt.Errorf("%w: docID", ErrNilParam)
	}
	if err := validateRecord(rec); err != nil {
		return 0, err
	}

	var assigned uint64
	err := l.db.Update(func(tx *bbolt.Tx) error {
		counters := tx.Bucket(bucketCounters)
		var counter uint64
		if raw := counters.Get([]byte(docID)); raw != nil {
			counter = binary.BigEndian.Uint64(raw)
		}
		counter++

		docBucket, err := tx.Bucket(bucketVersions).CreateBucketIfNotExists([]byte(docID))
		if err != nil {
			return fmt.Errorf("create doc bucket: %w", err)
		}

		stored := *rec
		stored.Version = counter
		stored.Timestamp = l.now()
		data, err := encodeGob(&stored)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		if err := docBucket.Put(versionKey(counter), data); err != nil {
			return fmt.Errorf("put record: %w", err)
		}
		if err := counters.Put([]byte(docID), versionKey(counter)); err != nil {
			return fmt.Errorf("put counter: %w", err)
		}

		assigned = counter
		rec.Version = stored.Version
		rec.Timestamp = stored.Timestamp
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("version: append: %w", err)
	}
	return assigned, nil
}

func (l *BoltLedger) Get(docID string, v uint64) (*Record, error) {
	var rec Record
	err := l.db.View(func(tx *bbolt.Tx) error {
		docBucket := tx.Bucket(bucketVersions).Bucket([]byte(docID))
		if docBucket == nil {
			return ErrHistoryEmpty
		}
		data := docBucket.Get(versionKey(v))
		if data == nil {
			return ErrVersionNotFound
		}
		if err := decodeGob(data, &rec); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (l *BoltLedger) List(docID string) ([]*Record, error) {
	var recs []*Record
	err := l.db.View(func(tx *bbolt.Tx) error {
		docBucket := tx.Bucket(bucketVersions).Bucket([]byte(docID))
		if docBucket == nil {
			return ErrHistoryEmpty
		}
		return docBucket.ForEach(func(k, v []byte) error {
			var rec Record
			if err := decodeGob(v, &rec); err != nil {
				return fmt.Errorf("decode record in list: %w", err)
			}
			recs = append(recs, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrHistoryEmpty
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Version < recs[j].Version })
	return recs, nil
}

func (l *BoltLedger) Latest(docID string) (*Record, error) {
	var rec Record
	err := l.db.View(func(tx *bbolt.Tx) error {
		docBucket := tx.Bucket(bucketVersions).Bucket([]byte(docID))
		if docBucket == nil {
			return ErrHistoryEmpty
		}
		k, v := docBucket.Cursor().Last()
		if k == nil {
			return ErrHistoryEmpty
		}
		if err := decodeGob(v, &rec); err != nil {
			return fmt.Errorf("decode latest record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (l *BoltLedger) Rollback(docID string, target uint64, by policy.Identity) (*Record, error) {
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

func (l *BoltLedger) Prune(docID string, keep int) (int, error) {
	if keep < 1 {
		return 0, ErrLastVersion
	}

	dropped := 0
	err := l.db.Update(func(tx *bbolt.Tx) error {
		docBucket := tx.Bucket(bucketVersions).Bucket([]byte(docID))
		if docBucket == nil {
			return ErrHistoryEmpty
		}

		var keys [][]byte
		if err := docBucket.ForEach(func(k, v []byte) error {
			cp := make([]byte, len(k))
			copy(cp, k)
			keys = append(keys, cp)
			return nil
		}); err != nil {
			return err
		}
		if len(keys) == 0 {
			return ErrHistoryEmpty
		}

		drop := len(keys) - keep
		for i := 0; i < drop; i++ {
			if err := docBucket.Delete(keys[i]); err != nil {
				return fmt.Errorf("delete record: %w", err)
			}
			dropped++
		}
		// The counter bucket is untouched so numbering never restarts.
		return nil
	})
	if err != nil {
		return 0, err
	}
	return dropped, nil
}
