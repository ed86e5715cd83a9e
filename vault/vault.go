// Package vault is the shared business logic layer tying the policy
// registry, the encryption adapter, the blob network, and the version ledger
// into document-level operations. CLI commands and service adapters call
// Vault methods rather than the underlying packages.
package vault

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yashvikram30/decentralized-canva-sub000/blobnet"
	"github.com/yashvikram30/decentralized-canva-sub000/config"
	"github.com/yashvikram30/decentralized-canva-sub000/policy"
	"github.com/yashvikram30/decentralized-canva-sub000/sealcrypt"
	"github.com/yashvikram30/decentralized-canva-sub000/version"
)

// Record is the vault's bookkeeping entry for one stored document. It holds
// references only; document bytes live on the blob network.
type Record struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Encrypted      bool            `json:"encrypted"`
	PolicyID       policy.PolicyID `json:"policyId"`
	BlobID         string          `json:"blobId"`
	PublicBlobID   string          `json:"publicBlobId,omitempty"`
	CurrentVersion uint64          `json:"currentVersion"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	LastModifiedBy policy.Identity `json:"lastModifiedBy"`
}

// Vault coordinates document operations across the subsystem boundaries.
type Vault struct {
	policies policy.Store
	enc      sealcrypt.Encrypter
	blobs    *blobnet.Client
	versions version.Ledger
	log      *logrus.Logger

	epochs            uint64
	compressThreshold int

	mu      sync.RWMutex
	records map[string]*Record
	catalog *catalog

	// Per-document write locks so concurrent updates serialize without
	// blocking unrelated documents.
	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	now func() time.Time
}

// New creates a Vault. The document catalog is loaded from cfg.DataDir and
// persisted on every mutation.
func New(cfg *config.Config, policies policy.Store, enc sealcrypt.Encrypter, blobs *blobnet.Client, versions version.Ledger, log *logrus.Logger) (*Vault, error) {
	if cfg == nil || policies == nil || enc == nil || blobs == nil || versions == nil {
		return nil, fmt.Errorf("%w: vault dependencies", ErrNilParam)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	cat, err := loadCatalog(catalogPath(cfg.DataDir))
	if err != nil {
		return nil, fmt.Errorf("vault: load catalog: %w", err)
	}

	return &Vault{
		policies:          policies,
		enc:               enc,
		blobs:             blobs,
		versions:          versions,
		log:               log,
		epochs:            uint64(cfg.RetentionEpochs),
		compressThreshold: cfg.CompressThreshold,
		records:           cat.Records,
		catalog:           cat,
		locks:             make(map[string]*sync.Mutex),
		now:               time.Now,
	}, nil
}

// Get returns the bookkeeping record for a document.
func (v *Vault) Get(docID string) (*Record, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	rec, ok := v.records[docID]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	cp := *rec
	return &cp, nil
}

// List returns all document records sorted by creation time.
func (v *Vault) List() []*Record {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]*Record, 0, len(v.records))
	for _, rec := range v.records {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// History returns the retained version records for a document.
func (v *Vault) History(docID string) ([]*version.Record, error) {
	if _, err := v.Get(docID); err != nil {
		return nil, err
	}
	return v.versions.List(docID)
}

// docLock returns the write lock for one document.
func (v *Vault) docLock(docID string) *sync.Mutex {
	v.lockMu.Lock()
	defer v.lockMu.Unlock()
	l, ok := v.locks[docID]
	if !ok {
		l = &sync.Mutex{}
		v.locks[docID] = l
	}
	return l
}

// putRecord installs or replaces a record and persists the catalog.
func (v *Vault) putRecord(rec *Record) {
	v.mu.Lock()
	v.records[rec.ID] = rec
	v.mu.Unlock()
	v.saveCatalog()
}

// dropRecord removes a record and persists the catalog.
func (v *Vault) dropRecord(docID string) {
	v.mu.Lock()
	delete(v.records, docID)
	v.mu.Unlock()
	v.saveCatalog()
}

func (v *Vault) saveCatalog() {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.catalog.Save(); err != nil {
		v.log.WithError(err).Warn("vault: catalog save failed")
	}
}

// newDocID generates a random document id.
func newDocID() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("vault: generate document id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
