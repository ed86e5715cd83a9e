package blobnet

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"sync"
)

// MemoryBackend is an in-process content-addressed Backend. Blob ids are the
// URL-safe base64 of SHA256(payload), so identical payloads deduplicate the
// same way the real network does.
type MemoryBackend struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// Compile-time interface check.
var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{blobs: make(map[string][]byte)}
}

// ContentID returns the content-derived blob id for payload.
func ContentID(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func (m *MemoryBackend) Put(ctx context.Context, payload []byte, opts *PutOptions) (*BlobInfo, error) {
	if len(payload) == 0 {
		return nil, ErrInvalidPayload
	}
	id := ContentID(payload)

	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed := m.blobs[id]
	if !existed {
		cp := make([]byte, len(payload))
		copy(cp, payload)
		m.blobs[id] = cp
	}
	return &BlobInfo{BlobID: id, SizeBytes: int64(len(payload)), Existed: existed}, nil
}

func (m *MemoryBackend) Get(ctx context.Context, blobID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.blobs[blobID]
	if !ok {
		return nil, ErrBlobNotFound
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	return cp, nil
}

func (m *MemoryBackend) Head(ctx context.Context, blobID string) (*BlobInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.blobs[blobID]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return &BlobInfo{BlobID: blobID, SizeBytes: int64(len(payload)), Existed: true}, nil
}

func (m *MemoryBackend) Delete(ctx context.Context, blobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[blobID]; !ok {
		return ErrBlobNotFound
	}
	delete(m.blobs, blobID)
	return nil
}

// Len reports the number of stored blobs.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// MockBackend is a test double for Backend.
type MockBackend struct {
	PutFn    func(ctx context.Context, payload []byte, opts *PutOptions) (*BlobInfo, error)
	GetFn    func(ctx context.Context, blobID string) ([]byte, error)
	HeadFn   func(ctx context.Context, blobID string) (*BlobInfo, error)
	DeleteFn func(ctx context.Context, blobID string) error
}

// Compile-time interface check.
var _ Backend = (*MockBackend)(nil)

func (m *MockBackend) Put(ctx context.Context, payload []byte, opts *PutOptions) (*BlobInfo, error) {
	return m.PutFn(ctx, payload, opts)
}

func (m *MockBackend) Get(ctx context.Context, blobID string) ([]byte, error) {
	return m.GetFn(ctx, blobID)
}

func (m *MockBackend) Head(ctx context.Context, blobID string) (*BlobInfo, error) {
	return m.HeadFn(ctx, blobID)
}

func (m *MockBackend) Delete(ctx context.Context, blobID string) error {
	return m.DeleteFn(ctx, blobID)
}
