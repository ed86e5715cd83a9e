package blobnet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
	"github.com/sirupsen/logrus"
)

// costPerByteEpoch is the flat estimate used for storage cost reporting, in
// the network's smallest payment unit.
const costPerByteEpoch = 1

// StoreResult reports a completed blob write.
type StoreResult struct {
	BlobID        string
	SizeBytes     int64
	EstimatedCost uint64
	Existed       bool
}

// RetrieveResult is one entry of a batch retrieval. Per-blob failures land in
// Err without aborting the batch.
type RetrieveResult struct {
	BlobID  string
	Payload []byte
	Err     error
}

// Client wraps a Backend with retries, upload signing, and payload sanity
// checks.
type Client struct {
	backend Backend
	retry   RetryPolicy
	log     *logrus.Logger

	// signer signs upload digests. Optional; unsigned uploads are allowed.
	signer *ec.PrivateKey
}

// NewClient creates a Client with the default retry budget.
func NewClient(backend Backend, signer *ec.PrivateKey, log *logrus.Logger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		backend: backend,
		retry:   DefaultRetryPolicy(),
		log:     log,
		signer:  signer,
	}
}

// WithRetryPolicy overrides the retry budget.
func (c *Client) WithRetryPolicy(p RetryPolicy) *Client {
	c.retry = p
	return c
}

// Store uploads payload and returns its blob id. The upload is retried under
// the client's retry budget; the payload digest is signed when a signer is
// configured.
func (c *Client) Store(ctx context.Context, payload []byte, opts *PutOptions) (*StoreResult, error) {
	if len(payload) == 0 {
		return nil, ErrInvalidPayload
	}
	if opts == nil {
		opts = &PutOptions{}
	}
	if c.signer != nil && len(opts.Signature) == 0 {
		digest := bsvhash.Sha256(payload)
		sig, err := c.signer.Sign(digest)
		if err != nil {
			return nil, fmt.Errorf("blobnet: sign upload: %w", err)
		}
		opts.Signature = sig.Serialize()
		opts.PubKey = c.signer.PubKey().Compressed()
	}

	var info *BlobInfo
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var putErr error
		info, putErr = c.backend.Put(ctx, payload, opts)
		return putErr
	})
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"blobId": info.BlobID,
		"size":   info.SizeBytes,
		"dedup":  info.Existed,
	}).Debug("blobnet: blob stored")

	return &StoreResult{
		BlobID:        info.BlobID,
		SizeBytes:     info.SizeBytes,
		EstimatedCost: estimateCost(info.SizeBytes, opts.Epochs),
		Existed:       info.Existed,
	}, nil
}

// Retrieve downloads a blob and verifies it parses as JSON. Non-JSON bytes
// are reported as ErrBlobCorrupted rather than handed to callers.
func (c *Client) Retrieve(ctx context.Context, blobID string) ([]byte, error) {
	if blobID == "" {
		return nil, ErrBlobNotFound
	}

	var payload []byte
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var getErr error
		payload, getErr = c.backend.Get(ctx, blobID)
		return getErr
	})
	if err != nil {
		return nil, err
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("%w: blob %s is not a JSON record", ErrBlobCorrupted, blobID)
	}
	return payload, nil
}

// StoreBundle packs a primary document together with its named assets and
// uploads them as one blob, under the same retry budget and signing as
// Store.
func (c *Client) StoreBundle(ctx context.Context, bundle *Bundle, opts *PutOptions) (*StoreResult, error) {
	raw, err := bundle.Encode()
	if err != nil {
		return nil, err
	}
	return c.Store(ctx, raw, opts)
}

// RetrieveBundle fetches a bundle blob and unpacks it, so one round trip
// recovers the document plus its assets.
func (c *Client) RetrieveBundle(ctx context.Context, blobID string) (*Bundle, error) {
	raw, err := c.Retrieve(ctx, blobID)
	if err != nil {
		return nil, err
	}
	return DecodeBundle(raw)
}

// RetrieveMany fetches several blobs concurrently. The result slice is
// ordered like blobIDs; individual failures are recorded per entry so one
// missing blob does not sink the batch.
func (c *Client) RetrieveMany(ctx context.Context, blobIDs []string) []RetrieveResult {
	results := make([]RetrieveResult, len(blobIDs))
	var wg sync.WaitGroup
	for i, id := range blobIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			payload, err := c.Retrieve(ctx, id)
			results[i] = RetrieveResult{BlobID: id, Payload: payload, Err: err}
		}(i, id)
	}
	wg.Wait()
	return results
}

// Probe checks blob existence with a single attempt and no retries, so
// health checks stay cheap.
func (c *Client) Probe(ctx context.Context, blobID string) (bool, error) {
	_, err := c.backend.Head(ctx, blobID)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete files an advisory deletion request. The network keeps certified
// blobs until their paid epochs lapse, so the id may remain resolvable.
func (c *Client) Delete(ctx context.Context, blobID string) error {
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		return c.backend.Delete(ctx, blobID)
	})
	if err != nil {
		return err
	}
	c.log.WithField("blobId", blobID).Info("blobnet: advisory delete filed")
	return nil
}

// estimateCost reports the flat-rate storage cost for size bytes held for
// the given number of epochs.
func estimateCost(size int64, epochs uint64) uint64 {
	if size <= 0 {
		return 0
	}
	if epochs == 0 {
		epochs = 1
	}
	return uint64(size) * epochs * costPerByteEpoch
}
