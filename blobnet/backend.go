package blobnet

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yashvikram30/decentralized-canva-sub000/config"
	"github.com/yashvikram30/decentralized-canva-sub000/discovery"
)

// PutOptions carries per-store parameters for a blob write.
type PutOptions struct {
	// Epochs is the number of storage epochs the blob is paid for.
	Epochs uint64

	// Tags are advisory labels forwarded to the publisher.
	Tags map[string]string

	// Signature and PubKey authenticate the upload: the signature covers
	// SHA256 of the payload bytes.
	Signature []byte
	PubKey    []byte
}

// BlobInfo describes a stored blob.
type BlobInfo struct {
	BlobID    string
	SizeBytes int64
	// Existed reports that the network already held an identical blob and
	// deduplicated the write.
	Existed bool
}

// Backend is the raw blob transport. Implementations map their failure modes
// onto this package's sentinels; retries happen above, in Client.
type Backend interface {
	// Put stores payload and returns its content-derived blob id.
	Put(ctx context.Context, payload []byte, opts *PutOptions) (*BlobInfo, error)

	// Get retrieves a blob by id.
	Get(ctx context.Context, blobID string) ([]byte, error)

	// Head checks existence without transferring the payload.
	Head(ctx context.Context, blobID string) (*BlobInfo, error)

	// Delete asks the network to drop the blob. Advisory: certified blobs
	// persist until their paid epochs lapse, so success means "request
	// accepted", not "bytes gone".
	Delete(ctx context.Context, blobID string) error
}

// Markers the network uses for conditions that resolve on their own as
// certification propagates or re-registration completes.
var transientMarkers = []string{
	"not yet registered",
	"already expired",
}

// HTTPBackend stores blobs through a publisher endpoint and retrieves them
// through an aggregator endpoint.
type HTTPBackend struct {
	publisherURL  string
	aggregatorURL string
	client        *http.Client
}

// Compile-time interface check.
var _ Backend = (*HTTPBackend)(nil)

// NewHTTPBackend creates a backend over the given publisher and aggregator
// base URLs.
func NewHTTPBackend(publisherURL, aggregatorURL string) *HTTPBackend {
	return &HTTPBackend{
		publisherURL:  strings.TrimRight(publisherURL, "/"),
		aggregatorURL: strings.TrimRight(aggregatorURL, "/"),
		client:        &http.Client{Timeout: 60 * time.Second},
	}
}

// NewHTTPBackendFromConfig creates an HTTPBackend from cfg. Explicit
// PublisherURL/AggregatorURL win; with either missing the endpoints are
// discovered through _blobnet._tcp.{BlobNetDomain} SRV records. Discovered
// endpoints come back in priority order, so the first serves writes and the
// last serves reads; a single endpoint serves both. A nil resolver selects a
// DNSSEC-validating resolver against cfg.DNSSECUpstream.
func NewHTTPBackendFromConfig(cfg *config.Config, resolver discovery.DNSResolver) (*HTTPBackend, error) {
	publisher, aggregator := cfg.PublisherURL, cfg.AggregatorURL
	if publisher == "" || aggregator == "" {
		if cfg.BlobNetDomain == "" {
			return nil, fmt.Errorf("blobnet: no endpoints: %w", discovery.ErrNoEndpoints)
		}
		if resolver == nil {
			resolver = discovery.NewDNSSECResolver(cfg.DNSSECUpstream)
		}
		endpoints, err := discovery.ResolveEndpointsWithResolver(cfg.BlobNetDomain, discovery.SRVBlobNet, resolver)
		if err != nil {
			return nil, fmt.Errorf("blobnet: endpoint discovery: %w", err)
		}
		if publisher == "" {
			publisher = endpoints[0]
		}
		if aggregator == "" {
			aggregator = endpoints[len(endpoints)-1]
		}
	}
	return NewHTTPBackend(publisher, aggregator), nil
}

// putResponse mirrors the publisher's store response. Exactly one branch is
// populated.
type putResponse struct {
	NewlyCreated *struct {
		BlobObject struct {
			BlobID string `json:"blobId"`
			Size   int64  `json:"size"`
		} `json:"blobObject"`
	} `json:"newlyCreated,omitempty"`
	AlreadyCertified *struct {
		BlobID string `json:"blobId"`
	} `json:"alreadyCertified,omitempty"`
}

// Put uploads payload via PUT {publisher}/v1/blobs?epochs=N.
func (b *HTTPBackend) Put(ctx context.Context, payload []byte, opts *PutOptions) (*BlobInfo, error) {
	if len(payload) == 0 {
		return nil, ErrInvalidPayload
	}
	url := fmt.Sprintf("%s/v1/blobs", b.publisherURL)
	if opts != nil && opts.Epochs > 0 {
		url = fmt.Sprintf("%s?epochs=%d", url, opts.Epochs)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("blobnet: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if opts != nil {
		if len(opts.Signature) > 0 {
			req.Header.Set("X-Blob-Signature", hex.EncodeToString(opts.Signature))
		}
		if len(opts.PubKey) > 0 {
			req.Header.Set("X-Blob-PubKey", hex.EncodeToString(opts.PubKey))
		}
		for k, v := range opts.Tags {
			req.Header.Set("X-Blob-Tag-"+k, v)
		}
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: publisher: %v", ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read publisher response: %v", ErrTransient, err)
	}
	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	var out putResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("blobnet: decode publisher response: %w", err)
	}
	switch {
	case out.NewlyCreated != nil:
		return &BlobInfo{
			BlobID:    out.NewlyCreated.BlobObject.BlobID,
			SizeBytes: out.NewlyCreated.BlobObject.Size,
		}, nil
	case out.AlreadyCertified != nil:
		return &BlobInfo{
			BlobID:    out.AlreadyCertified.BlobID,
			SizeBytes: int64(len(payload)),
			Existed:   true,
		}, nil
	default:
		return nil, fmt.Errorf("blobnet: publisher response has no blob id")
	}
}

// Get downloads a blob via GET {aggregator}/v1/blobs/{id}.
func (b *HTTPBackend) Get(ctx context.Context, blobID string) ([]byte, error) {
	resp, err := b.do(ctx, http.MethodGet, b.aggregatorURL+"/v1/blobs/"+blobID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read blob body: %v", ErrTransient, err)
	}
	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// Head checks for a blob via HEAD {aggregator}/v1/blobs/{id}.
func (b *HTTPBackend) Head(ctx context.Context, blobID string) (*BlobInfo, error) {
	resp, err := b.do(ctx, http.MethodHead, b.aggregatorURL+"/v1/blobs/"+blobID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classifyStatus(resp.StatusCode, nil); err != nil {
		return nil, err
	}
	return &BlobInfo{BlobID: blobID, SizeBytes: resp.ContentLength, Existed: true}, nil
}

// Delete files an advisory deletion via DELETE {publisher}/v1/blobs/{id}.
func (b *HTTPBackend) Delete(ctx context.Context, blobID string) error {
	resp, err := b.do(ctx, http.MethodDelete, b.publisherURL+"/v1/blobs/"+blobID)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return classifyStatus(resp.StatusCode, body)
}

func (b *HTTPBackend) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("blobnet: create request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return resp, nil
}

// classifyStatus maps an HTTP status onto the package sentinels.
func classifyStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return ErrBlobNotFound
	case status == http.StatusBadRequest:
		msg := strings.ToLower(string(body))
		for _, marker := range transientMarkers {
			if strings.Contains(msg, marker) {
				return fmt.Errorf("%w: %s", ErrTransient, strings.TrimSpace(string(body)))
			}
		}
		return fmt.Errorf("%w: HTTP 400: %s", ErrInvalidPayload, strings.TrimSpace(string(body)))
	case status >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", ErrTransient, status, strings.TrimSpace(string(body)))
	default:
		return fmt.Errorf("blobnet: unexpected HTTP %d: %s", status, strings.TrimSpace(string(body)))
	}
}
