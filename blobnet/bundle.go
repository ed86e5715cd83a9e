package blobnet

import "encoding/json"

// BundleKind tags a multi-asset payload (a document plus its binary assets,
// stored as one blob).
const BundleKind = "bundle"

// Bundle packs a primary document together with named binary assets such as
// images or fonts. Asset bytes are base64 in JSON, the same encoding used for
// every binary field in stored records.
type Bundle struct {
	Kind    string            `json:"kind"`
	Primary []byte            `json:"primary"`
	Assets  map[string][]byte `json:"assets,omitempty"`
}

// NewBundle creates a bundle around a primary document.
func NewBundle(primary []byte) *Bundle {
	return &Bundle{Kind: BundleKind, Primary: primary}
}

// AddAsset attaches a named asset.
func (b *Bundle) AddAsset(name string, data []byte) {
	if b.Assets == nil {
		b.Assets = make(map[string][]byte)
	}
	b.Assets[name] = data
}

// Encode serializes the bundle for storage.
func (b *Bundle) Encode() ([]byte, error) {
	if b == nil || len(b.Primary) == 0 {
		return nil, ErrInvalidPayload
	}
	b.Kind = BundleKind
	return json.Marshal(b)
}

// DecodeBundle parses stored bundle bytes.
func DecodeBundle(raw []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, ErrBlobCorrupted
	}
	if b.Kind != BundleKind || len(b.Primary) == 0 {
		return nil, ErrBlobCorrupted
	}
	return &b, nil
}
