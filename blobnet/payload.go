package blobnet

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yashvikram30/decentralized-canva-sub000/sealcrypt"
)

// Compression scheme tags persisted in blob metadata.
const (
	CompressNone = "none"
	CompressXZ   = "xz"
)

// BlobMetadata describes a stored document payload.
type BlobMetadata struct {
	Name        string            `json:"name"`
	Encrypted   bool              `json:"encrypted"`
	ContentType string            `json:"contentType,omitempty"`
	Compression string            `json:"compression,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// BlobPayload is the JSON record persisted on the blob network. Exactly one
// of DocumentData (plaintext) or EncryptedData+Envelope (encrypted) carries
// the document.
type BlobPayload struct {
	DocumentData  json.RawMessage     `json:"documentData,omitempty"`
	Metadata      BlobMetadata        `json:"metadata"`
	EncryptedData []byte              `json:"encryptedData,omitempty"`
	Envelope      *sealcrypt.Envelope `json:"envelope,omitempty"`
}

// PayloadMode is the decoded protection level of a payload.
type PayloadMode int

const (
	// ModeEncrypted means the payload must go through the decrypt path.
	ModeEncrypted PayloadMode = iota
	// ModePlaintext means the payload carries the document in the clear.
	ModePlaintext
)

// DecodePayload parses raw blob bytes into a BlobPayload and classifies it.
//
// Classification trusts the content, not the flag: a record with usable
// ciphertext is encrypted regardless of what the flag claims, and a record
// flagged encrypted without ciphertext is served as plaintext when a
// plaintext body is present. Both mismatches are logged as data-integrity
// warnings; only a record with nothing servable is refused.
func DecodePayload(raw []byte, log *logrus.Logger) (*BlobPayload, PayloadMode, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if len(raw) == 0 {
		return nil, 0, ErrBlobCorrupted
	}

	var p BlobPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, 0, ErrBlobCorrupted
	}

	hasCipher := len(p.EncryptedData) > 0 && p.Envelope != nil
	hasPlain := len(p.DocumentData) > 0

	switch {
	case hasCipher:
		if !p.Metadata.Encrypted {
			log.WithField("name", p.Metadata.Name).
				Warn("blobnet: record not flagged encrypted but carries ciphertext; treating as encrypted")
		}
		return &p, ModeEncrypted, nil

	case hasPlain:
		if p.Metadata.Encrypted {
			// Flagged encrypted with no ciphertext but an independently
			// present plaintext body: an already-plaintext record whose flag
			// is stale. Serve the plaintext and flag the mismatch.
			log.WithField("name", p.Metadata.Name).
				Warn("blobnet: record flagged encrypted but carries plaintext only; serving plaintext")
		}
		return &p, ModePlaintext, nil

	case p.Metadata.Encrypted:
		// Flagged encrypted with neither ciphertext nor plaintext.
		return nil, 0, ErrCorruptedEncryptedRecord

	default:
		return nil, 0, ErrBlobCorrupted
	}
}

// EncodePayload serializes a payload after checking its shape.
func EncodePayload(p *BlobPayload) ([]byte, error) {
	if p == nil {
		return nil, ErrInvalidPayload
	}
	hasCipher := len(p.EncryptedData) > 0 && p.Envelope != nil
	hasPlain := len(p.DocumentData) > 0
	if !hasCipher && !hasPlain {
		return nil, ErrInvalidPayload
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, ErrInvalidPayload
	}
	return raw, nil
}
