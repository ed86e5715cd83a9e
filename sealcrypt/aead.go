package sealcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// NonceLen is the length of the AES-GCM nonce in bytes.
	NonceLen = 12

	// SeedLen is the length of the per-envelope key-derivation seed.
	SeedLen = 32

	// KeyLen is the length of the derived AES-256 data key.
	KeyLen = 32

	// hkdfDataKeyInfo is the HKDF info string for data key derivation.
	hkdfDataKeyInfo = "canva-threshold-data-key"
)

// deriveDataKey derives the AES-256 data key from key-server shares.
//
// The shares are concatenated in quorum order and stretched via HKDF-SHA256
// with the per-envelope seed as salt. The derivation is deterministic: the
// same (shares, seed) pair always yields the same key, which is what lets an
// authorized party re-derive it at decryption time. Freshness comes from the
// random seed, never from share reuse.
func deriveDataKey(shares [][]byte, seed []byte) ([]byte, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no key shares", ErrInvalidEnvelope)
	}
	if len(seed) != SeedLen {
		return nil, fmt.Errorf("%w: seed must be %d bytes", ErrInvalidEnvelope, SeedLen)
	}

	var ikm []byte
	for _, s := range shares {
		if len(s) == 0 {
			return nil, fmt.Errorf("%w: empty key share", ErrInvalidEnvelope)
		}
		ikm = append(ikm, s...)
	}

	r := hkdf.New(sha256.New, ikm, seed, []byte(hkdfDataKeyInfo))
	key := make([]byte, KeyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("sealcrypt: derive data key: %w", err)
	}
	return key, nil
}

// aesGCMEncrypt encrypts plaintext with AES-256-GCM.
// Returns nonce(12B) || ciphertext || tag(16B). aad binds the ciphertext to
// its policy so an envelope cannot be replayed under a different one.
func aesGCMEncrypt(plaintext, key, aad []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("sealcrypt: cipher init: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("sealcrypt: GCM init: %w", err)
	}

	nonce := make([]byte, NonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("sealcrypt: generate nonce: %w", err)
	}

	out := make([]byte, 0, NonceLen+len(plaintext)+gcm.Overhead())
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, aad), nil
}

// aesGCMDecrypt decrypts nonce-prefixed AES-256-GCM ciphertext.
func aesGCMDecrypt(data, key, aad []byte) ([]byte, error) {
	if len(data) < NonceLen {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrInvalidEnvelope)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("sealcrypt: cipher init: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("sealcrypt: GCM init: %w", err)
	}

	plaintext, err := gcm.Open(nil, data[:NonceLen], data[NonceLen:], aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}
