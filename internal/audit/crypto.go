package audit

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// EncryptionConfig controls optional at-rest encryption of audit records.
type EncryptionConfig struct {
	// Enabled turns on AEAD encryption of each serialized audit line.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// KeyHex is the per-installation AES-256 key, hex-encoded (64 hex chars).
	// Typically sourced from an environment variable, never committed to a
	// config file.
	KeyHex string `json:"key_hex" yaml:"key_hex"`
}

// Encryptor wraps an AES-256-GCM AEAD cipher for encrypting audit lines
// before they hit disk. The Rust original this core was distilled from
// ships only a demonstration XOR cipher and says plainly to "use AES-GCM...
// in production" — this is that production implementation, built on the
// standard library since no third-party AEAD package appears anywhere in
// the example corpus.
type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor builds an Encryptor from a 32-byte AES-256 key.
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("audit: encryption key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("audit: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("audit: new gcm: %w", err)
	}
	return &Encryptor{gcm: gcm}, nil
}

// Seal encrypts plaintext and returns a base64 line of nonce||ciphertext||tag,
// suitable for writing as one newline-delimited audit record.
func (e *Encryptor) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("audit: nonce: %w", err)
	}
	sealed := e.gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a base64 line produced by Seal.
func (e *Encryptor) Open(line string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(line)
	if err != nil {
		return nil, fmt.Errorf("audit: bad base64: %w", err)
	}
	ns := e.gcm.NonceSize()
	if len(raw) < ns {
		return nil, fmt.Errorf("audit: ciphertext too short")
	}
	nonce, ciphertext := raw[:ns], raw[ns:]
	return e.gcm.Open(nil, nonce, ciphertext, nil)
}
