// Package cryptox implements the at-rest cipher for biometric material.
//
// Descriptors are serialized as a JSON numeric array and sealed with
// AES-256-GCM under one process-wide key. A sealed blob is laid out as
// nonce || ciphertext || tag; the nonce is freshly random for every call.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"github.com/dmitrijs2005/biokeeper/internal/common"
	"golang.org/x/crypto/argon2"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// DeriveKey stretches a configured secret into a 32-byte key with Argon2id.
func DeriveKey(secret []byte, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, KeySize)
}

// KeyFromConfig resolves the configured encryption key. A standard or
// URL-safe base64 value that decodes to exactly 32 bytes is used as the raw
// key; any other non-empty value is treated as a passphrase for DeriveKey.
func KeyFromConfig(secret, salt string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("encryption key is empty")
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if raw, err := enc.DecodeString(secret); err == nil && len(raw) == KeySize {
			return raw, nil
		}
	}
	return DeriveKey([]byte(secret), []byte(salt)), nil
}

// Cipher seals and opens descriptors. It is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a 16, 24 or 32 byte AES key.
func NewCipher(key []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// Seal serializes v and encrypts it.
func (c *Cipher) Seal(v biometric.Vector) ([]byte, error) {
	if len(v) == 0 {
		return nil, errors.New("empty descriptor")
	}
	if !v.Finite() {
		return nil, errors.New("descriptor contains non-finite values")
	}
	plaintext, err := json.Marshal([]float64(v))
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(plaintext)
	return c.SealBytes(plaintext)
}

// Open decrypts a blob produced by Seal. Every failure wraps
// common.ErrDecryption.
func (c *Cipher) Open(blob []byte) (biometric.Vector, error) {
	plaintext, err := c.OpenBytes(blob)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(plaintext)

	var v []float64
	if err := json.Unmarshal(plaintext, &v); err != nil {
		return nil, fmt.Errorf("%w: malformed descriptor payload", common.ErrDecryption)
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: empty descriptor payload", common.ErrDecryption)
	}
	return biometric.Vector(v), nil
}

// SealBytes encrypts arbitrary plaintext, such as a raw media upload.
func (c *Cipher) SealBytes(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+c.aead.Overhead())
	out = append(out, nonce...)
	return c.aead.Seal(out, nonce, plaintext, nil), nil
}

// OpenBytes reverses SealBytes.
func (c *Cipher) OpenBytes(blob []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(blob) < ns+c.aead.Overhead() {
		return nil, fmt.Errorf("%w: blob too short", common.ErrDecryption)
	}
	plaintext, err := c.aead.Open(nil, blob[:ns], blob[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	return plaintext, nil
}
