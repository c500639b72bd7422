// Package cipher encrypts and decrypts individual string fields with a
// passphrase-derived AES-256-GCM key. It also reads the OpenSSL "Salted__"
// ciphertext written by earlier versions of the dashboard.
package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// DefaultPassphrase is used when no passphrase is configured. It is public
// knowledge and offers no protection; UsesDefaultKey reports when it is active.
const DefaultPassphrase = "your-very-secure-encryption-key-here"

// keySalt is fixed so one passphrase always yields the same field key.
var keySalt = []byte("vpsdash field cipher v1")

const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
	keySize = 32
)

// ErrCipherFailure is wrapped by every Encrypt/Decrypt error.
var ErrCipherFailure = errors.New("cipher failure")

type FieldCipher struct {
	aead       gocipher.AEAD
	defaultKey bool
}

// New derives the field key from passphrase. An empty passphrase selects
// DefaultPassphrase.
func New(passphrase string) (*FieldCipher, error) {
	defaultKey := false
	if strings.TrimSpace(passphrase) == "" {
		passphrase = DefaultPassphrase
		defaultKey = true
	}

	key, err := deriveKey([]byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("%w: derive key: %v", ErrCipherFailure, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: aes.NewCipher: %v", ErrCipherFailure, err)
	}
	aead, err := gocipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: cipher.NewGCM: %v", ErrCipherFailure, err)
	}

	return &FieldCipher{aead: aead, defaultKey: defaultKey}, nil
}

func deriveKey(passphrase []byte) ([]byte, error) {
	return scrypt.Key(passphrase, keySalt, scryptN, scryptR, scryptP, keySize)
}

// UsesDefaultKey reports whether the cipher fell back to DefaultPassphrase.
func (c *FieldCipher) UsesDefaultKey() bool {
	return c.defaultKey
}

// Encrypt returns base64(nonce || ciphertext || tag).
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: rand nonce: %v", ErrCipherFailure, err)
	}

	// Seal appends to nonce, producing nonce || ciphertext || tag.
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. It never returns the input on failure.
func (c *FieldCipher) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode: %v", ErrCipherFailure, err)
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize+c.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrCipherFailure)
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: gcm.Open: %v", ErrCipherFailure, err)
	}
	return string(plaintext), nil
}
