package cipher

import (
	"bytes"
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"
)

// LegacyPrefix starts every base64 "Salted__" ciphertext produced by the
// dashboard's browser client (CryptoJS AES with a passphrase).
const LegacyPrefix = "U2FsdGVkX1"

const legacyHeader = "Salted__"

// IsLegacy reports whether value looks like legacy passphrase ciphertext.
func IsLegacy(value string) bool {
	return strings.HasPrefix(value, LegacyPrefix)
}

// LegacyCipher decrypts OpenSSL-compatible ciphertext: EVP_BytesToKey with
// MD5 over passphrase and salt, then AES-256-CBC with PKCS#7 padding. It is
// read-only; new values are always written by FieldCipher.
type LegacyCipher struct {
	passphrase []byte
}

// NewLegacy returns a LegacyCipher for passphrase. An empty passphrase
// selects DefaultPassphrase, matching the old client's fallback.
func NewLegacy(passphrase string) *LegacyCipher {
	if strings.TrimSpace(passphrase) == "" {
		passphrase = DefaultPassphrase
	}
	return &LegacyCipher{passphrase: []byte(passphrase)}
}

func (c *LegacyCipher) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: legacy base64 decode: %v", ErrCipherFailure, err)
	}
	if len(data) < len(legacyHeader)+8+aes.BlockSize || string(data[:len(legacyHeader)]) != legacyHeader {
		return "", fmt.Errorf("%w: legacy ciphertext header missing", ErrCipherFailure)
	}

	salt := data[len(legacyHeader) : len(legacyHeader)+8]
	body := data[len(legacyHeader)+8:]
	if len(body)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: legacy ciphertext is not block aligned", ErrCipherFailure)
	}

	key, iv := bytesToKey(c.passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: aes.NewCipher: %v", ErrCipherFailure, err)
	}

	plain := make([]byte, len(body))
	gocipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	plain, err = unpad(plain)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCipherFailure, err)
	}
	if !utf8.Valid(plain) {
		return "", fmt.Errorf("%w: legacy plaintext is not utf-8", ErrCipherFailure)
	}
	return string(plain), nil
}

// bytesToKey is OpenSSL's EVP_BytesToKey with MD5 and one iteration,
// producing a 32-byte key and a 16-byte IV.
func bytesToKey(passphrase, salt []byte) (key, iv []byte) {
	var derived, prev []byte
	for len(derived) < 32+aes.BlockSize {
		h := md5.New()
		h.Write(prev)
		h.Write(passphrase)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:32], derived[32 : 32+aes.BlockSize]
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("legacy plaintext is empty")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, fmt.Errorf("legacy padding is invalid")
	}
	if !bytes.Equal(b[len(b)-n:], bytes.Repeat([]byte{byte(n)}, n)) {
		return nil, fmt.Errorf("legacy padding is invalid")
	}
	return b[:len(b)-n], nil
}
