package account

import (
	"fmt"

	"github.com/rogeecn/vpsdash/internal/cipher"
	"github.com/rs/zerolog/log"
)

// FieldCipher encrypts single string values.
type FieldCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// LegacyDecrypter reads values written by the old browser client, which
// encrypted without setting the encrypted marker.
type LegacyDecrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// Codec moves records between their stored and plaintext forms. It only
// touches the password and config fields and never mutates its input.
//
// Unmarked records are legacy: each sensitive field is either plaintext or
// "Salted__" ciphertext, told apart by cipher.IsLegacy.
type Codec struct {
	cipher FieldCipher
	legacy LegacyDecrypter
}

// NewCodec builds a codec. legacy may be nil, in which case legacy
// ciphertext is reported as a cipher failure.
func NewCodec(c FieldCipher, legacy LegacyDecrypter) *Codec {
	return &Codec{cipher: c, legacy: legacy}
}

// EncodeForStorage returns a copy with password and config encrypted and the
// encrypted marker set. Records already marked encrypted are returned as is.
func (c *Codec) EncodeForStorage(a Account) (Account, error) {
	if a.Encrypted {
		return a, nil
	}

	var err error
	if a.Password, err = c.seal(a.Password); err != nil {
		return Account{}, fmt.Errorf("encode password: %w", err)
	}
	if a.Config, err = c.seal(a.Config); err != nil {
		return Account{}, fmt.Errorf("encode config: %w", err)
	}
	a.Encrypted = true
	return a, nil
}

// Decode is the strict inverse of EncodeForStorage: any field that fails to
// decrypt aborts the whole record.
func (c *Codec) Decode(a Account) (Account, error) {
	open := c.open
	if !a.Encrypted {
		open = c.openLegacy
	}

	var err error
	if a.Password, err = open(a.Password); err != nil {
		return Account{}, fmt.Errorf("decode %s password: %w", a.ID, err)
	}
	if a.Config, err = open(a.Config); err != nil {
		return Account{}, fmt.Errorf("decode %s config: %w", a.ID, err)
	}
	a.Encrypted = false
	return a, nil
}

// DecodeForDisplay decodes a record for reading. A field that cannot be
// decrypted is blanked and logged instead of failing the record.
func (c *Codec) DecodeForDisplay(a Account) Account {
	open := c.open
	if !a.Encrypted {
		open = c.openLegacy
	}

	a.Password = openOrBlank(open, a.ID, "password", a.Password)
	a.Config = openOrBlank(open, a.ID, "config", a.Config)
	a.Encrypted = false
	return a
}

func (c *Codec) seal(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	return c.cipher.Encrypt(value)
}

func (c *Codec) open(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	return c.cipher.Decrypt(value)
}

// openLegacy decrypts legacy ciphertext and passes plaintext through.
func (c *Codec) openLegacy(value string) (string, error) {
	if !cipher.IsLegacy(value) {
		return value, nil
	}
	if c.legacy == nil {
		return "", fmt.Errorf("%w: no legacy key configured", cipher.ErrCipherFailure)
	}
	return c.legacy.Decrypt(value)
}

func openOrBlank(open func(string) (string, error), id, field, value string) string {
	plain, err := open(value)
	if err != nil {
		log.Warn().
			Err(err).
			Str("id", id).
			Str("field", field).
			Msg("account: field could not be decrypted, returning it blank")
		return ""
	}
	return plain
}
