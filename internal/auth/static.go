package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const legacyEmailDomain = "@example.com"

// StaticVerifier accepts the single operator configured in the environment.
// The login name may be given bare or as "<name>@example.com".
type StaticVerifier struct {
	username     string
	passwordHash []byte
}

func NewStaticVerifier(username, passwordHash string) (*StaticVerifier, error) {
	username = strings.TrimSpace(username)
	passwordHash = strings.TrimSpace(passwordHash)
	if username == "" {
		return nil, errors.New("new static verifier: username is required")
	}
	if passwordHash == "" {
		return nil, errors.New("new static verifier: password hash is required")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("new static verifier: parse password hash: %w", err)
	}
	return &StaticVerifier{username: username, passwordHash: []byte(passwordHash)}, nil
}

func (v *StaticVerifier) VerifyCredentials(_ context.Context, email, password string) (*Identity, error) {
	email = strings.TrimSpace(email)
	if email != v.username && email != v.username+legacyEmailDomain {
		return nil, &CredentialError{Code: "invalid-credentials", Message: "Invalid credentials"}
	}
	if err := bcrypt.CompareHashAndPassword(v.passwordHash, []byte(password)); err != nil {
		return nil, &CredentialError{Code: "invalid-credentials", Message: "Invalid credentials"}
	}
	return &Identity{UserID: v.username, Email: email}, nil
}

// HashPassword produces the bcrypt hash expected in VPSDASH_LOGIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("hash password: password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
