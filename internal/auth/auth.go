// Package auth verifies operator credentials and issues signed sessions.
package auth

import (
	"context"
	"errors"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	ErrInvalidSession      = errors.New("invalid session")
)

// Identity is the authenticated operator.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

// Verifier checks an email (or bare username) and password pair.
type Verifier interface {
	VerifyCredentials(ctx context.Context, email, password string) (*Identity, error)
}

// CredentialError is a rejected login with a message fit for the user.
type CredentialError struct {
	Code    string
	Message string
}

func (e *CredentialError) Error() string {
	return e.Message
}

func (e *CredentialError) Unwrap() error {
	return ErrInvalidCredentials
}
