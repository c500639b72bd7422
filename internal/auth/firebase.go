package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const signInWithPasswordURL = "https://identitytoolkit.googleapis.com/v1/accounts:signInWithPassword"

var firebaseMessages = map[string]string{
	"INVALID_EMAIL":               "Invalid email address",
	"USER_DISABLED":               "This account has been disabled",
	"EMAIL_NOT_FOUND":             "No account found with this email",
	"INVALID_PASSWORD":            "Incorrect password",
	"INVALID_LOGIN_CREDENTIALS":   "Invalid credentials",
	"TOO_MANY_ATTEMPTS_TRY_LATER": "Too many failed attempts. Please try again later",
}

// FirebaseVerifier signs in against Firebase Authentication's REST API.
type FirebaseVerifier struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewFirebaseVerifier(apiKey string, httpClient *http.Client) (*FirebaseVerifier, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("new firebase verifier: api key is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &FirebaseVerifier{
		apiKey:     apiKey,
		endpoint:   signInWithPasswordURL,
		httpClient: httpClient,
	}, nil
}

func (v *FirebaseVerifier) VerifyCredentials(ctx context.Context, email, password string) (*Identity, error) {
	payload, err := json.Marshal(signInRequest{
		Email:             strings.TrimSpace(email),
		Password:          password,
		ReturnSecureToken: true,
	})
	if err != nil {
		return nil, fmt.Errorf("sign in: marshal request: %w", err)
	}

	endpoint := v.endpoint + "?key=" + url.QueryEscape(v.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("sign in: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w: read response: %v", ErrProviderUnavailable, err)
	}

	var parsed signInResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("sign in: %w: status=%d body=%s", ErrProviderUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if resp.StatusCode >= http.StatusBadRequest || parsed.Error != nil {
		if resp.StatusCode >= http.StatusInternalServerError || parsed.Error == nil {
			return nil, fmt.Errorf("sign in: %w: status=%d", ErrProviderUnavailable, resp.StatusCode)
		}
		return nil, credentialError(parsed.Error.Message)
	}

	if parsed.LocalID == "" {
		return nil, fmt.Errorf("sign in: %w: response missing localId", ErrProviderUnavailable)
	}
	return &Identity{UserID: parsed.LocalID, Email: parsed.Email}, nil
}

// credentialError maps an Identity Toolkit error such as
// "TOO_MANY_ATTEMPTS_TRY_LATER : Access disabled..." to a user-facing message.
func credentialError(raw string) *CredentialError {
	code := strings.TrimSpace(raw)
	if i := strings.Index(code, " "); i > 0 {
		code = code[:i]
	}
	if msg, ok := firebaseMessages[code]; ok {
		return &CredentialError{Code: code, Message: msg}
	}
	return &CredentialError{Code: code, Message: "An error occurred during sign in"}
}
