package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rogeecn/vpsdash/internal/account"
	"github.com/rogeecn/vpsdash/internal/auth"
	"github.com/rogeecn/vpsdash/internal/cipher"
	"github.com/rs/zerolog/log"
)

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// draftRequest is the writable part of an account; ownership and
// timestamps are assigned by the server.
type draftRequest struct {
	Type       string `json:"type"`
	ServerName string `json:"server_name"`
	IPAddress  string `json:"ip_address"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	ExpiryDate string `json:"expiry_date"`
	Config     string `json:"config"`
	Status     string `json:"status"`
}

func (d draftRequest) toAccount() account.Account {
	return account.Account{
		Type:       account.Protocol(d.Type),
		ServerName: d.ServerName,
		IPAddress:  d.IPAddress,
		Username:   d.Username,
		Password:   d.Password,
		ExpiryDate: d.ExpiryDate,
		Config:     d.Config,
		Status:     account.Status(d.Status),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	login := strings.TrimSpace(req.Email)
	if login == "" {
		login = strings.TrimSpace(req.Username)
	}
	if login == "" || req.Password == "" {
		writeAPIError(w, http.StatusBadRequest, "email and password are required", "invalid_request_error", "bad_request")
		return
	}

	identity, err := s.verifier.VerifyCredentials(r.Context(), login, req.Password)
	if err != nil {
		var credErr *auth.CredentialError
		switch {
		case errors.As(err, &credErr):
			log.Warn().Str("login", login).Str("code", credErr.Code).Msg("login rejected")
			writeAPIError(w, http.StatusUnauthorized, credErr.Message, "authentication_error", "invalid_credentials")
		case errors.Is(err, auth.ErrInvalidCredentials):
			log.Warn().Str("login", login).Msg("login rejected")
			writeAPIError(w, http.StatusUnauthorized, "Invalid credentials", "authentication_error", "invalid_credentials")
		case errors.Is(err, auth.ErrProviderUnavailable):
			log.Error().Err(err).Msg("login failed: identity provider unavailable")
			writeAPIError(w, http.StatusServiceUnavailable, "identity provider unavailable", "api_error", "provider_unavailable")
		default:
			log.Error().Err(err).Msg("login failed")
			writeAPIError(w, http.StatusInternalServerError, "internal server error", "internal_error", "internal_error")
		}
		return
	}

	session, err := s.sessions.Issue(*identity)
	if err != nil {
		log.Error().Err(err).Msg("issue session failed")
		writeAPIError(w, http.StatusInternalServerError, "internal server error", "internal_error", "internal_error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	log.Info().Str("user_id", session.UserID).Msg("login succeeded")
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	tag := strings.TrimSpace(r.URL.Query().Get("type"))
	if tag == "" {
		s.handleCollection(w, r)
		return
	}

	accounts, err := s.accounts.ListByType(r.Context(), tag)
	if err != nil {
		writeAccountError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleListProtocol(p account.Protocol) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts, err := s.accounts.ListByType(r.Context(), string(p))
		if err != nil {
			writeAccountError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, accounts)
	}
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accounts.Collection(r.Context())
	if err != nil {
		writeAccountError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if !decodeBody(w, r, &req) {
		return
	}

	draft := req.toAccount()
	if identity, ok := identityFromContext(r.Context()); ok {
		draft.UserID = identity.UserID
	}

	id, err := s.accounts.Create(r.Context(), draft)
	if err != nil {
		writeAccountError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.accounts.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeAccountError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var patch account.Patch
	if !decodeBody(w, r, &patch) {
		return
	}

	if err := s.accounts.Update(r.Context(), mux.Vars(r)["id"], patch); err != nil {
		writeAccountError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeAccountError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeAPIError(w, http.StatusNotFound, "not found", "invalid_request_error", "not_found")
}

func handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed", "invalid_request_error", "method_not_allowed")
}

// decodeBody reads a JSON body into dst and writes the error response itself
// when that fails.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if isBodyTooLarge(err) {
			writeAPIError(w, http.StatusRequestEntityTooLarge, "request body too large", "invalid_request_error", "request_too_large")
			return false
		}
		writeAPIError(w, http.StatusBadRequest, "invalid request body", "invalid_request_error", "bad_request")
		return false
	}
	return true
}

func writeAccountError(w http.ResponseWriter, err error) {
	var validationErr *account.ValidationError
	var notFoundErr *account.NotFoundError

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"message": validationErr.Error(),
				"type":    "invalid_request_error",
				"code":    "validation_failed",
				"fields":  validationErr.Fields(),
			},
		})
	case errors.As(err, &notFoundErr):
		writeAPIError(w, http.StatusNotFound, notFoundErr.Error(), "invalid_request_error", "not_found")
	case errors.Is(err, account.ErrUnavailable):
		log.Error().Err(err).Msg("account store unavailable")
		writeAPIError(w, http.StatusServiceUnavailable, "account store unavailable", "api_error", "store_unavailable")
	case errors.Is(err, cipher.ErrCipherFailure):
		log.Error().Err(err).Msg("account could not be decrypted")
		writeAPIError(w, http.StatusInternalServerError, "stored account could not be decrypted", "internal_error", "cipher_failure")
	default:
		log.Error().Err(err).Msg("account operation failed")
		writeAPIError(w, http.StatusInternalServerError, "internal server error", "internal_error", "internal_error")
	}
}

func isBodyTooLarge(err error) bool {
	if err == nil {
		return false
	}

	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
