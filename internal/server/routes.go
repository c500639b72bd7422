package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rogeecn/vpsdash/internal/account"
	"github.com/rs/cors"
)

func (s *Server) setupRoutes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(RequestSizeLimitMiddleware(defaultMaxBodySize))
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(SessionMiddleware(s.sessions), NoCacheMiddleware)
	protected.HandleFunc("/accounts", s.handleListAccounts).Methods(http.MethodGet)
	protected.HandleFunc("/accounts", s.handleCreateAccount).Methods(http.MethodPost)
	protected.HandleFunc("/accounts/{id}", s.handleGetAccount).Methods(http.MethodGet)
	protected.HandleFunc("/accounts/{id}", s.handleUpdateAccount).Methods(http.MethodPatch)
	protected.HandleFunc("/accounts/{id}", s.handleDeleteAccount).Methods(http.MethodDelete)

	// per-type listing paths used by the dashboard tabs
	for _, p := range account.Protocols {
		protected.HandleFunc("/"+strings.ToLower(string(p)), s.handleListProtocol(p)).Methods(http.MethodGet)
	}
	protected.HandleFunc("/vps-accounts", s.handleCollection).Methods(http.MethodGet)

	return chain(r, LoggingMiddleware, corsMiddleware(s.config.CORSOrigins))
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler
}

func chain(handler http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}
