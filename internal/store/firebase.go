package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

var firebaseScopes = []string{
	"https://www.googleapis.com/auth/firebase.database",
	"https://www.googleapis.com/auth/userinfo.email",
}

const defaultFirebaseTimeout = 15 * time.Second

// FirebaseOptions configures access to a Realtime Database.
// CredentialsJSON (a service account key) takes precedence over
// DatabaseSecret. With neither, HTTPClient is used as is, or application
// default credentials when it is nil too.
type FirebaseOptions struct {
	DatabaseURL     string
	CredentialsJSON []byte
	DatabaseSecret  string
	HTTPClient      *http.Client
}

// FirebaseStore is backed by the Admin SDK Realtime Database client.
type FirebaseStore struct {
	client *db.Client
}

func NewFirebaseStore(ctx context.Context, opts FirebaseOptions) (*FirebaseStore, error) {
	databaseURL := strings.TrimRight(strings.TrimSpace(opts.DatabaseURL), "/")
	if databaseURL == "" {
		return nil, fmt.Errorf("new firebase store: database url is required")
	}
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("new firebase store: parse database url: %w", err)
	}

	conf := &firebase.Config{
		DatabaseURL: databaseURL,
		ProjectID:   databaseNamespace(parsed),
	}

	var clientOpts []option.ClientOption
	switch secret := strings.TrimSpace(opts.DatabaseSecret); {
	case len(opts.CredentialsJSON) > 0:
		creds, err := google.CredentialsFromJSON(ctx, opts.CredentialsJSON, firebaseScopes...)
		if err != nil {
			return nil, fmt.Errorf("new firebase store: load credentials: %w", err)
		}
		if creds.ProjectID != "" {
			conf.ProjectID = creds.ProjectID
		}
		clientOpts = append(clientOpts, option.WithTokenSource(creds.TokenSource))
	case secret != "":
		clientOpts = append(clientOpts, option.WithHTTPClient(secretClient(opts.HTTPClient, secret)))
	case opts.HTTPClient != nil:
		clientOpts = append(clientOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	app, err := firebase.NewApp(ctx, conf, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("new firebase store: init app: %w", err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("new firebase store: init database client: %w", err)
	}
	return &FirebaseStore{client: client}, nil
}

func (s *FirebaseStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	if _, _, err := splitPath(path); err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}

	var raw json.RawMessage
	if err := s.client.NewRef(path).Get(ctx, &raw); err != nil {
		return nil, fmt.Errorf("get %s: %w: %v", path, ErrUnavailable, err)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}
	return trimmed, nil
}

func (s *FirebaseStore) Set(ctx context.Context, path string, value any) error {
	if _, _, err := recordPath(path); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	if err := s.client.NewRef(path).Set(ctx, value); err != nil {
		return fmt.Errorf("set %s: %w: %v", path, ErrUnavailable, err)
	}
	return nil
}

// Update issues a PATCH; the database deletes children whose value is null.
func (s *FirebaseStore) Update(ctx context.Context, path string, patch map[string]any) error {
	if _, _, err := recordPath(path); err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	if err := s.client.NewRef(path).Update(ctx, patch); err != nil {
		return fmt.Errorf("update %s: %w: %v", path, ErrUnavailable, err)
	}
	return nil
}

// Push lets the database assign the key. The new child holds an empty string
// until the caller sets it.
func (s *FirebaseStore) Push(ctx context.Context, path string) (string, error) {
	if _, _, err := splitPath(path); err != nil {
		return "", fmt.Errorf("push %s: %w", path, err)
	}
	ref, err := s.client.NewRef(path).Push(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("push %s: %w: %v", path, ErrUnavailable, err)
	}
	return ref.Key, nil
}

func (s *FirebaseStore) Remove(ctx context.Context, path string) error {
	if _, _, err := splitPath(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	if err := s.client.NewRef(path).Delete(ctx); err != nil {
		return fmt.Errorf("remove %s: %w: %v", path, ErrUnavailable, err)
	}
	return nil
}

// databaseNamespace names the database for the SDK's project id: the "ns"
// query parameter of an emulator URL, or the first label of the host.
func databaseNamespace(u *url.URL) string {
	if ns := u.Query().Get("ns"); ns != "" {
		return ns
	}
	host := u.Hostname()
	if i := strings.Index(host, "."); i > 0 {
		return host[:i]
	}
	return host
}

// secretClient authenticates every request with a legacy database secret.
func secretClient(base *http.Client, secret string) *http.Client {
	transport := http.DefaultTransport
	timeout := defaultFirebaseTimeout
	if base != nil {
		if base.Transport != nil {
			transport = base.Transport
		}
		if base.Timeout > 0 {
			timeout = base.Timeout
		}
	}
	return &http.Client{
		Transport: &secretTransport{secret: secret, next: transport},
		Timeout:   timeout,
	}
}

type secretTransport struct {
	secret string
	next   http.RoundTripper
}

func (t *secretTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	query := clone.URL.Query()
	query.Set("auth", t.secret)
	clone.URL.RawQuery = query.Encode()
	return t.next.RoundTrip(clone)
}
