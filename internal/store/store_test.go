package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type record struct {
	Type     string `json:"type"`
	Password string `json:"password,omitempty"`
	Status   string `json:"status,omitempty"`
}

func decodeRecord(t *testing.T, raw json.RawMessage) record {
	t.Helper()
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		t.Fatalf("unmarshal record: %v (%s)", err, raw)
	}
	return r
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	empty, err := s.Get(ctx, "vpsAccounts")
	if err != nil {
		t.Fatalf("Get(empty collection) error = %v", err)
	}
	if empty != nil {
		t.Fatalf("Get(empty collection) = %s, want nil", empty)
	}

	key, err := s.Push(ctx, "vpsAccounts")
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if key == "" {
		t.Fatal("Push() returned empty key")
	}

	if err := s.Set(ctx, "vpsAccounts/"+key, record{Type: "SSH", Password: "p", Status: "active"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	raw, err := s.Get(ctx, "vpsAccounts/"+key)
	if err != nil {
		t.Fatalf("Get(record) error = %v", err)
	}
	if got := decodeRecord(t, raw); got.Type != "SSH" || got.Password != "p" {
		t.Fatalf("Get(record) = %+v", got)
	}

	if err := s.Update(ctx, "vpsAccounts/"+key, map[string]any{"status": "inactive", "password": nil}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	raw, err = s.Get(ctx, "vpsAccounts/"+key)
	if err != nil {
		t.Fatalf("Get(updated) error = %v", err)
	}
	if got := decodeRecord(t, raw); got.Status != "inactive" || got.Password != "" || got.Type != "SSH" {
		t.Fatalf("Get(updated) = %+v", got)
	}

	other, _ := s.Push(ctx, "vpsAccounts")
	if other == key {
		t.Fatalf("Push() returned duplicate key %q", key)
	}
	if err := s.Set(ctx, "vpsAccounts/"+other, record{Type: "VLESS"}); err != nil {
		t.Fatalf("Set(other) error = %v", err)
	}

	raw, err = s.Get(ctx, "vpsAccounts")
	if err != nil {
		t.Fatalf("Get(collection) error = %v", err)
	}
	var collection map[string]json.RawMessage
	if err := json.Unmarshal(raw, &collection); err != nil {
		t.Fatalf("unmarshal collection: %v", err)
	}
	if len(collection) != 2 {
		t.Fatalf("len(collection) = %d, want 2", len(collection))
	}
	if got := decodeRecord(t, collection[other]); got.Type != "VLESS" {
		t.Fatalf("collection[other] = %+v", got)
	}

	if err := s.Remove(ctx, "vpsAccounts/"+key); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	raw, err = s.Get(ctx, "vpsAccounts/"+key)
	if err != nil {
		t.Fatalf("Get(removed) error = %v", err)
	}
	if raw != nil {
		t.Fatalf("Get(removed) = %s, want nil", raw)
	}

	if _, err := s.Get(ctx, "vpsAccounts/../etc"); err == nil {
		t.Fatal("Get(traversal path) error = nil, want non-nil")
	}
	if err := s.Set(ctx, "vpsAccounts", record{}); err == nil {
		t.Fatal("Set(collection path) error = nil, want non-nil")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	exerciseStore(t, NewFileStore(t.TempDir()))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	exerciseStore(t, NewRedisStore(rdb))

	if !mr.Exists("vpsdash:vpsAccounts") {
		t.Fatal("expected hash vpsdash:vpsAccounts to exist")
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	_, err = NewRedisStore(rdb).Get(context.Background(), "vpsAccounts")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Get() error = %v, want ErrUnavailable", err)
	}
}

// fakeRTDB emulates the subset of the Realtime Database REST API the store uses.
type fakeRTDB struct {
	mu      sync.Mutex
	data    map[string]map[string]json.RawMessage
	lastURL string
}

func (f *fakeRTDB) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastURL = r.URL.String()

	path := strings.TrimSuffix(strings.Trim(r.URL.Path, "/"), ".json")
	parts := strings.Split(path, "/")
	collection := parts[0]
	key := ""
	if len(parts) > 1 {
		key = parts[1]
	}
	if f.data[collection] == nil {
		f.data[collection] = map[string]json.RawMessage{}
	}
	records := f.data[collection]

	switch r.Method {
	case http.MethodGet:
		if key != "" {
			if body, ok := records[key]; ok {
				_, _ = w.Write(body)
				return
			}
			_, _ = w.Write([]byte("null"))
			return
		}
		if len(records) == 0 {
			_, _ = w.Write([]byte("null"))
			return
		}
		_ = json.NewEncoder(w).Encode(records)
	case http.MethodPut:
		var body json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&body)
		records[key] = body
		_, _ = w.Write(body)
	case http.MethodPatch:
		var patch map[string]any
		_ = json.NewDecoder(r.Body).Decode(&patch)
		merged, err := mergePatch(records[key], patch)
		if err != nil {
			http.Error(w, `{"error":"bad patch"}`, http.StatusBadRequest)
			return
		}
		records[key] = merged
		_, _ = w.Write(merged)
	case http.MethodPost:
		var body json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&body)
		name := NewPushID()
		records[name] = body
		_ = json.NewEncoder(w).Encode(map[string]string{"name": name})
	case http.MethodDelete:
		delete(records, key)
		_, _ = w.Write([]byte("null"))
	}
}

func TestFirebaseStore(t *testing.T) {
	fake := &fakeRTDB{data: map[string]map[string]json.RawMessage{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewFirebaseStore(context.Background(), FirebaseOptions{
		DatabaseURL:    srv.URL + "?ns=vpsdash-test",
		DatabaseSecret: "db-secret",
		HTTPClient:     srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewFirebaseStore() error = %v", err)
	}

	exerciseStore(t, s)

	if !strings.Contains(fake.lastURL, "auth=db-secret") {
		t.Fatalf("request url %q missing auth secret", fake.lastURL)
	}
}

func TestFirebaseStoreErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Permission denied"}`))
	}))
	t.Cleanup(srv.Close)

	s, err := NewFirebaseStore(context.Background(), FirebaseOptions{
		DatabaseURL: srv.URL + "?ns=vpsdash-test",
		HTTPClient:  srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewFirebaseStore() error = %v", err)
	}

	_, err = s.Get(context.Background(), "vpsAccounts")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Get() error = %v, want ErrUnavailable", err)
	}
	if !strings.Contains(err.Error(), "Permission denied") {
		t.Fatalf("error %q missing remote message", err)
	}
}

func TestFirebaseStorePushUsesServerKey(t *testing.T) {
	fake := &fakeRTDB{data: map[string]map[string]json.RawMessage{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewFirebaseStore(context.Background(), FirebaseOptions{
		DatabaseURL: srv.URL + "?ns=vpsdash-test",
		HTTPClient:  srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewFirebaseStore() error = %v", err)
	}

	key, err := s.Push(context.Background(), "vpsAccounts")
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	fake.mu.Lock()
	_, ok := fake.data["vpsAccounts"][key]
	fake.mu.Unlock()
	if !ok {
		t.Fatalf("Push() key %q was not assigned by the database", key)
	}
}

func TestDatabaseNamespace(t *testing.T) {
	cases := map[string]string{
		"https://demo-default-rtdb.firebaseio.com": "demo-default-rtdb",
		"http://127.0.0.1:9000?ns=local-namespace": "local-namespace",
		"http://localhost:9000":                    "localhost",
	}
	for raw, want := range cases {
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("url.Parse(%q) error = %v", raw, err)
		}
		if got := databaseNamespace(u); got != want {
			t.Fatalf("databaseNamespace(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestSecretClientAddsAuthParam(t *testing.T) {
	var gotAuth, gotPrint string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.URL.Query().Get("auth")
		gotPrint = r.URL.Query().Get("print")
	}))
	t.Cleanup(srv.Close)

	resp, err := secretClient(srv.Client(), "db-secret").Get(srv.URL + "/vpsAccounts.json?print=silent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	_ = resp.Body.Close()

	if gotAuth != "db-secret" || gotPrint != "silent" {
		t.Fatalf("query auth=%q print=%q, want db-secret/silent", gotAuth, gotPrint)
	}
}

func TestNewFirebaseStoreRequiresURL(t *testing.T) {
	if _, err := NewFirebaseStore(context.Background(), FirebaseOptions{}); err == nil {
		t.Fatal("NewFirebaseStore() error = nil, want non-nil")
	}
}

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Backend: "memory"})
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("Open(memory) = %T", s)
	}

	s, err = Open(ctx, Options{Backend: "", DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Open(file) error = %v", err)
	}
	if _, ok := s.(*FileStore); !ok {
		t.Fatalf("Open(file) = %T", s)
	}

	s, err = Open(ctx, Options{Backend: "redis", RedisAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("Open(redis) error = %v", err)
	}
	if _, ok := s.(*RedisStore); !ok {
		t.Fatalf("Open(redis) = %T", s)
	}

	if _, err := Open(ctx, Options{Backend: "firebase"}); err == nil {
		t.Fatal("Open(firebase without url) error = nil, want non-nil")
	}
	if _, err := Open(ctx, Options{Backend: "cassandra"}); err == nil {
		t.Fatal("Open(unknown) error = nil, want non-nil")
	}
}

func TestSharedIsIdempotent(t *testing.T) {
	first, err := Shared(context.Background(), Options{Backend: "memory"})
	if err != nil {
		t.Fatalf("Shared() error = %v", err)
	}
	second, err := Shared(context.Background(), Options{Backend: "file", DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Shared() error = %v", err)
	}
	if first != second {
		t.Fatal("Shared() returned different handles")
	}
}
