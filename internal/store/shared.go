package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendFirebase = "firebase"
	BackendRedis    = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	DataDir string

	FirebaseDatabaseURL     string
	FirebaseCredentialsFile string
	FirebaseDatabaseSecret  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Open constructs a new store for opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendFile:
		dataDir := opts.DataDir
		if dataDir == "" {
			dataDir = "./data"
		}
		return NewFileStore(dataDir), nil
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		return NewRedisStore(rdb), nil
	case BackendFirebase:
		fbOpts := FirebaseOptions{
			DatabaseURL:    opts.FirebaseDatabaseURL,
			DatabaseSecret: opts.FirebaseDatabaseSecret,
		}
		if path := strings.TrimSpace(opts.FirebaseCredentialsFile); path != "" {
			content, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("open store: read firebase credentials: %w", err)
			}
			fbOpts.CredentialsJSON = content
		}
		return NewFirebaseStore(ctx, fbOpts)
	default:
		return nil, fmt.Errorf("open store: unknown backend %q", opts.Backend)
	}
}

var shared struct {
	once  sync.Once
	store Store
	err   error
}

// Shared returns the process-wide store handle, constructing it on first use.
// Later calls return the same handle and ignore opts.
func Shared(ctx context.Context, opts Options) (Store, error) {
	shared.once.Do(func() {
		shared.store, shared.err = Open(ctx, opts)
		if shared.err == nil {
			log.Debug().
				Str("backend", opts.Backend).
				Msg("store: shared handle initialized")
		}
	})
	return shared.store, shared.err
}
