package cmd

import (
	"context"
	"fmt"

	"github.com/rogeecn/vpsdash/internal/account"
	"github.com/rogeecn/vpsdash/internal/auth"
	"github.com/rogeecn/vpsdash/internal/cipher"
	"github.com/rogeecn/vpsdash/internal/config"
	"github.com/rogeecn/vpsdash/internal/store"
	"github.com/rs/zerolog/log"
)

func storeOptions(cfg *config.Config) store.Options {
	return store.Options{
		Backend:                 cfg.Store,
		DataDir:                 cfg.DataDir,
		FirebaseDatabaseURL:     cfg.FirebaseDatabaseURL,
		FirebaseCredentialsFile: cfg.FirebaseCredentials,
		FirebaseDatabaseSecret:  cfg.FirebaseDatabaseSecret,
		RedisAddr:               cfg.RedisAddr,
		RedisPassword:           cfg.RedisPassword,
		RedisDB:                 cfg.RedisDB,
	}
}

func newFieldCipher(cfg *config.Config) (*cipher.FieldCipher, error) {
	c, err := cipher.New(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("init field cipher: %w", err)
	}
	if c.UsesDefaultKey() {
		log.Warn().Msg("VPSDASH_ENCRYPTION_KEY is not set, falling back to the built-in default key; stored secrets are not protected")
	}
	return c, nil
}

// newCodec pairs the field cipher with a reader for values the old browser
// client encrypted. That client used the same passphrase unless
// VPSDASH_LEGACY_ENCRYPTION_KEY says otherwise.
func newCodec(cfg *config.Config) (*account.Codec, error) {
	fieldCipher, err := newFieldCipher(cfg)
	if err != nil {
		return nil, err
	}

	legacyKey := cfg.LegacyEncryptionKey
	if legacyKey == "" {
		legacyKey = cfg.EncryptionKey
	}
	return account.NewCodec(fieldCipher, cipher.NewLegacy(legacyKey)), nil
}

func newVerifier(cfg *config.Config) (auth.Verifier, error) {
	switch cfg.AuthProvider {
	case "firebase":
		return auth.NewFirebaseVerifier(cfg.FirebaseAPIKey, nil)
	default:
		return auth.NewStaticVerifier(cfg.LoginUsername, cfg.LoginPasswordHash)
	}
}

// newAccountGateway opens a dedicated store handle for one CLI invocation.
var newAccountGateway = func(ctx context.Context) (*account.Gateway, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log.Logger = config.InitCLILogger(cfg.LogLevel)

	codec, err := newCodec(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, storeOptions(cfg))
	if err != nil {
		return nil, err
	}
	return account.NewGateway(st, codec), nil
}
