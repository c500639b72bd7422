package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rogeecn/vpsdash/internal/account"
	"github.com/rogeecn/vpsdash/internal/auth"
	"github.com/rogeecn/vpsdash/internal/config"
	"github.com/rogeecn/vpsdash/internal/migrate"
	"github.com/rogeecn/vpsdash/internal/server"
	"github.com/rogeecn/vpsdash/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type serveRunner interface {
	Start() error
	Stop(ctx context.Context) error
}

type serveScheduler interface {
	Start()
	Stop()
}

var (
	serveHost string
	servePort int
)

var (
	newServeServer = func(cfg *config.Config, deps server.Deps) serveRunner {
		return server.New(cfg, deps)
	}
	newServeScheduler = func(sealer migrate.Sealer, interval time.Duration) serveScheduler {
		return migrate.NewScheduler(sealer, interval)
	}
	signalNotifyContext = signal.NotifyContext
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 API 服务",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "监听地址 (默认: 从 VPSDASH_HOST 读取)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "监听端口 (默认: 从 VPSDASH_PORT 读取)")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort > 0 {
		cfg.Port = servePort
	}

	log.Logger = config.InitLogger(cfg.LogLevel)
	log.Info().
		Str("log_level", cfg.LogLevel).
		Str("store", cfg.Store).
		Str("auth_provider", cfg.AuthProvider).
		Msg("logger initialized")

	codec, err := newCodec(cfg)
	if err != nil {
		return err
	}
	st, err := store.Shared(context.Background(), storeOptions(cfg))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	gateway := account.NewGateway(st, codec)

	verifier, err := newVerifier(cfg)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}
	sessions, err := auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	srv := newServeServer(cfg, server.Deps{
		Accounts: gateway,
		Verifier: verifier,
		Sessions: sessions,
	})

	scheduler := newServeScheduler(gateway, cfg.MigrateInterval)
	scheduler.Start()
	defer scheduler.Stop()

	startErrCh := make(chan error, 1)
	go func() {
		startErrCh <- srv.Start()
	}()

	ctx, stop := signalNotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-startErrCh:
		if err != nil {
			log.Error().Err(err).Msg("serve exited with error")
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Stop(shutdownCtx); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("serve shutdown failed")
			return err
		}

		select {
		case err := <-startErrCh:
			if err != nil {
				log.Error().Err(err).Msg("serve exited after shutdown with error")
			}
			return err
		case <-time.After(10 * time.Second):
			log.Error().Msg("serve shutdown timed out")
			return fmt.Errorf("shutdown timeout")
		}
	}
}
