package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/sdbrowser/internal/adapter/driven/schedulesdirect"
	sqliteadapter "github.com/ericfisherdev/sdbrowser/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/sdbrowser/internal/adapter/driven/vault"
	httphandler "github.com/ericfisherdev/sdbrowser/internal/adapter/driving/http"
	"github.com/ericfisherdev/sdbrowser/internal/application"
	"github.com/ericfisherdev/sdbrowser/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"sd_api_base", cfg.SDAPIBase,
		"key_derivation", cfg.KeyDerivation,
		"sd_rate_limit", cfg.SDRateLimit,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database and apply migrations.
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		return err
	}
	slog.Info("database ready", "path", cfg.DBPath, "schema_version", version)

	// 4. Token vault.
	v, err := vault.New(cfg.EncryptionKey, vault.Derivation(cfg.KeyDerivation))
	if err != nil {
		return fmt.Errorf("create vault: %w", err)
	}

	// 5. Upstream client. Closed last so in-flight requests finish first.
	opts := []schedulesdirect.Option{schedulesdirect.WithLogger(slog.Default())}
	if cfg.SDRateLimit > 0 {
		opts = append(opts, schedulesdirect.WithRateLimit(cfg.SDRateLimit))
	}
	sdClient := schedulesdirect.NewClient(
		schedulesdirect.NewExecutor(cfg.SDAPIBase, cfg.SDAppID, opts...),
		slog.Default(),
	)
	defer sdClient.Close()

	// 6. Services and HTTP surface.
	accountSvc := application.NewAccountService(
		sdClient,
		v,
		sqliteadapter.NewAccountRepo(db),
		sqliteadapter.NewLineupRepo(db),
		slog.Default(),
	)

	handler := httphandler.NewServeMux(httphandler.NewHandler(accountSvc, db, slog.Default()), slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Upstream retries can take several minutes when rate limited.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// 7. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
