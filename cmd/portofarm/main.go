package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	chainadapter "github.com/afflictionmoney/portofarm/internal/adapter/driven/chain"
	sqliteadapter "github.com/afflictionmoney/portofarm/internal/adapter/driven/sqlite"
	"github.com/afflictionmoney/portofarm/internal/adapter/driven/telegram"
	httphandler "github.com/afflictionmoney/portofarm/internal/adapter/driving/http"
	"github.com/afflictionmoney/portofarm/internal/application"
	"github.com/afflictionmoney/portofarm/internal/config"
	"github.com/afflictionmoney/portofarm/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"rpc_url", cfg.RPCURL,
		"network", cfg.Network,
		"key_persistence", cfg.SecretKey != nil,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	accountStore := sqliteadapter.NewAccountRepo(db)
	keyStore := sqliteadapter.NewKeyRepo(db, cfg.SecretKey)

	chainClient, err := chainadapter.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return err
	}
	defer chainClient.Close()
	slog.Info("chain client connected", "rpc_url", cfg.RPCURL)

	var notifier driven.Notifier
	if cfg.HasTelegram() {
		notifier = telegram.NewNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
		slog.Info("telegram notifications enabled")
	}

	// 6. Create application services.
	runLog := application.NewLogBuffer(application.DefaultLogCapacity)
	farmSvc := application.NewFarmService(
		accountStore,
		keyStore,
		chainClient,
		notifier,
		runLog,
		cfg.Network,
		application.ActionGas{
			KeyAuthorization: cfg.Gas.KeyAuthorization,
			SessionKey:       cfg.Gas.SessionKey,
			IntentFlow:       cfg.Gas.IntentFlow,
			BatchExecution:   cfg.Gas.BatchExecution,
			RandomAction:     cfg.Gas.RandomAction,
		},
		application.DelaySettings{
			Mode:   cfg.DelayMode,
			Level:  cfg.DelayLevel,
			MinSec: cfg.DelayMinSec,
			MaxSec: cfg.DelayMaxSec,
		},
		cfg.AutoRetry,
		cfg.MaxRetries,
	)
	if err := farmSvc.Restore(ctx); err != nil {
		return err
	}
	exportSvc := application.NewExportService(accountStore, cfg.Network)

	// 7. Create HTTP handler and server.
	apiHandler := httphandler.NewHandler(
		farmSvc, exportSvc, accountStore, chainClient, runLog, cfg.Network, slog.Default(),
	)
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("portofarm started", "listen_addr", cfg.ListenAddr, "network", cfg.Network)

	// 8. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 9. Graceful shutdown: ask any active run to stop, then drain HTTP.
	_ = farmSvc.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
