package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/valnssh/vaporBooster/internal/config"
	"github.com/valnssh/vaporBooster/internal/crypto"
	"github.com/valnssh/vaporBooster/internal/events"
	"github.com/valnssh/vaporBooster/internal/httpserver"
	"github.com/valnssh/vaporBooster/internal/logging"
	"github.com/valnssh/vaporBooster/internal/orchestrator"
	"github.com/valnssh/vaporBooster/internal/postgres"
	"github.com/valnssh/vaporBooster/internal/qr"
	"github.com/valnssh/vaporBooster/internal/steam"
	"github.com/valnssh/vaporBooster/internal/stream"
)

const (
	qrPollWait = 2 * time.Second
	qrTTL      = 5 * time.Minute
)

func setupConfig() *config.Config {
	// Missing .env is fine; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	return pool
}

func setupVault(cfg *config.Config) crypto.Vault {
	if cfg.VaultSecret == "" {
		slog.Warn("VAULT_SECRET not set, credentials will be stored unencrypted")
		return crypto.NoopVault{}
	}

	vault, err := crypto.NewAesGcmVault(cfg.VaultSecret)
	if err != nil {
		slog.Error("Failed to create credential vault", "error", err)
		os.Exit(1)
	}
	return vault
}

func setupPublisher(cfg *config.Config) *events.Publisher {
	if cfg.RedisURL == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	publisher, err := events.NewPublisher(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return publisher
}

func runGracefulShutdown(srv *httpserver.Server, orch *orchestrator.Orchestrator, hub *stream.Hub, pump *events.Pump, publisher *events.Publisher) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		orch.StopAll()
		hub.Stop()
		pump.Stop()
		if err := publisher.Close(); err != nil {
			slog.Error("Failed to close publisher", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	vault := setupVault(cfg)
	publisher := setupPublisher(cfg)

	accountRepo := postgres.NewAccountRepo(pool)
	messageRepo := postgres.NewMessageRepo(pool)

	dial := steam.GatewayDialer(cfg.GatewayURL)
	orch := orchestrator.New(accountRepo, messageRepo, vault, dial, clock, cfg.ReconnectDelay)

	hub := stream.NewHub()
	orch.Subscribe(func(update orchestrator.StatusUpdate) {
		hub.Broadcast(update)
	})
	var pump *events.Pump
	if publisher != nil {
		// Listeners run on the session's event path, so publishing goes
		// through a bounded queue instead of a synchronous Redis call.
		pump = events.NewPump(publisher.PublishStatus, 64)
		orch.Subscribe(func(update orchestrator.StatusUpdate) {
			pump.Enqueue(events.StatusEvent{
				AccountID:      update.AccountID,
				AccountName:    update.AccountName,
				Status:         string(update.Status),
				BoostStartedAt: update.BoostStartedAt,
			})
		})
	}

	qrFlow := qr.NewFlow(steam.QRBeginner(cfg.GatewayURL), clock, qrPollWait, qrTTL)

	{
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := orch.RestoreAll(ctx); err != nil {
			slog.Error("Failed to restore sessions", "error", err)
		}
		cancel()
	}

	healthChecks := []httpserver.HealthCheck{
		{Name: "postgres", Fn: pool.Ping},
	}
	srv := httpserver.NewServer(cfg, orch, qrFlow, hub, healthChecks)

	done := runGracefulShutdown(srv, orch, hub, pump, publisher)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
