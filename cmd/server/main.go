package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/recaller/recur/internal/application/processor"
	"github.com/recaller/recur/internal/application/schedule"
	"github.com/recaller/recur/internal/config"
	apihttp "github.com/recaller/recur/internal/http"
	"github.com/recaller/recur/internal/http/handler"
	sqlstorage "github.com/recaller/recur/internal/storage/sql"
	"github.com/recaller/recur/internal/storage/sql/repository"
	"github.com/recaller/recur/pkg/observability"
)

const serviceVersion = "1.0.0"

func main() {
	if err := run(); err != nil {
		// slog may not be initialized yet when config loading fails.
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServer()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Root context for all normal operations; cancels on SIGTERM/SIGINT.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Observability config comes from the standard OTEL_* env vars.
	providers, err := observability.Init(ctx, "recur-api", serviceVersion, cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init observability: %w", err)
	}
	defer func() {
		// Use a timeout to prevent hanging if the collector is unreachable.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to shutdown observability providers", "error", err)
		}
	}()
	slog.SetDefault(providers.Logger)

	slog.InfoContext(ctx, "starting recur api", "env", cfg.Env)

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer store.Close()

	slog.InfoContext(ctx, "storage initialized",
		"type", cfg.Storage.Type, "dsn", maskPassword(cfg.Storage.PostgresDSN))

	scheduleService := schedule.NewService(store, cfg.HorizonDays)
	driver := processor.NewDriver(store)

	server := handler.NewServer(scheduleService, driver, cfg.CalendarDays)
	router := apihttp.NewRouter(server, cfg.MaxBodyBytes)

	httpServer := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		// otelhttp creates a span per incoming request and propagates
		// trace context from callers.
		Handler:           otelhttp.NewHandler(router, "recur-api"),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errResult := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errResult <- fmt.Errorf("failed to serve HTTP: %w", err)
		}
	}()

	slog.InfoContext(ctx, "HTTP server listening", "port", cfg.HTTPPort)

	select {
	case <-ctx.Done():
		slog.InfoContext(ctx, "shutting down")

		// Fresh context: the main one is already cancelled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.WarnContext(shutdownCtx, "HTTP server shutdown timed out", "error", err)
		} else {
			slog.InfoContext(shutdownCtx, "HTTP server shutdown complete")
		}
		return nil
	case err := <-errResult:
		return err
	}
}

// openStore selects the storage backend from config.
func openStore(ctx context.Context, cfg config.StorageConfig) (*repository.Store, error) {
	switch cfg.Type {
	case config.StoragePostgres:
		return sqlstorage.NewPostgresStore(ctx, cfg.PostgresDSN)
	case config.StorageSQLite:
		return sqlstorage.NewSQLiteStore(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// maskPassword masks the password in a connection string for logging.
func maskPassword(connStr string) string {
	if connStr == "" {
		return ""
	}
	u, err := url.Parse(connStr)
	if err != nil {
		// If parsing fails, fall back to full redaction to be safe.
		return "[REDACTED]"
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxxx")
		}
	}
	return u.String()
}
