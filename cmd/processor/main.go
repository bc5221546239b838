package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/recaller/recur/internal/application/processor"
	"github.com/recaller/recur/internal/config"
	sqlstorage "github.com/recaller/recur/internal/storage/sql"
	"github.com/recaller/recur/internal/storage/sql/repository"
	"github.com/recaller/recur/pkg/observability"
)

const serviceVersion = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadProcessor()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	providers, err := observability.Init(ctx, "recur-processor", serviceVersion, cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to shutdown observability providers", "error", err)
		}
	}()
	slog.SetDefault(providers.Logger)

	slog.InfoContext(ctx, "starting recur processor", "cron", cfg.CronSpec)

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer store.Close()

	driver := processor.NewDriver(store,
		processor.WithMaxPerSource(cfg.MaxPerSource),
		processor.WithLockLease(cfg.LockLease),
	)

	scheduler, err := processor.NewScheduler(driver, cfg.CronSpec,
		processor.WithOperationTimeout(cfg.OperationTimeout))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	return scheduler.Start(ctx)
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
