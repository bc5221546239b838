package config

import (
	"fmt"
	"time"

	"github.com/recaller/recur/internal/env"
)

// ProcessorConfig holds configuration for the processing driver binary.
type ProcessorConfig struct {
	// CronSpec is when processing runs happen (standard five-field
	// cron syntax or @hourly/@daily descriptors).
	CronSpec string `env:"RECALLER_PROCESS_CRON" default:"@hourly"`

	// OperationTimeout bounds a single processing run.
	OperationTimeout time.Duration `env:"RECALLER_PROCESSOR_TIMEOUT" default:"10m"`

	// MaxPerSource caps occurrences materialized per source per run.
	MaxPerSource int `env:"RECALLER_MAX_OCCURRENCES_PER_SOURCE" default:"1000"`

	// LockLease is how long the exclusive run lock survives a crashed
	// holder.
	LockLease time.Duration `env:"RECALLER_RUN_LOCK_LEASE" default:"5m"`

	OTelEnabled bool `env:"RECALLER_OTEL_ENABLED" default:"false"`

	Storage StorageConfig
}

// LoadProcessor loads and validates processor configuration from the
// environment.
func LoadProcessor() (*ProcessorConfig, error) {
	cfg := &ProcessorConfig{}
	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load processor config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *ProcessorConfig) Validate() error {
	if c.MaxPerSource < 1 {
		return fmt.Errorf("RECALLER_MAX_OCCURRENCES_PER_SOURCE must be at least 1, got %d", c.MaxPerSource)
	}
	if c.OperationTimeout <= 0 {
		return fmt.Errorf("RECALLER_PROCESSOR_TIMEOUT must be positive, got %s", c.OperationTimeout)
	}
	return nil
}
