package config

import (
	"fmt"

	"github.com/recaller/recur/internal/env"
)

// ServerConfig holds configuration for the HTTP API binary.
type ServerConfig struct {
	HTTPPort string `env:"RECALLER_HTTP_PORT" default:"8080"`
	Env      string `env:"RECALLER_ENV" default:"dev"` // dev, prod

	// HorizonDays is the upcoming window of the due/overdue
	// classifier.
	HorizonDays int `env:"RECALLER_UPCOMING_HORIZON_DAYS" default:"7"`

	// CalendarDays is the default span of the iCalendar feed.
	CalendarDays int `env:"RECALLER_CALENDAR_DAYS" default:"30"`

	MaxBodyBytes int64 `env:"RECALLER_MAX_BODY_BYTES" default:"1048576"`

	OTelEnabled bool `env:"RECALLER_OTEL_ENABLED" default:"false"`

	Storage StorageConfig
}

// LoadServer loads and validates server configuration from the
// environment.
func LoadServer() (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *ServerConfig) Validate() error {
	if c.HorizonDays < 1 {
		return fmt.Errorf("RECALLER_UPCOMING_HORIZON_DAYS must be at least 1, got %d", c.HorizonDays)
	}
	if c.CalendarDays < 1 {
		return fmt.Errorf("RECALLER_CALENDAR_DAYS must be at least 1, got %d", c.CalendarDays)
	}
	return nil
}
