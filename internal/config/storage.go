package config

import "fmt"

// Storage backend types.
const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// StorageConfig selects and configures the storage backend.
// SQLite suits single-user local deployments; postgres is for shared
// ones.
type StorageConfig struct {
	Type        string `env:"RECALLER_STORAGE_TYPE" default:"postgres"`
	PostgresDSN string `env:"RECALLER_POSTGRES_DSN"`
	SQLitePath  string `env:"RECALLER_SQLITE_PATH" default:"./recaller.db"`
}

// Validate checks backend-specific requirements.
func (c *StorageConfig) Validate() error {
	switch c.Type {
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("RECALLER_POSTGRES_DSN is required when RECALLER_STORAGE_TYPE is %q", StoragePostgres)
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("RECALLER_SQLITE_PATH is required when RECALLER_STORAGE_TYPE is %q", StorageSQLite)
		}
	default:
		return fmt.Errorf("unknown RECALLER_STORAGE_TYPE: %s", c.Type)
	}
	return nil
}
