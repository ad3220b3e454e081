package store

import (
	"context"
	"fmt"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverJSON     = "json"
)

// Config selects and locates the backing store.
type Config struct {
	Driver      string
	DBPath      string
	PostgresDSN string
	JSONPath    string
}

// Open creates the configured store and runs its migrations.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)

	switch cfg.Driver {
	case "", DriverSQLite:
		s, err = NewSQLiteStore(cfg.DBPath)
	case DriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("storage.postgres_dsn is required for the postgres driver")
		}
		s, err = NewPostgresStore(ctx, cfg.PostgresDSN)
	case DriverJSON:
		s, err = NewJSONFileStore(cfg.JSONPath)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s (use: sqlite, postgres, json)", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate %s store: %w", cfg.Driver, err)
	}
	return s, nil
}
