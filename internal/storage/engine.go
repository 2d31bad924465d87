package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/nguyendn/wwwhisper/internal/core/service"
	"github.com/nguyendn/wwwhisper/internal/storage/memory"
	"github.com/nguyendn/wwwhisper/internal/storage/sqlstore"
	"github.com/nguyendn/wwwhisper/internal/telemetry/logger"
)

// Supported backends.
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Default locations under DataDir.
const (
	DefaultBadgerDir  = "badger"
	DefaultSQLiteFile = "wwwhisper.sqlite3"
)

// Config selects and configures the store backend.
type Config struct {
	// Backend is one of BackendMemory, BackendBadger, BackendSQLite or
	// BackendPostgres.
	Backend string

	// DataDir is the base directory for the badger and sqlite backends.
	DataDir string

	// DSN overrides the sqlite file path, and is required for postgres.
	DSN string

	// Badger tunes the badger backend. Dir defaults to DataDir/badger.
	Badger BadgerConfig
}

// DefaultConfig returns a badger configuration rooted at dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		Backend: BackendBadger,
		DataDir: dataDir,
		Badger:  DefaultBadgerConfig(filepath.Join(dataDir, DefaultBadgerDir)),
	}
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendBadger:
		if c.Badger.Dir == "" && c.DataDir == "" && !c.Badger.InMemory {
			return fmt.Errorf("storage: badger backend requires data_dir")
		}
	case BackendSQLite:
		if c.DSN == "" && c.DataDir == "" {
			return fmt.Errorf("storage: sqlite backend requires data_dir or dsn")
		}
	case BackendPostgres:
		if c.DSN == "" {
			return fmt.Errorf("storage: postgres backend requires dsn")
		}
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Backend)
	}
	return nil
}

// Open builds the configured store. The caller owns Close.
func Open(ctx context.Context, cfg Config, log logger.Logger) (service.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("backend", cfg.Backend)

	switch cfg.Backend {
	case BackendMemory:
		log.Warn("using in-memory store, data is lost on restart")
		return memory.New(), nil

	case BackendBadger:
		bc := cfg.Badger
		if bc.Dir == "" && !bc.InMemory {
			bc.Dir = filepath.Join(cfg.DataDir, DefaultBadgerDir)
		}
		s, err := OpenBadger(bc, log)
		if err != nil {
			return nil, err
		}
		return s, nil

	case BackendSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = filepath.Join(cfg.DataDir, DefaultSQLiteFile)
		}
		return openSQL(ctx, sqlstore.Config{Driver: sqlstore.DriverSQLite, DSN: dsn}, log)

	default: // BackendPostgres
		return openSQL(ctx, sqlstore.Config{Driver: sqlstore.DriverPostgres, DSN: cfg.DSN}, log)
	}
}

func openSQL(ctx context.Context, cfg sqlstore.Config, log logger.Logger) (service.Store, error) {
	s, err := sqlstore.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return s, nil
}
