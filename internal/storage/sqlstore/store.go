package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
	"github.com/nguyendn/wwwhisper/internal/storage/sqlstore/migrations"
	"github.com/nguyendn/wwwhisper/internal/telemetry/logger"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

const (
	connectionTimeout = 5 * time.Second
	connMaxIdleTime   = 30 * time.Minute
	dirPermissions    = 0750
)

// Config selects the SQL backend.
type Config struct {
	// Driver is DriverSQLite or DriverPostgres.
	Driver string

	// DSN is a postgres connection string, or for sqlite a file path or a
	// full "file:" URI.
	DSN string

	// MaxOpenConns caps the postgres pool. sqlite always uses one
	// connection.
	MaxOpenConns int
}

// Store implements service.Store on database/sql.
type Store struct {
	db     *sql.DB
	driver string
	logger logger.Logger
}

// gooseMu guards goose's package-level base FS and dialect.
var gooseMu sync.Mutex

// Open connects, applies pending migrations and returns a ready store.
func Open(ctx context.Context, cfg Config, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}

	var (
		dsn     string
		dialect string
	)
	switch cfg.Driver {
	case DriverSQLite:
		var err error
		if dsn, err = sqliteDSN(cfg.DSN); err != nil {
			return nil, err
		}
		dialect = "sqlite3"
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("sqlstore: postgres dsn is required")
		}
		dsn = cfg.DSN
		dialect = "postgres"
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// A single connection serializes writers and keeps in-memory
		// databases alive.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		db.SetConnMaxIdleTime(connMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: verifying connection: %w", err)
	}

	if err := migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: migration error: %w", err)
	}

	log.Info("sql store opened", "driver", cfg.Driver)

	return &Store{db: db, driver: cfg.Driver, logger: log}, nil
}

func migrate(ctx context.Context, db *sql.DB, dialect string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	dir := "postgres"
	if dialect == "sqlite3" {
		dir = "sqlite3"
	}
	return goose.UpContext(ctx, db, dir)
}

// sqliteDSN turns a path into a URI with foreign keys and WAL enabled.
// Full "file:" URIs pass through with foreign keys forced on.
func sqliteDSN(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("sqlstore: sqlite path is required")
	}
	if strings.HasPrefix(raw, "file:") {
		if !strings.Contains(raw, "_foreign_keys=") {
			sep := "?"
			if strings.Contains(raw, "?") {
				sep = "&"
			}
			raw += sep + "_foreign_keys=on"
		}
		return raw, nil
	}
	if err := os.MkdirAll(filepath.Dir(raw), dirPermissions); err != nil {
		return "", fmt.Errorf("sqlstore: creating database directory: %w", err)
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL", raw), nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.wrap("ping", s.db.PingContext(ctx))
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// DB exposes the pool for health checks and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// q rewrites '?' placeholders for the active driver.
func (s *Store) q(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	return rebind(query)
}

// rebind replaces each '?' with $1, $2, ... Queries here never carry a
// literal question mark.
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// forUpdate returns the row lock clause, empty on sqlite where the single
// connection already serializes transactions.
func (s *Store) forUpdate() string {
	if s.driver == DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

func (s *Store) tx(ctx context.Context, op string, fn func(ctx context.Context, tx DBTX) error) error {
	return s.wrap(op, WithTx(ctx, s.db, nil, fn))
}

func (s *Store) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.DomainError
	if errors.As(err, &de) {
		return err
	}
	return domain.StoreError("sql "+op, fmt.Errorf("db error: %w", err))
}

// isUniqueViolation reports a UNIQUE or PRIMARY KEY constraint failure on
// either driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
