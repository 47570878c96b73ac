// Package sqlstore persists Sparks, notifications and notification
// preferences in PostgreSQL or SQLite. Queries are written with ? placeholders
// and rebound for the driver in use.
package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	// modernc registers as "sqlite", which sqlx doesn't know by default.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Store wraps a sqlx handle. It implements tracker.Repository through
// SparkRepo, and notify.Inbox / notify.PreferenceStore through the
// notification types in this package.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to dsn and prepares the connection. For SQLite the pool is
// pinned to a single connection so concurrent writers queue instead of
// failing with SQLITE_BUSY.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		for _, stmt := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA busy_timeout=5000",
		} {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				db.Close()
				return nil, fmt.Errorf("sqlite pragma: %w", err)
			}
		}
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return &Store{db: db, driver: driver}, nil
}

// New wraps an existing handle. The handle's driver name selects the
// placeholder style.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, driver: db.DriverName()}
}

// DB returns the underlying handle.
func (s *Store) DB() *sqlx.DB { return s.db }

// Driver returns the driver name the store was opened with.
func (s *Store) Driver() string { return s.driver }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the tables and indexes if they don't exist.
func (s *Store) Migrate(ctx context.Context) error {
	blob := "TEXT"
	if s.driver == DriverPostgres {
		blob = "JSONB"
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS engagement_records (
			id          TEXT PRIMARY KEY,
			token       TEXT NOT NULL UNIQUE,
			owner_id    TEXT NOT NULL,
			status      TEXT NOT NULL,
			created_ns  BIGINT NOT NULL,
			expires_ns  BIGINT,
			version     BIGINT NOT NULL,
			record      ` + blob + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_engagement_records_owner ON engagement_records (owner_id, created_ns DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_engagement_records_expiry ON engagement_records (expires_ns) WHERE expires_ns IS NOT NULL`,
		`CREATE TABLE IF NOT EXISTS spark_notifications (
			id          TEXT PRIMARY KEY,
			owner_id    TEXT NOT NULL,
			created_ns  BIGINT NOT NULL,
			read_ns     BIGINT,
			payload     ` + blob + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_spark_notifications_owner ON spark_notifications (owner_id, created_ns DESC)`,
		`CREATE TABLE IF NOT EXISTS notification_preferences (
			owner_id    TEXT PRIMARY KEY,
			updated_ns  BIGINT NOT NULL,
			payload     ` + blob + ` NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// limitOrAll maps a non-positive limit to "no limit". Both dialects need a
// LIMIT clause when OFFSET is present.
func limitOrAll(limit int) int {
	if limit <= 0 {
		return 1<<31 - 1
	}
	return limit
}
