package sink

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/backendex/backendex/pkg/export"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteSink appends backend rows to a SQLite inventory database. Every row
// is stamped with the run ID, so repeated exports against the same file
// accumulate a history instead of overwriting it.
type SQLiteSink struct {
	path   string
	db     *sql.DB
	runID  string
	logger zerolog.Logger
}

// NewSQLiteSink creates a SQLite sink writing to the database at path.
func NewSQLiteSink(path string, logger zerolog.Logger) (*SQLiteSink, error) {
	if path == "" {
		return nil, export.NewConfigError("sqlite database path is required", nil)
	}
	return &SQLiteSink{
		path:   path,
		logger: logger.With().Str("component", "sqlite-sink").Logger(),
	}, nil
}

// Begin opens the database, runs schema migrations, and allocates a run ID.
func (s *SQLiteSink) Begin(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return export.NewConfigError("opening database failed", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return export.NewConfigError("pinging database failed", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return export.NewConfigError("migrating database schema failed", err)
	}

	s.db = db
	s.runID = uuid.NewString()
	s.logger.Debug().Str("path", s.path).Str("run_id", s.runID).Msg("Inventory database ready")
	return nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Append inserts rows in one transaction, preserving traversal order via the
// autoincrement key.
func (s *SQLiteSink) Append(ctx context.Context, rows []export.Backend) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return export.NewTransportError("beginning transaction failed", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backends (run_id, application_name, tier_name, backend_type, backend_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return export.NewTransportError("preparing insert failed", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, s.runID, r.Application, r.Tier, r.Type, r.Name, now); err != nil {
			_ = tx.Rollback()
			return export.NewTransportError("inserting backend row failed", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return export.NewTransportError("committing backend rows failed", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RunID returns the identifier stamped on this run's rows.
func (s *SQLiteSink) RunID() string {
	return s.runID
}

// Path returns the artifact location, for post-run delivery.
func (s *SQLiteSink) Path() string {
	return s.path
}
