// Package sqlitestore is the SQLite store backend, the default local store.
//
// Records are kept as JSON documents next to the columns queries filter on.
// Stream queries are compiled with querytext and evaluated by the
// streams_match SQL function registered on each connection.
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/streamhub/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on events(user_id, modified) for modifiedSince queries
const currentSchemaVersion = 1

// driverName is go-sqlite3 with streams_match registered.
const driverName = "sqlite3_streamhub"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc(matchFuncName, streamsMatch, true)
		},
	})
}

// DefaultPath is used when the settings carry no "path".
const DefaultPath = ":memory:"

// Backend is a store.Backend on one SQLite database.
//
// The pool holds a single connection. An iterator returned by
// Events().GetStreamed holds it until closed.
type Backend struct {
	id     string
	name   string
	db     *sql.DB
	stamps store.Stamps
	logger *slog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithStamps sets the id generator and clock used for new records.
func WithStamps(s store.Stamps) Option {
	return func(b *Backend) {
		b.stamps = s
	}
}

// WithLogger sets the backend logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) {
		b.logger = l
	}
}

// New creates an uninitialized backend. Call Init before use.
func New(id, name string, opts ...Option) *Backend {
	b := &Backend{
		id:     id,
		name:   name,
		stamps: store.DefaultStamps(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open creates and initializes a backend on the database at path.
func Open(ctx context.Context, id, name, path string, opts ...Option) (*Backend, error) {
	b := New(id, name, opts...)
	if err := b.Init(ctx, store.Settings{"path": path}); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backend) ID() string   { return b.id }
func (b *Backend) Name() string { return b.name }

// Init opens the database named by the "path" setting, applying pragmas and
// migrations. It is idempotent on an existing database file.
func (b *Backend) Init(ctx context.Context, settings store.Settings) error {
	path := settings.String("path", DefaultPath)

	db, err := sql.Open(driverName, path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("connect to database %s: %w", path, err)
	}

	// SQLite has one writer; a single connection also keeps :memory:
	// databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("apply pragmas: %w", err)
	}
	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("apply schema: %w", err)
	}

	b.db = db
	b.logger.Debug("sqlite store opened", "store", b.id, "path", path)
	return nil
}

func (b *Backend) Streams() store.StreamsStore { return streamsStore{b} }
func (b *Backend) Events() store.EventsStore   { return eventsStore{b} }

// Close closes the database.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental migrations based on user_version.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if _, err := db.ExecContext(ctx, `
			CREATE INDEX IF NOT EXISTS idx_events_user_modified
			ON events(user_id, modified)
		`); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// isConstraint reports whether err is a SQLite constraint violation.
func isConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
