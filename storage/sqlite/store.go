// Package sqlite provides the SQLite implementation of the calendar event store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	stdSync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/minyu3108/scheduling/calendar"
	syncErrors "github.com/minyu3108/scheduling/errors"
	"github.com/minyu3108/scheduling/logging"

	// Go SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// Custom errors for better error handling
var (
	ErrStoreClosed = errors.New("store is closed")
)

// Config holds configuration options for the EventStore.
//
// Production-ready defaults are applied by DefaultConfig() including:
//   - WAL mode enabled for better concurrency
//   - Connection pool with 25 max open, 5 max idle connections
//   - Connection lifetimes of 1 hour max, 5 minutes max idle
type Config struct {
	// DataSourceName is the connection string for the SQLite database.
	// Example: "file:calendar.db?_journal_mode=WAL"
	DataSourceName string

	// EnableWAL enables Write-Ahead Logging mode for better concurrency.
	// When true, automatically appends "?_journal_mode=WAL" to DataSourceName.
	EnableWAL bool

	// Connection pool settings for production workloads.
	// Defaults: MaxOpen=25, MaxIdle=5, Lifetime=1h, IdleTime=5m
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// setDefaults applies default values to the config
func (c *Config) setDefaults() {
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.EnableWAL {
		if !strings.Contains(c.DataSourceName, "?_journal_mode=") {
			c.DataSourceName += "?_journal_mode=WAL"
		}
	}
}

// DefaultConfig returns a Config with production-ready defaults.
func DefaultConfig(dataSourceName string) *Config {
	config := &Config{
		DataSourceName: dataSourceName,
		EnableWAL:      true,
	}
	config.setDefaults()
	return config
}

// NewWithDataSource is a convenience constructor
func NewWithDataSource(dataSourceName string) (*EventStore, error) {
	return New(DefaultConfig(dataSourceName))
}

// EventStore persists calendar events in SQLite. It owns no state of
// its own beyond the connection; every operation is a pass-through to
// the underlying table.
type EventStore struct {
	db     *sql.DB
	mu     stdSync.RWMutex
	closed bool
}

// New creates a new EventStore from a Config.
func New(config *Config) (*EventStore, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	// Apply defaults
	config.setDefaults()

	if config.DataSourceName == "" {
		return nil, fmt.Errorf("DataSourceName is required")
	}

	logger := logging.WithComponent(logging.Component("sqlite-store"))
	logger.InfoContext(context.Background(), "Opening SQLite database",
		slog.String("data_source", config.DataSourceName),
		slog.Bool("wal_enabled", config.EnableWAL),
	)

	db, err := sql.Open("sqlite3", config.DataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	store := &EventStore{db: db}

	if err := store.setupSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to setup database schema: %w", err)
	}

	logger.InfoContext(context.Background(), "SQLite event store successfully initialized")
	return store, nil
}

// setupSchema creates the 'events' table if it doesn't exist.
// start_at and end_at are Unix milliseconds; the unparseable-date
// sentinel is stored like any other instant.
func (s *EventStore) setupSchema() error {
	query := `
    CREATE TABLE IF NOT EXISTS events (
        id          TEXT PRIMARY KEY,
        title       TEXT NOT NULL DEFAULT '',
        start_at    INTEGER NOT NULL,
        end_at      INTEGER NOT NULL,
        tentative   INTEGER NOT NULL DEFAULT 0,
        notes       TEXT NOT NULL DEFAULT ''
    );
    CREATE INDEX IF NOT EXISTS idx_start_at ON events (start_at);
    CREATE INDEX IF NOT EXISTS idx_end_at ON events (end_at);
    `
	_, err := s.db.Exec(query)
	return err
}

// ListAll returns every event ordered by start time ascending.
func (s *EventStore) ListAll(ctx context.Context) ([]calendar.Event, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	s.mu.RUnlock()

	query := `SELECT id, title, start_at, end_at, tentative, notes FROM events ORDER BY start_at ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, syncErrors.NewStorageError(syncErrors.OpList, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Add inserts a new event and returns it with its store-assigned ID.
// Any ID already set on the argument is discarded.
func (s *EventStore) Add(ctx context.Context, ev calendar.Event) (calendar.Event, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return calendar.Event{}, ErrStoreClosed
	}
	s.mu.RUnlock()

	ev.ID = uuid.NewString()

	query := `INSERT INTO events (id, title, start_at, end_at, tentative, notes) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		ev.ID, ev.Title, ev.Start.Millis(), ev.End.Millis(), boolToInt(ev.IsTentative), ev.Notes)
	if err != nil {
		return calendar.Event{}, syncErrors.NewStorageError(syncErrors.OpAdd, err)
	}

	return ev, nil
}

// UpdateByID rewrites the event's fields in place. The id column is
// never part of the SET clause, so a payload cannot retarget a row.
// Updating a missing id is a nil-error no-op, matching the external
// collection's own semantics.
func (s *EventStore) UpdateByID(ctx context.Context, id string, ev calendar.Event) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	query := `UPDATE events SET title = ?, start_at = ?, end_at = ?, tentative = ?, notes = ? WHERE id = ?`
	_, err := s.db.ExecContext(ctx, query,
		ev.Title, ev.Start.Millis(), ev.End.Millis(), boolToInt(ev.IsTentative), ev.Notes, id)
	if err != nil {
		return syncErrors.NewStorageError(syncErrors.OpUpdate, err)
	}

	return nil
}

// DeleteByID removes an event and reports whether a row was actually
// deleted. A missing id succeeds with deleted=false.
func (s *EventStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return false, ErrStoreClosed
	}
	s.mu.RUnlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return false, syncErrors.NewStorageError(syncErrors.OpDelete, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, syncErrors.NewStorageError(syncErrors.OpDelete, err)
	}

	return affected > 0, nil
}

// DeleteEndingBefore removes all events whose end time is strictly
// before the cutoff, in a single transaction, and returns how many
// rows were removed.
func (s *EventStore) DeleteEndingBefore(ctx context.Context, cutoff calendar.Timestamp) (int, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return 0, ErrStoreClosed
	}
	s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, syncErrors.NewStorageError(syncErrors.OpSweep, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE end_at < ?`, cutoff.Millis())
	if err != nil {
		return 0, syncErrors.NewStorageError(syncErrors.OpSweep, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, syncErrors.NewStorageError(syncErrors.OpSweep, err)
	}

	if err = tx.Commit(); err != nil {
		return 0, syncErrors.NewStorageError(syncErrors.OpSweep, err)
	}

	return int(affected), nil
}

// Close closes the database connection.
func (s *EventStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// Stats returns database statistics for monitoring
func (s *EventStore) Stats() sql.DBStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return sql.DBStats{}
	}

	return s.db.Stats()
}

// scanEvents is a helper to scan sql.Rows into a slice of events.
func scanEvents(rows *sql.Rows) ([]calendar.Event, error) {
	var events []calendar.Event
	for rows.Next() {
		var ev calendar.Event
		var startMs, endMs int64
		var tentative int
		if err := rows.Scan(&ev.ID, &ev.Title, &startMs, &endMs, &tentative, &ev.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		ev.Start = calendar.FromMillis(startMs)
		ev.End = calendar.FromMillis(endMs)
		ev.IsTentative = tentative != 0
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return events, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
