// Package sqlite provides the SQLite-backed diagnostics store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/nearplay/duelsync/internal/connection"
	sqlitemigrate "github.com/nearplay/duelsync/internal/platform/storage/sqlitemigrate"
	"github.com/nearplay/duelsync/internal/storage"
	"github.com/nearplay/duelsync/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists connection events and telemetry in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite diagnostics store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// AppendConnectionEvent appends one connection event record.
func (s *Store) AppendConnectionEvent(ctx context.Context, record storage.ConnectionEventRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	sessionID := strings.TrimSpace(record.SessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	occurredAt := record.Event.Timestamp
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO connection_events (
		   session_id,
		   seq,
		   occurred_at,
		   event_type,
		   endpoint_id,
		   attempt,
		   connection_number,
		   reason
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID,
		record.Event.Seq,
		toMillis(occurredAt),
		string(record.Event.Type),
		record.Event.EndpointID,
		record.Event.Attempt,
		record.Event.ConnectionNumber,
		record.Event.Reason,
	)
	if err != nil {
		return fmt.Errorf("append connection event: %w", err)
	}
	return nil
}

// ListConnectionEvents returns a session's connection events in append order.
func (s *Store) ListConnectionEvents(ctx context.Context, sessionID string) ([]storage.ConnectionEventRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT seq, occurred_at, event_type, endpoint_id, attempt, connection_number, reason
		   FROM connection_events
		  WHERE session_id = ?
		  ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list connection events: %w", err)
	}
	defer rows.Close()

	var records []storage.ConnectionEventRecord
	for rows.Next() {
		record := storage.ConnectionEventRecord{SessionID: sessionID}
		var occurredAt int64
		var eventType string
		if err := rows.Scan(
			&record.Event.Seq,
			&occurredAt,
			&eventType,
			&record.Event.EndpointID,
			&record.Event.Attempt,
			&record.Event.ConnectionNumber,
			&record.Event.Reason,
		); err != nil {
			return nil, fmt.Errorf("list connection events: %w", err)
		}
		record.Event.Timestamp = fromMillis(occurredAt)
		record.Event.Type = connection.EventType(eventType)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list connection events: %w", err)
	}
	return records, nil
}

// LastConnectionEvent returns a session's most recent connection event, or
// storage.ErrNotFound when the session has no persisted events.
func (s *Store) LastConnectionEvent(ctx context.Context, sessionID string) (storage.ConnectionEventRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ConnectionEventRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ConnectionEventRecord{}, fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return storage.ConnectionEventRecord{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT seq, occurred_at, event_type, endpoint_id, attempt, connection_number, reason
		   FROM connection_events
		  WHERE session_id = ?
		  ORDER BY seq DESC
		  LIMIT 1`,
		sessionID,
	)
	record := storage.ConnectionEventRecord{SessionID: sessionID}
	var occurredAt int64
	var eventType string
	if err := row.Scan(
		&record.Event.Seq,
		&occurredAt,
		&eventType,
		&record.Event.EndpointID,
		&record.Event.Attempt,
		&record.Event.ConnectionNumber,
		&record.Event.Reason,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ConnectionEventRecord{}, storage.ErrNotFound
		}
		return storage.ConnectionEventRecord{}, fmt.Errorf("last connection event: %w", err)
	}
	record.Event.Timestamp = fromMillis(occurredAt)
	record.Event.Type = connection.EventType(eventType)
	return record, nil
}

// AppendTelemetryEvent appends one telemetry record.
func (s *Store) AppendTelemetryEvent(ctx context.Context, evt storage.TelemetryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	eventName := strings.TrimSpace(evt.EventName)
	if eventName == "" {
		return fmt.Errorf("event name is required")
	}
	occurredAt := evt.Timestamp
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	attributes := "{}"
	if len(evt.Attributes) > 0 {
		encoded, err := json.Marshal(evt.Attributes)
		if err != nil {
			return fmt.Errorf("encode telemetry attributes: %w", err)
		}
		attributes = string(encoded)
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO telemetry_events (
		   occurred_at,
		   event_name,
		   severity,
		   session_id,
		   endpoint_id,
		   trace_id,
		   span_id,
		   attributes
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		toMillis(occurredAt),
		eventName,
		evt.Severity,
		evt.SessionID,
		evt.EndpointID,
		evt.TraceID,
		evt.SpanID,
		attributes,
	)
	if err != nil {
		return fmt.Errorf("append telemetry event: %w", err)
	}
	return nil
}

var _ storage.ConnectionEventStore = (*Store)(nil)
var _ storage.TelemetryStore = (*Store)(nil)
