// Package storage defines the persistence interfaces for duelsync
// diagnostics.
//
// Only diagnostics are persisted: the append-only connection event log and
// operational telemetry. Session snapshots are transient replicated values
// and never touch durable storage.
package storage

import (
	"context"
	"time"

	"github.com/nearplay/duelsync/internal/connection"
	apperrors "github.com/nearplay/duelsync/internal/platform/errors"
)

// ErrNotFound indicates a requested persistence record is missing. Callers
// use this to differentiate legitimate "no such record" states from data
// corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ConnectionEventRecord is one persisted connection event, scoped to the
// session whose pairing produced it.
type ConnectionEventRecord struct {
	SessionID string
	Event     connection.Event
}

// ConnectionEventStore persists the append-only connection event log.
// Records are write-once: there is no update or delete surface.
type ConnectionEventStore interface {
	// AppendConnectionEvent appends one event record.
	AppendConnectionEvent(ctx context.Context, record ConnectionEventRecord) error
	// ListConnectionEvents returns a session's events in append order.
	ListConnectionEvents(ctx context.Context, sessionID string) ([]ConnectionEventRecord, error)
	// LastConnectionEvent returns a session's most recent event, or
	// ErrNotFound when the session has no persisted events.
	LastConnectionEvent(ctx context.Context, sessionID string) (ConnectionEventRecord, error)
}

// TelemetryEvent captures operational observations emitted during session
// syncing: merges performed, reconnections detected, image resends decided.
type TelemetryEvent struct {
	Timestamp  time.Time
	EventName  string
	Severity   string
	SessionID  string
	EndpointID string
	TraceID    string
	SpanID     string
	Attributes map[string]any
}

// TelemetryStore persists operational telemetry records for audits and
// incident analysis.
type TelemetryStore interface {
	AppendTelemetryEvent(ctx context.Context, evt TelemetryEvent) error
}
