package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nearplay/duelsync/internal/connection"
	"github.com/nearplay/duelsync/internal/storage"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestAppendListConnectionEventsRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.August, 30, 10, 15, 0, 0, time.UTC)

	events := []connection.Event{
		{
			Seq:        1,
			Timestamp:  now,
			Type:       connection.EventDiscoveryStarted,
			EndpointID: "",
		},
		{
			Seq:              2,
			Timestamp:        now.Add(2 * time.Second),
			Type:             connection.EventConnectSucceeded,
			EndpointID:       "endpoint-a",
			Attempt:          1,
			ConnectionNumber: 1,
		},
		{
			Seq:        3,
			Timestamp:  now.Add(5 * time.Second),
			Type:       connection.EventDisconnected,
			EndpointID: "endpoint-a",
			Reason:     "transport closed",
		},
	}
	for _, evt := range events {
		record := storage.ConnectionEventRecord{SessionID: "session-1", Event: evt}
		if err := store.AppendConnectionEvent(context.Background(), record); err != nil {
			t.Fatalf("append connection event %d: %v", evt.Seq, err)
		}
	}

	got, err := store.ListConnectionEvents(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("list connection events: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("events = %d, want %d", len(got), len(events))
	}
	for i, record := range got {
		want := events[i]
		if record.Event.Seq != want.Seq {
			t.Fatalf("event %d seq = %d, want %d", i, record.Event.Seq, want.Seq)
		}
		if record.Event.Type != want.Type {
			t.Fatalf("event %d type = %q, want %q", i, record.Event.Type, want.Type)
		}
		if !record.Event.Timestamp.Equal(want.Timestamp) {
			t.Fatalf("event %d timestamp = %v, want %v", i, record.Event.Timestamp, want.Timestamp)
		}
		if record.Event.Reason != want.Reason {
			t.Fatalf("event %d reason = %q, want %q", i, record.Event.Reason, want.Reason)
		}
	}
}

func TestListConnectionEventsScopedBySession(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.August, 30, 11, 0, 0, 0, time.UTC)

	for _, sessionID := range []string{"session-a", "session-b"} {
		record := storage.ConnectionEventRecord{
			SessionID: sessionID,
			Event: connection.Event{
				Seq:       1,
				Timestamp: now,
				Type:      connection.EventDiscoveryStarted,
			},
		}
		if err := store.AppendConnectionEvent(context.Background(), record); err != nil {
			t.Fatalf("append for %s: %v", sessionID, err)
		}
	}

	got, err := store.ListConnectionEvents(context.Background(), "session-a")
	if err != nil {
		t.Fatalf("list connection events: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("events = %d, want 1", len(got))
	}
	if got[0].SessionID != "session-a" {
		t.Fatalf("session_id = %q, want session-a", got[0].SessionID)
	}
}

func TestLastConnectionEvent(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.August, 30, 11, 30, 0, 0, time.UTC)

	if _, err := store.LastConnectionEvent(context.Background(), "session-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want not-found", err)
	}

	for seq := uint64(1); seq <= 3; seq++ {
		record := storage.ConnectionEventRecord{
			SessionID: "session-1",
			Event: connection.Event{
				Seq:        seq,
				Timestamp:  now.Add(time.Duration(seq) * time.Second),
				Type:       connection.EventConnectSucceeded,
				EndpointID: "endpoint-a",
			},
		}
		if err := store.AppendConnectionEvent(context.Background(), record); err != nil {
			t.Fatalf("append connection event %d: %v", seq, err)
		}
	}

	got, err := store.LastConnectionEvent(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("last connection event: %v", err)
	}
	if got.Event.Seq != 3 {
		t.Fatalf("seq = %d, want 3", got.Event.Seq)
	}
}

func TestAppendConnectionEventRejectsDuplicateSeq(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	record := storage.ConnectionEventRecord{
		SessionID: "session-1",
		Event: connection.Event{
			Seq:       1,
			Timestamp: time.Now().UTC(),
			Type:      connection.EventDiscoveryStarted,
		},
	}
	if err := store.AppendConnectionEvent(context.Background(), record); err != nil {
		t.Fatalf("append connection event: %v", err)
	}
	if err := store.AppendConnectionEvent(context.Background(), record); err == nil {
		t.Fatal("expected duplicate seq to fail")
	}
}

func TestAppendTelemetryEvent(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	evt := storage.TelemetryEvent{
		Timestamp:  time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC),
		EventName:  "session.merge.applied",
		Severity:   "INFO",
		SessionID:  "session-1",
		EndpointID: "endpoint-a",
		Attributes: map[string]any{"merged_version": 4},
	}
	if err := store.AppendTelemetryEvent(context.Background(), evt); err != nil {
		t.Fatalf("append telemetry event: %v", err)
	}

	evt.EventName = ""
	if err := store.AppendTelemetryEvent(context.Background(), evt); err == nil {
		t.Fatal("expected missing event name to fail")
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "duelsync.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
