package driver

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/nearplay/duelsync/internal/battle/state"
	"github.com/nearplay/duelsync/internal/battle/wire"
	"github.com/nearplay/duelsync/internal/storage"
	"github.com/nearplay/duelsync/internal/telemetry"
	"github.com/nearplay/duelsync/internal/transport"
)

// Command is one user-triggered transition, executed on the loop goroutine.
type Command func(*Driver) (state.Snapshot, error)

type eventKind int

const (
	eventConnected eventKind = iota
	eventDisconnected
	eventBytes
	eventCommand
)

type event struct {
	kind       eventKind
	endpointID string
	reason     string
	payload    []byte
	command    Command
	result     chan error
}

// Loop serializes the transport's asynchronous callbacks and the
// application's user commands into a single consumer, so session
// transitions are never concurrent with each other. While a reconnection
// merge is pending, rejected work is parked and replayed once the merged
// state is adopted instead of being silently discarded.
type Loop struct {
	driver     *Driver
	channel    transport.Channel
	emitter    *telemetry.Emitter
	eventStore storage.ConnectionEventStore
	log        *logrus.Logger

	queue    chan event
	deferred []event
	// remote is the endpoint the state channel currently points at.
	remote string
	// persistedSeq is the highest connection event seq already appended
	// to the diagnostics store.
	persistedSeq uint64
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithTelemetry attaches a telemetry emitter. Nil stays a no-op.
func WithTelemetry(emitter *telemetry.Emitter) LoopOption {
	return func(l *Loop) { l.emitter = emitter }
}

// WithConnectionEventStore persists the connection event log as it grows.
func WithConnectionEventStore(store storage.ConnectionEventStore) LoopOption {
	return func(l *Loop) { l.eventStore = store }
}

// WithLoopLogger injects the logger. Nil keeps the driver's.
func WithLoopLogger(log *logrus.Logger) LoopOption {
	return func(l *Loop) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLoop wires a driver to its transport channel.
func NewLoop(d *Driver, channel transport.Channel, opts ...LoopOption) *Loop {
	l := &Loop{
		driver:  d,
		channel: channel,
		log:     d.log,
		queue:   make(chan event, 64),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OnConnected implements transport.Handler.
func (l *Loop) OnConnected(endpointID string) {
	l.queue <- event{kind: eventConnected, endpointID: endpointID}
}

// OnDisconnected implements transport.Handler.
func (l *Loop) OnDisconnected(endpointID, reason string) {
	l.queue <- event{kind: eventDisconnected, endpointID: endpointID, reason: reason}
}

// OnBytesReceived implements transport.Handler.
func (l *Loop) OnBytesReceived(endpointID string, payload []byte) {
	l.queue <- event{kind: eventBytes, endpointID: endpointID, payload: payload}
}

// Submit enqueues a user command and reports its outcome. A command that
// lands inside a pending merge window is parked and replayed after the
// merged state is adopted; the outcome arrives once it actually runs.
func (l *Loop) Submit(cmd Command) <-chan error {
	result := make(chan error, 1)
	l.queue <- event{kind: eventCommand, command: cmd, result: result}
	return result
}

// Run consumes events until the context is cancelled. It is the only
// goroutine that touches the driver.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-l.queue:
			l.handle(ctx, evt)
		}
	}
}

func (l *Loop) handle(ctx context.Context, evt event) {
	switch evt.kind {
	case eventConnected:
		l.handleConnected(ctx, evt.endpointID)
	case eventDisconnected:
		lifecycle := l.driver.ReportDisconnected(evt.endpointID, evt.reason)
		l.persistConnectionEvents(ctx)
		l.log.WithFields(logrus.Fields{
			"endpoint_id": evt.endpointID,
			"reason":      evt.reason,
			"state":       lifecycle.State.String(),
		}).Warn("transport disconnected")
	case eventBytes:
		l.handleBytes(ctx, evt)
	case eventCommand:
		_, err := evt.command(l.driver)
		if errors.Is(err, ErrSyncInProgress) {
			l.deferred = append(l.deferred, evt)
			return
		}
		if evt.result != nil {
			evt.result <- err
		}
	}
}

func (l *Loop) handleConnected(ctx context.Context, endpointID string) {
	l.remote = endpointID
	lifecycle := l.driver.ReportConnected(endpointID)
	l.persistConnectionEvents(ctx)

	if !lifecycle.IsReconnection() {
		l.log.WithField("endpoint_id", endpointID).Info("connected")
		return
	}

	l.log.WithFields(logrus.Fields{
		"endpoint_id":          endpointID,
		"previous_endpoint_id": lifecycle.PreviousEndpointID,
		"connection_number":    lifecycle.ConnectionNumber,
	}).Warn("silent reconnection detected")
	l.emit(ctx, storage.TelemetryEvent{
		EventName:  "connection.reconnected",
		Severity:   string(telemetry.SeverityWarn),
		SessionID:  l.driver.snapshot.SessionID,
		EndpointID: endpointID,
		Attributes: map[string]any{
			"previous_endpoint_id": lifecycle.PreviousEndpointID,
			"connection_number":    lifecycle.ConnectionNumber,
		},
	})

	// Exchange snapshots: the merged result is adopted when the peer's
	// state-sync frame arrives.
	l.sendStateSync(endpointID)
}

func (l *Loop) handleBytes(ctx context.Context, evt event) {
	msg, err := wire.Decode(evt.payload)
	if err != nil {
		// A corrupt frame means no state received, never acceptance of
		// a default value.
		l.log.WithError(err).WithField("endpoint_id", evt.endpointID).Warn("dropping undecodable frame")
		return
	}

	if msg.Type == wire.MessageStateSync && !l.driver.Syncing() {
		// The peer detected the reconnection first; answer with our
		// pre-merge view so both sides fold the same inputs.
		l.sendStateSync(evt.endpointID)
	}

	snapshot, err := l.driver.HandlePeerMessage(msg)
	if errors.Is(err, ErrSyncInProgress) {
		l.deferred = append(l.deferred, evt)
		return
	}
	if err != nil {
		l.log.WithError(err).WithField("type", string(msg.Type)).Warn("peer message rejected")
		return
	}

	if msg.Type == wire.MessageStateSync {
		l.afterMerge(ctx, snapshot)
		l.replayDeferred(ctx)
	}
}

// afterMerge runs the image resilience checks that must follow every merge.
func (l *Loop) afterMerge(ctx context.Context, snapshot state.Snapshot) {
	l.emit(ctx, storage.TelemetryEvent{
		EventName:  "session.merge.applied",
		Severity:   string(telemetry.SeverityInfo),
		SessionID:  snapshot.SessionID,
		EndpointID: l.remote,
		Attributes: map[string]any{
			"merged_version": snapshot.Version,
			"phase":          snapshot.Phase.String(),
		},
	})
	if snapshot.HasMissingOpponentImage() {
		l.log.WithField("session_id", snapshot.SessionID).Warn("opponent image missing after merge")
		l.emit(ctx, storage.TelemetryEvent{
			EventName: "image.missing_detected",
			Severity:  string(telemetry.SeverityWarn),
			SessionID: snapshot.SessionID,
		})
	}
	if snapshot.NeedsImageResend() {
		l.log.WithField("session_id", snapshot.SessionID).Info("image resend needed after merge")
		l.emit(ctx, storage.TelemetryEvent{
			EventName: "image.resend_needed",
			Severity:  string(telemetry.SeverityInfo),
			SessionID: snapshot.SessionID,
		})
	}
}

func (l *Loop) replayDeferred(ctx context.Context) {
	parked := l.deferred
	l.deferred = nil
	for _, evt := range parked {
		l.handle(ctx, evt)
	}
}

func (l *Loop) sendStateSync(endpointID string) {
	frame, err := wire.EncodeStateSync(l.driver.snapshot)
	if err != nil {
		l.log.WithError(err).Error("encode state sync")
		return
	}
	if err := l.channel.Send(endpointID, frame); err != nil {
		l.log.WithError(err).WithField("endpoint_id", endpointID).Warn("send state sync")
	}
}

// Send frames and delivers an outbound announce on the loop goroutine.
func (l *Loop) Send(frame []byte) <-chan error {
	result := make(chan error, 1)
	l.queue <- event{kind: eventCommand, result: result, command: func(d *Driver) (state.Snapshot, error) {
		if err := d.guard(); err != nil {
			return d.snapshot, err
		}
		return d.snapshot, l.channel.Send(l.remote, frame)
	}}
	return result
}

func (l *Loop) persistConnectionEvents(ctx context.Context) {
	if l.eventStore == nil {
		return
	}
	sessionID := l.driver.snapshot.SessionID
	for _, evt := range l.driver.ConnectionEvents() {
		if evt.Seq <= l.persistedSeq {
			continue
		}
		record := storage.ConnectionEventRecord{SessionID: sessionID, Event: evt}
		if err := l.eventStore.AppendConnectionEvent(ctx, record); err != nil {
			l.log.WithError(err).Warn("persist connection event")
			return
		}
		l.persistedSeq = evt.Seq
	}
}

func (l *Loop) emit(ctx context.Context, evt storage.TelemetryEvent) {
	if err := l.emitter.Emit(ctx, evt); err != nil {
		l.log.WithError(err).Warn("emit telemetry")
	}
}
