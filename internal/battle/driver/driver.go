// Package driver owns the canonical session state for one device.
//
// A single driver instance holds the session snapshot and the connection
// lifecycle, and applies every transition sequentially. It enforces the
// preconditions the state types deliberately leave open (readying without a
// card, transitions after teardown) and rejects user transitions while a
// reconnection merge is pending, so nothing is silently discarded by the
// merge. The driver itself is not safe for concurrent use: Loop serializes
// all access through its event queue.
package driver

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nearplay/duelsync/internal/battle/card"
	"github.com/nearplay/duelsync/internal/battle/merge"
	"github.com/nearplay/duelsync/internal/battle/state"
	"github.com/nearplay/duelsync/internal/battle/transfer"
	"github.com/nearplay/duelsync/internal/battle/wire"
	"github.com/nearplay/duelsync/internal/connection"
	apperrors "github.com/nearplay/duelsync/internal/platform/errors"
)

var (
	// ErrSyncInProgress indicates a reconnection merge is pending; the
	// transition must be retried after the merged state is adopted.
	ErrSyncInProgress = apperrors.New(apperrors.CodeSessionSyncInProgress, "state sync in progress")
	// ErrSessionTerminated indicates the session already reached a
	// terminal phase; a fresh session is required.
	ErrSessionTerminated = apperrors.New(apperrors.CodeSessionTerminated, "session is terminated")
	// ErrCardNotSelected indicates readiness was requested before a card
	// selection.
	ErrCardNotSelected = apperrors.New(apperrors.CodePlayerCardNotSelected, "card is not selected")
	// ErrAlreadyReady indicates the local player already readied up.
	ErrAlreadyReady = apperrors.New(apperrors.CodePlayerAlreadyReady, "player is already ready")
	// ErrInvalidTransition indicates the requested transition is not
	// permitted from the current state.
	ErrInvalidTransition = apperrors.New(apperrors.CodeSessionInvalidTransition, "transition is not permitted")
)

// Driver applies session transitions for one device and reacts to the
// connection lifecycle.
type Driver struct {
	log      *logrus.Logger
	isHost   bool
	now      func() time.Time
	tracker  *connection.Tracker
	snapshot state.Snapshot
	syncing  bool
}

// Option configures a Driver.
type Option func(*Driver)

// WithClock injects the time source. Nil keeps time.Now.
func WithClock(clock func() time.Time) Option {
	return func(d *Driver) {
		if clock != nil {
			d.now = clock
		}
	}
}

// WithLogger injects the logger. Nil keeps the default.
func WithLogger(log *logrus.Logger) Option {
	return func(d *Driver) {
		if log != nil {
			d.log = log
		}
	}
}

// New creates a driver around the initial snapshot. Host designation is
// fixed at session creation and does not change across reconnections.
func New(initial state.Snapshot, isHost bool, opts ...Option) *Driver {
	d := &Driver{
		log:      logrus.New(),
		isHost:   isHost,
		now:      time.Now,
		snapshot: initial,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.tracker = connection.NewTracker(d.now)
	return d
}

// Snapshot returns the current canonical snapshot.
func (d *Driver) Snapshot() state.Snapshot {
	return d.snapshot.Clone()
}

// IsHost reports whether this device is the merge-authoritative side.
func (d *Driver) IsHost() bool {
	return d.isHost
}

// Syncing reports whether a reconnection merge is pending. While true,
// user-triggered transitions are rejected with ErrSyncInProgress.
func (d *Driver) Syncing() bool {
	return d.syncing
}

// Lifecycle returns the current connection lifecycle value.
func (d *Driver) Lifecycle() connection.Lifecycle {
	return d.tracker.Current()
}

// ConnectionEvents returns the append-only connection event log.
func (d *Driver) ConnectionEvents() []connection.Event {
	return d.tracker.Events()
}

// guard rejects transitions the session cannot accept in its current state.
func (d *Driver) guard() error {
	if d.snapshot.Phase.IsTerminal() {
		return ErrSessionTerminated
	}
	if d.syncing {
		return ErrSyncInProgress
	}
	return nil
}

// adopt installs a new snapshot after re-deriving the UI-facing flags.
func (d *Driver) adopt(s state.Snapshot) state.Snapshot {
	canClick := s.Phase == state.PhaseCardSelection &&
		s.LocalPlayer.HasSelectedCard && !s.LocalPlayer.IsReady
	waiting := s.LocalPlayer.IsReady && !s.OpponentPlayer.IsReady
	if canClick != s.CanClickReady || waiting != s.WaitingForOpponentReady {
		s = s.WithUIFlags(canClick, waiting)
	}
	d.snapshot = s
	return d.snapshot
}

// OpponentJoined moves the session out of the waiting phase once the peer
// is paired.
func (d *Driver) OpponentJoined() (state.Snapshot, error) {
	if err := d.guard(); err != nil {
		return d.snapshot, err
	}
	if d.snapshot.Phase != state.PhaseWaitingForOpponent {
		return d.snapshot, ErrInvalidTransition
	}
	return d.adopt(d.snapshot.WithPhase(state.PhaseCardSelection)), nil
}

// SelectCard records the local player's card selection. Re-selection is
// allowed until the player readies up.
func (d *Driver) SelectCard(selected card.BattleCard, full *card.Card) (state.Snapshot, error) {
	if err := d.guard(); err != nil {
		return d.snapshot, err
	}
	if d.snapshot.LocalPlayer.IsReady {
		return d.snapshot, ErrInvalidTransition
	}
	return d.adopt(d.snapshot.WithCardSelected(state.SideLocal, selected, full)), nil
}

// SetReady marks the local player ready. Once both players are ready the
// session advances to the ready-sync phase.
func (d *Driver) SetReady() (state.Snapshot, error) {
	if err := d.guard(); err != nil {
		return d.snapshot, err
	}
	if !d.snapshot.LocalPlayer.HasSelectedCard {
		return d.snapshot, ErrCardNotSelected
	}
	if d.snapshot.LocalPlayer.IsReady {
		return d.snapshot, ErrAlreadyReady
	}
	next := d.snapshot.WithReady(state.SideLocal)
	if next.OpponentPlayer.IsReady {
		next = next.WithPhase(state.PhaseReadySync)
	}
	return d.adopt(next), nil
}

// ReportImageTransfer records image-transfer progress for a side, rejecting
// status jumps the transfer machine does not permit.
func (d *Driver) ReportImageTransfer(side state.Side, status transfer.Status) (state.Snapshot, error) {
	if err := d.guard(); err != nil {
		return d.snapshot, err
	}
	current := d.snapshot.LocalPlayer.ImageTransferStatus
	if side == state.SideOpponent {
		current = d.snapshot.OpponentPlayer.ImageTransferStatus
	}
	if !current.CanTransitionTo(status) {
		return d.snapshot, apperrors.New(apperrors.CodeTransferInvalidStatus,
			"image transfer cannot move from "+current.String()+" to "+status.String())
	}
	return d.adopt(d.snapshot.WithImageTransferStatus(side, status)), nil
}

// ReportImageSaved records where this device durably saved a side's image.
func (d *Driver) ReportImageSaved(side state.Side, path, hash string) (state.Snapshot, error) {
	if err := d.guard(); err != nil {
		return d.snapshot, err
	}
	return d.adopt(d.snapshot.WithImageSaved(side, path, hash)), nil
}

// StartReveal begins the reveal sequence.
func (d *Driver) StartReveal(initiatedBy state.Side) (state.Snapshot, error) {
	if err := d.guard(); err != nil {
		return d.snapshot, err
	}
	if d.snapshot.Phase != state.PhaseReadySync {
		return d.snapshot, ErrInvalidTransition
	}
	return d.adopt(d.snapshot.WithRevealStarted(initiatedBy, d.now())), nil
}

// RevealCards flips the monotonic cards-revealed flag.
func (d *Driver) RevealCards() (state.Snapshot, error) {
	if err := d.guard(); err != nil {
		return d.snapshot, err
	}
	if d.snapshot.Reveal == nil {
		return d.snapshot, ErrInvalidTransition
	}
	return d.adopt(d.snapshot.WithCardsRevealed()), nil
}

// RevealStats flips the monotonic stats-revealed flag.
func (d *Driver) RevealStats() (state.Snapshot, error) {
	if err := d.guard(); err != nil {
		return d.snapshot, err
	}
	if d.snapshot.Reveal == nil {
		return d.snapshot, ErrInvalidTransition
	}
	return d.adopt(d.snapshot.WithStatsRevealed()), nil
}

// AppendStorySegment records one step of local battle resolution.
func (d *Driver) AppendStorySegment(segment state.StorySegment) (state.Snapshot, error) {
	if err := d.guard(); err != nil {
		return d.snapshot, err
	}
	return d.adopt(d.snapshot.WithStorySegment(segment)), nil
}

// CompleteBattle records the final local battle outcome.
func (d *Driver) CompleteBattle(result state.BattleResult) (state.Snapshot, error) {
	if err := d.guard(); err != nil {
		return d.snapshot, err
	}
	return d.adopt(d.snapshot.WithBattleResult(result)), nil
}

// Terminate tears the session down. The transition dominates any phase and
// the session cannot be resumed under the same id.
func (d *Driver) Terminate() state.Snapshot {
	if d.snapshot.Phase == state.PhaseDisconnected {
		return d.snapshot
	}
	d.syncing = false
	d.snapshot = d.snapshot.WithDisconnected()
	return d.snapshot
}

// HandlePeerMessage applies one decoded peer message. State-sync frames
// resolve a pending reconnection merge; every other kind is rejected while
// the merge is pending so it cannot race the critical section.
func (d *Driver) HandlePeerMessage(msg wire.Message) (state.Snapshot, error) {
	if msg.Type == wire.MessageStateSync {
		if msg.State == nil {
			return d.snapshot, wire.ErrMalformedPayload
		}
		return d.HandleReconnection(*msg.State)
	}
	if err := d.guard(); err != nil {
		return d.snapshot, err
	}

	switch msg.Type {
	case wire.MessageCardSelected:
		if msg.CardSelected == nil {
			return d.snapshot, wire.ErrMalformedPayload
		}
		next := d.snapshot
		if next.Phase == state.PhaseWaitingForOpponent {
			next = next.WithPhase(state.PhaseCardSelection)
		}
		next = next.WithCardSelected(state.SideOpponent, msg.CardSelected.Card, msg.CardSelected.FullCard)
		if !next.OpponentPlayer.DataReceivedFromOpponent {
			next = next.WithOpponentDataReceived()
		}
		return d.adopt(next), nil

	case wire.MessageReady:
		if msg.Ready == nil {
			return d.snapshot, wire.ErrMalformedPayload
		}
		next := d.snapshot.WithReady(state.SideOpponent)
		if next.LocalPlayer.IsReady {
			next = next.WithPhase(state.PhaseReadySync)
		}
		return d.adopt(next), nil

	case wire.MessageHealthUpdate:
		if msg.HealthUpdate == nil {
			return d.snapshot, wire.ErrMalformedPayload
		}
		opp := d.snapshot.OpponentPlayer.Card
		if opp == nil {
			return d.snapshot, ErrInvalidTransition
		}
		if opp.CurrentHealth == msg.HealthUpdate.CurrentHealth {
			// Nothing would change; a version bump alone is not a
			// transition.
			return d.snapshot, nil
		}
		return d.adopt(d.snapshot.WithCardHealth(state.SideOpponent, msg.HealthUpdate.CurrentHealth)), nil

	case wire.MessageBattleOutcome:
		if msg.BattleOutcome == nil {
			return d.snapshot, wire.ErrMalformedPayload
		}
		// The result arrives in the sender's perspective.
		return d.adopt(d.snapshot.WithBattleResult(msg.BattleOutcome.Result.Flip())), nil

	case wire.MessageDisconnect:
		if msg.Disconnect == nil {
			return d.snapshot, wire.ErrMalformedPayload
		}
		d.log.WithField("reason", msg.Disconnect.Reason).Info("peer announced disconnect")
		return d.Terminate(), nil

	default:
		return d.snapshot, wire.ErrUnknownMessage
	}
}

// HandleReconnection folds the peer's freshly-exchanged snapshot into the
// local one and adopts the merged result, closing the pending-merge window.
func (d *Driver) HandleReconnection(peer state.Snapshot) (state.Snapshot, error) {
	if d.snapshot.Phase.IsTerminal() {
		return d.snapshot, ErrSessionTerminated
	}
	merged := merge.Merge(d.snapshot, peer, d.isHost)
	d.snapshot = merged
	d.syncing = false
	d.log.WithFields(logrus.Fields{
		"session_id":     merged.SessionID,
		"merged_version": merged.Version,
		"phase":          merged.Phase.String(),
		"is_host":        d.isHost,
	}).Info("reconnection merge adopted")
	return d.snapshot, nil
}

// ReportConnected classifies a transport connect callback. When the tracker
// flags a silent reconnection, the driver enters the pending-merge window:
// user transitions are rejected until HandleReconnection adopts the merged
// state.
func (d *Driver) ReportConnected(endpointID string) connection.Lifecycle {
	lifecycle := d.tracker.ConnectSucceeded(endpointID)
	if lifecycle.IsReconnection() && !d.snapshot.Phase.IsTerminal() {
		d.syncing = true
	}
	return lifecycle
}

// ReportDisconnected classifies a transport disconnect callback. The
// session state is left untouched: a silent reconnection may still revive
// the pairing, and giving up is Terminate's call.
func (d *Driver) ReportDisconnected(endpointID, reason string) connection.Lifecycle {
	return d.tracker.Disconnected(endpointID, reason)
}

// ReportDiscoveryStarted classifies the start of device discovery.
func (d *Driver) ReportDiscoveryStarted() connection.Lifecycle {
	return d.tracker.DiscoveryStarted()
}

// ReportEndpointFound classifies a discovered endpoint.
func (d *Driver) ReportEndpointFound(endpointID string) connection.Lifecycle {
	return d.tracker.EndpointFound(endpointID)
}

// ReportConnectStarted classifies an outgoing connection attempt.
func (d *Driver) ReportConnectStarted(endpointID string) connection.Lifecycle {
	return d.tracker.ConnectStarted(endpointID)
}

// ReportConnectFailed classifies a failed connection attempt.
func (d *Driver) ReportConnectFailed(endpointID, reason string) connection.Lifecycle {
	return d.tracker.ConnectFailed(endpointID, reason)
}
