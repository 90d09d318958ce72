package state

import (
	"fmt"
	"strings"
	"time"

	"github.com/nearplay/duelsync/internal/battle/card"
	"github.com/nearplay/duelsync/internal/battle/transfer"
	apperrors "github.com/nearplay/duelsync/internal/platform/errors"
	"github.com/nearplay/duelsync/internal/platform/id"
)

// ErrEmptySessionID indicates a missing session ID.
var ErrEmptySessionID = apperrors.New(apperrors.CodeSessionEmptyID, "session id is required")

// Snapshot is the full session state at one version. It is a transient,
// in-memory, replicated value: never persisted, destroyed with the session.
type Snapshot struct {
	// SessionID is generated once per session and stays stable across
	// reconnections on the device that generated it.
	SessionID string
	// Version increases by exactly one per transition, and to
	// max(inputs)+1 per merge.
	Version uint64
	// Phase is the coarse-grained session stage.
	Phase Phase
	// LocalPlayer is this device's own player record.
	LocalPlayer PlayerState
	// OpponentPlayer mirrors the peer's self-reported record.
	OpponentPlayer PlayerState
	// Reveal is present only during the reveal phase.
	Reveal *RevealState
	// Battle is present once battle resolution starts.
	Battle *BattleState
	// CanClickReady and WaitingForOpponentReady are derived, UI-facing
	// values. They are kept in state for determinism but carry no
	// authoritative game logic.
	CanClickReady           bool
	WaitingForOpponentReady bool
}

// New creates the initial snapshot for the given session id: version 0,
// waiting for the opponent.
func New(sessionID string) (Snapshot, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Snapshot{}, ErrEmptySessionID
	}
	return Snapshot{
		SessionID: sessionID,
		Version:   0,
		Phase:     PhaseWaitingForOpponent,
	}, nil
}

// Create generates a fresh session id and returns the initial snapshot.
func Create(idGenerator func() (string, error)) (Snapshot, error) {
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	sessionID, err := idGenerator()
	if err != nil {
		return Snapshot{}, fmt.Errorf("generate session id: %w", err)
	}
	return New(sessionID)
}

// Clone returns a deep copy at the same version.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.LocalPlayer = s.LocalPlayer.clone()
	out.OpponentPlayer = s.OpponentPlayer.clone()
	if s.Reveal != nil {
		r := *s.Reveal
		out.Reveal = &r
	}
	out.Battle = s.Battle.clone()
	return out
}

// next is the shared transition step: deep copy plus version increment.
// Every With method must change at least one other field on the copy.
func (s Snapshot) next() Snapshot {
	out := s.Clone()
	out.Version++
	return out
}

func (s *Snapshot) player(side Side) *PlayerState {
	if side == SideOpponent {
		return &s.OpponentPlayer
	}
	return &s.LocalPlayer
}

// WithPhase moves the session to the given phase.
func (s Snapshot) WithPhase(phase Phase) Snapshot {
	out := s.next()
	out.Phase = phase
	return out
}

// WithCardSelected records a card selection for the given side. The full
// record is optional; it is only needed for the image-transfer handshake.
func (s Snapshot) WithCardSelected(side Side, selected card.BattleCard, full *card.Card) Snapshot {
	out := s.next()
	p := out.player(side)
	p.HasSelectedCard = true
	c := selected
	p.Card = &c
	if full != nil {
		fc := *full
		p.FullCard = &fc
	}
	return out
}

// WithReady marks the given side's readiness. Moving the phase to ReadySync
// once both flags are true is the driver's call, not a side effect here.
func (s Snapshot) WithReady(side Side) Snapshot {
	out := s.next()
	out.player(side).IsReady = true
	return out
}

// WithOpponentDataReceived records that the opponent's authoritative data
// arrived on this device.
func (s Snapshot) WithOpponentDataReceived() Snapshot {
	out := s.next()
	out.OpponentPlayer.DataReceivedFromOpponent = true
	return out
}

// WithCardHealth updates the current health on the given side's card. The
// side must hold a card and the value must differ from the current one;
// the driver enforces both before invoking it.
func (s Snapshot) WithCardHealth(side Side, currentHealth int) Snapshot {
	out := s.next()
	out.player(side).Card.CurrentHealth = currentHealth
	return out
}

// WithImageTransferStatus records image-transfer progress for a side.
func (s Snapshot) WithImageTransferStatus(side Side, status transfer.Status) Snapshot {
	out := s.next()
	out.player(side).ImageTransferStatus = status
	return out
}

// WithImageSaved records where this device durably saved a side's image.
// The path is local to this device and never crosses the wire.
func (s Snapshot) WithImageSaved(side Side, path, hash string) Snapshot {
	out := s.next()
	p := out.player(side)
	p.ImageFilePath = path
	p.ImageHash = hash
	return out
}

// WithRevealStarted begins a new reveal sequence and moves the phase to
// Revealing.
func (s Snapshot) WithRevealStarted(initiatedBy Side, startedAt time.Time) Snapshot {
	out := s.next()
	out.Phase = PhaseRevealing
	out.Reveal = &RevealState{
		InitiatedBy: initiatedBy,
		StartedAt:   startedAt.UTC(),
	}
	return out
}

// WithCardsRevealed flips the monotonic cards-revealed flag.
func (s Snapshot) WithCardsRevealed() Snapshot {
	out := s.next()
	if out.Reveal != nil {
		out.Reveal.CardsRevealed = true
	}
	return out
}

// WithStatsRevealed flips the monotonic stats-revealed flag.
func (s Snapshot) WithStatsRevealed() Snapshot {
	out := s.next()
	if out.Reveal != nil {
		out.Reveal.StatsRevealed = true
	}
	return out
}

// WithStorySegment appends one battle narrative step, creating the battle
// sub-state and moving the phase to BattleAnimating on the first segment.
func (s Snapshot) WithStorySegment(segment StorySegment) Snapshot {
	out := s.next()
	if out.Battle == nil {
		out.Battle = &BattleState{}
		out.Phase = PhaseBattleAnimating
	}
	out.Battle.StorySegments = append(out.Battle.StorySegments, segment.clone())
	return out
}

// WithBattleResult records the final outcome and completes the battle.
func (s Snapshot) WithBattleResult(result BattleResult) Snapshot {
	out := s.next()
	if out.Battle == nil {
		out.Battle = &BattleState{}
	}
	r := result.clone()
	out.Battle.Result = &r
	out.Phase = PhaseBattleComplete
	return out
}

// WithUIFlags sets the derived UI-facing booleans.
func (s Snapshot) WithUIFlags(canClickReady, waitingForOpponentReady bool) Snapshot {
	out := s.next()
	out.CanClickReady = canClickReady
	out.WaitingForOpponentReady = waitingForOpponentReady
	return out
}

// WithDisconnected forces the phase to Disconnected. This transition
// dominates: it applies regardless of the prior phase.
func (s Snapshot) WithDisconnected() Snapshot {
	out := s.next()
	out.Phase = PhaseDisconnected
	return out
}

// HasMissingOpponentImage reports that the peer believes the image transfer
// finished but this device never saved the payload. Evaluate after every
// merge.
func (s Snapshot) HasMissingOpponentImage() bool {
	return transfer.MissingImage(s.OpponentPlayer.ImageTransferStatus, s.OpponentPlayer.ImageFilePath)
}

// NeedsImageResend reports that this device finished sending but the peer
// has not reflected completion.
func (s Snapshot) NeedsImageResend() bool {
	return transfer.ResendNeeded(s.LocalPlayer.ImageTransferStatus, s.OpponentPlayer.ImageTransferStatus)
}

// Equal reports whether two snapshots carry the same values.
func (s Snapshot) Equal(other Snapshot) bool {
	if s.SessionID != other.SessionID ||
		s.Version != other.Version ||
		s.Phase != other.Phase ||
		s.CanClickReady != other.CanClickReady ||
		s.WaitingForOpponentReady != other.WaitingForOpponentReady {
		return false
	}
	if !s.LocalPlayer.Equal(other.LocalPlayer) || !s.OpponentPlayer.Equal(other.OpponentPlayer) {
		return false
	}
	if (s.Reveal == nil) != (other.Reveal == nil) {
		return false
	}
	if s.Reveal != nil && *s.Reveal != *other.Reveal {
		return false
	}
	return s.Battle.Equal(other.Battle)
}
