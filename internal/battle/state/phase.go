package state

// Phase describes the coarse-grained stage of a battle session.
type Phase int

const (
	// PhaseWaitingForOpponent is the initial phase while pairing completes.
	PhaseWaitingForOpponent Phase = iota
	// PhaseCardSelection indicates both players are picking cards.
	PhaseCardSelection
	// PhaseReadySync indicates both players confirmed readiness.
	PhaseReadySync
	// PhaseRevealing indicates the reveal sequence is running.
	PhaseRevealing
	// PhaseBattleAnimating indicates battle resolution is playing out.
	PhaseBattleAnimating
	// PhaseBattleComplete indicates the battle finished. Terminal.
	PhaseBattleComplete
	// PhaseDisconnected indicates the session lost its peer. Terminal for
	// this session instance; a new session id is required to resume.
	PhaseDisconnected
)

// String returns the stable wire name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseWaitingForOpponent:
		return "WAITING_FOR_OPPONENT"
	case PhaseCardSelection:
		return "CARD_SELECTION"
	case PhaseReadySync:
		return "READY_SYNC"
	case PhaseRevealing:
		return "REVEALING"
	case PhaseBattleAnimating:
		return "BATTLE_ANIMATING"
	case PhaseBattleComplete:
		return "BATTLE_COMPLETE"
	case PhaseDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// ParsePhase maps a stable wire name back to a phase.
func ParsePhase(name string) (Phase, bool) {
	switch name {
	case "WAITING_FOR_OPPONENT":
		return PhaseWaitingForOpponent, true
	case "CARD_SELECTION":
		return PhaseCardSelection, true
	case "READY_SYNC":
		return PhaseReadySync, true
	case "REVEALING":
		return PhaseRevealing, true
	case "BATTLE_ANIMATING":
		return PhaseBattleAnimating, true
	case "BATTLE_COMPLETE":
		return PhaseBattleComplete, true
	case "DISCONNECTED":
		return PhaseDisconnected, true
	default:
		return PhaseWaitingForOpponent, false
	}
}

// IsTerminal reports whether the phase ends the session instance.
func (p Phase) IsTerminal() bool {
	return p == PhaseBattleComplete || p == PhaseDisconnected
}

// MoreAdvancedThan reports whether p is strictly further along the forward
// progression than other. Disconnected never counts as advanced: a replica
// that died cannot pull a live replica into termination during a merge.
func (p Phase) MoreAdvancedThan(other Phase) bool {
	return p.rank() > other.rank()
}

func (p Phase) rank() int {
	if p == PhaseDisconnected {
		return -1
	}
	return int(p)
}
