// Package transfer tracks the health of the out-of-band card-image payload.
//
// The image travels over a side channel independent of the state-sync
// channel. Its status lives inside the shared session state so both peers
// can reason about it, but the saved file path stays strictly local to the
// device that wrote it. The predicates in this package are pure functions of
// those fields, so resilience decisions are testable without any I/O.
package transfer

// Status describes the per-player progress of the image transfer.
type Status int

const (
	// StatusNotStarted indicates no transfer has been initiated.
	StatusNotStarted Status = iota
	// StatusPending indicates a transfer has been requested but no bytes moved yet.
	StatusPending
	// StatusInProgress indicates payload bytes are flowing.
	StatusInProgress
	// StatusComplete indicates the sender finished delivering the payload.
	StatusComplete
	// StatusFailed indicates the transfer was abandoned and needs a retry.
	StatusFailed
)

// String returns the stable wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "NOT_STARTED"
	case StatusPending:
		return "PENDING"
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusComplete:
		return "COMPLETE"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ParseStatus maps a stable wire name back to a status.
func ParseStatus(name string) (Status, bool) {
	switch name {
	case "NOT_STARTED":
		return StatusNotStarted, true
	case "PENDING":
		return StatusPending, true
	case "IN_PROGRESS":
		return StatusInProgress, true
	case "COMPLETE":
		return StatusComplete, true
	case "FAILED":
		return StatusFailed, true
	default:
		return StatusNotStarted, false
	}
}

// CanTransitionTo reports whether moving from s to next is a legal step.
// The forward path is NOT_STARTED → PENDING → IN_PROGRESS → COMPLETE.
// FAILED is reachable from PENDING or IN_PROGRESS, and a failed transfer may
// be retried back to PENDING.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusNotStarted:
		return next == StatusPending
	case StatusPending:
		return next == StatusInProgress || next == StatusFailed
	case StatusInProgress:
		return next == StatusComplete || next == StatusFailed
	case StatusFailed:
		return next == StatusPending
	default:
		return false
	}
}

// MissingImage reports the signature of "the peer believes the transfer
// finished but this device never durably saved the payload": the opponent's
// status is COMPLETE while the locally saved file path is empty. It must be
// evaluated after every state merge, since a reconnection is exactly when the
// payload can get lost.
func MissingImage(opponentStatus Status, localSavedPath string) bool {
	return opponentStatus == StatusComplete && localSavedPath == ""
}

// ResendNeeded reports the signature of "I finished sending but the peer has
// not reflected completion": the local status is COMPLETE while the
// opponent's is anything else. Drivers use it to decide whether to
// proactively retransmit.
func ResendNeeded(localStatus, opponentStatus Status) bool {
	return localStatus == StatusComplete && opponentStatus != StatusComplete
}
