package state

import "time"

// RevealState is the transient sub-state present only during the reveal
// phase. Its booleans flip monotonically false to true and are never reset
// except by starting a new reveal.
type RevealState struct {
	// InitiatedBy records which side started the reveal.
	InitiatedBy Side
	// StartedAt records when the reveal began.
	StartedAt time.Time
	// CardsRevealed reports whether the card faces were shown.
	CardsRevealed bool
	// StatsRevealed reports whether the numeric stats were shown.
	StatsRevealed bool
}

// Flip returns the reveal as seen from the other device.
func (r RevealState) Flip() RevealState {
	out := r
	out.InitiatedBy = r.InitiatedBy.Flip()
	return out
}
