package state

import (
	"github.com/nearplay/duelsync/internal/battle/card"
	"github.com/nearplay/duelsync/internal/battle/transfer"
)

// PlayerState is the per-player portion of a session snapshot. The local and
// opponent records are structurally identical; which is which is purely
// positional.
type PlayerState struct {
	// HasSelectedCard reports whether the player committed to a card.
	HasSelectedCard bool
	// Card is the battle-ready projection of the selected card.
	Card *card.BattleCard
	// FullCard is the opaque full record, carried only for the
	// image-transfer handshake.
	FullCard *card.Card
	// ImageTransferStatus tracks the out-of-band image payload.
	ImageTransferStatus transfer.Status
	// ImageFilePath is where this device saved the image. It denotes a
	// local resource and is never synchronized across devices.
	ImageFilePath string
	// ImageHash optionally verifies the received payload.
	ImageHash string
	// IsReady reports whether the player confirmed readiness.
	IsReady bool
	// DataReceivedFromOpponent tracks whether the opponent's authoritative
	// data arrived on this device.
	DataReceivedFromOpponent bool
}

// Clone returns a deep copy of the player record.
func (p PlayerState) Clone() PlayerState {
	return p.clone()
}

func (p PlayerState) clone() PlayerState {
	out := p
	if p.Card != nil {
		c := *p.Card
		out.Card = &c
	}
	if p.FullCard != nil {
		fc := *p.FullCard
		out.FullCard = &fc
	}
	return out
}

// Equal reports whether two player records carry the same values.
func (p PlayerState) Equal(other PlayerState) bool {
	if p.HasSelectedCard != other.HasSelectedCard ||
		p.ImageTransferStatus != other.ImageTransferStatus ||
		p.ImageFilePath != other.ImageFilePath ||
		p.ImageHash != other.ImageHash ||
		p.IsReady != other.IsReady ||
		p.DataReceivedFromOpponent != other.DataReceivedFromOpponent {
		return false
	}
	if (p.Card == nil) != (other.Card == nil) {
		return false
	}
	if p.Card != nil && *p.Card != *other.Card {
		return false
	}
	if (p.FullCard == nil) != (other.FullCard == nil) {
		return false
	}
	if p.FullCard != nil && *p.FullCard != *other.FullCard {
		return false
	}
	return true
}
