package state

import "github.com/nearplay/duelsync/internal/battle/card"

// StorySegment is one step of the battle narrative, produced incrementally
// as resolution plays out.
type StorySegment struct {
	// Text is the narrative line for this step.
	Text string
	// Actor is the side acting in this step.
	Actor Side
	// Damage optionally records damage dealt in this step.
	Damage *int
}

// BattleResult is the final outcome once resolution ends.
type BattleResult struct {
	// IsDraw reports whether neither side won.
	IsDraw bool
	// Winner is the winning side. Unspecified when IsDraw is true.
	Winner Side
	// LocalName and OpponentName are the display names at resolution time.
	LocalName    string
	OpponentName string
	// LocalHealth and OpponentHealth are the final health values.
	LocalHealth    int
	OpponentHealth int
	// Narrative is the closing narrative text.
	Narrative string
	// WonCard optionally references the card the winner takes.
	WonCard *card.BattleCard
}

// BattleState is the execution sub-state present once battle resolution
// starts: the ordered story segments plus the optional final result.
type BattleState struct {
	StorySegments []StorySegment
	Result        *BattleResult
}

// Clone returns a deep copy, or nil for nil.
func (b *BattleState) Clone() *BattleState {
	return b.clone()
}

func (b *BattleState) clone() *BattleState {
	if b == nil {
		return nil
	}
	out := &BattleState{}
	if b.StorySegments != nil {
		out.StorySegments = make([]StorySegment, len(b.StorySegments))
		for i, seg := range b.StorySegments {
			out.StorySegments[i] = seg.clone()
		}
	}
	if b.Result != nil {
		r := b.Result.clone()
		out.Result = &r
	}
	return out
}

func (s StorySegment) clone() StorySegment {
	out := s
	if s.Damage != nil {
		d := *s.Damage
		out.Damage = &d
	}
	return out
}

func (r BattleResult) clone() BattleResult {
	out := r
	if r.WonCard != nil {
		c := *r.WonCard
		out.WonCard = &c
	}
	return out
}

// Flip returns the battle sub-state as seen from the other device: actor
// tags invert, the winner inverts, and the name/health pairs swap.
func (b *BattleState) Flip() *BattleState {
	if b == nil {
		return nil
	}
	out := b.clone()
	for i := range out.StorySegments {
		out.StorySegments[i].Actor = out.StorySegments[i].Actor.Flip()
	}
	if out.Result != nil {
		flipped := out.Result.Flip()
		out.Result = &flipped
	}
	return out
}

// Flip returns the result as seen from the other device.
func (r BattleResult) Flip() BattleResult {
	out := r.clone()
	out.Winner = out.Winner.Flip()
	out.LocalName, out.OpponentName = out.OpponentName, out.LocalName
	out.LocalHealth, out.OpponentHealth = out.OpponentHealth, out.LocalHealth
	return out
}

// Equal reports whether two battle sub-states carry the same values.
func (b *BattleState) Equal(other *BattleState) bool {
	if (b == nil) != (other == nil) {
		return false
	}
	if b == nil {
		return true
	}
	if len(b.StorySegments) != len(other.StorySegments) {
		return false
	}
	for i, seg := range b.StorySegments {
		if !seg.Equal(other.StorySegments[i]) {
			return false
		}
	}
	if (b.Result == nil) != (other.Result == nil) {
		return false
	}
	if b.Result != nil && !b.Result.Equal(*other.Result) {
		return false
	}
	return true
}

// Equal reports whether two story segments carry the same values.
func (s StorySegment) Equal(other StorySegment) bool {
	if s.Text != other.Text || s.Actor != other.Actor {
		return false
	}
	if (s.Damage == nil) != (other.Damage == nil) {
		return false
	}
	return s.Damage == nil || *s.Damage == *other.Damage
}

// Equal reports whether two results carry the same values.
func (r BattleResult) Equal(other BattleResult) bool {
	if r.IsDraw != other.IsDraw || r.Winner != other.Winner ||
		r.LocalName != other.LocalName || r.OpponentName != other.OpponentName ||
		r.LocalHealth != other.LocalHealth || r.OpponentHealth != other.OpponentHealth ||
		r.Narrative != other.Narrative {
		return false
	}
	if (r.WonCard == nil) != (other.WonCard == nil) {
		return false
	}
	return r.WonCard == nil || *r.WonCard == *other.WonCard
}
