package state

import (
	"errors"
	"testing"
	"time"

	"github.com/nearplay/duelsync/internal/battle/card"
	"github.com/nearplay/duelsync/internal/battle/transfer"
)

func testSnapshot(t *testing.T) Snapshot {
	t.Helper()
	s, err := New("session-1")
	if err != nil {
		t.Fatalf("new snapshot: %v", err)
	}
	return s
}

func testBattleCard() card.BattleCard {
	return card.BattleCard{ID: "card-1", Name: "Emberling", Attack: 4, Health: 6, CurrentHealth: 6}
}

func TestNewSnapshotStartsWaitingAtVersionZero(t *testing.T) {
	s := testSnapshot(t)
	if s.Version != 0 {
		t.Fatalf("version = %d, want 0", s.Version)
	}
	if s.Phase != PhaseWaitingForOpponent {
		t.Fatalf("phase = %v, want waiting for opponent", s.Phase)
	}

	if _, err := New("   "); !errors.Is(err, ErrEmptySessionID) {
		t.Fatalf("err = %v, want empty session id", err)
	}
}

func TestCreateGeneratesSessionID(t *testing.T) {
	s, err := Create(nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.SessionID == "" {
		t.Fatal("expected generated session id")
	}

	if _, err := Create(func() (string, error) { return "", errors.New("boom") }); err == nil {
		t.Fatal("expected generator error surfaced")
	}
}

// Every transition must bump the version by exactly one and change at least
// one other field; the two invariants hold in both directions.
func TestTransitionsChangeExactlyVersionPlusFields(t *testing.T) {
	damage := 3
	startedAt := time.Date(2026, time.August, 30, 9, 0, 0, 0, time.UTC)
	base := testSnapshot(t).
		WithCardSelected(SideLocal, testBattleCard(), nil).
		WithRevealStarted(SideLocal, startedAt)

	transitions := []struct {
		name  string
		apply func(Snapshot) Snapshot
	}{
		{"phase", func(s Snapshot) Snapshot { return s.WithPhase(PhaseCardSelection) }},
		{"card selected", func(s Snapshot) Snapshot { return s.WithCardSelected(SideOpponent, testBattleCard(), nil) }},
		{"ready", func(s Snapshot) Snapshot { return s.WithReady(SideLocal) }},
		{"opponent data", func(s Snapshot) Snapshot { return s.WithOpponentDataReceived() }},
		{"card health", func(s Snapshot) Snapshot { return s.WithCardHealth(SideLocal, 2) }},
		{"transfer status", func(s Snapshot) Snapshot { return s.WithImageTransferStatus(SideLocal, transfer.StatusPending) }},
		{"image saved", func(s Snapshot) Snapshot { return s.WithImageSaved(SideOpponent, "/tmp/opp.png", "abc123") }},
		{"reveal started", func(s Snapshot) Snapshot { return s.WithRevealStarted(SideOpponent, startedAt) }},
		{"cards revealed", func(s Snapshot) Snapshot { return s.WithCardsRevealed() }},
		{"stats revealed", func(s Snapshot) Snapshot { return s.WithStatsRevealed() }},
		{"story segment", func(s Snapshot) Snapshot {
			return s.WithStorySegment(StorySegment{Text: "strike", Actor: SideLocal, Damage: &damage})
		}},
		{"battle result", func(s Snapshot) Snapshot {
			return s.WithBattleResult(BattleResult{Winner: SideLocal, LocalHealth: 1})
		}},
		{"ui flags", func(s Snapshot) Snapshot { return s.WithUIFlags(true, true) }},
		{"disconnected", func(s Snapshot) Snapshot { return s.WithDisconnected() }},
	}

	for _, tc := range transitions {
		next := tc.apply(base)
		if next.Version != base.Version+1 {
			t.Errorf("%s: version = %d, want %d", tc.name, next.Version, base.Version+1)
		}
		// Normalize the version; something else must differ.
		normalized := next.Clone()
		normalized.Version = base.Version
		if normalized.Equal(base) {
			t.Errorf("%s: version bumped without any field change", tc.name)
		}
	}
}

func TestWithDisconnectedDominatesEveryPhase(t *testing.T) {
	phases := []Phase{
		PhaseWaitingForOpponent, PhaseCardSelection, PhaseReadySync,
		PhaseRevealing, PhaseBattleAnimating, PhaseBattleComplete,
	}
	for _, phase := range phases {
		s := testSnapshot(t).WithPhase(phase).WithDisconnected()
		if s.Phase != PhaseDisconnected {
			t.Errorf("from %v: phase = %v, want disconnected", phase, s.Phase)
		}
	}
}

func TestWithStorySegmentCreatesBattleSubState(t *testing.T) {
	s := testSnapshot(t).WithStorySegment(StorySegment{Text: "opening", Actor: SideLocal})
	if s.Battle == nil {
		t.Fatal("expected battle sub-state created")
	}
	if s.Phase != PhaseBattleAnimating {
		t.Fatalf("phase = %v, want battle animating", s.Phase)
	}

	s = s.WithStorySegment(StorySegment{Text: "counter", Actor: SideOpponent})
	if len(s.Battle.StorySegments) != 2 {
		t.Fatalf("segments = %d, want 2", len(s.Battle.StorySegments))
	}
	if s.Phase != PhaseBattleAnimating {
		t.Fatalf("phase = %v, want battle animating", s.Phase)
	}

	s = s.WithBattleResult(BattleResult{IsDraw: true})
	if s.Phase != PhaseBattleComplete {
		t.Fatalf("phase = %v, want battle complete", s.Phase)
	}
}

func TestCloneIsDeep(t *testing.T) {
	damage := 2
	s := testSnapshot(t).
		WithCardSelected(SideLocal, testBattleCard(), &card.Card{ID: "card-1", Name: "Emberling"}).
		WithRevealStarted(SideLocal, time.Now()).
		WithStorySegment(StorySegment{Text: "strike", Actor: SideLocal, Damage: &damage})

	clone := s.Clone()
	clone.LocalPlayer.Card.CurrentHealth = 0
	clone.Reveal.CardsRevealed = true
	clone.Battle.StorySegments[0].Text = "mutated"
	*clone.Battle.StorySegments[0].Damage = 99

	if s.LocalPlayer.Card.CurrentHealth == 0 {
		t.Fatal("clone shares player card")
	}
	if s.Reveal.CardsRevealed {
		t.Fatal("clone shares reveal sub-state")
	}
	if s.Battle.StorySegments[0].Text == "mutated" {
		t.Fatal("clone shares story segments")
	}
	if *s.Battle.StorySegments[0].Damage == 99 {
		t.Fatal("clone shares damage pointer")
	}
}

func TestMissingImagePredicate(t *testing.T) {
	s := testSnapshot(t).WithImageTransferStatus(SideOpponent, transfer.StatusComplete)
	if !s.HasMissingOpponentImage() {
		t.Fatal("complete status with no saved path must flag a missing image")
	}

	s = s.WithImageSaved(SideOpponent, "/data/opp.png", "")
	if s.HasMissingOpponentImage() {
		t.Fatal("saved path must clear the missing-image flag")
	}
}

func TestNeedsImageResendPredicate(t *testing.T) {
	s := testSnapshot(t).WithImageTransferStatus(SideLocal, transfer.StatusComplete)
	if !s.NeedsImageResend() {
		t.Fatal("local complete with opponent not complete must need a resend")
	}

	s = s.WithImageTransferStatus(SideOpponent, transfer.StatusComplete)
	if s.NeedsImageResend() {
		t.Fatal("both complete must not need a resend")
	}
}
