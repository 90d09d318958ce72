package transfer

import "testing"

var allStatuses = []Status{StatusNotStarted, StatusPending, StatusInProgress, StatusComplete, StatusFailed}

func TestStatusNamesRoundTrip(t *testing.T) {
	for _, status := range allStatuses {
		parsed, ok := ParseStatus(status.String())
		if !ok {
			t.Fatalf("parse %q failed", status.String())
		}
		if parsed != status {
			t.Fatalf("parse %q = %v, want %v", status.String(), parsed, status)
		}
	}

	if _, ok := ParseStatus("BOGUS"); ok {
		t.Fatal("expected unknown name rejected")
	}
}

func TestCanTransitionTo(t *testing.T) {
	legal := map[[2]Status]bool{
		{StatusNotStarted, StatusPending}:  true,
		{StatusPending, StatusInProgress}:  true,
		{StatusPending, StatusFailed}:      true,
		{StatusInProgress, StatusComplete}: true,
		{StatusInProgress, StatusFailed}:   true,
		{StatusFailed, StatusPending}:      true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := legal[[2]Status{from, to}]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("CanTransitionTo(%v → %v) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestMissingImageTruthTable(t *testing.T) {
	for _, opponent := range allStatuses {
		for _, path := range []string{"", "/data/images/opponent.png"} {
			want := opponent == StatusComplete && path == ""
			if got := MissingImage(opponent, path); got != want {
				t.Errorf("MissingImage(%v, %q) = %v, want %v", opponent, path, got, want)
			}
		}
	}
}

func TestResendNeededTruthTable(t *testing.T) {
	for _, local := range allStatuses {
		for _, opponent := range allStatuses {
			want := local == StatusComplete && opponent != StatusComplete
			if got := ResendNeeded(local, opponent); got != want {
				t.Errorf("ResendNeeded(%v, %v) = %v, want %v", local, opponent, got, want)
			}
		}
	}
}
