package wire

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nearplay/duelsync/internal/battle/card"
	"github.com/nearplay/duelsync/internal/battle/state"
	"github.com/nearplay/duelsync/internal/battle/transfer"
	apperrors "github.com/nearplay/duelsync/internal/platform/errors"
)

func baseSnapshot(t *testing.T) state.Snapshot {
	t.Helper()
	s, err := state.New("session-1")
	if err != nil {
		t.Fatalf("new snapshot: %v", err)
	}
	return s
}

func battleCard() card.BattleCard {
	return card.BattleCard{ID: "card-1", Name: "Emberling", Attack: 4, Health: 6, CurrentHealth: 6}
}

func fullCard() *card.Card {
	return &card.Card{ID: "card-1", Name: "Emberling", Attack: 4, Health: 6, Rarity: "RARE", ImageURL: "https://cards.example/1.png"}
}

// stripLocalPaths clears the fields that never cross the wire, so decoded
// snapshots can be compared with their source.
func stripLocalPaths(s state.Snapshot) state.Snapshot {
	out := s.Clone()
	out.LocalPlayer.ImageFilePath = ""
	out.OpponentPlayer.ImageFilePath = ""
	return out
}

func TestStateSyncRoundTrip(t *testing.T) {
	startedAt := time.Date(2026, time.August, 30, 9, 30, 0, 0, time.UTC)
	damage := 5

	// Every optional sub-state combination a session can reach.
	snapshots := map[string]state.Snapshot{
		"initial": baseSnapshot(t),
		"selection": baseSnapshot(t).
			WithPhase(state.PhaseCardSelection).
			WithCardSelected(state.SideLocal, battleCard(), fullCard()).
			WithImageTransferStatus(state.SideLocal, transfer.StatusPending),
		"reveal only": baseSnapshot(t).
			WithRevealStarted(state.SideOpponent, startedAt).
			WithCardsRevealed(),
		"battle without result": baseSnapshot(t).
			WithStorySegment(state.StorySegment{Text: "strike", Actor: state.SideLocal, Damage: &damage}).
			WithStorySegment(state.StorySegment{Text: "stagger", Actor: state.SideOpponent}),
		"battle with result": baseSnapshot(t).
			WithRevealStarted(state.SideLocal, startedAt).
			WithStatsRevealed().
			WithStorySegment(state.StorySegment{Text: "strike", Actor: state.SideLocal, Damage: &damage}).
			WithBattleResult(state.BattleResult{
				Winner:         state.SideLocal,
				LocalName:      "Emberling",
				OpponentName:   "Tidecaller",
				LocalHealth:    2,
				OpponentHealth: 0,
				Narrative:      "A narrow win.",
				WonCard:        &card.BattleCard{ID: "card-2", Name: "Tidecaller", Attack: 5, Health: 5, CurrentHealth: 0},
			}),
		"with saved image": baseSnapshot(t).
			WithImageTransferStatus(state.SideOpponent, transfer.StatusComplete).
			WithImageSaved(state.SideOpponent, "/data/images/opponent.png", "hash-1").
			WithUIFlags(true, true),
		"disconnected": baseSnapshot(t).WithDisconnected(),
	}

	for name, snapshot := range snapshots {
		frame, err := EncodeStateSync(snapshot)
		if err != nil {
			t.Fatalf("%s: encode: %v", name, err)
		}
		msg, err := Decode(frame)
		if err != nil {
			t.Fatalf("%s: decode: %v", name, err)
		}
		if msg.Type != MessageStateSync || msg.State == nil {
			t.Fatalf("%s: unexpected message %+v", name, msg)
		}
		if !msg.State.Equal(stripLocalPaths(snapshot)) {
			t.Errorf("%s: round trip mismatch\n got %+v\nwant %+v", name, *msg.State, snapshot)
		}
	}
}

func TestImageFilePathNeverCrossesTheWire(t *testing.T) {
	snapshot := baseSnapshot(t).
		WithImageSaved(state.SideLocal, "/data/images/self.png", "hash-a").
		WithImageSaved(state.SideOpponent, "/data/images/opponent.png", "hash-b")

	frame, err := EncodeStateSync(snapshot)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(string(frame), "/data/images") {
		t.Fatal("local file paths leaked onto the wire")
	}

	msg, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.State.LocalPlayer.ImageFilePath != "" || msg.State.OpponentPlayer.ImageFilePath != "" {
		t.Fatal("decoded snapshot must carry no file paths")
	}
	if msg.State.LocalPlayer.ImageHash != "hash-a" {
		t.Fatal("image hash must survive the wire")
	}
}

func TestOptionalFieldsEncodeAsExplicitNulls(t *testing.T) {
	frame, err := EncodeStateSync(baseSnapshot(t))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var env struct {
		Payload map[string]json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	for _, field := range []string{"reveal", "battle"} {
		raw, ok := env.Payload[field]
		if !ok {
			t.Fatalf("field %q omitted, want explicit null", field)
		}
		if string(raw) != "null" {
			t.Fatalf("field %q = %s, want null", field, raw)
		}
	}
}

func TestDecodeErrorTaxonomy(t *testing.T) {
	validFrame, err := EncodeReady("session-1")
	if err != nil {
		t.Fatalf("encode ready: %v", err)
	}
	wrongVersion := strings.Replace(string(validFrame), `"schemaVersion":1`, `"schemaVersion":99`, 1)

	tests := []struct {
		name    string
		payload []byte
		want    apperrors.Code
	}{
		{"empty", nil, apperrors.CodeWireEmptyPayload},
		{"not json", []byte("{broken"), apperrors.CodeWireMalformedPayload},
		{"schema version", []byte(wrongVersion), apperrors.CodeWireSchemaVersion},
		{"unknown type", []byte(`{"type":"BOGUS","schemaVersion":1,"payload":{}}`), apperrors.CodeWireUnknownMessage},
		{"bad payload", []byte(`{"type":"READY","schemaVersion":1,"payload":"nope"}`), apperrors.CodeWireMalformedPayload},
		{"bad phase", []byte(`{"type":"STATE_SYNC","schemaVersion":1,"payload":{"sessionId":"s","version":1,"phase":"BOGUS","localPlayer":{"imageTransferStatus":"NOT_STARTED"},"opponentPlayer":{"imageTransferStatus":"NOT_STARTED"},"reveal":null,"battle":null,"canClickReady":false,"waitingForOpponentReady":false}}`), apperrors.CodeWireMalformedPayload},
	}
	for _, tc := range tests {
		_, err := Decode(tc.payload)
		if !apperrors.IsCode(err, tc.want) {
			t.Errorf("%s: err = %v, want code %s", tc.name, err, tc.want)
		}
	}
}

func TestAnnounceRoundTrips(t *testing.T) {
	frame, err := EncodeCardSelected("session-1", battleCard(), fullCard())
	if err != nil {
		t.Fatalf("encode card selected: %v", err)
	}
	msg, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode card selected: %v", err)
	}
	if msg.Type != MessageCardSelected || msg.CardSelected == nil {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.CardSelected.Card != battleCard() {
		t.Fatalf("card = %+v, want %+v", msg.CardSelected.Card, battleCard())
	}
	if msg.CardSelected.FullCard == nil || *msg.CardSelected.FullCard != *fullCard() {
		t.Fatal("full card mismatch")
	}

	frame, err = EncodeHealthUpdate("session-1", 3)
	if err != nil {
		t.Fatalf("encode health update: %v", err)
	}
	msg, err = Decode(frame)
	if err != nil {
		t.Fatalf("decode health update: %v", err)
	}
	if msg.HealthUpdate == nil || msg.HealthUpdate.CurrentHealth != 3 {
		t.Fatalf("unexpected health update %+v", msg.HealthUpdate)
	}

	frame, err = EncodeDisconnect("session-1", "user closed the app")
	if err != nil {
		t.Fatalf("encode disconnect: %v", err)
	}
	msg, err = Decode(frame)
	if err != nil {
		t.Fatalf("decode disconnect: %v", err)
	}
	if msg.Disconnect == nil || msg.Disconnect.Reason != "user closed the app" {
		t.Fatalf("unexpected disconnect %+v", msg.Disconnect)
	}

	result := state.BattleResult{IsDraw: true, LocalName: "A", OpponentName: "B"}
	frame, err = EncodeBattleOutcome("session-1", result)
	if err != nil {
		t.Fatalf("encode battle outcome: %v", err)
	}
	msg, err = Decode(frame)
	if err != nil {
		t.Fatalf("decode battle outcome: %v", err)
	}
	if msg.BattleOutcome == nil || !msg.BattleOutcome.Result.Equal(result) {
		t.Fatalf("unexpected battle outcome %+v", msg.BattleOutcome)
	}
}

func TestDecodeNeverPanicsOnFuzzishInput(t *testing.T) {
	inputs := [][]byte{
		[]byte("null"),
		[]byte("[]"),
		[]byte(`{"type":null}`),
		[]byte(`{"schemaVersion":1}`),
		[]byte(`{"type":"STATE_SYNC","schemaVersion":1,"payload":null}`),
		[]byte(strings.Repeat("{", 64)),
	}
	for _, input := range inputs {
		if _, err := Decode(input); err == nil {
			t.Errorf("input %q: expected an error", input)
		}
	}
}

func TestDecodeDistinguishesAbsentFromCorrupt(t *testing.T) {
	_, emptyErr := Decode(nil)
	_, corruptErr := Decode([]byte("{broken"))
	if errors.Is(emptyErr, corruptErr) {
		t.Fatal("empty and corrupt payloads must be distinct outcomes")
	}
}
