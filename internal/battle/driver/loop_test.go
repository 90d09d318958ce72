package driver

import (
	"context"
	"testing"

	"github.com/nearplay/duelsync/internal/battle/state"
	"github.com/nearplay/duelsync/internal/battle/wire"
)

type recordingChannel struct {
	sends []sentFrame
}

type sentFrame struct {
	endpointID string
	payload    []byte
}

func (c *recordingChannel) Send(endpointID string, payload []byte) error {
	c.sends = append(c.sends, sentFrame{endpointID: endpointID, payload: payload})
	return nil
}

func (c *recordingChannel) Close() error { return nil }

func newTestLoop(t *testing.T) (*Loop, *Driver, *recordingChannel) {
	t.Helper()
	d := newTestDriver(t, true)
	channel := &recordingChannel{}
	return NewLoop(d, channel), d, channel
}

func TestLoopSendsStateSyncOnReconnection(t *testing.T) {
	loop, d, channel := newTestLoop(t)
	ctx := context.Background()

	loop.handle(ctx, event{kind: eventConnected, endpointID: "endpoint-a"})
	if len(channel.sends) != 0 {
		t.Fatalf("sends = %d, want none on first connection", len(channel.sends))
	}

	loop.handle(ctx, event{kind: eventConnected, endpointID: "endpoint-b"})
	if len(channel.sends) != 1 {
		t.Fatalf("sends = %d, want state sync on reconnection", len(channel.sends))
	}
	if channel.sends[0].endpointID != "endpoint-b" {
		t.Fatalf("endpoint = %q, want endpoint-b", channel.sends[0].endpointID)
	}

	msg, err := wire.Decode(channel.sends[0].payload)
	if err != nil {
		t.Fatalf("decode sent frame: %v", err)
	}
	if msg.Type != wire.MessageStateSync {
		t.Fatalf("type = %v, want state sync", msg.Type)
	}
	if !d.Syncing() {
		t.Fatal("expected merge window open until peer snapshot arrives")
	}
}

func TestLoopRepliesWithPreMergeSnapshotWhenPeerDetectsFirst(t *testing.T) {
	loop, d, channel := newTestLoop(t)
	ctx := context.Background()

	loop.handle(ctx, event{kind: eventConnected, endpointID: "endpoint-a"})
	localBefore := d.Snapshot()

	peer, err := state.New("peer-session")
	if err != nil {
		t.Fatalf("new peer snapshot: %v", err)
	}
	frame, err := wire.EncodeStateSync(peer)
	if err != nil {
		t.Fatalf("encode peer snapshot: %v", err)
	}
	loop.handle(ctx, event{kind: eventBytes, endpointID: "endpoint-a", payload: frame})

	if len(channel.sends) != 1 {
		t.Fatalf("sends = %d, want one reply", len(channel.sends))
	}
	reply, err := wire.Decode(channel.sends[0].payload)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.State == nil {
		t.Fatal("expected snapshot in reply")
	}
	if reply.State.Version != localBefore.Version {
		t.Fatalf("reply version = %d, want pre-merge %d", reply.State.Version, localBefore.Version)
	}

	if got := d.Snapshot().Version; got != localBefore.Version+1 {
		t.Fatalf("merged version = %d, want %d", got, localBefore.Version+1)
	}
}

func TestLoopReplaysDeferredCommandsAfterMerge(t *testing.T) {
	loop, d, channel := newTestLoop(t)
	ctx := context.Background()

	loop.handle(ctx, event{kind: eventConnected, endpointID: "endpoint-a"})
	loop.handle(ctx, event{kind: eventConnected, endpointID: "endpoint-b"})
	channel.sends = nil

	loop.handle(ctx, event{kind: eventCommand, command: func(d *Driver) (state.Snapshot, error) {
		snapshot, err := d.OpponentJoined()
		if err != nil {
			return snapshot, err
		}
		return d.SelectCard(testCard(), nil)
	}})
	if d.Snapshot().LocalPlayer.HasSelectedCard {
		t.Fatal("command must be parked during the merge window")
	}

	peer, err := state.New("peer-session")
	if err != nil {
		t.Fatalf("new peer snapshot: %v", err)
	}
	frame, err := wire.EncodeStateSync(peer)
	if err != nil {
		t.Fatalf("encode peer snapshot: %v", err)
	}
	loop.handle(ctx, event{kind: eventBytes, endpointID: "endpoint-b", payload: frame})

	if !d.Snapshot().LocalPlayer.HasSelectedCard {
		t.Fatal("expected parked command replayed after merge adoption")
	}
}

func TestLoopDropsUndecodableFrames(t *testing.T) {
	loop, d, _ := newTestLoop(t)
	ctx := context.Background()

	before := d.Snapshot()
	loop.handle(ctx, event{kind: eventBytes, endpointID: "endpoint-a", payload: []byte("{not json")})
	if !d.Snapshot().Equal(before) {
		t.Fatal("corrupt frame must not change state")
	}
}
