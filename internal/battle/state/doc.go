// Package state defines the battle session snapshot and its transitions.
//
// A Snapshot is the single source of truth for one battle session between
// two devices. It is an immutable value: every mutation derives a new
// Snapshot from the old one, changing exactly the fields the triggering
// event justifies, then increments the version. No transition may bump the
// version without changing a field, and none may change a field without
// bumping the version.
//
// # Phase Lifecycle
//
// Sessions move through phases in a fixed forward order:
//   - WaitingForOpponent: initial phase, the transport is pairing.
//   - CardSelection: both players pick a card to fight with.
//   - ReadySync: both players confirmed readiness.
//   - Revealing: cards and stats are shown to both sides.
//   - BattleAnimating: the battle narrative is playing out.
//   - BattleComplete: terminal success.
//
// Disconnected is reachable from any non-terminal phase and is terminal for
// the session instance; resuming requires a new session id. The only
// backward-looking exception is the merge engine, which may move a replica
// forward to match its peer but never backward.
package state
