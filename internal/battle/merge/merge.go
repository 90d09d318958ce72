// Package merge reconciles two independently-evolved session snapshots.
//
// A merge runs exactly once per detected reconnection: each device sends its
// snapshot, receives the peer's, and folds both into one canonical snapshot.
// Resolution is host-authoritative, not commutative: merging as host and
// merging as non-host intentionally disagree, so exactly one side's view of
// the truth wins per reconnection and the replicas cannot oscillate.
package merge

import "github.com/nearplay/duelsync/internal/battle/state"

// Merge reconciles the local snapshot with the peer's freshly-exchanged one.
//
// The peer snapshot arrives in the peer's own perspective: its LocalPlayer
// is this device's opponent, and its side tags read backwards. Merge handles
// the flip; callers pass both snapshots as-is.
//
// Rules, in order:
//   - version: max of both inputs, plus one.
//   - phase: the authoritative side keeps its phase unless the other side's
//     is strictly more advanced.
//   - sessionId: always local. A device never adopts a foreign session id.
//   - localPlayer: always local. A device is authoritative for itself.
//   - opponentPlayer: the peer's self-reported record, except the image
//     file path, which names a local resource and always stays local.
//   - reveal/battle: taken from the side whose phase won, falling back to
//     the other side's non-nil value.
//   - UI booleans: from the authoritative side.
func Merge(local, peer state.Snapshot, isHost bool) state.Snapshot {
	out := local.Clone()

	out.Version = maxVersion(local.Version, peer.Version) + 1

	peerWinsPhase := peerPhaseWins(local.Phase, peer.Phase, isHost)
	if peerWinsPhase {
		out.Phase = peer.Phase
	}

	out.OpponentPlayer = peer.LocalPlayer.Clone()
	out.OpponentPlayer.ImageFilePath = local.OpponentPlayer.ImageFilePath

	out.Reveal = mergeReveal(local, peer, peerWinsPhase)
	out.Battle = mergeBattle(local, peer, peerWinsPhase)

	if !isHost {
		out.CanClickReady = peer.CanClickReady
		out.WaitingForOpponentReady = peer.WaitingForOpponentReady
	}

	return out
}

// peerPhaseWins applies the host-authoritative phase rule: the authoritative
// side keeps its phase unless the other side's is strictly more advanced.
func peerPhaseWins(local, peer state.Phase, isHost bool) bool {
	if isHost {
		return peer.MoreAdvancedThan(local)
	}
	return !local.MoreAdvancedThan(peer)
}

func mergeReveal(local, peer state.Snapshot, peerWinsPhase bool) *state.RevealState {
	if peerWinsPhase {
		if peer.Reveal != nil {
			flipped := peer.Reveal.Flip()
			return &flipped
		}
		if local.Reveal != nil {
			r := *local.Reveal
			return &r
		}
		return nil
	}
	if local.Reveal != nil {
		r := *local.Reveal
		return &r
	}
	if peer.Reveal != nil {
		flipped := peer.Reveal.Flip()
		return &flipped
	}
	return nil
}

func mergeBattle(local, peer state.Snapshot, peerWinsPhase bool) *state.BattleState {
	if peerWinsPhase {
		if peer.Battle != nil {
			return peer.Battle.Flip()
		}
		return local.Battle.Clone()
	}
	if local.Battle != nil {
		return local.Battle.Clone()
	}
	return peer.Battle.Flip()
}

func maxVersion(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
