// Package connection classifies raw transport callbacks into a small
// connection lifecycle state machine.
//
// The tracker's one non-obvious job is telling "same connection" apart from
// "silent reconnection under a new identity": short-range transports can
// drop and re-pair without ever reporting a disconnect, surfacing only a
// fresh endpoint id. The tracker remembers the previous endpoint and a
// strictly-increasing connection number so that reconnection is computable
// from the lifecycle value, never stored as a separate flag.
//
// The tracker only classifies. It never triggers a session-state merge; it
// exposes the lifecycle value and an append-only event log for the driver
// to react to.
package connection
