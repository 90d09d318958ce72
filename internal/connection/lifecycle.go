package connection

import "time"

// State enumerates the lifecycle stages of one logical pairing.
type State int

const (
	// StateIdle indicates no transport activity.
	StateIdle State = iota
	// StateDiscovering indicates device discovery is running.
	StateDiscovering
	// StateConnecting indicates a connection attempt is in flight.
	StateConnecting
	// StateConnected indicates an endpoint is connected.
	StateConnected
	// StateReconnecting indicates the pairing was lost and a retry is due.
	StateReconnecting
	// StateDisconnected indicates the pairing ended.
	StateDisconnected
)

// String returns the stable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateDiscovering:
		return "DISCOVERING"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Lifecycle is the tagged lifecycle value. Which fields are meaningful
// depends on State; zero values mean "not applicable".
type Lifecycle struct {
	State State
	// EndpointID is the endpoint being connected to or connected.
	EndpointID string
	// Attempt counts connection attempts since the last success.
	Attempt int
	// ConnectionNumber strictly increases across the lifetime of one
	// logical pairing: 1 for the first successful connection, then +1 for
	// every successful connection after it.
	ConnectionNumber uint64
	// PreviousEndpointID is the endpoint of the prior successful
	// connection, empty for the first.
	PreviousEndpointID string
	// Reason carries the transport-supplied reason for a disconnect or
	// reconnect.
	Reason string
	// StartedAt is when discovery or the current attempt began.
	StartedAt time.Time
	// ConnectedAt is when the current connection succeeded.
	ConnectedAt time.Time
}

// IsReconnection reports whether this connection silently replaced a prior
// one under a new identity: a previous endpoint exists and differs from the
// current one.
func (l Lifecycle) IsReconnection() bool {
	return l.PreviousEndpointID != "" && l.PreviousEndpointID != l.EndpointID
}
