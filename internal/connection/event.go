package connection

import "time"

// EventType identifies the type of a connection event.
type EventType string

const (
	// EventDiscoveryStarted records the start of device discovery.
	EventDiscoveryStarted EventType = "DISCOVERY_STARTED"
	// EventEndpointFound records a discovered endpoint.
	EventEndpointFound EventType = "ENDPOINT_FOUND"
	// EventConnectAttempt records an outgoing connection attempt.
	EventConnectAttempt EventType = "CONNECT_ATTEMPT"
	// EventConnectSucceeded records a successful first-time connection.
	EventConnectSucceeded EventType = "CONNECT_SUCCEEDED"
	// EventConnectFailed records a failed connection attempt.
	EventConnectFailed EventType = "CONNECT_FAILED"
	// EventDisconnected records a reported disconnect.
	EventDisconnected EventType = "DISCONNECTED"
	// EventReconnectionDetected records a successful connection that
	// silently replaced a prior one under a new endpoint id.
	EventReconnectionDetected EventType = "RECONNECTION_DETECTED"
)

// Event is one append-only log record. Events are write-once diagnostics:
// they are never mutated after being appended.
type Event struct {
	// Seq orders events within one tracker, starting at 1.
	Seq uint64
	// Timestamp is when the transition was classified.
	Timestamp time.Time
	// Type identifies the transition.
	Type EventType
	// EndpointID is the endpoint involved, when applicable.
	EndpointID string
	// Attempt is the attempt counter at the time of the event.
	Attempt int
	// ConnectionNumber is the connection counter at the time of the event.
	ConnectionNumber uint64
	// Reason carries the transport-supplied failure or disconnect reason.
	Reason string
}
