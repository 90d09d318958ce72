// Package transport defines the abstract endpoint channel the battle core
// consumes.
//
// The core assumes nothing about discovery or pairing UX: a channel is just
// four operations — connected, disconnected, bytes received, send. Concrete
// implementations live in the subpackages: an in-process pair for tests and
// simulation, and a websocket adapter for relayed play.
package transport

import apperrors "github.com/nearplay/duelsync/internal/platform/errors"

var (
	// ErrClosed indicates the channel was closed before the operation.
	ErrClosed = apperrors.New(apperrors.CodeTransportClosed, "transport is closed")
	// ErrSendFailed indicates the payload could not be delivered. Send
	// failures are reported upward as events or errors, never thrown
	// across the state/merge boundary.
	ErrSendFailed = apperrors.New(apperrors.CodeTransportSendFailed, "send failed")
)

// Handler receives the channel's asynchronous callbacks. Implementations
// must hand the events to a single-consumer queue; the transport gives no
// ordering guarantees across endpoints, only per endpoint.
type Handler interface {
	// OnConnected reports a newly established connection to an endpoint.
	OnConnected(endpointID string)
	// OnDisconnected reports a lost connection with a transport-supplied
	// reason.
	OnDisconnected(endpointID, reason string)
	// OnBytesReceived reports an inbound payload from an endpoint.
	OnBytesReceived(endpointID string, payload []byte)
}

// Channel is one device's side of the bidirectional endpoint abstraction.
type Channel interface {
	// Send delivers a payload to the named endpoint.
	Send(endpointID string, payload []byte) error
	// Close tears the channel down and stops callback delivery.
	Close() error
}
