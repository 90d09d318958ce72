// Package errors provides structured error handling with machine-readable codes.
package errors

import stderrors "errors"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session errors
	CodeSessionEmptyID           Code = "SESSION_EMPTY_ID"
	CodeSessionSyncInProgress    Code = "SESSION_SYNC_IN_PROGRESS"
	CodeSessionTerminated        Code = "SESSION_TERMINATED"
	CodeSessionInvalidTransition Code = "SESSION_INVALID_TRANSITION"

	// Player errors
	CodePlayerCardNotSelected Code = "PLAYER_CARD_NOT_SELECTED"
	CodePlayerAlreadyReady    Code = "PLAYER_ALREADY_READY"

	// Wire errors
	CodeWireEmptyPayload     Code = "WIRE_EMPTY_PAYLOAD"
	CodeWireMalformedPayload Code = "WIRE_MALFORMED_PAYLOAD"
	CodeWireUnknownMessage   Code = "WIRE_UNKNOWN_MESSAGE"
	CodeWireSchemaVersion    Code = "WIRE_SCHEMA_VERSION"

	// Transfer errors
	CodeTransferInvalidStatus Code = "TRANSFER_INVALID_STATUS"

	// Transport errors
	CodeTransportClosed     Code = "TRANSPORT_CLOSED"
	CodeTransportSendFailed Code = "TRANSPORT_SEND_FAILED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// As is a thin re-export of the standard errors.As for callers that already
// import this package.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
