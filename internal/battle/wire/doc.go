// Package wire defines the versioned peer-to-peer message schema.
//
// Every frame on the state channel is an envelope with an explicit type
// discriminator and a schema version, carrying one of the application's
// message kinds: a full state sync, a card-selection announce, a ready
// announce, a battle outcome announce, a health update, or a disconnect
// announce.
//
// Encoding is explicit field-by-field mapping between domain values and
// wire DTOs, not reflection over domain types: field names are stable and
// optional fields are serialized as nulls, never omitted. The locally saved
// image file path is deliberately absent from the schema; it names a local
// resource and must never cross the wire.
//
// Decoding distinguishes "no payload" from "corrupt payload" with typed
// errors, so a caller can treat a malformed frame as "no state received"
// without ever accepting a default value in its place.
package wire
