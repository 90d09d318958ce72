package wire

import (
	"encoding/json"
	"fmt"

	"github.com/nearplay/duelsync/internal/battle/card"
	"github.com/nearplay/duelsync/internal/battle/state"
	apperrors "github.com/nearplay/duelsync/internal/platform/errors"
)

// SchemaVersion is the current wire schema version. Peers reject frames
// with a version they do not understand instead of guessing.
const SchemaVersion = 1

// MessageType discriminates the application's message kinds.
type MessageType string

const (
	// MessageStateSync carries a full session snapshot.
	MessageStateSync MessageType = "STATE_SYNC"
	// MessageCardSelected announces the sender's card selection.
	MessageCardSelected MessageType = "CARD_SELECTED"
	// MessageReady announces the sender's readiness.
	MessageReady MessageType = "READY"
	// MessageBattleOutcome announces the sender's battle result.
	MessageBattleOutcome MessageType = "BATTLE_OUTCOME"
	// MessageHealthUpdate announces the sender's current card health.
	MessageHealthUpdate MessageType = "HEALTH_UPDATE"
	// MessageDisconnect announces an orderly teardown.
	MessageDisconnect MessageType = "DISCONNECT"
)

var (
	// ErrEmptyPayload indicates no payload bytes were supplied at all.
	ErrEmptyPayload = apperrors.New(apperrors.CodeWireEmptyPayload, "payload is empty")
	// ErrMalformedPayload indicates the payload could not be parsed.
	ErrMalformedPayload = apperrors.New(apperrors.CodeWireMalformedPayload, "payload cannot be parsed")
	// ErrUnknownMessage indicates an unrecognized message type.
	ErrUnknownMessage = apperrors.New(apperrors.CodeWireUnknownMessage, "unknown message type")
	// ErrSchemaVersion indicates an unsupported schema version.
	ErrSchemaVersion = apperrors.New(apperrors.CodeWireSchemaVersion, "unsupported schema version")
)

// envelope is the outer frame shared by all message kinds.
type envelope struct {
	Type          MessageType     `json:"type"`
	SchemaVersion int             `json:"schemaVersion"`
	Payload       json.RawMessage `json:"payload"`
}

// CardSelected is the decoded card-selection announce.
type CardSelected struct {
	SessionID string
	Card      card.BattleCard
	FullCard  *card.Card
}

// Ready is the decoded ready announce.
type Ready struct {
	SessionID string
}

// BattleOutcome is the decoded battle outcome announce, in the sender's
// perspective.
type BattleOutcome struct {
	SessionID string
	Result    state.BattleResult
}

// HealthUpdate is the decoded health update: the sender reports its own
// card's current health.
type HealthUpdate struct {
	SessionID     string
	CurrentHealth int
}

// Disconnect is the decoded orderly-teardown announce.
type Disconnect struct {
	SessionID string
	Reason    string
}

// Message is the decoded union of all message kinds. Exactly the field
// matching Type is non-nil.
type Message struct {
	Type          MessageType
	State         *state.Snapshot
	CardSelected  *CardSelected
	Ready         *Ready
	BattleOutcome *BattleOutcome
	HealthUpdate  *HealthUpdate
	Disconnect    *Disconnect
}

func seal(messageType MessageType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", messageType, err)
	}
	frame, err := json.Marshal(envelope{
		Type:          messageType,
		SchemaVersion: SchemaVersion,
		Payload:       raw,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", messageType, err)
	}
	return frame, nil
}

// EncodeStateSync frames a full snapshot for the state channel.
func EncodeStateSync(snapshot state.Snapshot) ([]byte, error) {
	return seal(MessageStateSync, snapshotToDTO(snapshot))
}

// EncodeCardSelected frames a card-selection announce.
func EncodeCardSelected(sessionID string, selected card.BattleCard, full *card.Card) ([]byte, error) {
	return seal(MessageCardSelected, cardSelectedDTO{
		SessionID: sessionID,
		Card:      battleCardToDTO(selected),
		FullCard:  cardToDTO(full),
	})
}

// EncodeReady frames a ready announce.
func EncodeReady(sessionID string) ([]byte, error) {
	return seal(MessageReady, readyDTO{SessionID: sessionID})
}

// EncodeBattleOutcome frames a battle outcome announce.
func EncodeBattleOutcome(sessionID string, result state.BattleResult) ([]byte, error) {
	return seal(MessageBattleOutcome, battleOutcomeDTO{
		SessionID: sessionID,
		Result:    resultToDTO(result),
	})
}

// EncodeHealthUpdate frames a health update for the sender's own card.
func EncodeHealthUpdate(sessionID string, currentHealth int) ([]byte, error) {
	return seal(MessageHealthUpdate, healthUpdateDTO{
		SessionID:     sessionID,
		CurrentHealth: currentHealth,
	})
}

// EncodeDisconnect frames an orderly-teardown announce.
func EncodeDisconnect(sessionID, reason string) ([]byte, error) {
	return seal(MessageDisconnect, disconnectDTO{
		SessionID: sessionID,
		Reason:    reason,
	})
}

// Decode parses one frame from the state channel. It returns
// ErrEmptyPayload for an empty frame, ErrSchemaVersion for an unsupported
// version, ErrUnknownMessage for an unrecognized discriminator, and
// ErrMalformedPayload (wrapping the parse failure) for anything that cannot
// be parsed. Nothing panics past this boundary.
func Decode(payload []byte) (Message, error) {
	if len(payload) == 0 {
		return Message{}, ErrEmptyPayload
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Message{}, apperrors.Wrap(apperrors.CodeWireMalformedPayload, "parse envelope", err)
	}
	if env.SchemaVersion != SchemaVersion {
		return Message{}, ErrSchemaVersion
	}

	switch env.Type {
	case MessageStateSync:
		var dto snapshotDTO
		if err := json.Unmarshal(env.Payload, &dto); err != nil {
			return Message{}, apperrors.Wrap(apperrors.CodeWireMalformedPayload, "parse state sync", err)
		}
		snapshot, err := snapshotFromDTO(dto)
		if err != nil {
			return Message{}, err
		}
		return Message{Type: MessageStateSync, State: &snapshot}, nil

	case MessageCardSelected:
		var dto cardSelectedDTO
		if err := json.Unmarshal(env.Payload, &dto); err != nil {
			return Message{}, apperrors.Wrap(apperrors.CodeWireMalformedPayload, "parse card selected", err)
		}
		return Message{Type: MessageCardSelected, CardSelected: &CardSelected{
			SessionID: dto.SessionID,
			Card:      battleCardFromDTO(dto.Card),
			FullCard:  cardFromDTO(dto.FullCard),
		}}, nil

	case MessageReady:
		var dto readyDTO
		if err := json.Unmarshal(env.Payload, &dto); err != nil {
			return Message{}, apperrors.Wrap(apperrors.CodeWireMalformedPayload, "parse ready", err)
		}
		return Message{Type: MessageReady, Ready: &Ready{SessionID: dto.SessionID}}, nil

	case MessageBattleOutcome:
		var dto battleOutcomeDTO
		if err := json.Unmarshal(env.Payload, &dto); err != nil {
			return Message{}, apperrors.Wrap(apperrors.CodeWireMalformedPayload, "parse battle outcome", err)
		}
		result, err := resultFromDTO(dto.Result)
		if err != nil {
			return Message{}, err
		}
		return Message{Type: MessageBattleOutcome, BattleOutcome: &BattleOutcome{
			SessionID: dto.SessionID,
			Result:    result,
		}}, nil

	case MessageHealthUpdate:
		var dto healthUpdateDTO
		if err := json.Unmarshal(env.Payload, &dto); err != nil {
			return Message{}, apperrors.Wrap(apperrors.CodeWireMalformedPayload, "parse health update", err)
		}
		return Message{Type: MessageHealthUpdate, HealthUpdate: &HealthUpdate{
			SessionID:     dto.SessionID,
			CurrentHealth: dto.CurrentHealth,
		}}, nil

	case MessageDisconnect:
		var dto disconnectDTO
		if err := json.Unmarshal(env.Payload, &dto); err != nil {
			return Message{}, apperrors.Wrap(apperrors.CodeWireMalformedPayload, "parse disconnect", err)
		}
		return Message{Type: MessageDisconnect, Disconnect: &Disconnect{
			SessionID: dto.SessionID,
			Reason:    dto.Reason,
		}}, nil

	default:
		return Message{}, ErrUnknownMessage
	}
}
