package ws

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultMaxMessageBytes is the largest serialized action the relay accepts.
const DefaultMaxMessageBytes = 64 << 10

// ErrActionTooLarge is returned when a serialized message exceeds the byte budget.
var ErrActionTooLarge = errors.New("action exceeds message size limit")

// MessageType identifies the kind of message on a board channel.
type MessageType string

const (
	// Drawing actions.
	MessageTypeObjectAdd    MessageType = "OBJECT_ADD"
	MessageTypeObjectDelete MessageType = "OBJECT_DELETE"
	MessageTypeObjectUpdate MessageType = "OBJECT_UPDATE"

	// Chat.
	MessageTypeChat MessageType = "CHAT"

	// Out-of-band notifications that trigger a refetch.
	MessageTypeBoardUpdate MessageType = "BOARD_UPDATE"
	MessageTypeUserUpdate  MessageType = "USER_UPDATE"

	// Relay to client.
	MessageTypeError MessageType = "ERROR"
)

// IsDrawing reports whether t is an object add, delete or update.
func (t MessageType) IsDrawing() bool {
	return t == MessageTypeObjectAdd || t == MessageTypeObjectDelete || t == MessageTypeObjectUpdate
}

// Envelope is the unit carried on a board channel.
type Envelope struct {
	Type       MessageType     `json:"type"`
	InstanceID string          `json:"instanceId,omitempty"`
	Sender     string          `json:"sender,omitempty"`
	BoardID    int64           `json:"boardId,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope encodes payload into an envelope.
func NewEnvelope(msgType MessageType, instanceID, sender string, boardID int64, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", msgType, err)
	}

	return Envelope{
		Type:       msgType,
		InstanceID: instanceID,
		Sender:     sender,
		BoardID:    boardID,
		Payload:    raw,
	}, nil
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("decode %s payload: empty", e.Type)
	}

	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}

	return nil
}

// CheckSize returns the serialized size of env, or ErrActionTooLarge if it
// exceeds limit. A non-positive limit uses DefaultMaxMessageBytes.
func CheckSize(env Envelope, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultMaxMessageBytes
	}

	data, err := json.Marshal(env)
	if err != nil {
		return 0, err
	}

	if len(data) > limit {
		return len(data), fmt.Errorf("%w: %d bytes, limit %d", ErrActionTooLarge, len(data), limit)
	}

	return len(data), nil
}

// Board update kinds.
const (
	BoardUpdateMembers = "MEMBERS_CHANGED"
	BoardUpdateDetails = "DETAILS_CHANGED"
	BoardUpdateDeleted = "BOARD_DELETED"
)

// BoardUpdatePayload notifies members that a board's metadata or membership changed.
type BoardUpdatePayload struct {
	UpdateType      string `json:"updateType"`
	SourceUserEmail string `json:"sourceUserEmail"`
}

// User update kinds.
const (
	UserUpdateBoards  = "BOARDS_CHANGED"
	UserUpdateProfile = "PROFILE_CHANGED"
)

// UserUpdatePayload notifies a user that their own resources changed.
type UserUpdatePayload struct {
	UpdateType string `json:"updateType"`
}

// ErrorPayload reports an error to the client.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeTooLarge       = "too_large"
	ErrorCodeInternalError  = "internal_error"
	ErrorCodeForbidden      = "forbidden"
)
