package server

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a server-originated message stamped with the current time.
func NewMessage(msgType string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Server → client message types.
const (
	TypeStateUpdate  = "state.update"
	TypePromptOpen   = "prompt.open"
	TypePromptClosed = "prompt.closed"
	TypeError        = "error"
)

// Client → server message types.
const (
	TypePromptAnswer = "prompt.answer"
)

// Error codes.
const (
	ErrInvalidMessage = "INVALID_MESSAGE"
	ErrPromptNotFound = "PROMPT_NOT_FOUND"
)

type PromptOpenPayload struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type PromptClosedPayload struct {
	ID        string `json:"id"`
	Confirmed bool   `json:"confirmed"`
}

type PromptAnswerPayload struct {
	ID      string `json:"id"`
	Confirm bool   `json:"confirm"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidateClientMessage parses a raw client frame and checks the payload
// of known types.
func ValidateClientMessage(raw []byte) (*Message, PromptAnswerPayload, error) {
	var msg Message
	var answer PromptAnswerPayload
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, answer, fmt.Errorf("invalid JSON: %w", err)
	}
	if msg.Type == "" {
		return nil, answer, fmt.Errorf("missing 'type' field")
	}
	if msg.Type != TypePromptAnswer {
		return nil, answer, fmt.Errorf("unknown message type: %s", msg.Type)
	}
	if msg.Payload == nil {
		return nil, answer, fmt.Errorf("missing 'payload' field")
	}
	if err := json.Unmarshal(msg.Payload, &answer); err != nil {
		return nil, answer, fmt.Errorf("invalid payload for %s: %w", msg.Type, err)
	}
	if answer.ID == "" {
		return nil, answer, fmt.Errorf("missing required field 'id' in %s payload", msg.Type)
	}
	return &msg, answer, nil
}
