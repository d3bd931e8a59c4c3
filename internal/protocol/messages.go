package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientMessage MessageType = "client_message"
	TypeClientControl MessageType = "client_control"
	TypeTurnResult    MessageType = "turn_result"
	TypeSystemEvent   MessageType = "system_event"
	TypeErrorEvent    MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type ClientMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Message   string      `json:"message"`
	TSMs      int64       `json:"ts_ms"`
}

type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
}

type TurnResult struct {
	Type         MessageType `json:"type"`
	SessionID    string      `json:"session_id"`
	AgentName    string      `json:"agent_name"`
	Response     string      `json:"response"`
	CurrentAgent string      `json:"current_agent"`
	Stage        string      `json:"stage,omitempty"`
	History      []string    `json:"conversation_history"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientMessage:
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Message == "" {
			return nil, errors.New("invalid client_message")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
