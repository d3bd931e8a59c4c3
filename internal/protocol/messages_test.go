package protocol

import (
	"errors"
	"testing"
)

func TestParseClientMessageChat(t *testing.T) {
	raw := []byte(`{"type":"client_message","session_id":"s1","message":"what's the weather in Paris?","ts_ms":123}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	chat, ok := msg.(ClientMessage)
	if !ok {
		t.Fatalf("message type = %T, want ClientMessage", msg)
	}
	if chat.SessionID != "s1" || chat.Message != "what's the weather in Paris?" {
		t.Fatalf("unexpected client message: %+v", chat)
	}
}

func TestParseClientMessageControl(t *testing.T) {
	raw := []byte(`{"type":"client_control","session_id":"s1","action":"clear_session"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	control, ok := msg.(ClientControl)
	if !ok {
		t.Fatalf("message type = %T, want ClientControl", msg)
	}
	if control.SessionID != "s1" || control.Action != "clear_session" {
		t.Fatalf("unexpected client control: %+v", control)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageRejectsEmptyMessage(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"client_message","session_id":"s1","message":""}`))
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestParseClientMessageRejectsBadJSON(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":`))
	if err == nil {
		t.Fatalf("expected envelope error")
	}
}
