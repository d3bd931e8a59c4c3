package mailcal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestDoJSONReauthenticatesOnceOn401(t *testing.T) {
	var tokenCalls, sendCalls atomic.Int32

	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "token-` + string(rune('0'+n)) + `"}`))
	}))
	defer tokens.Close()

	gmail := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := sendCalls.Add(1)
		if call == 1 {
			// First token is expired from the API's point of view.
			http.Error(w, `{"error": {"code": 401}}`, http.StatusUnauthorized)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-2" {
			t.Errorf("retry auth header = %q, want Bearer token-2", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "msg-99"}`))
	}))
	defer gmail.Close()

	g := NewGoogle(GoogleConfig{
		ClientID:     "cid",
		ClientSecret: "secret",
		RefreshToken: "refresh",
		GmailBaseURL: gmail.URL,
		TokenURL:     tokens.URL,
	})

	id, err := g.Send(context.Background(), "a@example.com", "Hello", "body text", "thread-1")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if id != "msg-99" {
		t.Fatalf("Send() id = %q, want msg-99", id)
	}
	if tokenCalls.Load() != 2 {
		t.Fatalf("token calls = %d, want 2 (initial + one re-auth)", tokenCalls.Load())
	}
	if sendCalls.Load() != 2 {
		t.Fatalf("send calls = %d, want 2 (failed + retried once)", sendCalls.Load())
	}
}

func TestSendBuildsRFC822Raw(t *testing.T) {
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "tok"}`))
	}))
	defer tokens.Close()

	var captured map[string]any
	gmail := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "sent-1"}`))
	}))
	defer gmail.Close()

	g := NewGoogle(GoogleConfig{GmailBaseURL: gmail.URL, TokenURL: tokens.URL})
	if _, err := g.Send(context.Background(), "bob@example.com", "Standup", "See you there", "t-7"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	raw, _ := captured["raw"].(string)
	decoded, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("raw is not base64url: %v", err)
	}
	want := "To: bob@example.com\r\nSubject: Re: Standup\r\n\r\nSee you there"
	if string(decoded) != want {
		t.Fatalf("raw message = %q, want %q", string(decoded), want)
	}
	if captured["threadId"] != "t-7" {
		t.Fatalf("threadId = %v, want t-7", captured["threadId"])
	}
}

func TestGetMessageExtractsPlainTextPart(t *testing.T) {
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "tok"}`))
	}))
	defer tokens.Close()

	bodyData := base64.URLEncoding.EncodeToString([]byte("Can we meet Tuesday?"))
	gmail := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "m1", "threadId": "t1",
			"payload": {
				"headers": [
					{"name": "Subject", "value": "Meeting"},
					{"name": "From", "value": "carol@example.com"},
					{"name": "Date", "value": "Mon, 1 Sep 2026 10:00:00 +0000"}
				],
				"parts": [
					{"mimeType": "text/html", "body": {"data": ""}},
					{"mimeType": "text/plain", "body": {"data": "` + bodyData + `"}}
				]
			}
		}`))
	}))
	defer gmail.Close()

	g := NewGoogle(GoogleConfig{GmailBaseURL: gmail.URL, TokenURL: tokens.URL})
	msg, err := g.GetMessage(context.Background(), "m1")
	if err != nil {
		t.Fatalf("GetMessage() error = %v", err)
	}
	if msg.Subject != "Meeting" || msg.Sender != "carol@example.com" || msg.ThreadID != "t1" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Body != "Can we meet Tuesday?" {
		t.Fatalf("body = %q, want plain text part", msg.Body)
	}
}
