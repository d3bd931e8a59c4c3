package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestElevenLabsSynthesizeRequestsPCM16k(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	var gotPath, gotFormat, gotKey string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFormat = r.URL.Query().Get("output_format")
		gotKey = r.Header.Get("xi-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.Write(pcm)
	}))
	defer srv.Close()

	s := NewElevenLabsSynthesizer(ElevenLabsConfig{APIKey: "xi-1", BaseURL: srv.URL, VoiceID: "v-9"})
	out, err := s.Synthesize(context.Background(), "Weather in Paris: clear sky, 21.0°C")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(out) != string(pcm) {
		t.Fatalf("pcm mismatch: %v", out)
	}
	if gotPath != "/v1/text-to-speech/v-9" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotFormat != "pcm_16000" || gotKey != "xi-1" {
		t.Fatalf("format/key = %q %q", gotFormat, gotKey)
	}
	if gotBody["model_id"] != "eleven_multilingual_v2" {
		t.Fatalf("model_id = %v", gotBody["model_id"])
	}
	if s.SampleRate() != 16000 {
		t.Fatalf("SampleRate() = %d", s.SampleRate())
	}
}

func TestElevenLabsSynthesizeTruncatesLongText(t *testing.T) {
	var gotLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotLen = len(body.Text)
		w.Write([]byte{0})
	}))
	defer srv.Close()

	s := NewElevenLabsSynthesizer(ElevenLabsConfig{BaseURL: srv.URL, VoiceID: "v"})
	if _, err := s.Synthesize(context.Background(), strings.Repeat("a", 5000)); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if gotLen != maxSpeechChars {
		t.Fatalf("sent %d chars, want %d", gotLen, maxSpeechChars)
	}
}

func TestElevenLabsSynthesizeValidatesInput(t *testing.T) {
	s := NewElevenLabsSynthesizer(ElevenLabsConfig{VoiceID: "v"})
	if _, err := s.Synthesize(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty text")
	}
	s = NewElevenLabsSynthesizer(ElevenLabsConfig{})
	if _, err := s.Synthesize(context.Background(), "hi"); err == nil {
		t.Fatal("expected error for missing voice id")
	}
}
