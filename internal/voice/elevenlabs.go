package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	ttsSampleRate  = 16000
	maxSpeechChars = 3000
)

type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
	VoiceID string
	ModelID string
}

// ElevenLabsSynthesizer renders speech through the ElevenLabs HTTP API
// and returns raw PCM16LE at 16 kHz, ready for WAV wrapping.
type ElevenLabsSynthesizer struct {
	cfg    ElevenLabsConfig
	client *http.Client
}

func NewElevenLabsSynthesizer(cfg ElevenLabsConfig) *ElevenLabsSynthesizer {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = "eleven_multilingual_v2"
	}
	return &ElevenLabsSynthesizer{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *ElevenLabsSynthesizer) SampleRate() int { return ttsSampleRate }

func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty synthesis text")
	}
	if len(text) > maxSpeechChars {
		text = text[:maxSpeechChars]
	}
	if strings.TrimSpace(s.cfg.VoiceID) == "" {
		return nil, fmt.Errorf("voice_id is required")
	}

	u, err := url.Parse(strings.TrimRight(s.cfg.BaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(s.cfg.VoiceID))
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("output_format", "pcm_16000")
	u.RawQuery = q.Encode()

	payload, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": s.cfg.ModelID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("synthesis status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return io.ReadAll(resp.Body)
}
