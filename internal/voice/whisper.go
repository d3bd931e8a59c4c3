package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

type WhisperConfig struct {
	APIKey  string
	BaseURL string
	ModelID string
}

// WhisperTranscriber calls an OpenAI-compatible transcription endpoint
// such as Groq's hosted Whisper.
type WhisperTranscriber struct {
	cfg    WhisperConfig
	client *http.Client
}

func NewWhisperTranscriber(cfg WhisperConfig) *WhisperTranscriber {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.groq.com/openai"
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = "whisper-large-v3"
	}
	return &WhisperTranscriber{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (t *WhisperTranscriber) Transcribe(ctx context.Context, clip []byte, filename string) (string, error) {
	if len(clip) == 0 {
		return "", fmt.Errorf("empty audio clip")
	}
	if strings.TrimSpace(filename) == "" {
		filename = "audio.wav"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(clip); err != nil {
		return "", err
	}
	if err := mw.WriteField("model", t.cfg.ModelID); err != nil {
		return "", err
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", err
	}
	if err := mw.WriteField("temperature", "0"); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	u := strings.TrimRight(t.cfg.BaseURL, "/") + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("transcription status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}
