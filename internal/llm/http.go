package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/reliability"
)

const maxCompletionAttempts = 3

// HTTPAdapter forwards prompts to an OpenAI-compatible chat completions
// endpoint.
type HTTPAdapter struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

func NewHTTPAdapter(url, apiKey, model string) *HTTPAdapter {
	return &HTTPAdapter{
		url:    strings.TrimSpace(url),
		apiKey: strings.TrimSpace(apiKey),
		model:  strings.TrimSpace(model),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type chatRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (a *HTTPAdapter) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    a.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxCompletionAttempts; attempt++ {
		if attempt > 0 {
			wait := reliability.ExponentialBackoff(attempt, 250*time.Millisecond, 2*time.Second)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		text, status, err := a.completeOnce(ctx, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if status != 0 && !reliability.IsRetryableHTTPStatus(status) {
			return "", err
		}
	}
	return "", lastErr
}

func (a *HTTPAdapter) completeOnce(ctx context.Context, payload []byte) (string, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	res, err := a.client.Do(httpReq)
	if err != nil {
		return "", 0, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", res.StatusCode, fmt.Errorf("llm http status %d: %s", res.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", res.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", res.StatusCode, fmt.Errorf("llm returned no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), res.StatusCode, nil
}
