package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiAdapter completes prompts with the Gemini API.
type GeminiAdapter struct {
	client *genai.Client
	model  string
}

func NewGeminiAdapter(apiKey, model string) (*GeminiAdapter, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiAdapter{client: client, model: model}, nil
}

func (a *GeminiAdapter) Complete(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini returned no candidates")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		out.WriteString(part.Text)
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", errors.New("gemini returned empty text")
	}
	return text, nil
}
