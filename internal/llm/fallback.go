package llm

import (
	"context"
	"errors"
	"fmt"
)

// FallbackCompleter attempts a primary completer first and falls back on error.
type FallbackCompleter struct {
	primary  Completer
	fallback Completer
}

func NewFallbackCompleter(primary, fallback Completer) *FallbackCompleter {
	return &FallbackCompleter{primary: primary, fallback: fallback}
}

func (c *FallbackCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	text, err := c.primary.Complete(ctx, prompt)
	if err == nil {
		return text, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}
	if c.fallback == nil {
		return "", err
	}

	fallbackText, fallbackErr := c.fallback.Complete(ctx, prompt)
	if fallbackErr != nil {
		return "", fmt.Errorf("primary completer error: %w; fallback completer error: %v", err, fallbackErr)
	}
	return fallbackText, nil
}
