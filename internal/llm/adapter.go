package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Completer issues a single-prompt completion against a language model.
// Implementations may be a real model call or a deterministic stub; every
// classification call site pairs a Completer with a keyword fallback so a
// failing Completer degrades the pipeline instead of breaking it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config controls adapter construction.
type Config struct {
	Mode         string
	GeminiAPIKey string
	GeminiModel  string
	HTTPURL      string
	HTTPAPIKey   string
	HTTPModel    string
}

// NewAdapter builds a Completer for the configured mode.
func NewAdapter(cfg Config) (Completer, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		return newAutoAdapter(cfg), nil
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return nil, errors.New("gemini API key is required for gemini mode")
		}
		return NewGeminiAdapter(cfg.GeminiAPIKey, cfg.GeminiModel)
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("llm HTTP url is required for http mode")
		}
		return NewHTTPAdapter(cfg.HTTPURL, cfg.HTTPAPIKey, cfg.HTTPModel), nil
	case "mock":
		return NewMockCompleter(), nil
	default:
		return nil, fmt.Errorf("unsupported llm adapter mode %q", cfg.Mode)
	}
}

func newAutoAdapter(cfg Config) Completer {
	var primary Completer
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		if g, err := NewGeminiAdapter(cfg.GeminiAPIKey, cfg.GeminiModel); err == nil {
			primary = g
		}
	}

	var secondary Completer
	if strings.TrimSpace(cfg.HTTPURL) != "" {
		secondary = NewHTTPAdapter(cfg.HTTPURL, cfg.HTTPAPIKey, cfg.HTTPModel)
	}

	switch {
	case primary != nil && secondary != nil:
		return NewFallbackCompleter(primary, secondary)
	case primary != nil:
		return primary
	case secondary != nil:
		return secondary
	default:
		// Without any model the deterministic keyword fallbacks carry the
		// whole pipeline, which is the intended degraded mode.
		return NewMockCompleter()
	}
}
