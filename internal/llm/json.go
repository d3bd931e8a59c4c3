package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls the first JSON object out of a model reply, tolerating
// markdown fences and surrounding prose.
func ExtractJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		if idx := strings.Index(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// Classify runs a completion and decodes the JSON object in the reply into
// out. It is the primary strategy of every classification step; callers
// treat any returned error as the signal to run their deterministic
// fallback instead.
func Classify(ctx context.Context, c Completer, prompt string, out any) error {
	raw, err := c.Complete(ctx, prompt)
	if err != nil {
		return err
	}
	obj, ok := ExtractJSON(raw)
	if !ok {
		return fmt.Errorf("no JSON object in model reply")
	}
	if err := json.Unmarshal([]byte(obj), out); err != nil {
		return fmt.Errorf("decode model reply: %w", err)
	}
	return nil
}
