package llm

import (
	"context"
	"errors"
	"sync"
)

// ErrNoModel is returned by a MockCompleter with no scripted replies, so
// callers exercise their deterministic fallbacks.
var ErrNoModel = errors.New("no language model configured")

// MockCompleter replays scripted replies in order. With nothing scripted it
// fails every call, which drives the keyword fallback paths in tests and in
// the no-model deployment mode.
type MockCompleter struct {
	mu      sync.Mutex
	replies []string
	prompts []string
	err     error
}

func NewMockCompleter(replies ...string) *MockCompleter {
	return &MockCompleter{replies: replies}
}

// Fail makes every subsequent call return err.
func (m *MockCompleter) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Prompts returns the prompts seen so far.
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", ErrNoModel
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}
