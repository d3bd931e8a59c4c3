package session

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("session not found")

// Store persists conversation sessions keyed by session id. The turn
// pipeline treats the session as an explicit input/output pair: Get,
// mutate, Put. Callers must serialize turns for the same session id.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	Close() error
}
