package mailcal

import (
	"context"
	"time"

	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/session"
)

// Interval is one busy window returned by a free/busy query.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Event describes a calendar event to create.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

// Client is the mail/calendar boundary. Credential refresh is the
// implementation's responsibility: on an auth-expired failure it
// re-authenticates once and retries the same call before surfacing the
// error.
type Client interface {
	ListUnread(ctx context.Context, max int) ([]session.Message, error)
	GetMessage(ctx context.Context, id string) (session.Message, error)
	Send(ctx context.Context, to, subject, body, threadID string) (string, error)
	MarkRead(ctx context.Context, id string) error
	CreateEvent(ctx context.Context, ev Event) (string, error)
	FreeBusy(ctx context.Context, start, end time.Time) (bool, []Interval, error)
}
