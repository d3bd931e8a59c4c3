package mailcal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/session"
)

// SendCall records one Send invocation on the mock.
type SendCall struct {
	To       string
	Subject  string
	Body     string
	ThreadID string
}

// Mock is an in-memory Client for tests and for running without Google
// credentials.
type Mock struct {
	mu       sync.Mutex
	Messages []session.Message
	Busy     []Interval

	SendCalls     []SendCall
	ReadIDs       []string
	CreatedEvents []Event

	SendErr error
	ListErr error
}

func NewMock(messages ...session.Message) *Mock {
	return &Mock{Messages: messages}
}

func (m *Mock) ListUnread(_ context.Context, max int) ([]session.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	if max <= 0 || max > len(m.Messages) {
		max = len(m.Messages)
	}
	out := make([]session.Message, max)
	copy(out, m.Messages[:max])
	return out, nil
}

func (m *Mock) GetMessage(_ context.Context, id string) (session.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.Messages {
		if msg.ID == id {
			return msg, nil
		}
	}
	return session.Message{}, fmt.Errorf("message %q not found", id)
}

func (m *Mock) Send(_ context.Context, to, subject, body, threadID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return "", m.SendErr
	}
	m.SendCalls = append(m.SendCalls, SendCall{To: to, Subject: subject, Body: body, ThreadID: threadID})
	return fmt.Sprintf("sent-%d", len(m.SendCalls)), nil
}

func (m *Mock) MarkRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadIDs = append(m.ReadIDs, id)
	return nil
}

func (m *Mock) CreateEvent(_ context.Context, ev Event) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreatedEvents = append(m.CreatedEvents, ev)
	return fmt.Sprintf("https://calendar.example/event/%d", len(m.CreatedEvents)), nil
}

func (m *Mock) FreeBusy(_ context.Context, start, end time.Time) (bool, []Interval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var overlapping []Interval
	for _, b := range m.Busy {
		if b.Start.Before(end) && b.End.After(start) {
			overlapping = append(overlapping, b)
		}
	}
	return len(overlapping) == 0, overlapping, nil
}
