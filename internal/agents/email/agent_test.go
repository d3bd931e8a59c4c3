package email

import (
	"context"
	"strings"
	"testing"

	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/llm"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/mailcal"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/session"
)

func inboxMock() *mailcal.Mock {
	return mailcal.NewMock(
		session.Message{ID: "m1", ThreadID: "t1", Subject: "Quarterly report", Sender: "alice@example.com", Date: "Mon, 31 Aug 2026", Body: "Please review the attached report."},
		session.Message{ID: "m2", ThreadID: "t2", Subject: "Team sync", Sender: "bob@example.com", Date: "Mon, 31 Aug 2026", Body: "Can we meet on 2026-09-03 at 14:00 for an hour?"},
	)
}

func TestListCachesMessages(t *testing.T) {
	agent := New(llm.NewMockCompleter(), inboxMock())

	reply, ec := agent.Process(context.Background(), "check my emails", session.EmailContext{})
	if len(ec.Messages) != 2 {
		t.Fatalf("cached %d messages, want 2", len(ec.Messages))
	}
	for _, want := range []string{"1. From: alice@example.com", "2. From: bob@example.com", "Quarterly report"} {
		if !strings.Contains(reply, want) {
			t.Errorf("list reply missing %q: %s", want, reply)
		}
	}
}

func TestSelectionIsIdempotentAndBounded(t *testing.T) {
	agent := New(llm.NewMockCompleter(), inboxMock())
	ctx := context.Background()

	_, ec := agent.Process(ctx, "list my unread emails", session.EmailContext{})

	first, ec := agent.Process(ctx, "2", ec)
	second, ec := agent.Process(ctx, "2", ec)
	if first != second {
		t.Errorf("selecting the same index twice differed:\n%s\n%s", first, second)
	}
	if ec.Selected != 2 {
		t.Fatalf("Selected = %d, want 2", ec.Selected)
	}

	reply, ec := agent.Process(ctx, "9", ec)
	if !strings.Contains(reply, "choose 1-2") {
		t.Errorf("out-of-range reply = %s", reply)
	}
	if ec.Selected != 2 {
		t.Errorf("out-of-range selection mutated state: Selected = %d", ec.Selected)
	}
}

func TestSelectionFetchesWhenNothingCached(t *testing.T) {
	agent := New(llm.NewMockCompleter(), inboxMock())

	reply, ec := agent.Process(context.Background(), "1", session.EmailContext{})
	if ec.Selected != 1 {
		t.Fatalf("Selected = %d, want 1", ec.Selected)
	}
	if !strings.Contains(reply, "alice@example.com") {
		t.Errorf("selection reply = %s", reply)
	}
}

func TestFullContentRequiresSelection(t *testing.T) {
	agent := New(llm.NewMockCompleter(), inboxMock())
	ctx := context.Background()

	reply, ec := agent.Process(ctx, "full content", session.EmailContext{})
	if !strings.Contains(reply, "No email selected") {
		t.Errorf("reply = %s", reply)
	}

	_, ec = agent.Process(ctx, "1", ec)
	reply, _ = agent.Process(ctx, "full content", ec)
	if !strings.Contains(reply, "Please review the attached report.") {
		t.Errorf("full content reply = %s", reply)
	}
}

func TestDraftThenConfirmRoundTrip(t *testing.T) {
	mail := inboxMock()
	model := llm.NewMockCompleter(
		`{"priority": "High", "category": "Question", "action": "Reply"}`,
		"Hi Alice, I will review the report today. Best regards.",
	)
	agent := New(model, mail)
	ctx := context.Background()

	_, ec := agent.Process(ctx, "check emails", session.EmailContext{})
	_, ec = agent.Process(ctx, "1", ec)

	reply, ec := agent.Process(ctx, "draft reply", ec)
	if ec.PendingDraft == nil {
		t.Fatal("no pending draft after drafting")
	}
	if !strings.Contains(reply, "I will review the report today") {
		t.Errorf("draft reply = %s", reply)
	}

	reply, ec = agent.Process(ctx, "yes", ec)
	if len(mail.SendCalls) != 1 {
		t.Fatalf("send calls = %d, want 1", len(mail.SendCalls))
	}
	call := mail.SendCalls[0]
	if call.To != "alice@example.com" || call.ThreadID != "t1" {
		t.Errorf("send call = %+v", call)
	}
	if call.Body != "Hi Alice, I will review the report today. Best regards." {
		t.Errorf("sent body = %q", call.Body)
	}
	if len(mail.ReadIDs) != 1 || mail.ReadIDs[0] != "m1" {
		t.Errorf("read ids = %v", mail.ReadIDs)
	}
	if ec.PendingDraft != nil {
		t.Error("pending draft not cleared after send")
	}
	if !strings.Contains(reply, "Reply sent successfully") {
		t.Errorf("confirm reply = %s", reply)
	}

	reply, _ = agent.Process(ctx, "yes", ec)
	if !strings.Contains(reply, "Nothing to confirm") {
		t.Errorf("second yes reply = %s", reply)
	}
	if len(mail.SendCalls) != 1 {
		t.Errorf("second yes sent again: %d calls", len(mail.SendCalls))
	}
}

func TestDeclineClearsPending(t *testing.T) {
	agent := New(llm.NewMockCompleter(), inboxMock())

	ec := session.EmailContext{
		PendingDraft: &session.DraftReply{MessageID: "m1", Body: "draft"},
	}
	reply, ec := agent.Process(context.Background(), "no", ec)
	if ec.PendingDraft != nil {
		t.Error("pending draft survived a decline")
	}
	if !strings.Contains(reply, "Cancelled") {
		t.Errorf("reply = %s", reply)
	}
}

func TestMeetingRequestSchedulesOnConfirm(t *testing.T) {
	mail := inboxMock()
	model := llm.NewMockCompleter(
		`{"priority": "High", "category": "Meeting Request", "action": "Schedule"}`,
		`{"has_meeting": true, "proposed_date": "2026-09-03", "proposed_time": "14:00", "duration_minutes": 60, "topic": "Team sync"}`,
		"Hi Bob, Thursday at 2pm works for me. See you then.",
	)
	agent := New(model, mail)
	ctx := context.Background()

	_, ec := agent.Process(ctx, "check emails", session.EmailContext{})
	_, ec = agent.Process(ctx, "2", ec)

	reply, ec := agent.Process(ctx, "draft reply", ec)
	if ec.PendingMeeting == nil {
		t.Fatal("no pending meeting after drafting a meeting request")
	}
	if !ec.PendingMeeting.Available {
		t.Error("free calendar should mark the meeting available")
	}
	if !strings.Contains(reply, "Meeting to schedule: Team sync") {
		t.Errorf("draft reply = %s", reply)
	}

	// The draft is sent first; a later confirm handles the meeting.
	_, ec = agent.Process(ctx, "yes", ec)
	reply, ec = agent.Process(ctx, "yes", ec)
	if len(mail.CreatedEvents) != 1 {
		t.Fatalf("created events = %d, want 1", len(mail.CreatedEvents))
	}
	ev := mail.CreatedEvents[0]
	if ev.Summary != "Team sync" {
		t.Errorf("event summary = %q", ev.Summary)
	}
	if got := ev.End.Sub(ev.Start).Minutes(); got != 60 {
		t.Errorf("event duration = %v minutes", got)
	}
	if len(ev.Attendees) != 1 || ev.Attendees[0] != "bob@example.com" {
		t.Errorf("attendees = %v", ev.Attendees)
	}
	if ec.PendingMeeting != nil {
		t.Error("pending meeting not cleared after scheduling")
	}
	if !strings.Contains(reply, "Meeting scheduled") {
		t.Errorf("confirm reply = %s", reply)
	}
}

func TestTriageFallbackDefaults(t *testing.T) {
	agent := New(llm.NewMockCompleter(), inboxMock())

	result := agent.triage(context.Background(), session.Message{ID: "m1", Subject: "x", Body: "y"})
	if result.priority != "Medium" || result.category != "Information" || result.action != "Reply" {
		t.Errorf("fallback triage = %+v", result)
	}
}

func TestAnalyzeHasNoSideEffects(t *testing.T) {
	mail := inboxMock()
	model := llm.NewMockCompleter(
		`{"priority": "Low", "category": "Information", "action": "Archive"}`,
	)
	agent := New(model, mail)
	ctx := context.Background()

	_, ec := agent.Process(ctx, "check emails", session.EmailContext{})
	_, ec = agent.Process(ctx, "1", ec)
	reply, ec := agent.Process(ctx, "analyze", ec)

	if !strings.Contains(reply, "Priority: Low") {
		t.Errorf("analysis reply = %s", reply)
	}
	if len(mail.SendCalls) != 0 || len(mail.ReadIDs) != 0 || len(mail.CreatedEvents) != 0 {
		t.Error("analysis performed side effects")
	}
	if ec.PendingDraft != nil {
		t.Error("analysis parked a pending draft")
	}
}
