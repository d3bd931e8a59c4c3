// Package email implements the mail and calendar agent: inbox listing,
// positional selection, analysis, reply drafting and the yes/no
// confirmation flow for pending drafts and meeting proposals.
package email

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/llm"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/mailcal"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/session"
)

const (
	listLimit    = 20
	previewLimit = 500
)

// Agent runs email turns. All pending state lives in the session's email
// context, so a confirmation can arrive on any later turn or after a
// restart.
type Agent struct {
	llm  llm.Completer
	mail mailcal.Client
}

func New(completer llm.Completer, mail mailcal.Client) *Agent {
	return &Agent{llm: completer, mail: mail}
}

var confirmTokens = map[string]bool{
	"yes": true, "y": true, "confirm": true, "send": true, "send it": true,
}

var declineTokens = map[string]bool{
	"no": true, "n": true, "cancel": true, "skip": true,
}

var selectRe = regexp.MustCompile(`\b(\d+)\b`)

// Process handles one email turn and returns the reply plus the updated
// context.
func (a *Agent) Process(ctx context.Context, text string, ec session.EmailContext) (string, session.EmailContext) {
	lower := strings.ToLower(strings.TrimSpace(text))

	switch {
	case confirmTokens[lower]:
		return a.confirm(ctx, ec)
	case declineTokens[lower]:
		ec.PendingDraft = nil
		ec.PendingMeeting = nil
		return "Cancelled. What would you like to do next?", ec
	}

	if containsAny(lower, "check", "show", "list") && containsAny(lower, "email", "inbox", "unread") {
		return a.list(ctx, ec)
	}

	if m := selectRe.FindStringSubmatch(text); m != nil && !containsAny(lower, "reply", "draft", "schedule") {
		return a.selectMessage(ctx, m[1], ec)
	}

	switch lower {
	case "full", "full content", "show all", "read all":
		return fullContent(ec), ec
	}

	if strings.Contains(lower, "analyze") {
		return a.analyze(ctx, ec)
	}

	if containsAny(lower, "draft", "reply", "respond") {
		return a.draft(ctx, ec)
	}

	return help(ec), ec
}

// confirm executes the pending action, preferring a draft over a meeting
// when both somehow exist.
func (a *Agent) confirm(ctx context.Context, ec session.EmailContext) (string, session.EmailContext) {
	if ec.PendingDraft != nil {
		draft := *ec.PendingDraft
		ec.PendingDraft = nil

		msg, ok := messageByID(ec.Messages, draft.MessageID)
		if !ok {
			return "Sorry, the message this draft replied to is no longer cached.", ec
		}
		id, err := a.mail.Send(ctx, msg.Sender, msg.Subject, draft.Body, msg.ThreadID)
		if err != nil {
			return fmt.Sprintf("Failed to send the reply: %v", err), ec
		}
		if err := a.mail.MarkRead(ctx, msg.ID); err != nil {
			log.Printf("email: mark read %s: %v", msg.ID, err)
		}
		ec.Selected = 0
		return fmt.Sprintf("Reply sent successfully (ID: %s).", id), ec
	}

	if ec.PendingMeeting != nil {
		mtg := *ec.PendingMeeting
		ec.PendingMeeting = nil

		start, err := time.Parse("2006-01-02 15:04", mtg.Date+" "+mtg.Time)
		if err != nil {
			return fmt.Sprintf("Couldn't schedule the meeting: bad date or time (%v).", err), ec
		}
		end := start.Add(time.Duration(mtg.DurationMinutes) * time.Minute)

		var attendees []string
		description := ""
		if msg, ok := messageByID(ec.Messages, mtg.MessageID); ok {
			attendees = []string{msg.Sender}
			description = fmt.Sprintf("Meeting with %s", msg.Sender)
		}
		link, err := a.mail.CreateEvent(ctx, mailcal.Event{
			Summary:     mtg.Topic,
			Description: description,
			Start:       start,
			End:         end,
			Attendees:   attendees,
		})
		if err != nil {
			return fmt.Sprintf("Failed to schedule the meeting: %v", err), ec
		}
		return fmt.Sprintf("Meeting scheduled! %s", link), ec
	}

	return "Nothing to confirm. Please select an email first or request a draft.", ec
}

// list re-fetches the live unread set and caches it for positional
// selection. A refresh renumbers the list, so any prior selection is
// dropped.
func (a *Agent) list(ctx context.Context, ec session.EmailContext) (string, session.EmailContext) {
	messages, err := a.mail.ListUnread(ctx, listLimit)
	if err != nil {
		return fmt.Sprintf("Couldn't fetch your inbox: %v", err), ec
	}
	ec.Messages = messages
	ec.Selected = 0

	if len(messages) == 0 {
		return "No unread emails found.", ec
	}

	var b strings.Builder
	b.WriteString("Your unread emails:\n")
	for i, msg := range messages {
		fmt.Fprintf(&b, "%d. From: %s\n   Subject: %s\n", i+1, msg.Sender, msg.Subject)
	}
	b.WriteString("Type a number to select an email.")
	return b.String(), ec
}

func (a *Agent) selectMessage(ctx context.Context, token string, ec session.EmailContext) (string, session.EmailContext) {
	if len(ec.Messages) == 0 {
		messages, err := a.mail.ListUnread(ctx, listLimit)
		if err != nil {
			return fmt.Sprintf("Couldn't fetch your inbox: %v", err), ec
		}
		ec.Messages = messages
	}

	var n int
	fmt.Sscanf(token, "%d", &n)
	if n < 1 || n > len(ec.Messages) {
		return fmt.Sprintf("Invalid selection. Please choose 1-%d.", len(ec.Messages)), ec
	}
	ec.Selected = n

	msg := ec.Messages[n-1]
	preview := msg.Body
	if len(preview) > previewLimit {
		preview = preview[:previewLimit] + "..."
	}
	return fmt.Sprintf("Email selected.\nFrom: %s\nSubject: %s\nDate: %s\n\n%s\n\n"+
		"Say 'draft reply' for a response, 'full content' for the whole email, or 'analyze' for insights.",
		msg.Sender, msg.Subject, msg.Date, preview), ec
}

func fullContent(ec session.EmailContext) string {
	msg, ok := ec.SelectedMessage()
	if !ok {
		return "No email selected. Please select an email first."
	}
	return fmt.Sprintf("From: %s\nSubject: %s\nDate: %s\n\n%s",
		msg.Sender, msg.Subject, msg.Date, msg.Body)
}

func (a *Agent) analyze(ctx context.Context, ec session.EmailContext) (string, session.EmailContext) {
	msg, ok := ec.SelectedMessage()
	if !ok {
		return "No email selected. Please select an email first.", ec
	}

	result := a.runPipeline(ctx, msg)

	var b strings.Builder
	b.WriteString("Email analysis:\n")
	fmt.Fprintf(&b, "Priority: %s\nCategory: %s\nRecommended action: %s\n", result.priority, result.category, result.action)
	if result.meeting != nil {
		fmt.Fprintf(&b, "\nMeeting detected:\nTopic: %s\nDate: %s at %s\n", result.meeting.Topic, result.meeting.Date, result.meeting.Time)
		if result.meeting.Available {
			b.WriteString("Calendar: available\n")
		} else {
			b.WriteString("Calendar: conflict\n")
		}
	}
	return strings.TrimRight(b.String(), "\n"), ec
}

// draft runs the full pipeline and parks the generated reply (and any
// detected meeting) as the pending action for the next confirmation turn.
func (a *Agent) draft(ctx context.Context, ec session.EmailContext) (string, session.EmailContext) {
	msg, ok := ec.SelectedMessage()
	if !ok {
		return "No email selected. Please select an email first.", ec
	}

	result := a.runPipeline(ctx, msg)
	if result.draft == "" {
		return "Sorry, I couldn't create a draft right now.", ec
	}

	ec.PendingDraft = &session.DraftReply{MessageID: msg.ID, Body: result.draft}
	ec.PendingMeeting = result.meeting

	var b strings.Builder
	fmt.Fprintf(&b, "Draft reply:\n\n%s\n\n", result.draft)
	if result.meeting != nil && result.meeting.Available {
		fmt.Fprintf(&b, "Meeting to schedule: %s on %s at %s\n\n", result.meeting.Topic, result.meeting.Date, result.meeting.Time)
	}
	b.WriteString("Say 'yes' to send or 'no' to cancel.")
	return b.String(), ec
}

type pipelineResult struct {
	priority string
	category string
	action   string
	meeting  *session.MeetingProposal
	draft    string
}

// runPipeline is the triage, meeting extraction, draft generation sequence.
// It performs no side effects; send, schedule and mark-read happen only on
// an explicit confirmation turn.
func (a *Agent) runPipeline(ctx context.Context, msg session.Message) pipelineResult {
	result := a.triage(ctx, msg)

	if result.category == "Meeting Request" {
		result.meeting = a.extractMeeting(ctx, msg)
	}

	if result.meeting != nil || result.action == "Reply" || result.action == "Action Required" {
		result.draft = a.generateDraft(ctx, msg, result)
	}
	return result
}

func (a *Agent) triage(ctx context.Context, msg session.Message) pipelineResult {
	prompt := fmt.Sprintf(`Analyze this email and provide:
1. Priority (High/Medium/Low)
2. Category (Meeting Request/Question/Information/Action Required/Newsletter/Spam)
3. Recommended Action (Reply/Schedule/Archive/Forward/Flag)

Email Subject: %s
Email From: %s
Email Content: %s

Respond in JSON format:
{"priority": "...", "category": "...", "action": "..."}`, msg.Subject, msg.Sender, msg.Body)

	var parsed struct {
		Priority string `json:"priority"`
		Category string `json:"category"`
		Action   string `json:"action"`
	}
	if err := llm.Classify(ctx, a.llm, prompt, &parsed); err != nil || parsed.Priority == "" {
		return pipelineResult{priority: "Medium", category: "Information", action: "Reply"}
	}
	return pipelineResult{priority: parsed.Priority, category: parsed.Category, action: parsed.Action}
}

func (a *Agent) extractMeeting(ctx context.Context, msg session.Message) *session.MeetingProposal {
	prompt := fmt.Sprintf(`Extract meeting details from this email:

Subject: %s
Content: %s

Provide in JSON format:
{"has_meeting": true, "proposed_date": "YYYY-MM-DD", "proposed_time": "HH:MM", "duration_minutes": 60, "topic": "..."}`,
		msg.Subject, msg.Body)

	var parsed struct {
		HasMeeting      bool   `json:"has_meeting"`
		ProposedDate    string `json:"proposed_date"`
		ProposedTime    string `json:"proposed_time"`
		DurationMinutes int    `json:"duration_minutes"`
		Topic           string `json:"topic"`
	}
	if err := llm.Classify(ctx, a.llm, prompt, &parsed); err != nil || !parsed.HasMeeting {
		return nil
	}
	if parsed.DurationMinutes <= 0 {
		parsed.DurationMinutes = 60
	}

	mtg := &session.MeetingProposal{
		MessageID:       msg.ID,
		Topic:           parsed.Topic,
		Date:            parsed.ProposedDate,
		Time:            parsed.ProposedTime,
		DurationMinutes: parsed.DurationMinutes,
	}
	if mtg.Topic == "" {
		mtg.Topic = msg.Subject
	}

	start, err := time.Parse("2006-01-02 15:04", mtg.Date+" "+mtg.Time)
	if err != nil {
		log.Printf("email: meeting time parse: %v", err)
		return mtg
	}
	end := start.Add(time.Duration(mtg.DurationMinutes) * time.Minute)
	free, _, err := a.mail.FreeBusy(ctx, start, end)
	if err != nil {
		log.Printf("email: free/busy: %v", err)
		return mtg
	}
	mtg.Available = free
	return mtg
}

func (a *Agent) generateDraft(ctx context.Context, msg session.Message, result pipelineResult) string {
	context := fmt.Sprintf(`Original Email Subject: %s
From: %s
Content: %s

Category: %s
Priority: %s`, msg.Subject, msg.Sender, msg.Body, result.category, result.priority)

	if result.meeting != nil {
		if result.meeting.Available {
			context += "\n\nMeeting Request: ACCEPTED - Calendar is free at the proposed time"
		} else {
			context += "\n\nMeeting Request: DECLINED - Calendar conflict. Suggest alternative times."
		}
	}

	prompt := context + `

Write a professional, concise, and warm email response.
- Be helpful and clear
- If the meeting is accepted, confirm the details
- If the meeting conflicts, politely suggest alternatives
- Match the tone of the original email`

	body, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		log.Printf("email: draft generation: %v", err)
		return ""
	}
	return strings.TrimSpace(body)
}

func help(ec session.EmailContext) string {
	if len(ec.Messages) == 0 {
		return "I can help with your Gmail inbox, meeting scheduling, and drafting replies. " +
			"Try 'check my emails' to get started."
	}
	return "Available commands: select an email by number, 'draft reply', 'full content', 'analyze', or 'check emails' to refresh."
}

func messageByID(messages []session.Message, id string) (session.Message, bool) {
	for _, m := range messages {
		if m.ID == id {
			return m, true
		}
	}
	return session.Message{}, false
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
