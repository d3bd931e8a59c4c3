package session

import "time"

// Domain identifies which specialized agent owns a turn.
type Domain string

const (
	DomainSearch  Domain = "search"
	DomainWeather Domain = "weather"
	DomainEmail   Domain = "email"
	DomainGrocery Domain = "grocery"
)

// Valid reports whether d is one of the four routable domains.
func (d Domain) Valid() bool {
	switch d {
	case DomainSearch, DomainWeather, DomainEmail, DomainGrocery:
		return true
	default:
		return false
	}
}

// Stage tracks the grocery order confirmation flow.
type Stage string

const (
	StageInitial       Stage = "initial"
	StageAwaitingYes   Stage = "awaiting_yes"
	StageAwaitingFinal Stage = "awaiting_final"
	StageCompleted     Stage = "completed"
	StageCancelled     Stage = "cancelled"
)

// Terminal reports whether the stage ends the current order flow.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageCancelled
}

// CartItem is one selected grocery offer. Price is a formatted decimal
// string with two fraction digits, matching what providers return.
type CartItem struct {
	Name  string `json:"name"`
	Price string `json:"price"`
	Store string `json:"store"`
	Code  string `json:"code,omitempty"`
}

// GroceryContext carries the grocery agent's per-session state.
// Invariant: Cart is non-empty only while a confirmation is in flight.
type GroceryContext struct {
	Cart                 []CartItem `json:"cart,omitempty"`
	Stage                Stage      `json:"confirmation_stage,omitempty"`
	AwaitingConfirmation bool       `json:"awaiting_confirmation,omitempty"`
}

// Category names a search result category.
type Category string

const (
	CategoryWeb      Category = "web"
	CategoryNews     Category = "news"
	CategoryImages   Category = "images"
	CategoryVideos   Category = "videos"
	CategoryPlaces   Category = "places"
	CategoryShopping Category = "shopping"
	CategoryScholar  Category = "scholar"
)

// Result is a normalized search record. Only the fields relevant to its
// category are populated; a Result is immutable once cached.
type Result struct {
	Title   string  `json:"title"`
	Snippet string  `json:"snippet,omitempty"`
	Source  string  `json:"source,omitempty"`
	Link    string  `json:"link,omitempty"`
	Date    string  `json:"date,omitempty"`
	Address string  `json:"address,omitempty"`
	Phone   string  `json:"phone,omitempty"`
	Price   string  `json:"price,omitempty"`
	Rating  float64 `json:"rating,omitempty"`
}

// NewsContext caches the latest search so follow-up turns can refer back
// to it. At most one category's list is authoritative at a time: a new
// search overwrites its category list and repoints LastSearchType.
type NewsContext struct {
	LastSearchType Category              `json:"last_search_type,omitempty"`
	LastQuery      string                `json:"last_query,omitempty"`
	Results        map[Category][]Result `json:"results,omitempty"`
}

// Current returns the authoritative result list, if any.
func (c NewsContext) Current() []Result {
	if c.LastSearchType == "" || c.Results == nil {
		return nil
	}
	return c.Results[c.LastSearchType]
}

// Message is a normalized mail message.
type Message struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id,omitempty"`
	Subject  string `json:"subject"`
	Sender   string `json:"sender"`
	Date     string `json:"date,omitempty"`
	Body     string `json:"body,omitempty"`
}

// DraftReply is a generated reply pending user confirmation.
type DraftReply struct {
	MessageID string `json:"message_id"`
	Body      string `json:"body"`
}

// MeetingProposal is an extracted meeting pending user confirmation.
type MeetingProposal struct {
	MessageID       string `json:"message_id"`
	Topic           string `json:"topic"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	Available       bool   `json:"available"`
}

// EmailContext carries the email agent's per-session state, including the
// pending actions awaiting a yes/no. Drafting replaces any previous pending
// state; a meeting-request draft sets both PendingDraft and PendingMeeting,
// confirmed in that order (first yes sends the reply, next yes schedules).
type EmailContext struct {
	Messages       []Message        `json:"messages,omitempty"`
	Selected       int              `json:"selected,omitempty"` // 1-based, 0 = none
	PendingDraft   *DraftReply      `json:"pending_draft,omitempty"`
	PendingMeeting *MeetingProposal `json:"pending_meeting,omitempty"`
}

// SelectedMessage returns the currently selected message, if any.
func (c EmailContext) SelectedMessage() (Message, bool) {
	if c.Selected < 1 || c.Selected > len(c.Messages) {
		return Message{}, false
	}
	return c.Messages[c.Selected-1], true
}

// Session is the per-conversation state. Created lazily on the first turn
// for a session key and mutated after every turn; removed only by an
// explicit clear request.
type Session struct {
	ID           string         `json:"session_id"`
	History      []string       `json:"history,omitempty"`
	CurrentAgent Domain         `json:"current_agent,omitempty"`
	News         NewsContext    `json:"news_context"`
	Grocery      GroceryContext `json:"grocery_context"`
	Email        EmailContext   `json:"email_context"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// New returns a fresh session for the given key.
func New(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
