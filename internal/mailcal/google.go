package mailcal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/reliability"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/session"
)

// GoogleConfig carries the OAuth refresh-token credentials for the Gmail
// and Calendar REST APIs.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string

	// Base URL overrides for tests.
	GmailBaseURL    string
	CalendarBaseURL string
	TokenURL        string
}

// Google implements Client against the Gmail and Google Calendar REST APIs.
type Google struct {
	cfg    GoogleConfig
	client *http.Client

	mu          sync.Mutex
	accessToken string
}

func NewGoogle(cfg GoogleConfig) *Google {
	if cfg.GmailBaseURL == "" {
		cfg.GmailBaseURL = "https://gmail.googleapis.com"
	}
	if cfg.CalendarBaseURL == "" {
		cfg.CalendarBaseURL = "https://www.googleapis.com"
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = "https://oauth2.googleapis.com/token"
	}
	return &Google{
		cfg: cfg,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// authenticate exchanges the refresh token for a fresh access token.
func (g *Google) authenticate(ctx context.Context) error {
	form := url.Values{}
	form.Set("client_id", g.cfg.ClientID)
	form.Set("client_secret", g.cfg.ClientSecret)
	form.Set("refresh_token", g.cfg.RefreshToken)
	form.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("token request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return fmt.Errorf("token status %d: %s", res.StatusCode, string(body))
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return fmt.Errorf("token response without access_token")
	}

	g.mu.Lock()
	g.accessToken = parsed.AccessToken
	g.mu.Unlock()
	return nil
}

func (g *Google) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	tok := g.accessToken
	g.mu.Unlock()
	if tok != "" {
		return tok, nil
	}
	if err := g.authenticate(ctx); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.accessToken, nil
}

// doJSON performs an authorized request, re-authenticating once and
// retrying the same call when the access token has expired.
func (g *Google) doJSON(ctx context.Context, method, rawURL string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	attempt := func(token string) (int, []byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return 0, nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		res, err := g.client.Do(req)
		if err != nil {
			return 0, nil, fmt.Errorf("request %s: %w", rawURL, err)
		}
		defer res.Body.Close()
		data, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
		if err != nil {
			return res.StatusCode, nil, fmt.Errorf("read response: %w", err)
		}
		return res.StatusCode, data, nil
	}

	tok, err := g.token(ctx)
	if err != nil {
		return err
	}

	status, data, err := attempt(tok)
	if err != nil {
		return err
	}
	if reliability.IsAuthExpiredHTTPStatus(status) {
		if err := g.authenticate(ctx); err != nil {
			return fmt.Errorf("re-authenticate: %w", err)
		}
		g.mu.Lock()
		tok = g.accessToken
		g.mu.Unlock()
		status, data, err = attempt(tok)
		if err != nil {
			return err
		}
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%s status %d: %s", rawURL, status, truncate(string(data), 512))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (g *Google) ListUnread(ctx context.Context, max int) ([]session.Message, error) {
	if max <= 0 {
		max = 10
	}
	listURL := g.cfg.GmailBaseURL + "/gmail/v1/users/me/messages?q=" + url.QueryEscape("is:unread") + "&maxResults=" + strconv.Itoa(max)

	var listed struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := g.doJSON(ctx, http.MethodGet, listURL, nil, &listed); err != nil {
		return nil, err
	}

	out := make([]session.Message, 0, len(listed.Messages))
	for _, ref := range listed.Messages {
		msg, err := g.GetMessage(ctx, ref.ID)
		if err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

type gmailPayload struct {
	MimeType string `json:"mimeType"`
	Headers  []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"headers"`
	Body struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []gmailPayload `json:"parts"`
}

func (g *Google) GetMessage(ctx context.Context, id string) (session.Message, error) {
	var parsed struct {
		ID       string       `json:"id"`
		ThreadID string       `json:"threadId"`
		Payload  gmailPayload `json:"payload"`
	}
	getURL := g.cfg.GmailBaseURL + "/gmail/v1/users/me/messages/" + url.PathEscape(id) + "?format=full"
	if err := g.doJSON(ctx, http.MethodGet, getURL, nil, &parsed); err != nil {
		return session.Message{}, err
	}

	msg := session.Message{
		ID:       parsed.ID,
		ThreadID: parsed.ThreadID,
		Subject:  headerValue(parsed.Payload, "subject", "No Subject"),
		Sender:   headerValue(parsed.Payload, "from", "Unknown"),
		Date:     headerValue(parsed.Payload, "date", ""),
		Body:     extractBody(parsed.Payload),
	}
	return msg, nil
}

func headerValue(p gmailPayload, name, fallback string) string {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return fallback
}

// extractBody walks multipart payloads for the first text/plain part.
func extractBody(p gmailPayload) string {
	if len(p.Parts) == 0 {
		return decodeBase64URL(p.Body.Data)
	}
	for _, part := range p.Parts {
		if part.MimeType == "text/plain" && part.Body.Data != "" {
			return decodeBase64URL(part.Body.Data)
		}
	}
	for _, part := range p.Parts {
		if body := extractBody(part); body != "" {
			return body
		}
	}
	return ""
}

func decodeBase64URL(data string) string {
	if data == "" {
		return ""
	}
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(decoded)
}

func (g *Google) Send(ctx context.Context, to, subject, body, threadID string) (string, error) {
	raw := fmt.Sprintf("To: %s\r\nSubject: Re: %s\r\n\r\n%s", to, subject, body)
	payload := map[string]any{
		"raw": base64.URLEncoding.EncodeToString([]byte(raw)),
	}
	if threadID != "" {
		payload["threadId"] = threadID
	}

	var sent struct {
		ID string `json:"id"`
	}
	sendURL := g.cfg.GmailBaseURL + "/gmail/v1/users/me/messages/send"
	if err := g.doJSON(ctx, http.MethodPost, sendURL, payload, &sent); err != nil {
		return "", err
	}
	return sent.ID, nil
}

func (g *Google) MarkRead(ctx context.Context, id string) error {
	modifyURL := g.cfg.GmailBaseURL + "/gmail/v1/users/me/messages/" + url.PathEscape(id) + "/modify"
	payload := map[string]any{"removeLabelIds": []string{"UNREAD"}}
	return g.doJSON(ctx, http.MethodPost, modifyURL, payload, nil)
}

func (g *Google) CreateEvent(ctx context.Context, ev Event) (string, error) {
	payload := map[string]any{
		"summary":     ev.Summary,
		"description": ev.Description,
		"start":       map[string]string{"dateTime": ev.Start.UTC().Format(time.RFC3339), "timeZone": "UTC"},
		"end":         map[string]string{"dateTime": ev.End.UTC().Format(time.RFC3339), "timeZone": "UTC"},
	}
	if len(ev.Attendees) > 0 {
		attendees := make([]map[string]string, 0, len(ev.Attendees))
		for _, email := range ev.Attendees {
			attendees = append(attendees, map[string]string{"email": email})
		}
		payload["attendees"] = attendees
	}

	var created struct {
		HTMLLink string `json:"htmlLink"`
	}
	eventsURL := g.cfg.CalendarBaseURL + "/calendar/v3/calendars/primary/events"
	if err := g.doJSON(ctx, http.MethodPost, eventsURL, payload, &created); err != nil {
		return "", err
	}
	return created.HTMLLink, nil
}

func (g *Google) FreeBusy(ctx context.Context, start, end time.Time) (bool, []Interval, error) {
	payload := map[string]any{
		"timeMin": start.UTC().Format(time.RFC3339),
		"timeMax": end.UTC().Format(time.RFC3339),
		"items":   []map[string]string{{"id": "primary"}},
	}

	var parsed struct {
		Calendars struct {
			Primary struct {
				Busy []struct {
					Start time.Time `json:"start"`
					End   time.Time `json:"end"`
				} `json:"busy"`
			} `json:"primary"`
		} `json:"calendars"`
	}
	fbURL := g.cfg.CalendarBaseURL + "/calendar/v3/freeBusy"
	if err := g.doJSON(ctx, http.MethodPost, fbURL, payload, &parsed); err != nil {
		return false, nil, err
	}

	busy := make([]Interval, 0, len(parsed.Calendars.Primary.Busy))
	for _, b := range parsed.Calendars.Primary.Busy {
		busy = append(busy, Interval{Start: b.Start, End: b.End})
	}
	return len(busy) == 0, busy, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
