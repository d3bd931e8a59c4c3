// Package router decides which domain agent handles a turn.
package router

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/llm"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/observability"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/session"
)

// confirmationTokens are bare replies that belong to an in-flight grocery
// confirmation rather than a new request.
var confirmationTokens = map[string]bool{
	"yes": true, "no": true, "confirm": true, "cancel": true,
	"yeah": true, "sure": true, "ok": true, "okay": true,
	"proceed": true, "go ahead": true, "not now": true,
	"stop": true, "nevermind": true, "nope": true,
}

// Router classifies each turn to one of the four domains, preferring
// continuity with an active grocery flow.
type Router struct {
	llm     llm.Completer
	metrics *observability.Metrics
}

// New builds a router. metrics may be nil.
func New(completer llm.Completer, metrics *observability.Metrics) *Router {
	return &Router{llm: completer, metrics: metrics}
}

// Route returns the domain for this turn. It never fails: classification
// errors fall back to keyword heuristics and finally to the search domain.
func (r *Router) Route(ctx context.Context, text string, sess *session.Session) session.Domain {
	if sess.CurrentAgent == session.DomainGrocery {
		gc := sess.Grocery
		if gc.AwaitingConfirmation || (gc.Stage != "" && gc.Stage != session.StageInitial) {
			return session.DomainGrocery
		}
		if confirmationTokens[strings.ToLower(strings.TrimSpace(text))] {
			return session.DomainGrocery
		}
	}

	if d, err := r.classify(ctx, text, sess); err == nil {
		return d
	} else {
		log.Printf("router: classification: %v", err)
	}
	if r.metrics != nil {
		r.metrics.RoutingFallback.Inc()
	}
	return keywordDomain(text)
}

func (r *Router) classify(ctx context.Context, text string, sess *session.Session) (session.Domain, error) {
	prompt := fmt.Sprintf(`Analyze the user request and determine which specialized agent should handle it.

User: %q

Context: %s

Agents:
1. search: news, research papers, places, shopping products, images, videos, web search
2. weather: weather information, forecasts, comparisons
3. email: email management, Gmail, meeting scheduling, calendar
4. grocery: grocery shopping, food items, meal ingredients

If there is an ongoing conversation with an agent in context, prefer to stay with that agent unless the query clearly indicates switching.

Return ONLY the agent name: search, weather, email, or grocery`, text, stateSummary(sess))

	raw, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}

	answer := strings.ToLower(strings.TrimSpace(raw))
	for _, d := range []session.Domain{session.DomainSearch, session.DomainWeather, session.DomainEmail, session.DomainGrocery} {
		if strings.Contains(answer, string(d)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unrecognized domain %q", raw)
}

// stateSummary is the short context block shown to the classifier.
func stateSummary(sess *session.Session) string {
	var parts []string
	if sess.CurrentAgent != "" {
		parts = append(parts, fmt.Sprintf("active agent: %s", sess.CurrentAgent))
	}
	if len(sess.Grocery.Cart) > 0 {
		parts = append(parts, fmt.Sprintf("grocery cart: %d items, stage %s", len(sess.Grocery.Cart), sess.Grocery.Stage))
	}
	if sess.News.LastSearchType != "" {
		parts = append(parts, fmt.Sprintf("last search: %s for %q", sess.News.LastSearchType, sess.News.LastQuery))
	}
	if sess.Email.Selected > 0 {
		parts = append(parts, fmt.Sprintf("email selected: #%d", sess.Email.Selected))
	}
	if len(parts) == 0 {
		return "new conversation"
	}
	return strings.Join(parts, "; ")
}

func keywordDomain(text string) session.Domain {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "weather", "forecast", "temperature", "rain", "sunny", "humidity"):
		return session.DomainWeather
	case containsAny(lower, "email", "inbox", "gmail", "calendar", "meeting", "schedule"):
		return session.DomainEmail
	case containsAny(lower, "grocery", "groceries", "ingredients", "supermarket", "cart"):
		return session.DomainGrocery
	default:
		return session.DomainSearch
	}
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
