// Package assistant orchestrates one conversational turn: route the
// message to a domain agent, run it against the session state, and
// persist the updated session.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/agents/email"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/agents/grocery"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/agents/news"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/agents/weather"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/observability"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/policy"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/router"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/session"
)

const historyTail = 10

const apology = "Sorry, something went wrong on my side. Please try that again."

// Result is the outcome of one processed turn.
type Result struct {
	AgentName    string         `json:"agent_name"`
	Response     string         `json:"response"`
	SessionID    string         `json:"session_id"`
	History      []string       `json:"conversation_history"`
	CurrentAgent session.Domain `json:"current_agent,omitempty"`
	Stage        string         `json:"stage,omitempty"`
}

// Service runs turns. Turns for the same session are serialized by a
// per-session lock; different sessions run fully in parallel.
type Service struct {
	store   session.Store
	router  *router.Router
	news    *news.Agent
	weather *weather.Agent
	email   *email.Agent
	grocery *grocery.Agent
	metrics *observability.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(store session.Store, rt *router.Router, newsAgent *news.Agent, weatherAgent *weather.Agent, emailAgent *email.Agent, groceryAgent *grocery.Agent, metrics *observability.Metrics) *Service {
	return &Service{
		store:   store,
		router:  rt,
		news:    newsAgent,
		weather: weatherAgent,
		email:   emailAgent,
		grocery: groceryAgent,
		metrics: metrics,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Store exposes the session store for introspection endpoints.
func (s *Service) Store() session.Store {
	return s.store
}

func (s *Service) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// ProcessTurn handles one message. It always produces a Result with a
// reply, even when routing, agents or the store fail.
func (s *Service) ProcessTurn(ctx context.Context, sessionID, message string) Result {
	if sessionID == "" {
		sessionID = "default"
	}

	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	started := time.Now()

	sess, err := s.store.Get(ctx, sessionID)
	created := false
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNotFound):
		sess = session.New(sessionID)
		created = true
	default:
		log.Printf("assistant: load session %s: %v", sessionID, err)
		sess = session.New(sessionID)
	}

	domain, reply := s.dispatch(ctx, message, sess)

	if domain == session.DomainGrocery && sess.Grocery.Stage.Terminal() {
		sess.CurrentAgent = ""
	} else {
		sess.CurrentAgent = domain
	}

	userEntry, _ := policy.RedactPII(fmt.Sprintf("You (%s): %s", domain, message))
	assistantEntry, _ := policy.RedactPII("Assistant: " + reply)
	sess.History = append(sess.History, userEntry, assistantEntry)
	sess.UpdatedAt = time.Now().UTC()

	if err := s.store.Put(ctx, sess); err != nil {
		log.Printf("assistant: save session %s: %v", sessionID, err)
	}
	if created {
		s.syncActiveSessions(ctx)
	}

	if s.metrics != nil {
		s.metrics.Turns.WithLabelValues(string(domain)).Inc()
		s.metrics.ObserveTurnLatency(time.Since(started))
	}

	result := Result{
		AgentName:    string(domain),
		Response:     reply,
		SessionID:    sessionID,
		History:      tail(sess.History, historyTail),
		CurrentAgent: sess.CurrentAgent,
	}
	if domain == session.DomainGrocery {
		result.Stage = string(sess.Grocery.Stage)
		if result.Stage == "" {
			result.Stage = string(session.StageInitial)
		}
	}
	return result
}

// dispatch routes and runs the domain agent, mutating the session's domain
// context in place. A panic in an agent degrades to the generic apology.
func (s *Service) dispatch(ctx context.Context, message string, sess *session.Session) (domain session.Domain, reply string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("assistant: turn panic: %v", r)
			if domain == "" {
				domain = session.DomainSearch
			}
			reply = apology
		}
	}()

	domain = s.router.Route(ctx, message, sess)

	switch domain {
	case session.DomainWeather:
		reply = s.weather.Process(ctx, message)
	case session.DomainEmail:
		reply, sess.Email = s.email.Process(ctx, message, sess.Email)
	case session.DomainGrocery:
		reply, sess.Grocery = s.grocery.Process(ctx, message, sess.Grocery)
	default:
		reply, sess.News = s.news.Process(ctx, message, sess.News)
	}
	return domain, reply
}

// ClearSession removes one session from the store.
func (s *Service) ClearSession(ctx context.Context, sessionID string) error {
	err := s.store.Delete(ctx, sessionID)
	if err == nil {
		s.syncActiveSessions(ctx)
	}
	return err
}

// syncActiveSessions reads the gauge value back from the store so it
// survives restarts with a persistent store.
func (s *Service) syncActiveSessions(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	n, err := s.store.Count(ctx)
	if err != nil {
		log.Printf("assistant: count sessions: %v", err)
		return
	}
	s.metrics.ActiveSessions.Set(float64(n))
}

func tail(entries []string, n int) []string {
	if len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}
