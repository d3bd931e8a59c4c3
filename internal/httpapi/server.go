package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/assistant"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/audio"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/config"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/observability"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/protocol"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/session"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/voice"
)

const maxClipBytes = 16 << 20

type Server struct {
	cfg         config.Config
	svc         *assistant.Service
	transcriber voice.Transcriber
	synthesizer voice.Synthesizer
	metrics     *observability.Metrics
	upgrader    websocket.Upgrader
}

func New(cfg config.Config, svc *assistant.Service, transcriber voice.Transcriber, synthesizer voice.Synthesizer, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:         cfg,
		svc:         svc,
		transcriber: transcriber,
		synthesizer: synthesizer,
		metrics:     metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/api/message", s.handleMessage)
	r.Get("/api/message/ws", s.handleMessageWS)

	r.Post("/api/audio/transcribe", s.handleTranscribe)
	r.Post("/api/audio/synthesize", s.handleSynthesize)
	r.Post("/api/audio/process", s.handleAudioProcess)

	r.Get("/api/session/{id}", s.handleGetSession)
	r.Delete("/api/session/{id}", s.handleClearSession)
	r.Post("/api/session/{id}/clear", s.handleClearSession)

	r.Get("/api/agents", s.handleListAgents)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.svc.Store().Count(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": sessions,
	})
}

type messageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}

	res := s.svc.ProcessTurn(r.Context(), req.SessionID, req.Message)
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleMessageWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Clients that never name a session share one generated per connection.
	connSessionID := uuid.NewString()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.countWS("inbound", "invalid")
			s.writeWS(conn, protocol.TypeErrorEvent, protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Detail: err.Error(),
			})
			continue
		}

		switch msg := parsed.(type) {
		case protocol.ClientMessage:
			s.countWS("inbound", string(protocol.TypeClientMessage))
			sessionID := strings.TrimSpace(msg.SessionID)
			if sessionID == "" {
				sessionID = connSessionID
			}
			res := s.svc.ProcessTurn(r.Context(), sessionID, msg.Message)
			s.writeWS(conn, protocol.TypeTurnResult, protocol.TurnResult{
				Type:         protocol.TypeTurnResult,
				SessionID:    res.SessionID,
				AgentName:    res.AgentName,
				Response:     res.Response,
				CurrentAgent: string(res.CurrentAgent),
				Stage:        res.Stage,
				History:      res.History,
			})
		case protocol.ClientControl:
			s.countWS("inbound", string(protocol.TypeClientControl))
			if msg.Action != "clear_session" {
				s.writeWS(conn, protocol.TypeErrorEvent, protocol.ErrorEvent{
					Type:      protocol.TypeErrorEvent,
					SessionID: msg.SessionID,
					Code:      "unsupported_action",
					Detail:    msg.Action,
				})
				continue
			}
			if err := s.svc.ClearSession(r.Context(), msg.SessionID); err != nil && !errors.Is(err, session.ErrNotFound) {
				s.writeWS(conn, protocol.TypeErrorEvent, protocol.ErrorEvent{
					Type:      protocol.TypeErrorEvent,
					SessionID: msg.SessionID,
					Code:      "clear_failed",
					Detail:    err.Error(),
				})
				continue
			}
			s.writeWS(conn, protocol.TypeSystemEvent, protocol.SystemEvent{
				Type:      protocol.TypeSystemEvent,
				SessionID: msg.SessionID,
				Code:      "session_cleared",
			})
		}
	}
}

func (s *Server) writeWS(conn *websocket.Conn, t protocol.MessageType, v any) {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(v); err != nil {
		return
	}
	s.countWS("outbound", string(t))
}

func (s *Server) countWS(direction, messageType string) {
	if s.metrics == nil {
		return
	}
	s.metrics.WSMessages.WithLabelValues(direction, messageType).Inc()
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	clip, filename, ok := s.readClip(w, r)
	if !ok {
		return
	}
	text, err := s.transcriber.Transcribe(r.Context(), clip, filename)
	if err != nil {
		log.Printf("httpapi: transcribe: %v", err)
		respondError(w, http.StatusBadGateway, "transcription_failed", "could not transcribe audio")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"transcription": text,
		"session_id":    sessionIDFrom(r),
	})
}

type synthesizeRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}

	pcm, err := s.synthesizer.Synthesize(r.Context(), req.Message)
	if err != nil {
		log.Printf("httpapi: synthesize: %v", err)
		respondError(w, http.StatusBadGateway, "synthesis_failed", "could not synthesize speech")
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	if err := audio.WriteWAVPCM16LETo(w, pcm, s.synthesizer.SampleRate()); err != nil {
		log.Printf("httpapi: stream wav: %v", err)
	}
}

func (s *Server) handleAudioProcess(w http.ResponseWriter, r *http.Request) {
	clip, filename, ok := s.readClip(w, r)
	if !ok {
		return
	}
	sessionID := sessionIDFrom(r)

	text, err := s.transcriber.Transcribe(r.Context(), clip, filename)
	if err != nil {
		log.Printf("httpapi: transcribe: %v", err)
		respondError(w, http.StatusBadGateway, "transcription_failed", "could not transcribe audio")
		return
	}
	if strings.TrimSpace(text) == "" {
		respondError(w, http.StatusBadRequest, "empty_transcription", "no speech detected in audio")
		return
	}

	res := s.svc.ProcessTurn(r.Context(), sessionID, text)

	var audioBase64 string
	pcm, err := s.synthesizer.Synthesize(r.Context(), res.Response)
	if err != nil {
		// A voiceless reply still answers the turn.
		log.Printf("httpapi: synthesize: %v", err)
	} else if len(pcm) > 0 {
		wav, err := audio.EncodeWAVPCM16LE(pcm, s.synthesizer.SampleRate())
		if err != nil {
			log.Printf("httpapi: encode wav: %v", err)
		} else {
			audioBase64 = base64.StdEncoding.EncodeToString(wav)
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"transcription":        text,
		"agent_name":           res.AgentName,
		"response":             res.Response,
		"audio_base64":         audioBase64,
		"session_id":           res.SessionID,
		"conversation_history": res.History,
		"current_agent":        res.CurrentAgent,
		"stage":                res.Stage,
	})
}

// readClip pulls the uploaded audio file out of a multipart form. It
// writes the error response itself when the upload is unusable.
func (s *Server) readClip(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	if err := r.ParseMultipartForm(maxClipBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "expected multipart form with an audio file")
		return nil, "", false
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "form field audio is required")
		return nil, "", false
	}
	defer file.Close()

	clip, err := io.ReadAll(io.LimitReader(file, maxClipBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "could not read audio upload")
		return nil, "", false
	}
	if len(clip) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "audio upload is empty")
		return nil, "", false
	}
	return clip, header.Filename, true
}

func sessionIDFrom(r *http.Request) string {
	id := strings.TrimSpace(r.FormValue("session_id"))
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("session_id"))
	}
	if id == "" {
		id = "default"
	}
	return id
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.svc.Store().Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			respondError(w, http.StatusNotFound, "session_not_found", "no session with id "+id)
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id":      sess.ID,
		"history":         sess.History,
		"current_agent":   sess.CurrentAgent,
		"news_context":    sess.News,
		"grocery_context": sess.Grocery,
		"email_context":   sess.Email,
	})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.ClearSession(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			respondError(w, http.StatusNotFound, "session_not_found", "no session with id "+id)
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message":    "Session cleared successfully",
		"session_id": id,
	})
}

type agentInfo struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Capabilities   []string `json:"capabilities"`
	WorkflowStages []string `json:"workflow_stages,omitempty"`
}

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"agents": []agentInfo{
			{
				Name:         "search",
				Description:  "Web, news, scholarly, local, shopping and media search with follow-up questions over the last results",
				Capabilities: []string{"web search", "news search", "scholar search", "local places", "shopping", "images and videos", "follow-up detail by number"},
			},
			{
				Name:         "weather",
				Description:  "Current conditions, multi-day forecasts and city comparisons",
				Capabilities: []string{"current weather", "forecast", "city comparison"},
			},
			{
				Name:         "email",
				Description:  "Unread inbox triage, reply drafting and meeting scheduling with explicit confirmation",
				Capabilities: []string{"list unread", "select and analyze", "draft reply", "schedule meeting", "confirm or decline"},
			},
			{
				Name:           "grocery",
				Description:    "Cart building from product search with a two-step order confirmation",
				Capabilities:   []string{"item extraction", "price comparison", "cart total", "order confirmation"},
				WorkflowStages: []string{"initial", "awaiting_yes", "awaiting_final", "completed", "cancelled"},
			},
		},
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
