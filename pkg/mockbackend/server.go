// Package mockbackend serves the three chat endpoints the widget talks to,
// backed by an in-memory session table and a scripted automation. It is
// meant for demos and integration tests.
package mockbackend

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-go-golems/webchat-embed/pkg/chat"
	"github.com/go-go-golems/webchat-embed/pkg/chathandler"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type sessionRequest struct {
	APIKey       string `json:"apiKey"`
	AutomationID string `json:"automationId"`
	SessionID    string `json:"sessionId,omitempty"`
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

type Option func(*Server)

// WithCredentials makes session endpoints reject other api keys or automation ids.
func WithCredentials(apiKey, automationID string) Option {
	return func(s *Server) {
		s.apiKey = apiKey
		s.automationID = automationID
	}
}

func WithScript(sc Script) Option {
	return func(s *Server) {
		s.script = sc
	}
}

// WithLatency delays every chat response, to see the typing indicator at work.
func WithLatency(d time.Duration) Option {
	return func(s *Server) {
		s.latency = d
	}
}

func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

type Server struct {
	apiKey       string
	automationID string
	script       Script
	latency      time.Duration
	registry     *prometheus.Registry

	requests *prometheus.CounterVec
	sessions prometheus.Gauge

	mu      sync.Mutex
	history map[string][]chat.Message
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		script:  DemoScript(),
		history: map[string][]chat.Message{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "webchat",
		Subsystem: "mock_backend",
		Name:      "requests_total",
		Help:      "Chat API requests served, by route and status code.",
	}, []string{"route", "code"})
	s.sessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "webchat",
		Subsystem: "mock_backend",
		Name:      "sessions",
		Help:      "Sessions currently known to the mock backend.",
	})
	s.registry.MustRegister(s.requests, s.sessions)
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api/chat", func(api chi.Router) {
		api.Post("/new-session", s.handleNewSession)
		api.Post("/restore-session", s.handleRestoreSession)
		api.Post("/send-message", s.handleSendMessage)
	})
	return r
}

// Sessions returns the number of sessions created so far.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// History returns the full transcript of a session.
func (s *Server) History(sessionID string) ([]chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.history[sessionID]
	return append([]chat.Message(nil), h...), ok
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !s.decode(w, r, "new-session", &req) || !s.authorized(w, "new-session", req) {
		return
	}
	s.pause()
	id := uuid.NewString()
	greeting := s.script.Greeting()

	s.mu.Lock()
	s.history[id] = append([]chat.Message(nil), greeting...)
	s.sessions.Set(float64(len(s.history)))
	s.mu.Unlock()

	log.Info().Str("component", "mockbackend").Str("session_id", id).Msg("new session")
	s.reply(w, "new-session", http.StatusOK, chathandler.SessionResponse{SessionID: id, Messages: greeting})
}

func (s *Server) handleRestoreSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !s.decode(w, r, "restore-session", &req) || !s.authorized(w, "restore-session", req) {
		return
	}
	history, ok := s.History(req.SessionID)
	if !ok {
		s.fail(w, "restore-session", http.StatusNotFound, "unknown session")
		return
	}
	s.pause()
	s.reply(w, "restore-session", http.StatusOK, chathandler.SessionResponse{SessionID: req.SessionID, Messages: history})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(chathandler.SessionIDHeader)
	var req sendMessageRequest
	if !s.decode(w, r, "send-message", &req) {
		return
	}
	if _, ok := s.History(id); !ok {
		s.fail(w, "send-message", http.StatusNotFound, "unknown session")
		return
	}
	s.pause()
	replies := s.script.Reply(req.Message)

	s.mu.Lock()
	s.history[id] = append(s.history[id], chat.NewUserMessage(req.Message))
	s.history[id] = append(s.history[id], replies...)
	s.mu.Unlock()

	s.reply(w, "send-message", http.StatusOK, chathandler.SessionResponse{SessionID: id, Messages: replies})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, route string, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.fail(w, route, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func (s *Server) authorized(w http.ResponseWriter, route string, req sessionRequest) bool {
	if s.apiKey != "" && req.APIKey != s.apiKey {
		s.fail(w, route, http.StatusUnauthorized, "invalid api key")
		return false
	}
	if s.automationID != "" && req.AutomationID != s.automationID {
		s.fail(w, route, http.StatusNotFound, "unknown automation")
		return false
	}
	return true
}

func (s *Server) pause() {
	if s.latency > 0 {
		time.Sleep(s.latency)
	}
}

func (s *Server) fail(w http.ResponseWriter, route string, code int, msg string) {
	s.reply(w, route, code, map[string]string{"error": msg})
}

func (s *Server) reply(w http.ResponseWriter, route string, code int, body interface{}) {
	s.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Str("component", "mockbackend").Str("route", route).Msg("failed to write response")
	}
}
