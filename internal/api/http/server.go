package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Ntarekp/teamSynth/internal/application/agents"
	"github.com/Ntarekp/teamSynth/internal/application/chat"
	"github.com/Ntarekp/teamSynth/internal/application/insight"
	"github.com/Ntarekp/teamSynth/internal/application/model"
	"github.com/Ntarekp/teamSynth/internal/domain/execution"
	"github.com/Ntarekp/teamSynth/internal/infrastructure/metrics"
	"github.com/Ntarekp/teamSynth/internal/infrastructure/sse"
)

const (
	defaultRequestTimeout = 5 * time.Minute
	defaultMaxBodyBytes   = 10 << 20
)

// AgentRunner executes a registered agent.
type AgentRunner interface {
	Run(ctx context.Context, agentID string, req agents.Request) (*execution.Record, error)
}

// AgentDirectory reports registered agents.
type AgentDirectory interface {
	Statuses() []agents.Status
}

// TaskOrchestrator runs the generic plan-and-execute path and replays records.
type TaskOrchestrator interface {
	Run(ctx context.Context, task execution.Task) *execution.Record
	Get(ctx context.Context, executionID string) (*execution.Record, error)
}

type ChatService interface {
	Chat(ctx context.Context, req chat.Request) (*chat.Reply, error)
}

type MeetingAnalyzer interface {
	Analyze(ctx context.Context, req insight.MeetingRequest) (*insight.MeetingAnalysis, error)
}

type TeamRecommender interface {
	Recommend(ctx context.Context, req insight.TeamRequest) (*insight.TeamRecommendation, error)
}

// Deps are the services behind the HTTP API. Hub may be nil, which disables
// trace streaming.
type Deps struct {
	Agents         AgentRunner
	Directory      AgentDirectory
	Orchestrator   TaskOrchestrator
	Chat           ChatService
	Meetings       MeetingAnalyzer
	Teams          TeamRecommender
	Hub            *sse.Hub
	TokenHash      string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	agents         AgentRunner
	directory      AgentDirectory
	orchestrator   TaskOrchestrator
	chat           ChatService
	meetings       MeetingAnalyzer
	teams          TeamRecommender
	sseHub         *sse.Hub
	tokenHash      []byte
	requestTimeout time.Duration
	maxBodyBytes   int64
	logger         zerolog.Logger
}

func NewServer(deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		agents:         deps.Agents,
		directory:      deps.Directory,
		orchestrator:   deps.Orchestrator,
		chat:           deps.Chat,
		meetings:       deps.Meetings,
		teams:          deps.Teams,
		sseHub:         deps.Hub,
		requestTimeout: deps.RequestTimeout,
		maxBodyBytes:   deps.MaxBodyBytes,
		logger:         logger.With().Str("service", "http").Logger(),
	}
	if deps.TokenHash != "" {
		s.tokenHash = []byte(deps.TokenHash)
	} else {
		s.logger.Warn().Msg("AUTH_TOKEN_HASH is empty, API authentication is disabled")
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = defaultMaxBodyBytes
	}
	if s.requestTimeout <= 0 {
		s.requestTimeout = defaultRequestTimeout
	}
	return s
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/health", s.health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Use(s.limitBody)

		// streams outlive the request timeout
		r.Get("/executions/stream", s.streamExecutions)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.requestTimeout))

			r.Route("/agents", func(r chi.Router) {
				r.Post("/execute/{agentType}", s.executeAgent)
				r.Get("/status", s.agentStatus)
			})

			r.Route("/ai", func(r chi.Router) {
				r.Post("/chat", s.chatMessage)
				r.Post("/agent/execute", s.executeTask)
				r.Post("/meeting/analyze", s.analyzeMeeting)
				r.Post("/team/recommend", s.recommendTeam)
			})

			r.Get("/executions/{executionId}", s.getExecution)
		})
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "OK",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RequestCount.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// respondServiceError maps application errors onto the HTTP error envelope.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var notFound *agents.NotFoundError
	switch {
	case errors.As(err, &notFound):
		respondError(w, http.StatusNotFound, "AGENT_NOT_FOUND", err.Error())
	case errors.Is(err, execution.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case model.IsUnavailable(err):
		respondError(w, http.StatusServiceUnavailable, "MODEL_UNAVAILABLE", "the language model is unavailable, try again later")
	case errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, insight.ErrEmptyTranscript),
		errors.Is(err, insight.ErrEmptyBrief):
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "TIMEOUT", "request timed out")
	default:
		s.logger.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// limitBody caps request bodies; reads past the limit fail with
// *http.MaxBytesError.
func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func respondDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			"request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
		return
	}
	respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
