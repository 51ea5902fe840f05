package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jonwraymond/botguard/auth"
	"github.com/jonwraymond/botguard/cache"
	"github.com/jonwraymond/botguard/health"
	"github.com/jonwraymond/botguard/observe"
	"github.com/jonwraymond/botguard/pipeline"
	"github.com/jonwraymond/botguard/resilience"
)

// DefaultMaxBodyBytes bounds a message request; voice arrives base64 encoded.
const DefaultMaxBodyBytes = 32 << 20

// MessageHandler is the pipeline surface the server needs.
type MessageHandler interface {
	Handle(ctx context.Context, msg pipeline.Message) (pipeline.Reply, error)
	Stats() pipeline.Stats
}

// DecisionTotals reports persisted admission decision counters.
type DecisionTotals interface {
	Totals(ctx context.Context) (map[string]int64, error)
}

// Config configures the HTTP server.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
}

// Options are the server collaborators. Pipeline is required.
type Options struct {
	Pipeline MessageHandler

	// Health mounts the health endpoints when set.
	Health *health.Aggregator

	// Metrics is served at /metrics when set.
	Metrics http.Handler

	// Authenticator protects /v1/stats. Nil disables the endpoint.
	Authenticator auth.Authenticator

	// Decisions adds persisted decision totals to /v1/stats when set.
	Decisions DecisionTotals

	Logger  observe.Logger
	Version string
}

// Server serves the botguard HTTP API.
type Server struct {
	router *chi.Mux
	http   *http.Server
	opts   Options
	logger observe.Logger
	limit  int64
}

// New builds the router. It does not start listening.
func New(cfg Config, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}
	limit := cfg.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}

	s := &Server{
		router: chi.NewRouter(),
		opts:   opts,
		logger: logger.With(observe.F("component", "server")),
		limit:  limit,
	}

	s.router.Use(chimw.RealIP)
	s.router.Use(RequestID)
	s.router.Use(AccessLog(s.logger))
	s.router.Use(Recovery(s.logger))

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "the requested resource was not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	s.registerRoutes()

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.router.Post("/v1/messages", s.handleMessage)

	if s.opts.Authenticator != nil {
		s.router.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.opts.Authenticator, s.logger))
			r.Use(auth.RequireRole(auth.RoleViewer))
			r.Get("/v1/stats", s.handleStats)
		})
	}

	if s.opts.Health != nil {
		health.RegisterHandlers(s.router, s.opts.Health)
	}
	if s.opts.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}
	s.router.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": s.opts.Version})
	})
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Serve accepts connections on l until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info(context.Background(), "http server listening", observe.F("addr", l.Addr().String()))
	if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address and serves.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// MessageRequest is the body of POST /v1/messages. Voice is base64 in JSON.
type MessageRequest struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username,omitempty"`
	BotToken  string `json:"bot_token"`
	Text      string `json:"text,omitempty"`
	Voice     []byte `json:"voice,omitempty"`
	VoiceName string `json:"voice_name,omitempty"`
}

// MessageResponse is the reply to POST /v1/messages.
type MessageResponse struct {
	Messages          []string `json:"messages"`
	Keyboard          []string `json:"keyboard,omitempty"`
	Menu              bool     `json:"menu,omitempty"`
	Throttled         bool     `json:"throttled,omitempty"`
	RetryAfterSeconds int      `json:"retry_after_seconds,omitempty"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "too_large", "request body too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid JSON body: "+err.Error())
		return
	}

	reply, err := s.opts.Pipeline.Handle(r.Context(), pipeline.Message{
		UserID:    req.UserID,
		Username:  req.Username,
		BotToken:  req.BotToken,
		Text:      req.Text,
		Voice:     req.Voice,
		VoiceName: req.VoiceName,
	})
	switch {
	case errors.Is(err, pipeline.ErrInvalidMessage):
		writeError(w, r, http.StatusBadRequest, "invalid_message", err.Error())
		return
	case errors.Is(err, pipeline.ErrUnknownTenant):
		writeError(w, r, http.StatusNotFound, "unknown_tenant", "bot token is not registered")
		return
	case err != nil:
		s.logger.Error(r.Context(), "message handling failed",
			observe.F("request_id", RequestIDFromContext(r.Context())),
			observe.F("user_id", req.UserID),
			observe.Err(err),
		)
		writeError(w, r, http.StatusInternalServerError, "internal", "message handling failed")
		return
	}

	resp := MessageResponse{
		Messages:  reply.Messages,
		Keyboard:  reply.Keyboard,
		Menu:      reply.Menu,
		Throttled: reply.Throttled,
	}
	if reply.Throttled {
		resp.RetryAfterSeconds = int(math.Ceil(reply.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfterSeconds))
	}
	writeJSON(w, http.StatusOK, resp)
}

// StatsResponse is the body of GET /v1/stats.
type StatsResponse struct {
	Admission AdmissionStats   `json:"admission"`
	Texts     CacheStats       `json:"texts"`
	Tenants   CacheStats       `json:"tenants"`
	Upstream  UpstreamStats    `json:"upstream"`
	Decisions map[string]int64 `json:"decisions,omitempty"`
}

type AdmissionStats struct {
	Identities int `json:"identities"`
	Saturated  int `json:"saturated"`
}

type CacheStats struct {
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	HitRate  float64 `json:"hit_rate"`
	Size     int     `json:"size"`
	Capacity int     `json:"capacity,omitempty"`
}

type UpstreamStats struct {
	Active        int   `json:"active"`
	MaxActive     int   `json:"max_active"`
	MaxConcurrent int   `json:"max_concurrent"`
	Rejected      int64 `json:"rejected"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.opts.Pipeline.Stats()
	resp := StatsResponse{
		Admission: AdmissionStats{Identities: st.Admission.Identities, Saturated: st.Admission.Saturated},
		Texts:     cacheStats(st.Texts),
		Tenants:   cacheStats(st.Tenants),
		Upstream:  upstreamStats(st.Upstream),
	}

	if s.opts.Decisions != nil {
		totals, err := s.opts.Decisions.Totals(r.Context())
		if err != nil {
			s.logger.Warn(r.Context(), "decision totals unavailable", observe.Err(err))
		} else {
			resp.Decisions = totals
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func cacheStats(s cache.Stats) CacheStats {
	return CacheStats{Hits: s.Hits, Misses: s.Misses, HitRate: s.HitRate(), Size: s.Size, Capacity: s.Capacity}
}

func upstreamStats(m resilience.BulkheadMetrics) UpstreamStats {
	return UpstreamStats{Active: m.Active, MaxActive: m.MaxActive, MaxConcurrent: m.MaxConcurrent, Rejected: m.Rejected}
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   msg,
		RequestID: RequestIDFromContext(r.Context()),
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
