package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"fleet-monitor-backend/internal/chat"
	"fleet-monitor-backend/internal/config"
	"fleet-monitor-backend/internal/fleet"
	"fleet-monitor-backend/internal/store"
	"fleet-monitor-backend/internal/types"
)

const (
	maxBodyBytes  = 1 << 20
	healthTimeout = 2 * time.Second
)

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Options struct {
	Config config.Config
	Logger *zap.Logger
	Fleet  *fleet.Cache
	// DB is optional; when set, /api/health reports its reachability.
	DB HealthChecker

	// LLM serves /api/ai-chat, Agent serves /api/neurosan-chat.
	LLM   chat.Dispatcher
	Agent chat.Dispatcher
}

type Server struct {
	router   *chi.Mux
	cfg      config.Config
	logger   *zap.Logger
	fleet    *fleet.Cache
	llm      chat.Dispatcher
	agent    chat.Dispatcher
	db       HealthChecker
	tuner    *store.JSONFile
	gestures *store.LineLog
	summary  *store.SummaryCache
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opts.Config
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.AllowedOrigin},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	s := &Server{
		router:   r,
		cfg:      cfg,
		logger:   logger,
		fleet:    opts.Fleet,
		llm:      opts.LLM,
		agent:    opts.Agent,
		db:       opts.DB,
		tuner:    store.NewJSONFile(filepath.Join(cfg.DataDir, "tuner.json")),
		gestures: store.NewLineLog(filepath.Join(cfg.LogsDir, "gesture.log")),
		summary:  store.NewSummaryCache(store.NewJSONFile(filepath.Join(cfg.DataDir, "ai_summary_cache.json"))),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/app-config", s.handleAppConfig)
	// Fleet data
	s.router.Get("/api/flights", s.handleFlights)
	s.router.Get("/api/fleet-summary", s.handleFleetSummary)
	s.router.Get("/api/flights/{id}", s.handleGetFlight)
	s.router.Put("/api/flights/{id}", s.handlePutFlight)
	// UI settings and traces
	s.router.Get("/api/tuner", s.handleGetTuner)
	s.router.Put("/api/tuner", s.handlePutTuner)
	s.router.Post("/api/gesture-log", s.handleGestureLog)
	s.router.Get("/api/ai-summary-cache", s.handleGetSummaryCache)
	s.router.Post("/api/ai-summary-cache", s.handlePostSummaryCache)
	// Chat
	s.router.Post("/api/ai-chat", s.handleChat(s.llm))
	s.router.Post("/api/neurosan-chat", s.handleChat(s.agent))

	s.router.NotFound(s.handleStatic)
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := s.db.HealthCheck(ctx); err != nil {
		s.logger.Warn("database health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}

// handleAppConfig exposes non-secret runtime settings to the UI.
func (s *Server) handleAppConfig(w http.ResponseWriter, r *http.Request) {
	out := types.AppConfig{}
	if name := s.cfg.Neuro.SummaryProjectName; name != "" {
		out.NeuroSanSummaryProjectConfigured = true
		out.NeuroSanSummaryProjectName = &name
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleChat(d chat.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d == nil {
			s.writeError(w, http.StatusNotImplemented, "chat backend unavailable")
			return
		}
		reply, err := d.Handle(r.Context(), decodeChatRequest(r))
		if err != nil {
			s.writeChatError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, types.ChatResponse{Reply: reply})
	}
}

func (s *Server) writeChatError(w http.ResponseWriter, r *http.Request, err error) {
	var cerr *chat.Error
	if !errors.As(err, &cerr) {
		cerr = chat.InternalError(err)
	}
	if cerr.Status >= http.StatusInternalServerError {
		s.logger.Warn("chat request failed",
			zap.String("requestId", RequestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.String("kind", cerr.Kind.String()),
			zap.Int("status", cerr.Status),
			zap.Error(err))
	}
	writeJSON(w, cerr.Status, types.ErrorResponse{
		Error:   cerr.Code,
		Detail:  cerr.Detail,
		Project: cerr.Project,
		Message: cerr.Message,
	})
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, types.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// readBody returns the request body, or "{}" when it is empty.
func readBody(r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return []byte("{}"), nil
	}
	if !json.Valid(b) {
		return nil, errors.New("invalid JSON body")
	}
	return b, nil
}

func decodeBody(r *http.Request, v any) error {
	b, err := readBody(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("requestId", RequestIDFrom(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
