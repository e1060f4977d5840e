package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Config controls the server's listen address and API key.
type Config struct {
	Addr         string
	APIKey       string // empty disables the mutating-endpoint gate (dev only)
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:         ":8090",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server is the HTTP surface over the Inference Loop, Labeler,
// calibration monitor, and Ingestor delta query.
type Server struct {
	router *mux.Router
	srv    *http.Server
	cfg    Config
	deps   Deps
}

// NewServer builds the router and wraps it in an http.Server.
func NewServer(cfg Config, deps Deps) *Server {
	s := &Server{cfg: cfg, deps: deps, router: mux.NewRouter()}
	s.setupRoutes()
	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/predict", s.handlePredict).Methods(http.MethodGet)
	s.router.HandleFunc("/delta", s.handleDelta).Methods(http.MethodGet)
	s.router.HandleFunc("/calibration/live", s.handleCalibrationLive).Methods(http.MethodGet)

	mutating := s.router.NewRoute().Subrouter()
	mutating.Use(s.apiKeyMiddleware)
	mutating.HandleFunc("/labeler/run", s.handleLabelerRun).Methods(http.MethodPost)
	mutating.HandleFunc("/monitor/calibration/status", s.handleMonitorStatus).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	log.Info().Str("addr", s.cfg.Addr).Msg("httpapi: listening")
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type requestIDKey struct{}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("httpapi: request")
	})
}

// apiKeyMiddleware enforces the API-key header on mutating endpoints per
// spec section 6.2: absent key -> 401. A blank configured key disables
// the gate, for local development only.
func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("X-API-Key") != s.cfg.APIKey {
			s.writeError(w, r, http.StatusUnauthorized, "unauthorized", "missing or invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestID(r *http.Request) string {
	if v, ok := r.Context().Value(requestIDKey{}).(string); ok {
		return v
	}
	return "unknown"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, reason, hint string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSONBody(w, ErrorResponse{Status: "error", Reason: reason, Hint: hint, RequestID: requestID(r)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSONBody(w, v)
}

func writeJSONBody(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("httpapi: json encode failed")
	}
}
