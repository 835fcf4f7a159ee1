// Package server exposes debate orchestration over HTTP: a create endpoint
// that registers a session, and SSE/WebSocket endpoints that run the debate
// and stream its events to the client.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/parleyhq/parley/logger"
	"github.com/parleyhq/parley/providers"
	"github.com/parleyhq/parley/resultstore"
	"github.com/parleyhq/parley/session"
)

const (
	// defaultReadHeaderTimeout prevents Slowloris attacks.
	defaultReadHeaderTimeout = 10 * time.Second

	// maxRequestBody bounds create and result payloads.
	maxRequestBody = 1 << 20

	// defaultMaxConcurrentDebates bounds simultaneously streaming debates.
	defaultMaxConcurrentDebates = 16
)

// ServerOption configures a [Server].
type ServerOption func(*Server)

// WithAddr sets the listen address for ListenAndServe.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.addr = addr }
}

// WithRegistry sets a custom session registry. Defaults to an in-memory
// registry.
func WithRegistry(reg session.Registry) ServerOption {
	return func(s *Server) { s.registry = reg }
}

// WithResultStore sets the store used by the result endpoint.
func WithResultStore(store *resultstore.Store) ServerOption {
	return func(s *Server) { s.results = store }
}

// WithAllowedOrigin enables CORS for one origin. Off by default.
func WithAllowedOrigin(origin string) ServerOption {
	return func(s *Server) { s.allowedOrigin = origin }
}

// WithMaxConcurrentDebates bounds the number of debates streaming at once.
func WithMaxConcurrentDebates(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.debateSem = semaphore.NewWeighted(int64(n))
		}
	}
}

// Server is the HTTP transport for debate sessions.
type Server struct {
	provider      providers.Provider
	registry      session.Registry
	results       *resultstore.Store
	addr          string
	allowedOrigin string
	debateSem     *semaphore.Weighted
	httpSrv       *http.Server
}

// NewServer creates a debate server backed by the given provider.
func NewServer(provider providers.Provider, opts ...ServerOption) *Server {
	s := &Server{
		provider:  provider,
		addr:      ":8000",
		debateSem: semaphore.NewWeighted(defaultMaxConcurrentDebates),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = session.NewMemoryRegistry()
	}
	return s
}

// Handler returns the http.Handler for all debate endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /debates", s.handleCreateDebate)
	mux.HandleFunc("GET /debates/{id}/stream", s.handleStream)
	mux.HandleFunc("GET /debates/{id}/ws", s.handleWebSocket)
	mux.HandleFunc("POST /debates/{id}/result", s.handleResult)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return s.cors(mux)
}

// ListenAndServe starts the HTTP server on the configured address.
func (s *Server) ListenAndServe() error {
	s.httpSrv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	logger.Info("debate server listening", "addr", s.addr)
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully drains HTTP requests. In-flight debate streams end
// when their request contexts are cancelled by the connection teardown.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// cors wraps a handler with single-origin CORS headers when configured.
func (s *Server) cors(next http.Handler) http.Handler {
	if s.allowedOrigin == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write response", "error", err)
	}
}

// writeError writes a JSON error body in the shape {"error": "..."}.
func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}
