// Package server exposes the cleanup pipeline over HTTP.
//
// Routes:
//
//	POST /v1/format        rule formatting only (?trace=1 adds per-stage output)
//	POST /v1/clean         full cleanup pipeline
//	POST /v1/clean/batch   several transcripts at once, order preserved
//	GET  /v1/stream        WebSocket, one JSON message per transcript
//	POST /v1/feedback      report a bad cleanup (optional)
//	     /mcp              Model Context Protocol tools (optional)
//	GET  /healthz, /readyz, /metrics
//
// Every route runs behind [observe.Middleware]. Request bodies are capped and
// malformed JSON yields 400 with {"error": "..."}.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/vibecoding/internal/feedback"
	"github.com/MrWong99/vibecoding/internal/health"
	"github.com/MrWong99/vibecoding/internal/observe"
	"github.com/MrWong99/vibecoding/internal/transcript"
)

const (
	defaultMaxBodyBytes = 1 << 20
	defaultBatchLimit   = 4

	// maxBatchItems bounds a single batch request.
	maxBatchItems = 256
)

// Option is a functional option for [New].
type Option func(*Server)

// WithMetrics sets the metrics recorder. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMaxBodyBytes caps request bodies and WebSocket messages.
// Default: 1 MiB.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithBatchConcurrency bounds how many batch items (or stream messages) are
// cleaned at once. Default: 4.
func WithBatchConcurrency(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.batchLimit = n
		}
	}
}

// WithAllowedOrigins adds origin host patterns accepted for WebSocket
// upgrades (e.g. "localhost:*"). Same-host requests are always accepted.
func WithAllowedOrigins(patterns ...string) Option {
	return func(s *Server) { s.origins = append(s.origins, patterns...) }
}

// WithHealth mounts /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithMCP mounts the MCP tool server on path using the streamable HTTP
// transport.
func WithMCP(path string) Option {
	return func(s *Server) { s.mcpPath = path }
}

// FeedbackStore persists user reports about bad cleanups.
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, rec feedback.Record) error
}

// WithFeedback mounts POST /v1/feedback backed by store.
func WithFeedback(store FeedbackStore) Option {
	return func(s *Server) { s.feedback = store }
}

// WithVersion sets the version reported to MCP clients.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// Server serves the transcript API. Create with [New].
type Server struct {
	cleaner        transcript.Cleaner
	metrics        *observe.Metrics
	maxBody        int64
	batchLimit     int
	origins        []string
	health         *health.Handler
	metricsHandler http.Handler
	mcpPath        string
	feedback       FeedbackStore
	version        string

	mcp     *mcpsdk.Server
	handler http.Handler
}

// New builds a [Server] around cleaner.
func New(cleaner transcript.Cleaner, opts ...Option) *Server {
	s := &Server{
		cleaner:    cleaner,
		maxBody:    defaultMaxBodyBytes,
		batchLimit: defaultBatchLimit,
		version:    "dev",
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.mcp = NewMCPServer(cleaner, s.version)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/format", s.handleFormat)
	mux.HandleFunc("POST /v1/clean", s.handleClean)
	mux.HandleFunc("POST /v1/clean/batch", s.handleBatch)
	mux.HandleFunc("GET /v1/stream", s.handleStream)
	if s.feedback != nil {
		mux.HandleFunc("POST /v1/feedback", s.handleFeedback)
	}
	if s.health != nil {
		s.health.Register(mux)
	}
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}
	if s.mcpPath != "" {
		mux.Handle(s.mcpPath, mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
			return s.mcp
		}, nil))
	}
	s.handler = observe.Middleware(s.metrics)(mux)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// MCPServer returns the MCP tool server, e.g. to serve it over stdio.
func (s *Server) MCPServer() *mcpsdk.Server { return s.mcp }

// ── helpers ──────────────────────────────────────────────────────────────────

type errorResponse struct {
	Error string `json:"error"`
}

// decodeJSON reads a size-capped JSON body into v. On failure it writes the
// error response and returns false.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}
