// Package server implements the CodeShield HTTP server.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/brad07/codeshield/pkg/api"
	"github.com/brad07/codeshield/pkg/engine"
	"github.com/brad07/codeshield/pkg/events"
	"github.com/brad07/codeshield/pkg/storage"
)

// MaxBatchSize bounds the number of files in one batch request.
const MaxBatchSize = 256

// Config holds server configuration.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Parallelism     int
	Version         string
	Logger          *zap.Logger
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            7676,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    2 * time.Minute, // scans wait for the reviewer
		ShutdownTimeout: 10 * time.Second,
		Parallelism:     4,
		Version:         "dev",
	}
}

// Server represents the CodeShield HTTP server.
type Server struct {
	config     Config
	httpServer *http.Server
	engine     *engine.Engine
	store      storage.Store
	publisher  events.Publisher
	logger     *zap.Logger
	startTime  time.Time
	listener   net.Listener
	requests   atomic.Int64

	mu      sync.RWMutex
	running bool
}

// New creates a new server with the given configuration.
func New(config Config, eng *engine.Engine, store storage.Store) *Server {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Parallelism < 1 {
		config.Parallelism = 1
	}
	return &Server{
		config:    config,
		engine:    eng,
		store:     store,
		publisher: events.NopPublisher{},
		logger:    logger,
	}
}

// SetPublisher sets the scan event publisher.
func (s *Server) SetPublisher(p events.Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p == nil {
		p = events.NopPublisher{}
	}
	s.publisher = p
}

// Handler returns the server's HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return s.loggingMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startTime = time.Now()
	s.mu.Unlock()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("server listening", zap.String("addr", "http://"+listener.Addr().String()))

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the actual address the server is listening on.
// This is useful when the server was started with port 0 (random port).
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// registerRoutes registers all API routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	// API v1
	mux.HandleFunc("POST /v1/scan", s.handleScan)
	mux.HandleFunc("POST /v1/scan/batch", s.handleScanBatch)
	mux.HandleFunc("POST /v1/detect", s.handleDetect)
	mux.HandleFunc("POST /v1/merge", s.handleMerge)
	mux.HandleFunc("GET /v1/signatures", s.handleSignatures)
	mux.HandleFunc("GET /v1/stats", s.handleGetStats)
}

// loggingMiddleware logs all requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		s.requests.Add(1)

		next.ServeHTTP(rw, r)

		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.statusCode),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, api.HealthResponse{
		Status:  "healthy",
		Version: s.config.Version,
	})
}

// handleReady handles readiness check requests.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil || s.engine.Registry() == nil {
		api.WriteError(w, http.StatusServiceUnavailable, api.CodeNotReady, "Scan engine not initialized")
		return
	}

	resp := api.HealthResponse{
		Status:     "ready",
		Version:    s.config.Version,
		Signatures: s.engine.Registry().Len(),
	}

	// The reviewer is optional; an unreachable one degrades scans but does
	// not make the daemon unready.
	if rv := s.engine.Reviewer(); rv != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		resp.Reviewer = rv.Name()
		if !rv.IsAvailable(ctx) {
			resp.Reviewer += " (unavailable)"
		}
	}

	api.WriteJSON(w, http.StatusOK, resp)
}

// handleScan runs a full scan of one file.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req api.ScanRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}

	result := s.engine.Scan(r.Context(), req)
	s.record(r.Context(), result)

	api.WriteJSON(w, http.StatusOK, result)
}

// BatchRequest is the body of POST /v1/scan/batch.
type BatchRequest struct {
	Files []api.ScanRequest `json:"files"`
}

// BatchResponse is returned by POST /v1/scan/batch.
type BatchResponse struct {
	Results []*engine.ScanResult `json:"results"`
}

// handleScanBatch scans several files with bounded parallelism.
func (s *Server) handleScanBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}
	if len(req.Files) == 0 {
		api.WriteError(w, http.StatusBadRequest, api.CodeInvalidRequest, "At least one file is required")
		return
	}
	if len(req.Files) > MaxBatchSize {
		api.WriteError(w, http.StatusBadRequest, api.CodeInvalidRequest,
			fmt.Sprintf("Batch exceeds %d files", MaxBatchSize))
		return
	}

	results := s.engine.ScanBatch(r.Context(), req.Files, s.config.Parallelism)
	for _, res := range results {
		s.record(r.Context(), res)
	}

	api.WriteJSON(w, http.StatusOK, BatchResponse{Results: results})
}

func (s *Server) record(ctx context.Context, result *engine.ScanResult) {
	if s.store != nil {
		if err := s.store.Save(storage.NewRecord(result, time.Now())); err != nil {
			s.logger.Warn("failed to record scan", zap.String("scan_id", result.ID), zap.Error(err))
		}
	}

	s.mu.RLock()
	publisher := s.publisher
	s.mu.RUnlock()
	if err := publisher.PublishScanCompleted(ctx, result); err != nil {
		s.logger.Warn("failed to publish scan event", zap.String("scan_id", result.ID), zap.Error(err))
	}
}

// handleDetect runs the pattern scanner only.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req api.DetectRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}

	api.WriteJSON(w, http.StatusOK, api.FindingsResponse{
		Vulnerabilities: s.engine.Detect(req.Code, req.Language),
	})
}

// handleMerge fuses caller-supplied pattern and semantic findings.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req api.MergeRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}

	api.WriteJSON(w, http.StatusOK, api.FindingsResponse{
		Vulnerabilities: s.engine.Merge(req.Pattern, req.Semantic),
	})
}

// handleSignatures lists the active catalog, optionally for one language.
func (s *Server) handleSignatures(w http.ResponseWriter, r *http.Request) {
	reg := s.engine.Registry()
	language := r.URL.Query().Get("language")

	sigs := reg.All()
	if language != "" {
		sigs = reg.Applicable(language)
	}

	api.WriteJSON(w, http.StatusOK, api.NewSignaturesResponse(language, reg.Languages(), sigs))
}

// StatsResponse represents server statistics.
type StatsResponse struct {
	Uptime        string        `json:"uptime"`
	RequestsTotal int64         `json:"requests_total"`
	Signatures    int           `json:"signatures"`
	Scans         storage.Stats `json:"scans"`
}

// handleGetStats handles stats requests.
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Uptime:        time.Since(s.startTime).Round(time.Second).String(),
		RequestsTotal: s.requests.Load(),
		Signatures:    s.engine.Registry().Len(),
	}

	if s.store != nil {
		stats, err := s.store.Stats()
		if err != nil {
			api.WriteError(w, http.StatusInternalServerError, api.CodeInternal, "Failed to read scan statistics")
			return
		}
		resp.Scans = stats
	}

	api.WriteJSON(w, http.StatusOK, resp)
}
