// Package server exposes the MPT analyzer over HTTP.
//
// Routes:
//
//   - POST /api/analyze-mpt      one-shot analysis of an uploaded recording
//   - GET  /api/analyses         recent analyses, newest first
//   - GET  /api/analyses/{id}    one stored analysis
//   - GET  /api/stream-mpt       WebSocket streaming analysis
//
// Liveness, readiness and the Prometheus scrape endpoint are mounted by the
// caller through [WithHealth] and [WithMetricsHandler].
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/MrWong99/mptmeter/internal/health"
	"github.com/MrWong99/mptmeter/internal/mpt"
	"github.com/MrWong99/mptmeter/internal/observe"
	"github.com/MrWong99/mptmeter/internal/store"
)

// saveTimeout bounds the history write that follows an analysis.
const saveTimeout = 3 * time.Second

// DefaultMaxUploadBytes caps request bodies when no limit is configured.
const DefaultMaxUploadBytes = 32 << 20

// Server serves the analysis API. Create one with [New].
type Server struct {
	analyzer     *mpt.Analyzer
	store        store.Store
	metrics      *observe.Metrics
	health       *health.Handler
	scrape       http.Handler
	maxUpload    int64
	historyLimit int
	cors         atomic.Pointer[[]string]
}

// Option configures a [Server].
type Option func(*Server)

// WithStore sets the analysis history. Without one, results are not kept
// and the history routes answer 404.
func WithStore(s store.Store) Option {
	return func(srv *Server) { srv.store = s }
}

// WithMetrics sets the metrics sink used by the request middleware and the
// streaming session gauge. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(srv *Server) { srv.metrics = m }
}

// WithHealth mounts /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(srv *Server) { srv.health = h }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(srv *Server) { srv.scrape = h }
}

// WithMaxUploadBytes caps request bodies and the total audio of a streaming
// session.
func WithMaxUploadBytes(n int64) Option {
	return func(srv *Server) { srv.maxUpload = n }
}

// WithHistoryLimit caps the number of records a list request returns.
func WithHistoryLimit(n int) Option {
	return func(srv *Server) { srv.historyLimit = n }
}

// WithCORSOrigins sets the allowed browser origins. "*" allows any.
func WithCORSOrigins(origins []string) Option {
	return func(srv *Server) { srv.SetCORSOrigins(origins) }
}

// New returns a Server for a.
func New(a *mpt.Analyzer, opts ...Option) *Server {
	s := &Server{
		analyzer:     a,
		maxUpload:    DefaultMaxUploadBytes,
		historyLimit: 100,
	}
	s.SetCORSOrigins(nil)
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// SetCORSOrigins replaces the allowed origins. Safe to call while serving.
func (s *Server) SetCORSOrigins(origins []string) {
	cp := append([]string(nil), origins...)
	s.cors.Store(&cp)
}

// Handler returns the full route tree wrapped in CORS and observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyze-mpt", s.handleAnalyze)
	mux.HandleFunc("GET /api/analyses", s.handleList)
	mux.HandleFunc("GET /api/analyses/{id}", s.handleGet)
	mux.HandleFunc("GET /api/stream-mpt", s.handleStream)
	if s.health != nil {
		s.health.Register(mux)
	}
	if s.scrape != nil {
		mux.Handle("GET /metrics", s.scrape)
	}
	return s.corsMiddleware(observe.Middleware(s.metrics)(mux))
}

// save persists res when a store is configured. Failures are logged and
// swallowed: the caller already has its result.
func (s *Server) save(ctx context.Context, src store.Source, res mpt.Result) (store.Record, bool) {
	if s.store == nil {
		return store.Record{}, false
	}
	rec := store.NewRecord(src, res)
	rec.CorrelationID = observe.CorrelationID(ctx)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := s.store.Save(ctx, rec); err != nil {
		observe.Logger(ctx).Warn("store analysis", "id", rec.ID, "err", err)
		return rec, false
	}
	return rec, true
}

// analysisResponse is the JSON body of a completed analysis.
type analysisResponse struct {
	Success        bool                `json:"success"`
	ID             string              `json:"id,omitempty"`
	MPT            float64             `json:"mpt"`
	Urgency        mpt.Urgency         `json:"urgency,omitempty"`
	Recommendation string              `json:"recommendation,omitempty"`
	Classification *mpt.Classification `json:"classification,omitempty"`
	Debug          *mpt.Debug          `json:"debug,omitempty"`
	Warning        string              `json:"warning,omitempty"`
	Error          string              `json:"error,omitempty"`
}

func newAnalysisResponse(res mpt.Result, rec store.Record, saved bool) analysisResponse {
	out := analysisResponse{
		Success:        true,
		MPT:            res.DurationSeconds,
		Urgency:        res.Urgency,
		Recommendation: res.Recommendation,
		Classification: &res.Classification,
		Debug:          &res.Debug,
	}
	if saved {
		out.ID = rec.ID.String()
	}
	if err := res.Err(); err != nil {
		out.Warning = err.Error()
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write json response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, analysisResponse{Success: false, Error: msg})
}
