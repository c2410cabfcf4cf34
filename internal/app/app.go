// Package app wires the mptmeter subsystems into a running service.
//
// The App struct owns the full lifecycle: New builds the analyzer, history
// store, health checks and HTTP server; Run serves until the context is
// cancelled; ApplyConfig hot-swaps what can change without a restart; and
// Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithMetrics). When an option is not provided, New builds real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/mptmeter/internal/config"
	"github.com/MrWong99/mptmeter/internal/health"
	"github.com/MrWong99/mptmeter/internal/mpt"
	"github.com/MrWong99/mptmeter/internal/observe"
	"github.com/MrWong99/mptmeter/internal/resilience"
	"github.com/MrWong99/mptmeter/internal/server"
	"github.com/MrWong99/mptmeter/internal/store"
	"github.com/MrWong99/mptmeter/pkg/provider/vad"
)

// memHistoryCapacity bounds the in-memory history when no database is set.
const memHistoryCapacity = 1000

// shutdownGrace bounds the HTTP drain once Run's context is cancelled.
const shutdownGrace = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg        *config.Config
	engine     vad.Engine
	engineName string

	metrics  *observe.Metrics
	scrape   http.Handler
	logLevel *slog.LevelVar

	// Subsystems, initialised in New and torn down in Shutdown.
	analyzer *mpt.Analyzer
	store    store.Store
	server   *server.Server
	httpSrv  *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithStore injects a history store instead of creating one from config.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.scrape = h }
}

// WithLogLevel lets [App.ApplyConfig] change the level of the running
// logger.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App serving analyses with engine, registered under
// engineName.
func New(ctx context.Context, cfg *config.Config, engine vad.Engine, engineName string, opts ...Option) (*App, error) {
	a := &App{
		cfg:        cfg,
		engine:     engine,
		engineName: engineName,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Analyzer ──────────────────────────────────────────────────────
	analyzer, err := mpt.NewAnalyzer(engine, cfg.Analysis.Params(),
		mpt.WithEngine(engineName),
		mpt.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("app: init analyzer: %w", err)
	}
	a.analyzer = analyzer

	// ── 2. History store ─────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 3. HTTP server ───────────────────────────────────────────────────
	checks := []health.Checker{health.VADCheck(engine)}
	if p, ok := a.store.(health.Pinger); ok {
		checks = append(checks, health.PingCheck("store", p))
	}
	srvOpts := []server.Option{
		server.WithStore(a.store),
		server.WithMetrics(a.metrics),
		server.WithHealth(health.New(checks...)),
		server.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
		server.WithHistoryLimit(cfg.Store.HistoryLimit),
		server.WithCORSOrigins(cfg.Server.CORSOrigins),
	}
	if a.scrape != nil {
		srvOpts = append(srvOpts, server.WithMetricsHandler(a.scrape))
	}
	a.server = server.New(analyzer, srvOpts...)
	a.httpSrv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// initStore connects PostgreSQL when a DSN is configured and falls back to
// memory otherwise. Injected stores are used as given.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	if dsn := a.cfg.Store.PostgresDSN; dsn != "" {
		pg, err := store.OpenPostgres(ctx, dsn)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { pg.Close(); return nil })
		a.store = store.NewGuarded(pg, resilience.CircuitBreakerConfig{Name: "store"})
		slog.Info("analysis history in postgres")
		return nil
	}
	a.store = store.NewMemStore(memHistoryCapacity)
	slog.Info("analysis history in memory", "capacity", memHistoryCapacity)
	return nil
}

// Analyzer returns the analyzer serving requests.
func (a *App) Analyzer() *mpt.Analyzer { return a.analyzer }

// Handler returns the HTTP handler, for tests.
func (a *App) Handler() http.Handler { return a.httpSrv.Handler }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
// It returns nil after a clean drain.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpSrv.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.httpSrv.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is [App.Run] on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.httpSrv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.httpSrv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := a.httpSrv.Shutdown(drainCtx); err != nil {
			return fmt.Errorf("app: http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// ─── Hot reload ──────────────────────────────────────────────────────────────

// ApplyConfig applies the hot-reloadable part of d. Changes that need a
// restart are logged.
func (a *App) ApplyConfig(d config.ConfigDiff) {
	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.AnalysisChanged {
		if err := a.analyzer.SetParams(d.NewAnalysis.Params()); err != nil {
			slog.Error("rejecting analysis parameters", "err", err)
		} else {
			p := a.analyzer.Params()
			slog.Info("analysis parameters updated",
				"frame_duration", p.FrameDuration,
				"calibration_window", p.CalibrationWindow,
				"silence_timeout", p.SilenceTimeout,
				"min_valid_duration", p.MinValidDuration,
			)
		}
	}
	if d.CORSChanged {
		a.server.SetCORSOrigins(d.NewCORS)
		slog.Info("cors origins updated", "origins", d.NewCORS)
	}
	for _, key := range d.RestartRequired {
		slog.Warn("config change requires restart", "section", key)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown runs the closers in order. It respects the context deadline: if
// ctx expires before all closers finish, the rest are skipped and the
// context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
