package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/MrWong99/mptmeter/internal/app"
	"github.com/MrWong99/mptmeter/internal/config"
	"github.com/MrWong99/mptmeter/internal/observe"
)

type serveCmd struct {
	Config       string        `short:"c" type:"path" default:"config.yaml" help:"Path to the YAML configuration file."`
	WatchEvery   time.Duration `default:"5s" help:"How often the config file is checked for changes."`
	ShutdownWait time.Duration `default:"15s" help:"Grace period for in-flight requests on shutdown."`
}

func (c *serveCmd) Run(g *globals) error {
	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(c.Config)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %q not found; copy configs/example.yaml to get started", c.Config)
		}
		return err
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, level := newLogger(g.stderr, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("mptmeter starting",
		"version", version,
		"config", c.Config,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"vad", cfg.VAD.Name,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		Registry:       reg,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	// ── VAD engine ────────────────────────────────────────────────────────────
	engine, err := buildVAD(cfg.VAD)
	if err != nil {
		return err
	}

	application, err := app.New(ctx, cfg, engine, cfg.VAD.Name,
		app.WithMetrics(observe.DefaultMetrics()),
		app.WithMetricsHandler(observe.MetricsHandler(reg)),
		app.WithLogLevel(level),
	)
	if err != nil {
		return fmt.Errorf("initialise application: %w", err)
	}

	// ── Hot reload ────────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(c.Config, func(r config.Reload) {
		application.ApplyConfig(r.Diff)
	}, config.WithInterval(c.WatchEvery), config.WithLogger(logger))
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		go watcher.Run(ctx)
	}

	slog.Info("server ready; press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.ShutdownWait)
	defer cancel()

	slog.Info("stopping")
	errs := []error{runErr}
	if err := application.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown: %w", err))
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	if err := errors.Join(errs...); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("goodbye")
	return nil
}
