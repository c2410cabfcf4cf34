package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/mptmeter/internal/cli"
	"github.com/MrWong99/mptmeter/internal/config"
	"github.com/MrWong99/mptmeter/internal/mpt"
	"github.com/MrWong99/mptmeter/internal/store"
	"github.com/MrWong99/mptmeter/pkg/audio"
)

type analyzeCmd struct {
	Config      string   `short:"c" type:"path" help:"Optional YAML config supplying analysis parameters and VAD options."`
	VAD         string   `help:"VAD engine (webrtc, energy). Overrides the config file." placeholder:"NAME"`
	JSON        bool     `help:"Print results as JSON instead of styled text."`
	Concurrency int      `short:"j" default:"4" help:"Number of files analysed in parallel."`
	Record      bool     `help:"Save results to the PostgreSQL history configured in --config."`
	Files       []string `arg:"" name:"files" type:"existingfile" help:"WAV recordings to analyse."`
}

// fileReport is one entry of the analyze output.
type fileReport struct {
	File   string      `json:"file"`
	ID     string      `json:"id,omitempty"`
	Result *mpt.Result `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`

	err error
}

func (c *analyzeCmd) Run(g *globals) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	logger, _ := newLogger(g.stderr, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	engine, err := buildVAD(cfg.VAD)
	if err != nil {
		return err
	}
	analyzer, err := mpt.NewAnalyzer(engine, cfg.Analysis.Params(), mpt.WithEngine(cfg.VAD.Name))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var history store.Store
	if c.Record {
		if cfg.Store.PostgresDSN == "" {
			return errors.New("--record needs store.postgres_dsn in the --config file")
		}
		pg, err := store.OpenPostgres(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return err
		}
		defer pg.Close()
		history = pg
	}

	reports := analyzeFiles(ctx, analyzer, c.Files, c.Concurrency)
	if history != nil {
		for i := range reports {
			recordReport(ctx, history, &reports[i])
		}
	}

	if err := c.print(g, reports); err != nil {
		return err
	}
	for _, r := range reports {
		if r.err != nil {
			return exitCode(1)
		}
	}
	return nil
}

func (c *analyzeCmd) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if c.Config != "" {
		loaded, err := config.Load(c.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = &config.Config{VAD: config.ProviderEntry{Name: "energy"}}
		config.ApplyDefaults(cfg)
	}
	if c.VAD != "" {
		cfg.VAD = config.ProviderEntry{Name: c.VAD}
	}
	return cfg, nil
}

// analyzeFiles runs the pipeline over every file with at most limit in
// flight. Reports keep the order of files.
func analyzeFiles(ctx context.Context, a *mpt.Analyzer, files []string, limit int) []fileReport {
	reports := make([]fileReport, len(files))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, path := range files {
		reports[i].File = path
		g.Go(func() error {
			res, err := analyzeFile(gctx, a, path)
			if err != nil {
				reports[i].err = err
				reports[i].Error = err.Error()
				slog.Warn("analysis failed", "file", path, "err", err)
				return nil
			}
			reports[i].Result = &res
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

func analyzeFile(ctx context.Context, a *mpt.Analyzer, path string) (mpt.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return mpt.Result{}, err
	}
	pcm, src, err := audio.LoadWAV(data)
	if err != nil {
		return mpt.Result{}, err
	}
	slog.Debug("decoded recording", "file", path, "source", src.String(), "bytes", len(pcm))
	return a.Analyze(ctx, pcm, audio.Contract)
}

func recordReport(ctx context.Context, s store.Store, r *fileReport) {
	if r.Result == nil {
		return
	}
	rec := store.NewRecord(store.SourceCLI, *r.Result)
	if err := s.Save(ctx, rec); err != nil {
		slog.Warn("could not save analysis", "file", r.File, "err", err)
		return
	}
	r.ID = rec.ID.String()
}

func (c *analyzeCmd) print(g *globals, reports []fileReport) error {
	if c.JSON {
		enc := json.NewEncoder(g.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	for _, r := range reports {
		if r.err != nil {
			fmt.Fprintln(g.stdout, cli.RenderFailure(r.File, r.err))
			continue
		}
		fmt.Fprintln(g.stdout, cli.RenderResult(r.File, *r.Result))
	}
	return nil
}
