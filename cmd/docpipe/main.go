package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/events"
	"git.home.luguber.info/inful/docpipe/internal/executor"
	"git.home.luguber.info/inful/docpipe/internal/gitinfo"
	"git.home.luguber.info/inful/docpipe/internal/history"
	"git.home.luguber.info/inful/docpipe/internal/metrics"
	"git.home.luguber.info/inful/docpipe/internal/params"
	"git.home.luguber.info/inful/docpipe/internal/watch"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"docpipe.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Repo          string `arg:"" help:"Path to the local documentation repository"`
		Output        string `short:"o" help:"Output directory for the built site" default:"./site"`
		Log           string `help:"Build log file path (defaults to <output>/.build.log)"`
		DryRun        bool   `help:"Validate the repository without writing output"`
		CorrelationID string `help:"Correlation ID for this run (generated when empty)"`
		Token         string `help:"Build API user token" env:"DOCPIPE_TOKEN"`
	} `cmd:"" help:"Restore dependencies and build the documentation site once"`

	Watch struct {
		Repo     string        `arg:"" help:"Path to the local documentation repository"`
		Output   string        `short:"o" help:"Output directory for the built site" default:"./site"`
		Token    string        `help:"Build API user token" env:"DOCPIPE_TOKEN"`
		Quiet    time.Duration `help:"Quiet window before a change triggers a rebuild" default:"2s"`
		Interval time.Duration `help:"Also rebuild on a fixed interval (0 disables)"`
	} `cmd:"" help:"Rebuild continuously as the repository changes"`

	History struct {
		CorrelationID string `help:"Show runs for one correlation ID"`
		Since         string `help:"Show runs since this RFC 3339 timestamp"`
	} `cmd:"" help:"Show recorded build runs"`
}

func main() {
	// Local developer convenience; a missing .env is not an error.
	_ = godotenv.Load()

	kctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if CLI.Verbose {
		cfg.Debug = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch kctx.Command() {
	case "build <repo>":
		if err := runBuild(ctx, cfg); err != nil {
			slog.Error("Build failed", "error", err)
			os.Exit(1)
		}
	case "watch <repo>":
		if err := runWatch(ctx, cfg); err != nil {
			slog.Error("Watch failed", "error", err)
			os.Exit(1)
		}
	case "history":
		if err := runHistory(ctx, cfg); err != nil {
			slog.Error("History query failed", "error", err)
			os.Exit(1)
		}
	}
}

// services holds the optional side facilities a build run plugs into.
type services struct {
	bus       *events.Bus
	forwarder *events.NATSForwarder
	recorder  metrics.Recorder
	store     *history.Store
	metricsrv *http.Server
}

func startServices(ctx context.Context, cfg *config.Config) (*services, error) {
	s := &services{recorder: metrics.NoopRecorder{}}

	if cfg.NATSURL != "" {
		s.bus = events.NewBus()
		fwd, err := events.NewNATSForwarder(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return nil, err
		}
		s.forwarder = fwd
		go func() {
			if err := fwd.Run(ctx, s.bus); err != nil {
				slog.Warn("Event forwarder stopped", "error", err)
			}
		}()
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		s.recorder = metrics.NewPrometheusRecorder(reg)
		s.metricsrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metrics.HTTPHandler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("Serving metrics", "addr", cfg.MetricsAddr)
			if err := s.metricsrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Warn("Metrics server stopped", "error", err)
			}
		}()
	}

	if cfg.HistoryDB != "" {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			return nil, err
		}
		s.store = store
	}

	return s, nil
}

func (s *services) stop() {
	if s.metricsrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.metricsrv.Shutdown(shutdownCtx)
	}
	if s.forwarder != nil {
		s.forwarder.Close()
	}
	if s.bus != nil {
		s.bus.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("Failed to close history store", "error", err)
		}
	}
}

func newExecutor(cfg *config.Config, s *services) *executor.Executor {
	e := executor.New(cfg).WithRecorder(s.recorder)
	if s.bus != nil {
		e = e.WithBus(s.bus)
	}
	if s.store != nil {
		e = e.WithHistory(s.store)
	}
	return e
}

func buildRequest(repo, output, logPath, token, correlationID string, dryRun bool) params.Request {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	if logPath == "" {
		logPath = output + "/.build.log"
	}

	req := params.Request{
		CorrelationID: correlationID,
		LocalRepoPath: repo,
		OutputPath:    output,
		LogPath:       logPath,
		DryRun:        dryRun,
		AuthToken:     token,
	}

	if info, err := gitinfo.Detect(repo); err == nil {
		req.OriginalRepoURL = info.RemoteURL
	} else {
		slog.Debug("Repository metadata unavailable", "path", repo, "error", err)
	}
	return req
}

func runBuild(ctx context.Context, cfg *config.Config) error {
	s, err := startServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.stop()

	req := buildRequest(CLI.Build.Repo, CLI.Build.Output, CLI.Build.Log,
		CLI.Build.Token, CLI.Build.CorrelationID, CLI.Build.DryRun)

	slog.Info("Starting documentation build",
		"repository", req.LocalRepoPath,
		"output", req.OutputPath,
		"correlation_id", req.CorrelationID)

	outcome, err := newExecutor(cfg, s).RunBuild(ctx, req)
	if err != nil {
		return err
	}

	slog.Info("Run finished",
		"result", outcome.Result,
		"restore_skipped", outcome.RestoreSkipped)

	switch outcome.Result {
	case executor.ResultSucceeded:
		return nil
	case executor.ResultCanceled:
		os.Exit(130)
	default:
		os.Exit(1)
	}
	return nil
}

func runWatch(ctx context.Context, cfg *config.Config) error {
	s, err := startServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.stop()

	e := newExecutor(cfg, s)

	trigger := func(reason string) {
		req := buildRequest(CLI.Watch.Repo, CLI.Watch.Output, "", CLI.Watch.Token, "", false)
		slog.Info("Starting documentation build",
			"reason", reason,
			"correlation_id", req.CorrelationID)
		outcome, err := e.RunBuild(ctx, req)
		if err != nil {
			slog.Error("Build request rejected", "error", err)
			return
		}
		slog.Info("Run finished",
			"result", outcome.Result,
			"restore_skipped", outcome.RestoreSkipped)
	}

	// Build once up front so the output exists before the first change.
	trigger("initial")

	return watch.Run(ctx, CLI.Watch.Repo, watch.Config{
		QuietWindow: CLI.Watch.Quiet,
		Interval:    CLI.Watch.Interval,
	}, trigger)
}

func runHistory(ctx context.Context, cfg *config.Config) error {
	if cfg.HistoryDB == "" {
		slog.Error("No history database configured; set history_db in the configuration file")
		os.Exit(1)
	}
	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	var runs []history.RunRecord
	switch {
	case CLI.History.CorrelationID != "":
		runs, err = store.ByCorrelationID(ctx, CLI.History.CorrelationID)
	case CLI.History.Since != "":
		since, perr := time.Parse(time.RFC3339, CLI.History.Since)
		if perr != nil {
			return perr
		}
		runs, err = store.Range(ctx, since, time.Now())
	default:
		runs, err = store.Range(ctx, time.Now().Add(-24*time.Hour), time.Now())
	}
	if err != nil {
		return err
	}

	for _, run := range runs {
		attrs := []any{
			"correlation_id", run.CorrelationID,
			"result", run.Result,
			"restore_skipped", run.RestoreSkipped,
			"started_at", run.StartedAt.Format(time.RFC3339),
		}
		if run.RestoreDuration != nil {
			attrs = append(attrs, "restore_ms", run.RestoreDuration.Milliseconds())
		}
		if run.BuildDuration != nil {
			attrs = append(attrs, "build_ms", run.BuildDuration.Milliseconds())
		}
		slog.Info("Run", attrs...)
	}
	slog.Info("History query completed", "runs", len(runs))
	return nil
}
