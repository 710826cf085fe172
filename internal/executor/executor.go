// Package executor orchestrates the two-phase documentation build pipeline:
// dependency restore, then build, against the external build tool.
//
// Concurrency model: one executor instance serializes its own phases by
// construction (the build phase starts only after the restore phase's exit
// has resolved), so at most one child process is live per instance. The
// tracked-process handle is mutex-guarded because Cancel may arrive from a
// signal-handler goroutine while a phase is in flight.
package executor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/events"
	ferrors "git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/history"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/metrics"
	"git.home.luguber.info/inful/docpipe/internal/params"
	"git.home.luguber.info/inful/docpipe/internal/runner"
)

// Result is the terminal state of a phase or a whole run.
type Result string

const (
	ResultSucceeded Result = "succeeded"
	ResultFailed    Result = "failed"
	ResultCanceled  Result = "canceled"
)

// Phase names.
const (
	PhaseRestore = "restore"
	PhaseBuild   = "build"
)

// publishTimeout bounds event delivery so a stuck subscriber cannot wedge a
// run, including during cancellation when the run context is already dead.
const publishTimeout = 5 * time.Second

// Outcome is the structured result surface consumed by the rest of the
// system; callers never see raw process exit codes.
type Outcome struct {
	Result          Result
	RestoreSkipped  bool
	RestoreDuration *time.Duration
	BuildDuration   *time.Duration
}

// ProcessHandle is the weak reference the executor holds to a live phase
// process, solely to permit cancellation.
type ProcessHandle interface {
	PID() int
	Kill() error
}

// StartFunc spawns a process and arranges for onExit to be called exactly
// once. Injected in tests; defaults to runner.Runner.
type StartFunc func(spec runner.Spec, onExit func(runner.ExitStatus)) (ProcessHandle, error)

// Executor drives restore-then-build runs and owns cancellation of whatever
// process is currently in flight.
type Executor struct {
	builder  *params.Builder
	start    StartFunc
	bus      *events.Bus
	recorder metrics.Recorder
	store    *history.Store

	mu      sync.Mutex
	tracked ProcessHandle

	// restoreDone records that a restore has succeeded once during this
	// executor's lifetime. Set only on success, never reset while the
	// instance lives (ResetRestoreCache exists for tests).
	restoreDone atomic.Bool
}

func New(cfg *config.Config) *Executor {
	r := runner.New()
	return &Executor{
		builder:  params.NewBuilder(cfg),
		recorder: metrics.NoopRecorder{},
		start: func(spec runner.Spec, onExit func(runner.ExitStatus)) (ProcessHandle, error) {
			return r.Start(spec, onExit)
		},
	}
}

// WithBus publishes lifecycle events to the given bus.
func (e *Executor) WithBus(bus *events.Bus) *Executor {
	e.bus = bus
	return e
}

// WithRecorder injects a metrics recorder.
func (e *Executor) WithRecorder(rec metrics.Recorder) *Executor {
	if rec != nil {
		e.recorder = rec
	}
	return e
}

// WithHistory persists run outcomes to the given store.
func (e *Executor) WithHistory(store *history.Store) *Executor {
	e.store = store
	return e
}

// WithStartFunc replaces the process spawner (tests only).
func (e *Executor) WithStartFunc(start StartFunc) *Executor {
	e.start = start
	return e
}

// ResetRestoreCache clears the one-time restore flag. Exposed so tests can
// exercise restore behavior without constructing fresh executors.
func (e *Executor) ResetRestoreCache() {
	e.restoreDone.Store(false)
}

// RunBuild executes the pipeline for one request: restore (unless already
// done once for this executor) followed by build.
//
// Process-level failures and cancellation are reported through the Outcome;
// the error return covers only invalid requests that never reach a phase.
func (e *Executor) RunBuild(ctx context.Context, req params.Request) (Outcome, error) {
	if ctx == nil {
		return Outcome{}, ferrors.ValidationError("context cannot be nil").Build()
	}

	p, err := e.builder.Build(req)
	if err != nil {
		return Outcome{}, err
	}

	startedAt := time.Now()
	outcome := Outcome{RestoreSkipped: e.restoreDone.Load()}

	if outcome.RestoreSkipped {
		slog.Debug("Restore already succeeded once, skipping", logfields.CorrelationID(req.CorrelationID))
		e.recorder.IncRestoreSkipped()
	} else {
		result, duration := e.runRestore(ctx, req, p)
		if result != ResultSucceeded {
			outcome.Result = result
			outcome.RestoreDuration = &duration
			e.finishRun(ctx, req, startedAt, outcome)
			return outcome, nil
		}
		e.restoreDone.Store(true)
		outcome.RestoreDuration = &duration
	}

	result, duration := e.runBuildPhase(ctx, req, p)
	outcome.Result = result
	outcome.BuildDuration = &duration

	e.finishRun(ctx, req, startedAt, outcome)
	return outcome, nil
}

func (e *Executor) runRestore(ctx context.Context, req params.Request, p params.Parameters) (Result, time.Duration) {
	e.publish(events.RestoreStarted{CorrelationID: req.CorrelationID, StartedAt: time.Now()})
	slog.Info("Restore started", logfields.CorrelationID(req.CorrelationID), logfields.Repository(req.LocalRepoPath))

	t0 := time.Now()
	st, err := e.runPhase(ctx, PhaseRestore, p.RestoreArgv, req, p)
	duration := time.Since(t0)

	result := mapExit(PhaseRestore, st, err)
	e.publish(events.RestoreCompleted{
		CorrelationID: req.CorrelationID,
		Result:        string(result),
		ExitCode:      st.Code,
		Duration:      duration,
		CompletedAt:   time.Now(),
	})
	e.recorder.ObservePhaseDuration(PhaseRestore, duration)
	e.recorder.IncPhaseResult(PhaseRestore, string(result))
	slog.Info("Restore completed",
		logfields.CorrelationID(req.CorrelationID),
		logfields.Result(string(result)),
		logfields.ExitCode(st.Code),
		logfields.DurationMS(float64(duration.Milliseconds())))
	if err != nil {
		slog.Error("Restore process could not be started", logfields.CorrelationID(req.CorrelationID), logfields.Error(err))
	}
	return result, duration
}

func (e *Executor) runBuildPhase(ctx context.Context, req params.Request, p params.Parameters) (Result, time.Duration) {
	e.publish(events.BuildStarted{CorrelationID: req.CorrelationID, StartedAt: time.Now()})
	slog.Info("Build started",
		logfields.CorrelationID(req.CorrelationID),
		logfields.Repository(req.LocalRepoPath),
		logfields.Output(req.OutputPath))

	t0 := time.Now()
	st, err := e.runPhase(ctx, PhaseBuild, p.BuildArgv, req, p)
	duration := time.Since(t0)

	result := mapExit(PhaseBuild, st, err)
	e.publish(events.BuildCompleted{
		CorrelationID: req.CorrelationID,
		Result:        string(result),
		ExitCode:      st.Code,
		Duration:      duration,
		CompletedAt:   time.Now(),
	})
	e.recorder.ObservePhaseDuration(PhaseBuild, duration)
	e.recorder.IncPhaseResult(PhaseBuild, string(result))
	slog.Info("Build completed",
		logfields.CorrelationID(req.CorrelationID),
		logfields.Result(string(result)),
		logfields.ExitCode(st.Code),
		logfields.DurationMS(float64(duration.Milliseconds())))
	if err != nil {
		slog.Error("Build process could not be started", logfields.CorrelationID(req.CorrelationID), logfields.Error(err))
	}
	return result, duration
}

// runPhase spawns one phase and suspends until its exit resolves. The exit
// callback is the sole writer of the status; a cancellation racing a natural
// exit resolves to whichever the OS reports, with no double resolution.
func (e *Executor) runPhase(ctx context.Context, phase string, argv []string, req params.Request, p params.Parameters) (runner.ExitStatus, error) {
	exitCh := make(chan runner.ExitStatus, 1)

	h, err := e.start(runner.Spec{
		Phase: phase,
		Argv:  argv,
		Dir:   req.LocalRepoPath,
		Env:   p.Env,
		Stdin: p.StdinPayload,
	}, func(st runner.ExitStatus) {
		exitCh <- st
	})
	if err != nil {
		return runner.ExitStatus{}, err
	}

	e.track(h)
	defer e.untrack()

	select {
	case st := <-exitCh:
		return st, nil
	case <-ctx.Done():
		// Caller abandoned the run; escalate to a forced kill and wait for
		// the exit callback so the outcome still comes from the OS.
		e.Cancel()
		return <-exitCh, nil
	}
}

// Cancel forcibly terminates whatever process is currently tracked,
// including its descendant tree on platforms that require it. Safe to call
// when nothing is running. It does not decide the outcome: the phase result
// transitions to Canceled only when the exit callback reports the kill.
func (e *Executor) Cancel() {
	e.mu.Lock()
	h := e.tracked
	e.mu.Unlock()

	if h == nil {
		return
	}
	slog.Info("Canceling running process", logfields.PID(h.PID()))
	if err := h.Kill(); err != nil {
		slog.Warn("Failed to kill process", logfields.PID(h.PID()), logfields.Error(err))
	}
}

func (e *Executor) track(h ProcessHandle) {
	e.mu.Lock()
	e.tracked = h
	e.mu.Unlock()
}

func (e *Executor) untrack() {
	e.mu.Lock()
	e.tracked = nil
	e.mu.Unlock()
}

func (e *Executor) publish(evt any) {
	if e.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := e.bus.Publish(ctx, evt); err != nil {
		slog.Warn("Failed to publish lifecycle event", logfields.Error(err))
	}
}

func (e *Executor) finishRun(ctx context.Context, req params.Request, startedAt time.Time, outcome Outcome) {
	e.recorder.IncRunOutcome(string(outcome.Result))
	if e.store == nil {
		return
	}
	err := e.store.Record(ctx, history.RunRecord{
		CorrelationID:   req.CorrelationID,
		Result:          string(outcome.Result),
		RestoreSkipped:  outcome.RestoreSkipped,
		RestoreDuration: outcome.RestoreDuration,
		BuildDuration:   outcome.BuildDuration,
		StartedAt:       startedAt,
		FinishedAt:      time.Now(),
	})
	if err != nil {
		slog.Warn("Failed to record run history", logfields.CorrelationID(req.CorrelationID), logfields.Error(err))
	}
}

// mapExit translates a phase's resolution into a Result.
//
// The build tool exits 1 for a usable result with warnings, so the build
// phase treats both 0 and 1 as success; restore succeeds only on 0. A kill
// signal maps to Canceled regardless of phase, and a spawn failure (no
// process ever existed) maps to Failed.
func mapExit(phase string, st runner.ExitStatus, spawnErr error) Result {
	if spawnErr != nil {
		return ResultFailed
	}
	if st.Killed() {
		return ResultCanceled
	}
	if st.Code == nil {
		return ResultFailed
	}
	switch phase {
	case PhaseBuild:
		if *st.Code == 0 || *st.Code == 1 {
			return ResultSucceeded
		}
	default:
		if *st.Code == 0 {
			return ResultSucceeded
		}
	}
	return ResultFailed
}
