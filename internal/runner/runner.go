package runner

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	ferrors "git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
)

// Spec describes one external tool invocation.
//
// Argv is passed to the OS process API as a structured argument list; no
// shell re-parses it, so paths with spaces survive as single arguments.
type Spec struct {
	// Phase labels log lines and errors ("restore" or "build").
	Phase string
	// Argv is the full argument vector, Argv[0] being the executable.
	Argv []string
	// Dir is the working directory for the child.
	Dir string
	// Env is overlaid on top of the ambient process environment.
	Env map[string]string
	// Stdin is written to the child's standard input, which is then closed.
	// This is the only channel that may carry secret material.
	Stdin string
}

// ExitStatus reports how a child process resolved. Exactly one of Code and
// Signal is meaningful: Code when the process exited on its own, Signal when
// it was killed.
type ExitStatus struct {
	Code   *int
	Signal string
}

// Killed reports whether the process was terminated by a signal.
func (s ExitStatus) Killed() bool { return s.Signal != "" }

// LineSink receives stdout/stderr lines as they arrive. This is a diagnostic
// side-channel, not part of the result.
type LineSink func(phase, stream, line string)

// SlogSink logs child output through the default slog logger. Stdout lines
// log at Info, stderr at Warn.
func SlogSink(phase, stream, line string) {
	if stream == "stderr" {
		slog.Warn(line, logfields.Phase(phase), logfields.Stream(stream))
		return
	}
	slog.Info(line, logfields.Phase(phase), logfields.Stream(stream))
}

// Runner spawns external tool processes and reports their exit exactly once.
type Runner struct {
	sink LineSink
}

func New() *Runner {
	return &Runner{sink: SlogSink}
}

// NewWithSink injects a custom output sink (used by tests).
func NewWithSink(sink LineSink) *Runner {
	if sink == nil {
		sink = SlogSink
	}
	return &Runner{sink: sink}
}

// Handle refers to a live child process. The orchestrator holds it solely to
// permit cancellation; all state mutation goes through Kill.
type Handle struct {
	pid    int
	cmd    *exec.Cmd
	killed atomic.Bool
}

// PID returns the OS process id of the child.
func (h *Handle) PID() int { return h.pid }

// Kill forcibly terminates the child and, on platforms where killing the
// parent leaves descendants running, its whole process tree. Idempotent;
// calling it on an already-exited process is not an error.
func (h *Handle) Kill() error {
	h.killed.Store(true)
	return killProcess(h)
}

// Start spawns spec.Argv as a child process, writes spec.Stdin to its input,
// streams its output line-by-line to the sink, and invokes onExit exactly
// once when the process resolves.
//
// The environment overlay is merged on top of the ambient environment, not
// substituted for it.
func (r *Runner) Start(spec Spec, onExit func(ExitStatus)) (*Handle, error) {
	if len(spec.Argv) == 0 {
		return nil, ferrors.ValidationError("argv must not be empty").Build()
	}
	if onExit == nil {
		return nil, ferrors.ValidationError("onExit callback is required").Build()
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...) //nolint:gosec // argv is built by params.Builder, not user shell input
	cmd.Dir = spec.Dir
	cmd.Env = mergedEnv(spec.Env)
	setProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategorySpawn, "open stdin pipe").Build()
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategorySpawn, "open stdout pipe").Build()
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategorySpawn, "open stderr pipe").Build()
	}

	if err := cmd.Start(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategorySpawn, "start process").
			WithContext("bin", spec.Argv[0]).
			WithContext("phase", spec.Phase).
			Build()
	}

	h := &Handle{pid: cmd.Process.Pid, cmd: cmd}
	slog.Debug("Process started", logfields.Phase(spec.Phase), logfields.PID(h.pid))

	// Deliver the payload and signal end-of-input so the child never blocks
	// waiting for more.
	go func() {
		if spec.Stdin != "" {
			if _, err := io.WriteString(stdin, spec.Stdin); err != nil {
				slog.Warn("Failed to write process stdin", logfields.Phase(spec.Phase), logfields.Error(err))
			}
		}
		_ = stdin.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go r.streamLines(&wg, spec.Phase, "stdout", stdout)
	go r.streamLines(&wg, spec.Phase, "stderr", stderr)

	go func() {
		wg.Wait()
		waitErr := cmd.Wait()
		st := exitStatus(cmd.ProcessState, h.killed.Load(), waitErr)
		slog.Debug("Process exited",
			logfields.Phase(spec.Phase),
			logfields.PID(h.pid),
			logfields.ExitCode(st.Code),
			logfields.Signal(st.Signal))
		onExit(st)
	}()

	return h, nil
}

func (r *Runner) streamLines(wg *sync.WaitGroup, phase, stream string, src io.Reader) {
	defer wg.Done()
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		r.sink(phase, stream, scanner.Text())
	}
}

func mergedEnv(overlay map[string]string) []string {
	if len(overlay) == 0 {
		return nil // inherit ambient environment unchanged
	}
	env := os.Environ()
	for k, v := range overlay {
		env = append(env, k+"="+v)
	}
	return env
}
