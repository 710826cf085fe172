package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyCorrelationID = "correlation_id"
	KeyPhase         = "phase"
	KeyResult        = "result"
	KeyExitCode      = "exit_code"
	KeySignal        = "signal"
	KeyPID           = "pid"
	KeyStream        = "stream"
	KeyDurationMS    = "duration_ms"
	KeyRepo          = "repository"
	KeyOutput        = "output"
	KeyError         = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func CorrelationID(id string) slog.Attr  { return slog.String(KeyCorrelationID, id) }
func Phase(name string) slog.Attr        { return slog.String(KeyPhase, name) }
func Result(r string) slog.Attr          { return slog.String(KeyResult, r) }
func Signal(s string) slog.Attr          { return slog.String(KeySignal, s) }
func PID(pid int) slog.Attr              { return slog.Int(KeyPID, pid) }
func Stream(s string) slog.Attr          { return slog.String(KeyStream, s) }
func DurationMS(ms float64) slog.Attr    { return slog.Float64(KeyDurationMS, ms) }
func Repository(path string) slog.Attr   { return slog.String(KeyRepo, path) }
func Output(path string) slog.Attr       { return slog.String(KeyOutput, path) }

// ExitCode renders a possibly-absent exit code; killed processes have none.
func ExitCode(code *int) slog.Attr {
	if code == nil {
		return slog.String(KeyExitCode, "none")
	}
	return slog.Int(KeyExitCode, *code)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
