//go:build windows

package runner

import (
	"os"
	"os/exec"
	"syscall"
)

// setProcAttr creates a new process group on Windows. Unlike POSIX there is
// no group-kill primitive, so cancellation additionally walks the descendant
// tree (see killtree_windows.go).
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// killProcess terminates the child's descendant tree first, then the child
// itself. Descendants that exited between enumeration and kill are ignored.
func killProcess(h *Handle) error {
	if h == nil || h.cmd == nil || h.cmd.Process == nil {
		return nil
	}
	KillTree(h.pid)
	if err := h.cmd.Process.Kill(); err != nil && err != os.ErrProcessDone {
		return err
	}
	return nil
}

// exitStatus maps the Windows exit code onto ExitStatus. Windows has no
// signal concept; a process terminated via TerminateProcess reports a plain
// nonzero exit code, so the killed flag recorded by Handle.Kill is what
// distinguishes cancellation from an ordinary failure.
func exitStatus(ps *os.ProcessState, killed bool, _ error) ExitStatus {
	if ps == nil {
		code := -1
		return ExitStatus{Code: &code}
	}
	code := ps.ExitCode()
	if killed && code != 0 {
		return ExitStatus{Signal: "killed"}
	}
	return ExitStatus{Code: &code}
}
