//go:build !windows

package runner

import (
	"os"
	"os/exec"
	"syscall"
)

// setProcAttr places the child in its own process group so the whole group
// can be signaled together on cancellation.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcess sends SIGKILL to the child's process group. A negative pid
// signals the entire group, which covers descendants; there is no need to
// enumerate the tree on POSIX systems.
func killProcess(h *Handle) error {
	if h == nil || h.cmd == nil || h.cmd.Process == nil {
		return nil
	}
	if err := syscall.Kill(-h.pid, syscall.SIGKILL); err != nil {
		// Group kill can fail if the leader already exited; fall back to a
		// direct kill and treat an already-finished process as success.
		if err := h.cmd.Process.Kill(); err != nil && err != os.ErrProcessDone {
			return err
		}
	}
	return nil
}

// exitStatus maps the OS wait status onto ExitStatus. When the child was
// signaled the signal name wins regardless of who requested the kill; the
// wait status is the single source of truth, so a cancel racing a natural
// exit resolves to whichever the OS reports.
func exitStatus(ps *os.ProcessState, _ bool, _ error) ExitStatus {
	if ps == nil {
		code := -1
		return ExitStatus{Code: &code}
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ExitStatus{Signal: ws.Signal().String()}
	}
	code := ps.ExitCode()
	return ExitStatus{Code: &code}
}
