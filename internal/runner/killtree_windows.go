//go:build windows

package runner

import (
	"log/slog"
	"unsafe"

	"golang.org/x/sys/windows"
)

// KillTree terminates every process whose parent pid chain leads back to
// pid. Killing a parent on Windows does not reap its children, so without
// this a canceled build leaves orphaned tool workers running.
//
// Idempotent: processes that exited between enumeration and kill are logged
// and skipped, and calling it on an already-dead tree is a no-op.
func KillTree(pid int) {
	children := descendants(uint32(pid))
	for _, child := range children {
		terminate(child)
	}
}

// descendants returns the transitive children of root in bottom-up order so
// leaves die before their parents.
func descendants(root uint32) []uint32 {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		slog.Warn("Failed to snapshot process list", "error", err)
		return nil
	}
	defer windows.CloseHandle(snapshot)

	childrenOf := make(map[uint32][]uint32)
	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	for err := windows.Process32First(snapshot, &entry); err == nil; err = windows.Process32Next(snapshot, &entry) {
		childrenOf[entry.ParentProcessID] = append(childrenOf[entry.ParentProcessID], entry.ProcessID)
	}

	var result []uint32
	queue := []uint32{root}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, child := range childrenOf[parent] {
			queue = append(queue, child)
			result = append(result, child)
		}
	}
	// reverse for bottom-up termination
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}

func terminate(pid uint32) {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, pid)
	if err != nil {
		// Already exited between enumeration and kill; not an error.
		slog.Debug("Skipping process that already exited", "pid", pid)
		return
	}
	defer windows.CloseHandle(h)
	if err := windows.TerminateProcess(h, 1); err != nil {
		slog.Debug("Failed to terminate descendant process", "pid", pid, "error", err)
	}
}
