//go:build !windows

package runner

// KillTree is a no-op on POSIX systems: children run in their own process
// group (see setProcAttr) and killProcess signals the whole group, so
// descendants never outlive a cancellation.
func KillTree(_ int) {}
