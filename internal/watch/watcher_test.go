package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectTriggers(t *testing.T, ctx context.Context, dir string, cfg Config) <-chan string {
	t.Helper()
	ch := make(chan string, 16)
	go func() {
		_ = Run(ctx, dir, cfg, func(reason string) {
			select {
			case ch <- reason:
			default:
			}
		})
	}()
	// Give the watcher time to register the tree before mutating it.
	time.Sleep(100 * time.Millisecond)
	return ch
}

func TestRun_FileChangeFiresAfterQuietWindow(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := collectTriggers(t, ctx, dir, Config{QuietWindow: 50 * time.Millisecond})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.md"), []byte("# docs\n"), 0o644))

	select {
	case reason := <-ch:
		assert.Equal(t, "change", reason)
	case <-time.After(3 * time.Second):
		t.Fatal("expected a change trigger")
	}
}

func TestRun_BurstCoalescesToOneTrigger(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := collectTriggers(t, ctx, dir, Config{QuietWindow: 200 * time.Millisecond})

	for i := range 5 {
		name := filepath.Join(dir, "page"+string(rune('a'+i))+".md")
		require.NoError(t, os.WriteFile(name, []byte("x\n"), 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("expected a change trigger")
	}

	// The burst fits in one quiet window, so no second trigger follows.
	select {
	case reason := <-ch:
		t.Fatalf("unexpected extra trigger %q", reason)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestRun_NewSubdirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := collectTriggers(t, ctx, dir, Config{QuietWindow: 50 * time.Millisecond})

	sub := filepath.Join(dir, "guides")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// Drain the trigger caused by creating the directory itself.
	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("expected trigger for directory creation")
	}

	require.NoError(t, os.WriteFile(filepath.Join(sub, "intro.md"), []byte("x\n"), 0o644))

	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("expected trigger for file inside new subdirectory")
	}
}

func TestRun_IntervalFiresWithoutChanges(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := collectTriggers(t, ctx, dir, Config{
		QuietWindow: time.Hour, // changes never fire in this test
		Interval:    100 * time.Millisecond,
	})

	select {
	case reason := <-ch:
		assert.Equal(t, "interval", reason)
	case <-time.After(3 * time.Second):
		t.Fatal("expected an interval trigger")
	}
}

func TestRun_Validation(t *testing.T) {
	err := Run(context.Background(), "", Config{}, func(string) {})
	require.Error(t, err)

	err = Run(context.Background(), t.TempDir(), Config{}, nil)
	require.Error(t, err)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, dir, Config{}, func(string) {})
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}
