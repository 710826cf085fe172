// Package watch triggers rebuilds when the documentation repository changes
// on disk, coalescing bursts of file events into a single trigger, with an
// optional fixed-interval schedule as a safety net.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	ferrors "git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

// Config tunes rebuild triggering.
type Config struct {
	// QuietWindow is how long the tree must stay unchanged before a change
	// trigger fires. Defaults to 2s.
	QuietWindow time.Duration
	// Interval schedules unconditional rebuilds; 0 disables them.
	Interval time.Duration
}

// Trigger is invoked once per coalesced change burst or schedule tick.
// Reason is "change" or "interval". Invocations are serialized with event
// processing; a slow trigger delays the next one rather than overlapping it.
type Trigger func(reason string)

// Run watches repoPath until ctx is canceled.
func Run(ctx context.Context, repoPath string, cfg Config, trigger Trigger) error {
	if repoPath == "" {
		return ferrors.ValidationError("repository path is required").Build()
	}
	if trigger == nil {
		return ferrors.ValidationError("trigger is required").Build()
	}
	if cfg.QuietWindow <= 0 {
		cfg.QuietWindow = 2 * time.Second
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "create fs watcher").Build()
	}
	defer watcher.Close()

	if err := addRecursive(watcher, repoPath); err != nil {
		return err
	}

	triggerCh := make(chan string, 1)
	requestTrigger := func(reason string) {
		select {
		case triggerCh <- reason:
		default: // one pending trigger is enough
		}
	}

	var scheduler gocron.Scheduler
	if cfg.Interval > 0 {
		scheduler, err = gocron.NewScheduler()
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryRuntime, "create scheduler").Build()
		}
		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Interval),
			gocron.NewTask(func() { requestTrigger("interval") }),
		)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryRuntime, "schedule interval rebuild").Build()
		}
		scheduler.Start()
		defer func() { _ = scheduler.Shutdown() }()
	}

	slog.Info("Watching repository for changes",
		"path", repoPath,
		"quiet_window", cfg.QuietWindow,
		"interval", cfg.Interval)

	quiet := time.NewTimer(time.Hour)
	if !quiet.Stop() {
		<-quiet.C
	}
	var quietC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if evt.Op == fsnotify.Chmod {
				continue
			}
			if evt.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
					_ = addRecursive(watcher, evt.Name)
				}
			}
			if !quiet.Stop() {
				select {
				case <-quiet.C:
				default:
				}
			}
			quiet.Reset(cfg.QuietWindow)
			quietC = quiet.C

		case <-quietC:
			quietC = nil
			requestTrigger("change")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", "error", err)

		case reason := <-triggerCh:
			slog.Info("Rebuild triggered", "reason", reason)
			trigger(reason)
		}
	}
}

// addRecursive registers root and all subdirectories, skipping VCS metadata.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "watch directory tree").
			WithContext("path", root).
			Build()
	}
	return nil
}
