package packageregistry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/SeaSharpy/Dim/internal/diag"
)

// UntilReady blocks until dir exists and has at least one entry, or
// until timeout elapses, whichever comes first (SPEC_FULL §4.9). It
// never runs once the mutator has started: it is a startup convenience
// for the CLI, not a live-reload mechanism — hot unload/reload of
// already-loaded packages remains a non-goal.
func UntilReady(dir string, timeout time.Duration, w *diag.Writer) error {
	if w == nil {
		w = diag.New(nil)
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// A directory that does not exist yet is watched through its parent
	// until it appears.
	parent := dir
	if _, err := os.Stat(dir); err != nil {
		parent = filepath.Dir(dir)
	}

	if err := watcher.Add(parent); err != nil {
		return fmt.Errorf("watch %s: %w", parent, err)
	}

	deadline := time.After(timeout)

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed before %s became ready", dir)
			}

			w.Reportf("Package directory event", "%s %s", ev.Op, ev.Name)

			if parent != dir {
				if err := watcher.Add(dir); err == nil {
					parent = dir
				}
			}

			if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher closed before %s became ready", dir)
			}

			w.Reportf("Package directory watch error", "%v", err)
		case <-deadline:
			return fmt.Errorf("timed out waiting for %s", dir)
		}
	}
}
