package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 200 * time.Millisecond

// Watch executes the plan, then re-executes it whenever the plan file or a
// CSV in the sources directory changes. Changes are debounced so an editor
// saving several files triggers a single run. Run failures are reported and
// watching continues; Watch returns when ctx is done.
func Watch(ctx context.Context, opts RunOptions, out io.Writer, logger *slog.Logger) error {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	planPath, err := filepath.Abs(opts.PlanPath)
	if err != nil {
		return err
	}
	sourcesDir, err := filepath.Abs(opts.SourcesDir)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Directories, not files: editors replace files on save.
	dirs := map[string]struct{}{sourcesDir: {}, filepath.Dir(planPath): {}}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	relevant := func(name string) bool {
		name = filepath.Clean(name)
		if name == planPath {
			return true
		}
		return filepath.Dir(name) == sourcesDir && strings.EqualFold(filepath.Ext(name), ".csv")
	}

	runIteration := func() {
		if _, err := RunOnce(ctx, opts, out, logger); err != nil && ctx.Err() == nil {
			logger.Error("Run failed", "err", err)
			printSystemMessage(out, "run failed: %v", err)
		}
		printSystemMessage(out, "Waiting for changes...")
	}

	logger.Info("Starting watcher", "plan", planPath, "sources", sourcesDir)
	runIteration()

	timer := time.NewTimer(debounce)
	timer.Stop()
	var changed []string

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping watcher")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !relevant(event.Name) {
				continue
			}
			logger.Debug("Change detected", "path", event.Name, "op", event.Op.String())
			changed = append(changed, filepath.Base(event.Name))
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", "err", err)

		case <-timer.C:
			printSystemMessage(out, "Change detected in %s.", strings.Join(dedupe(changed), ", "))
			changed = changed[:0]
			runIteration()
		}
	}
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := names[:0:0]
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
