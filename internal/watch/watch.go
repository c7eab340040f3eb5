// Package watch rebuilds a session when recording files appear in the
// configured modality directories.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"longrec/internal/logging"
	"longrec/internal/session"
)

// Rebuilder is implemented by session.Session.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// Target is one directory and the file pattern that matters in it.
type Target struct {
	Dir     string
	Pattern string
}

// Targets lists the watch targets of the configured modalities.
func Targets(modalities []session.Modality) []Target {
	out := make([]Target, 0, len(modalities))
	for _, m := range modalities {
		out = append(out, Target{Dir: filepath.Clean(m.Source.Dir), Pattern: m.Source.Pattern})
	}
	return out
}

// Options tunes Run.
type Options struct {
	// Debounce is the quiet period after the last matching event before a
	// rebuild starts.
	Debounce time.Duration
	Logger   *slog.Logger
	// Rebuilt, when set, receives the outcome of every rebuild.
	Rebuilt func(error)
}

// Run watches targets until ctx is cancelled and calls rb.Rebuild once the
// matching events have settled. Directories that do not exist are skipped.
func Run(ctx context.Context, targets []Target, rb Rebuilder, opts Options) error {
	logger := logging.NewComponentLogger(opts.Logger, "watch")
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	patterns := make(map[string][]string)
	for _, t := range targets {
		t.Dir = filepath.Clean(t.Dir)
		if info, err := os.Stat(t.Dir); err != nil || !info.IsDir() {
			logging.WarnWithContext(logger, "directory not watched", "watch_skipped",
				logging.String("dir", t.Dir),
				logging.String(logging.FieldErrorHint, "create the directory and restart the watcher"),
				logging.String(logging.FieldImpact, "new files in this directory are not picked up"),
			)
			continue
		}
		if _, seen := patterns[t.Dir]; !seen {
			if err := watcher.Add(t.Dir); err != nil {
				return err
			}
		}
		patterns[t.Dir] = append(patterns[t.Dir], t.Pattern)
	}
	logger.Info("watching recording directories", logging.Int("dirs", len(patterns)))

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := 0

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Write) {
				continue
			}
			if !matches(patterns[filepath.Dir(event.Name)], filepath.Base(event.Name)) {
				continue
			}
			pending++
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", logging.Error(err))

		case <-timer.C:
			logger.Info("recording files changed, rebuilding", logging.Int("events", pending))
			pending = 0
			err := rb.Rebuild(ctx)
			if err != nil {
				logger.Error("rebuild failed", logging.Error(err))
			}
			if opts.Rebuilt != nil {
				opts.Rebuilt(err)
			}
		}
	}
}

func matches(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := filepath.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
