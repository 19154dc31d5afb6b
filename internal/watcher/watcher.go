// Package watcher triggers card syncs when Markdown files in the vault change.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Func handles one changed file. path is relative to the vault root.
type Func func(ctx context.Context, path string)

// Watch starts an fsnotify watcher on root and calls fn for every .md file
// that was created or written, once the file has been quiet for debounce.
// fn is always called from the watch goroutine, so two calls never overlap.
// New directories created at runtime are added to the watch list. Watch
// returns when ctx is cancelled.
func Watch(ctx context.Context, root string, debounce time.Duration, logger *slog.Logger, fn Func) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root), slog.Duration("debounce", debounce))

	// pending maps a relative path to the time it becomes due.
	pending := make(map[string]time.Time)
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func(d time.Duration) {
		if timer == nil {
			timer = time.NewTimer(d)
			timerCh = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(d)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case now := <-timerCh:
			var next time.Duration
			for _, rel := range due(pending, now) {
				delete(pending, rel)
				logger.Debug("watcher: file changed", slog.String("path", rel))
				fn(ctx, rel)
			}
			for _, at := range pending {
				if d := time.Until(at); next == 0 || d < next {
					next = d
				}
			}
			if len(pending) > 0 {
				schedule(max(next, time.Millisecond))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
					continue
				}
			}

			if !strings.HasSuffix(ev.Name, ".md") || ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			pending[rel] = time.Now().Add(debounce)
			schedule(debounce)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// due returns the pending paths whose deadline is not after now, in a
// stable order.
func due(pending map[string]time.Time, now time.Time) []string {
	var out []string
	for rel, at := range pending {
		if !at.After(now) {
			out = append(out, rel)
		}
	}
	slices.Sort(out)
	return out
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the
// watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
