// Package watch keeps the note index current with external file-system
// changes using fsnotify.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/avhall/notarius/internal/library"
	"github.com/avhall/notarius/internal/scan"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted", "project.created".
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher over every registered project directory
// and processes change events until ctx is cancelled. It calls cb (if
// non-nil) after each successful index mutation.
//
// Directories created at runtime inside a registered project become child
// projects and join the watch list. Rename events trigger a debounced
// reconciliation pass that drops index entries whose files no longer exist.
func Watch(ctx context.Context, svc *library.Service, logger *slog.Logger, cb EventCallback) error {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, p := range svc.Registry().All() {
		if err := w.Add(p.URL); err != nil {
			logger.Warn("watcher: add failed", slog.String("path", p.URL), slog.String("error", err.Error()))
		}
	}

	logger.Info("watcher: started", slog.Int("projects", svc.Registry().Len()))

	// reconcileTimer debounces rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(svc, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			path := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
					if registerNewDir(svc, path, logger) {
						if addErr := w.Add(path); addErr != nil {
							logger.Warn("watcher: add new dir failed",
								slog.String("path", path),
								slog.String("error", addErr.Error()))
						}
						if cb != nil {
							cb("project.created", path)
						}
					}
					continue
				}
			}

			if !scan.AllowedExt(path) {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if !svc.ReloadFile(path) {
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("path", path), slog.String("op", kind))
				if cb != nil {
					cb(kind, path)
				}

			case ev.Op&fsnotify.Remove != 0:
				if !svc.RemoveFile(path) {
					continue
				}
				logger.Debug("watcher: deleted", slog.String("path", path))
				if cb != nil {
					cb("deleted", path)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only; the new path
				// arrives as a separate Create event when it stays watched.
				// Drop the old entry now and reconcile shortly after.
				if svc.RemoveFile(path) {
					logger.Debug("watcher: rename old deleted", slog.String("path", path))
					if cb != nil {
						cb("deleted", path)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// registerNewDir turns a directory created inside a registered project into
// a child project and loads it. Hidden, bundle-style, and Trash directories
// are ignored, as is anything whose parent is unknown.
func registerNewDir(svc *library.Service, path string, logger *slog.Logger) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.Contains(name, ".") || strings.Contains(path, "Trash") {
		return false
	}
	reg := svc.Registry()
	parent := reg.ByURL(filepath.Dir(path))
	if parent == nil || reg.Len() >= scan.MaxProjects {
		return false
	}
	child, err := reg.NewProject(path, "", false)
	if err != nil {
		logger.Warn("watcher: new dir rejected", slog.String("path", path), slog.String("error", err.Error()))
		return false
	}
	child.Parent = parent.ID
	if added := reg.Register(child); len(added) == 0 {
		return false
	}
	svc.LoadProject(child, false)
	logger.Debug("watcher: registered new project", slog.String("path", path))
	return true
}

// reconcile drops index entries whose files vanished and picks up files that
// appeared while events were in flight.
func reconcile(svc *library.Service, logger *slog.Logger, cb EventCallback) {
	for _, n := range svc.Index().All() {
		if _, err := os.Stat(n.URL); err != nil {
			svc.Index().Remove(n)
			logger.Debug("reconcile: removed stale", slog.String("path", n.URL))
			if cb != nil {
				cb("deleted", n.URL)
			}
		}
	}
	if added := svc.LoadAll(false); added > 0 {
		logger.Debug("reconcile: indexed new", slog.Int("count", added))
		if cb != nil {
			cb("updated", "")
		}
	}
}
