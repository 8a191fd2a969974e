package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/readmore/internal/apperr"
	"github.com/starford/readmore/internal/marker"
	"github.com/starford/readmore/internal/storage"
)

// Event kinds reported by Watch.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Event describes one watcher-driven change.
type Event struct {
	Kind  string
	Path  string
	Delta marker.Delta
}

// EventCallback is called after a watcher-driven database change.
type EventCallback func(Event)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the content root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after
// each successful change.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that forgets files no
// longer on disk.
func Watch(ctx context.Context, db *DB, store storage.Provider, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	notify := func(ev Event) {
		if cb != nil {
			cb(ev)
		}
	}

	// reconcileTimer debounces rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
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
			reconcile(ctx, db, store, logger, notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					// Files may land before the directory is watched.
					scheduleReconcile()
					continue
				}
			}

			if !storage.IsContentFile(absPath) {
				continue
			}
			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(rel)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				res, impErr := importFile(ctx, db, rel, data)
				if impErr != nil {
					logger.Warn("watcher: import failed", slog.String("path", rel), slog.String("error", impErr.Error()))
					continue
				}
				kind := EventUpdated
				if ev.Op&fsnotify.Create != 0 {
					kind = EventCreated
				}
				logger.Debug("watcher: imported", slog.String("path", rel), slog.String("op", kind))
				notify(Event{Kind: kind, Path: rel, Delta: res.Delta})

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// fsnotify reports a rename on the old path only; the new
				// path arrives as a Create if it stays under a watched dir.
				if _, delErr := db.DeleteBySource(ctx, rel); delErr != nil {
					if !errors.Is(delErr, apperr.ErrNotFound) {
						logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					}
				} else {
					logger.Debug("watcher: deleted", slog.String("path", rel))
					notify(Event{Kind: EventDeleted, Path: rel})
				}
				if ev.Op&fsnotify.Rename != 0 {
					scheduleReconcile()
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile forgets database entries without a file on disk and imports
// files whose checksum changed.
func reconcile(ctx context.Context, db *DB, store storage.Provider, logger *slog.Logger, notify func(Event)) {
	checksums, err := db.AllChecksums(ctx)
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if _, delErr := db.DeleteBySource(ctx, p); delErr == nil {
			logger.Debug("reconcile: removed stale", slog.String("path", p))
			notify(Event{Kind: EventDeleted, Path: p})
		}
	}

	for p, cs := range disk {
		prev, known := checksums[p]
		if known && prev == cs {
			continue
		}
		data, readErr := store.Read(p)
		if readErr != nil {
			continue
		}
		res, impErr := importFile(ctx, db, p, data)
		if impErr != nil {
			logger.Warn("reconcile: import failed", slog.String("path", p), slog.String("error", impErr.Error()))
			continue
		}
		kind := EventUpdated
		if !known {
			kind = EventCreated
		}
		logger.Debug("reconcile: imported", slog.String("path", p))
		notify(Event{Kind: kind, Path: p, Delta: res.Delta})
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
