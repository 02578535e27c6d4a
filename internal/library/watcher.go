package library

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"treklist/internal/bookmark"
	"treklist/internal/config"
	"treklist/internal/logging"
	"treklist/internal/registry"
)

// Watcher observes the attached folders and downgrades track entries
// when files are renamed or removed underneath the app. It only marks
// entries stale; the resolver does the recovery on the next access.
type Watcher struct {
	tracks   *registry.TrackRegistry
	folders  *registry.FolderRegistry
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher constructs a watcher over the registries.
func NewWatcher(tracks *registry.TrackRegistry, folders *registry.FolderRegistry, cfg config.Watcher, logger *slog.Logger) *Watcher {
	debounce := time.Duration(cfg.DebounceMS) * time.Millisecond
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		tracks:   tracks,
		folders:  folders,
		debounce: debounce,
		logger:   logging.NewComponentLogger(logger, "watcher"),
	}
}

// Run watches every reachable registered folder until ctx is done.
// Events are batched per debounce window before entries are marked.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer fw.Close()

	watched := 0
	for _, rf := range w.folders.ResolveAll() {
		if rf.Stale {
			continue
		}
		if err := fw.Add(rf.Path); err != nil {
			w.logger.Warn("cannot watch folder",
				logging.String(logging.FieldPath, rf.Path),
				logging.Error(err))
			continue
		}
		watched++
	}
	w.logger.Info("watching library", logging.Int("folders", watched))

	var timer *time.Timer
	var timerC <-chan time.Time
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Rename|fsnotify.Remove|fsnotify.Create) == 0 {
				continue
			}
			pending[filepath.Clean(event.Name)] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", logging.Error(err))
		case <-timerC:
			w.markAffected(pending)
			pending = make(map[string]struct{})
			timer = nil
			timerC = nil
		}
	}
}

// markAffected downgrades every track whose bookmarked path matches or
// sits under one of the changed paths and no longer resolves cleanly.
func (w *Watcher) markAffected(paths map[string]struct{}) {
	if len(paths) == 0 {
		return
	}
	for _, entry := range w.tracks.All() {
		if entry.State != registry.StateActive {
			continue
		}
		resolved, err := bookmark.Decode(entry.Bookmark)
		if err != nil {
			continue
		}
		trackPath := filepath.Clean(resolved.Path)
		if !pathAffected(trackPath, paths) {
			continue
		}
		if !resolved.Stale {
			continue
		}
		if err := w.tracks.SetState(entry.ID, registry.StateStale); err != nil {
			w.logger.Warn("cannot mark track stale",
				logging.String(logging.FieldTrackID, entry.ID.String()),
				logging.Error(err))
			continue
		}
		w.logger.Debug("track marked stale",
			logging.String(logging.FieldTrackID, entry.ID.String()),
			logging.String(logging.FieldPath, trackPath))
	}
}

func pathAffected(trackPath string, paths map[string]struct{}) bool {
	for changed := range paths {
		if trackPath == changed || strings.HasPrefix(trackPath, changed+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
