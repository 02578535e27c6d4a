package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"treklist/internal/bookmark"
	"treklist/internal/config"
	"treklist/internal/logging"
	"treklist/internal/playlists"
	"treklist/internal/registry"
	"treklist/internal/resolver"
	"treklist/internal/tags"
)

// ErrAlreadyAttached indicates the path is already an attached root.
var ErrAlreadyAttached = errors.New("folder already attached")

// Library wires the registries, identity index, resolver, and playlist
// manager behind one surface. It is safe for concurrent use.
type Library struct {
	cfg    *config.Config
	logger *slog.Logger

	Tracks    *registry.TrackRegistry
	Folders   *registry.FolderRegistry
	Identity  *IdentityIndex
	Resolver  *resolver.Resolver
	Playlists *playlists.Manager
	scanner   *Scanner

	cache tags.CacheInvalidator

	mu   sync.Mutex
	held map[uuid.UUID]int
}

// Open loads every store under the configured data directory.
func Open(cfg *config.Config, logger *slog.Logger) (*Library, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	tracks, err := registry.OpenTrackRegistry(cfg.TrackStorePath(), logger)
	if err != nil {
		return nil, err
	}
	folders, err := registry.OpenFolderRegistry(cfg.FolderStorePath(), logger)
	if err != nil {
		return nil, err
	}
	identity, err := OpenIdentityIndex(cfg.IdentityStorePath(), logger)
	if err != nil {
		return nil, err
	}
	lists, err := playlists.Open(cfg.PlaylistDir(), logger)
	if err != nil {
		return nil, err
	}

	lib := &Library{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "library"),
		Tracks:    tracks,
		Folders:   folders,
		Identity:  identity,
		Playlists: lists,
		held:      make(map[uuid.UUID]int),
	}
	lib.Resolver = resolver.New(tracks, folders, logger,
		resolver.WithRecoveryDepth(cfg.Resolver.RecoveryMaxDepth))
	lib.scanner = NewScanner(tracks, folders, identity, cfg.Scan, logger)
	return lib, nil
}

// SetMetadataCache registers the cache to invalidate when tracks leave
// the library. Optional; the CLI wires it after constructing both.
func (l *Library) SetMetadataCache(cache tags.CacheInvalidator) {
	l.cache = cache
}

// Attach registers path as a new root folder and scans it.
func (l *Library) Attach(ctx context.Context, path string) (registry.FolderEntry, ScanResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return registry.FolderEntry{}, ScanResult{}, fmt.Errorf("resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return registry.FolderEntry{}, ScanResult{}, fmt.Errorf("stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return registry.FolderEntry{}, ScanResult{}, fmt.Errorf("%s is not a directory", abs)
	}

	for _, rf := range l.Folders.ResolveAll() {
		if rf.Entry.IsRoot() && rf.Path == filepath.Clean(abs) {
			return registry.FolderEntry{}, ScanResult{}, fmt.Errorf("%w: %s", ErrAlreadyAttached, abs)
		}
	}

	bm, err := bookmark.Encode(abs)
	if err != nil {
		return registry.FolderEntry{}, ScanResult{}, err
	}
	entry := registry.FolderEntry{
		ID:       uuid.New(),
		Bookmark: bm,
		Name:     filepath.Base(abs),
	}
	if err := l.Folders.Upsert(entry); err != nil {
		return registry.FolderEntry{}, ScanResult{}, err
	}

	result, err := l.scanner.ScanFolder(ctx, entry.ID)
	if err != nil {
		return entry, result, err
	}
	l.logger.Info("folder attached",
		logging.String(logging.FieldFolderID, entry.ID.String()),
		logging.String(logging.FieldPath, abs),
		logging.Int("tracks_added", result.TracksAdded))
	return entry, result, nil
}

// Detach removes the root folder at path from the registry. Its tracks
// stay registered but are orphaned: FolderID cleared and state missing
// until a re-attach re-anchors them.
func (l *Library) Detach(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if err := l.Folders.RemoveBookmark(abs); err != nil {
		return err
	}

	for _, entry := range l.Tracks.All() {
		if _, ok := l.Folders.Folder(entry.FolderID); ok {
			continue
		}
		if entry.FolderID == uuid.Nil && entry.State == registry.StateMissing {
			continue
		}
		entry.FolderID = uuid.Nil
		entry.State = registry.StateMissing
		if err := l.Tracks.Upsert(entry); err != nil {
			return err
		}
	}
	return nil
}

// Scan re-walks an attached folder.
func (l *Library) Scan(ctx context.Context, folderID uuid.UUID) (ScanResult, error) {
	return l.scanner.ScanFolder(ctx, folderID)
}

// Resolve produces a scoped access grant for the track and tracks it so
// file operations refuse to move a file that is in use.
func (l *Library) Resolve(ctx context.Context, trackID uuid.UUID) (*bookmark.Access, error) {
	access, err := l.Resolver.Resolve(ctx, trackID)
	if err != nil || access == nil {
		return access, err
	}

	l.mu.Lock()
	l.held[trackID]++
	l.mu.Unlock()
	access.OnRelease(func() {
		l.mu.Lock()
		if l.held[trackID]--; l.held[trackID] <= 0 {
			delete(l.held, trackID)
		}
		l.mu.Unlock()
	})
	return access, nil
}

// InUse reports whether any unreleased access grant exists for the
// track.
func (l *Library) InUse(trackID uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[trackID] > 0
}

// RemoveTrack deletes a track from the registry, the identity index,
// every playlist, and the metadata cache.
func (l *Library) RemoveTrack(trackID uuid.UUID) error {
	if err := l.Tracks.Remove(trackID); err != nil {
		return err
	}
	if err := l.Identity.Forget(trackID); err != nil {
		return err
	}
	if err := l.Playlists.RemoveTrackEverywhere(trackID); err != nil {
		return err
	}
	if l.cache != nil {
		if err := l.cache.Invalidate(trackID); err != nil {
			l.logger.Warn("metadata cache cleanup failed",
				logging.String(logging.FieldTrackID, trackID.String()),
				logging.Error(err))
		}
	}
	return nil
}
