package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"treklist/internal/bookmark"
	"treklist/internal/logging"
	"treklist/internal/storeutil"
)

// FolderEntry is one attached or discovered folder. ParentID is uuid.Nil
// for user-attached roots. Children are derived by tree walk, never stored.
type FolderEntry struct {
	ID        uuid.UUID `json:"id"`
	ParentID  uuid.UUID `json:"parent_id"`
	Bookmark  string    `json:"bookmark"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRoot reports whether the folder is a user-attached root.
func (e FolderEntry) IsRoot() bool { return e.ParentID == uuid.Nil }

// FolderRegistry provides thread-safe access to the persisted folder index.
type FolderRegistry struct {
	path    string
	logger  *slog.Logger
	mu      sync.RWMutex
	folders map[uuid.UUID]FolderEntry
}

// OpenFolderRegistry loads the folder store at path, creating an empty
// registry when the store does not exist yet.
func OpenFolderRegistry(path string, logger *slog.Logger) (*FolderRegistry, error) {
	logger = logging.NewComponentLogger(logger, "folderregistry")

	r := &FolderRegistry{
		path:    path,
		logger:  logger,
		folders: make(map[uuid.UUID]FolderEntry),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Folder returns the entry for id.
func (r *FolderRegistry) Folder(id uuid.UUID) (FolderEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.folders[id]
	return entry, ok
}

// AttachedFolders returns the user-visible root folders, newest first.
func (r *FolderRegistry) AttachedFolders() []FolderEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var roots []FolderEntry
	for _, entry := range r.folders {
		if entry.IsRoot() {
			roots = append(roots, entry)
		}
	}
	sortFolderEntries(roots)
	return roots
}

// All returns every known folder entry, newest first.
func (r *FolderRegistry) All() []FolderEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]FolderEntry, 0, len(r.folders))
	for _, entry := range r.folders {
		entries = append(entries, entry)
	}
	sortFolderEntries(entries)
	return entries
}

// Upsert inserts or replaces a folder entry and persists the store.
func (r *FolderRegistry) Upsert(entry FolderEntry) error {
	if entry.ID == uuid.Nil {
		return errors.New("folder entry requires an ID")
	}
	entry.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.folders[entry.ID] = entry
	if err := r.save(); err != nil {
		return fmt.Errorf("persist folder registry: %w", err)
	}

	r.logger.Debug("upserted folder",
		logging.String(logging.FieldFolderID, entry.ID.String()),
		logging.String("name", entry.Name))
	return nil
}

// RemoveBookmark detaches the root folder whose bookmark points at url,
// along with its recorded sub-folders. Contained tracks are not touched:
// they become orphaned and can be re-anchored after a later re-attach.
func (r *FolderRegistry) RemoveBookmark(url string) error {
	url = filepath.Clean(url)

	r.mu.Lock()
	defer r.mu.Unlock()

	var rootID uuid.UUID
	found := false
	for id, entry := range r.folders {
		if !entry.IsRoot() {
			continue
		}
		resolved, err := bookmark.Decode(entry.Bookmark)
		if err != nil {
			continue
		}
		if filepath.Clean(resolved.Path) == url {
			rootID = id
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	removed := r.removeSubtreeLocked(rootID)
	if err := r.save(); err != nil {
		return fmt.Errorf("persist folder registry: %w", err)
	}

	r.logger.Info("detached folder",
		logging.String(logging.FieldFolderID, rootID.String()),
		logging.String(logging.FieldPath, url),
		logging.Int("removed_entries", removed))
	return nil
}

// Remove deletes a folder entry and its recorded descendants by ID.
// Removing an absent ID is a no-op.
func (r *FolderRegistry) Remove(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.folders[id]; !ok {
		return nil
	}
	r.removeSubtreeLocked(id)
	if err := r.save(); err != nil {
		return fmt.Errorf("persist folder registry: %w", err)
	}
	return nil
}

func (r *FolderRegistry) removeSubtreeLocked(id uuid.UUID) int {
	removed := 0
	queue := []uuid.UUID{id}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if _, ok := r.folders[next]; !ok {
			continue
		}
		delete(r.folders, next)
		removed++
		for childID, child := range r.folders {
			if child.ParentID == next {
				queue = append(queue, childID)
			}
		}
	}
	return removed
}

// ResolvedFolder pairs a folder entry with its current filesystem path.
type ResolvedFolder struct {
	Entry FolderEntry
	Path  string
	Stale bool
}

// ResolveAll decodes every folder bookmark against the live filesystem.
// Corrupted bookmarks are skipped; stale ones are included with their
// recorded path so path reconstruction can still reason about them.
func (r *FolderRegistry) ResolveAll() []ResolvedFolder {
	entries := r.All()
	resolved := make([]ResolvedFolder, 0, len(entries))
	for _, entry := range entries {
		res, err := bookmark.Decode(entry.Bookmark)
		if err != nil {
			r.logger.Warn("skipping corrupted folder bookmark",
				logging.String(logging.FieldFolderID, entry.ID.String()),
				logging.Error(err))
			continue
		}
		resolved = append(resolved, ResolvedFolder{
			Entry: entry,
			Path:  filepath.Clean(res.Path),
			Stale: res.Stale,
		})
	}
	return resolved
}

func sortFolderEntries(entries []FolderEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].UpdatedAt.Equal(entries[j].UpdatedAt) {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
	})
}

func (r *FolderRegistry) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read folder store: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var entries []FolderEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse folder store: %w", err)
	}

	r.folders = make(map[uuid.UUID]FolderEntry, len(entries))
	for _, entry := range entries {
		if entry.ID != uuid.Nil {
			r.folders[entry.ID] = entry
		}
	}

	r.logger.Debug("loaded folder store",
		logging.Int("folder_count", len(r.folders)),
		logging.String(logging.FieldPath, r.path))
	return nil
}

// save writes the store atomically. Caller holds the write lock.
func (r *FolderRegistry) save() error {
	entries := make([]FolderEntry, 0, len(r.folders))
	for _, entry := range r.folders {
		entries = append(entries, entry)
	}
	sortFolderEntries(entries)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal folder store: %w", err)
	}
	return storeutil.WriteFileAtomic(r.path, data, 0o644)
}
