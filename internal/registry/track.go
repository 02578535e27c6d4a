package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"treklist/internal/logging"
	"treklist/internal/storeutil"
)

// State describes the lifecycle of a track entry.
type State string

const (
	// StateActive means the bookmark resolved successfully the last time
	// it was touched in this process lifetime.
	StateActive State = "active"
	// StateStale means the bookmark decoded but the file no longer matches
	// the recorded identity; recovery may still re-anchor it.
	StateStale State = "stale"
	// StateMissing means the last resolution failed and the file is
	// unavailable until the user re-attaches its folder.
	StateMissing State = "missing"
)

// ErrTrackNotFound is returned by operations that require an existing entry.
var ErrTrackNotFound = errors.New("track not found in registry")

// TrackEntry is one registry row. The ID is the one stable handle every
// other subsystem keys on; it never changes across renames or moves.
type TrackEntry struct {
	ID        uuid.UUID `json:"id"`
	FolderID  uuid.UUID `json:"folder_id"`
	Bookmark  string    `json:"bookmark"`
	FileName  string    `json:"file_name"`
	State     State     `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAvailable reports whether the entry is expected to resolve.
func (e TrackEntry) IsAvailable() bool {
	return e.State == StateActive || e.State == StateStale
}

// TrackRegistry provides thread-safe access to the persisted track index.
type TrackRegistry struct {
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
	tracks map[uuid.UUID]TrackEntry
}

// OpenTrackRegistry loads the track store at path, creating an empty
// registry when the store does not exist yet. A corrupted store is a
// storage error and is returned, not silently replaced.
func OpenTrackRegistry(path string, logger *slog.Logger) (*TrackRegistry, error) {
	logger = logging.NewComponentLogger(logger, "trackregistry")

	r := &TrackRegistry{
		path:   path,
		logger: logger,
		tracks: make(map[uuid.UUID]TrackEntry),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Lookup returns the entry for id. Pure read, no I/O.
func (r *TrackRegistry) Lookup(id uuid.UUID) (TrackEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.tracks[id]
	return entry, ok
}

// Upsert inserts or replaces an entry by ID and persists the store.
func (r *TrackRegistry) Upsert(entry TrackEntry) error {
	if entry.ID == uuid.Nil {
		return errors.New("track entry requires an ID")
	}
	if entry.State == "" {
		entry.State = StateActive
	}
	entry.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracks[entry.ID] = entry
	if err := r.save(); err != nil {
		return fmt.Errorf("persist track registry: %w", err)
	}

	r.logger.Debug("upserted track",
		logging.String(logging.FieldTrackID, entry.ID.String()),
		logging.String("file_name", entry.FileName),
		logging.String(logging.FieldState, string(entry.State)))
	return nil
}

// Remove deletes an entry by ID. Removing an absent ID is a no-op, not an
// error; the operation is idempotent.
func (r *TrackRegistry) Remove(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tracks[id]; !ok {
		return nil
	}
	delete(r.tracks, id)

	if err := r.save(); err != nil {
		return fmt.Errorf("persist track registry: %w", err)
	}

	r.logger.Debug("removed track", logging.String(logging.FieldTrackID, id.String()))
	return nil
}

// Reanchor updates the bookmark and owning folder after a successful
// path-walk recovery, setting the entry active.
func (r *TrackRegistry) Reanchor(id uuid.UUID, newBookmark string, newFolderID uuid.UUID) (TrackEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.tracks[id]
	if !ok {
		return TrackEntry{}, ErrTrackNotFound
	}
	entry.Bookmark = newBookmark
	entry.FolderID = newFolderID
	entry.State = StateActive
	entry.UpdatedAt = time.Now().UTC()
	r.tracks[id] = entry

	if err := r.save(); err != nil {
		return TrackEntry{}, fmt.Errorf("persist track registry: %w", err)
	}

	r.logger.Info("reanchored track",
		logging.String(logging.FieldTrackID, id.String()),
		logging.String(logging.FieldFolderID, newFolderID.String()))
	return entry, nil
}

// SetState downgrades or restores the lifecycle state of an entry.
// Setting the state of an absent ID is a no-op.
func (r *TrackRegistry) SetState(id uuid.UUID, state State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.tracks[id]
	if !ok {
		return nil
	}
	if entry.State == state {
		return nil
	}
	entry.State = state
	entry.UpdatedAt = time.Now().UTC()
	r.tracks[id] = entry

	if err := r.save(); err != nil {
		return fmt.Errorf("persist track registry: %w", err)
	}

	r.logger.Debug("track state changed",
		logging.String(logging.FieldTrackID, id.String()),
		logging.String(logging.FieldState, string(state)))
	return nil
}

// Tracks returns the entries owned by folderID.
func (r *TrackRegistry) Tracks(folderID uuid.UUID) []TrackEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var entries []TrackEntry
	for _, entry := range r.tracks {
		if entry.FolderID == folderID {
			entries = append(entries, entry)
		}
	}
	sortTrackEntries(entries)
	return entries
}

// All returns every entry sorted by UpdatedAt descending.
func (r *TrackRegistry) All() []TrackEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]TrackEntry, 0, len(r.tracks))
	for _, entry := range r.tracks {
		entries = append(entries, entry)
	}
	sortTrackEntries(entries)
	return entries
}

// Count returns the number of registered tracks.
func (r *TrackRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tracks)
}

func sortTrackEntries(entries []TrackEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].UpdatedAt.Equal(entries[j].UpdatedAt) {
			return entries[i].FileName < entries[j].FileName
		}
		return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
	})
}

func (r *TrackRegistry) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // fresh start
		}
		return fmt.Errorf("read track store: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var entries []TrackEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse track store: %w", err)
	}

	r.tracks = make(map[uuid.UUID]TrackEntry, len(entries))
	for _, entry := range entries {
		if entry.ID != uuid.Nil {
			r.tracks[entry.ID] = entry
		}
	}

	r.logger.Debug("loaded track store",
		logging.Int("track_count", len(r.tracks)),
		logging.String(logging.FieldPath, r.path))
	return nil
}

// save writes the store atomically. Caller holds the write lock.
func (r *TrackRegistry) save() error {
	entries := make([]TrackEntry, 0, len(r.tracks))
	for _, entry := range r.tracks {
		entries = append(entries, entry)
	}
	sortTrackEntries(entries)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal track store: %w", err)
	}
	return storeutil.WriteFileAtomic(r.path, data, 0o644)
}
