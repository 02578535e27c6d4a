package playlists

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"treklist/internal/logging"
	"treklist/internal/storeutil"
)

const indexFile = "tracklists.json"

// ErrListNotFound indicates the playlist ID is not in the index.
var ErrListNotFound = errors.New("playlist not found")

// ErrDuplicateName indicates another playlist already uses the name.
var ErrDuplicateName = errors.New("playlist name already in use")

// ListInfo is the index entry for a playlist.
type ListInfo struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// List is a playlist with its full track order.
type List struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	CreatedAt time.Time   `json:"createdAt"`
	Tracks    []uuid.UUID `json:"tracks"`
}

// Manager owns the playlist files in one directory.
type Manager struct {
	dir    string
	logger *slog.Logger

	mu    sync.RWMutex
	index []ListInfo
}

// Open loads the playlist index from dir, creating the directory when
// absent. A missing index means no playlists yet; a corrupted index is
// an error, never silently reset.
func Open(dir string, logger *slog.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure playlist directory: %w", err)
	}

	m := &Manager{dir: dir, logger: logging.NewComponentLogger(logger, "playlists")}

	data, err := os.ReadFile(filepath.Join(dir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read playlist index: %w", err)
	}
	if err := json.Unmarshal(data, &m.index); err != nil {
		return nil, fmt.Errorf("parse playlist index: %w", err)
	}
	return m, nil
}

// Lists returns the index ordered by creation time.
func (m *Manager) Lists() []ListInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ListInfo, len(m.index))
	copy(out, m.index)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Create adds an empty playlist with the given name.
func (m *Manager) Create(name string) (ListInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ListInfo{}, errors.New("playlist name must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, info := range m.index {
		if strings.EqualFold(info.Name, name) {
			return ListInfo{}, fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
	}

	info := ListInfo{ID: uuid.New(), Name: name, CreatedAt: time.Now().UTC()}
	list := List{ID: info.ID, Name: info.Name, CreatedAt: info.CreatedAt, Tracks: []uuid.UUID{}}
	if err := m.saveList(&list); err != nil {
		return ListInfo{}, err
	}

	m.index = append(m.index, info)
	if err := m.saveIndex(); err != nil {
		return ListInfo{}, err
	}
	m.logger.Info("playlist created",
		logging.String(logging.FieldPlaylistID, info.ID.String()),
		logging.String("name", name))
	return info, nil
}

// Rename changes a playlist's name in both the index and its detail
// file.
func (m *Manager) Rename(id uuid.UUID, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return errors.New("playlist name must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pos := m.position(id)
	if pos < 0 {
		return ErrListNotFound
	}
	for i, info := range m.index {
		if i != pos && strings.EqualFold(info.Name, newName) {
			return fmt.Errorf("%w: %s", ErrDuplicateName, newName)
		}
	}

	list, err := m.loadList(id)
	if err != nil {
		return err
	}
	list.Name = newName
	if err := m.saveList(list); err != nil {
		return err
	}

	m.index[pos].Name = newName
	return m.saveIndex()
}

// Delete removes a playlist and its detail file. Deleting an absent
// playlist is a no-op.
func (m *Manager) Delete(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos := m.position(id)
	if pos < 0 {
		return nil
	}
	m.index = append(m.index[:pos], m.index[pos+1:]...)
	if err := m.saveIndex(); err != nil {
		return err
	}
	if err := os.Remove(m.listPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove playlist file: %w", err)
	}
	m.logger.Info("playlist deleted", logging.String(logging.FieldPlaylistID, id.String()))
	return nil
}

// Load returns the playlist with its full track order.
func (m *Manager) Load(id uuid.UUID) (*List, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.position(id) < 0 {
		return nil, ErrListNotFound
	}
	return m.loadList(id)
}

// AppendTracks adds the given tracks to the end of the playlist,
// skipping IDs already present.
func (m *Manager) AppendTracks(id uuid.UUID, trackIDs ...uuid.UUID) error {
	return m.mutate(id, func(list *List) {
		present := make(map[uuid.UUID]struct{}, len(list.Tracks))
		for _, t := range list.Tracks {
			present[t] = struct{}{}
		}
		for _, t := range trackIDs {
			if _, dup := present[t]; dup {
				continue
			}
			present[t] = struct{}{}
			list.Tracks = append(list.Tracks, t)
		}
	})
}

// RemoveTrack drops a track from the playlist; absent tracks are a
// no-op.
func (m *Manager) RemoveTrack(id, trackID uuid.UUID) error {
	return m.mutate(id, func(list *List) {
		kept := list.Tracks[:0]
		for _, t := range list.Tracks {
			if t != trackID {
				kept = append(kept, t)
			}
		}
		list.Tracks = kept
	})
}

// Move reorders a playlist entry from one position to another.
func (m *Manager) Move(id uuid.UUID, from, to int) error {
	var bounds error
	err := m.mutate(id, func(list *List) {
		n := len(list.Tracks)
		if from < 0 || from >= n || to < 0 || to >= n {
			bounds = fmt.Errorf("move %d -> %d out of range for %d tracks", from, to, n)
			return
		}
		track := list.Tracks[from]
		list.Tracks = append(list.Tracks[:from], list.Tracks[from+1:]...)
		list.Tracks = append(list.Tracks[:to], append([]uuid.UUID{track}, list.Tracks[to:]...)...)
	})
	if err != nil {
		return err
	}
	return bounds
}

// ContainsTrack reports whether the playlist holds the track.
func (m *Manager) ContainsTrack(id, trackID uuid.UUID) (bool, error) {
	list, err := m.Load(id)
	if err != nil {
		return false, err
	}
	for _, t := range list.Tracks {
		if t == trackID {
			return true, nil
		}
	}
	return false, nil
}

// RemoveTrackEverywhere drops a track from every playlist. Called when
// a track leaves the library.
func (m *Manager) RemoveTrackEverywhere(trackID uuid.UUID) error {
	m.mu.RLock()
	ids := make([]uuid.UUID, len(m.index))
	for i, info := range m.index {
		ids[i] = info.ID
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.RemoveTrack(id, trackID); err != nil && !errors.Is(err, ErrListNotFound) {
			return err
		}
	}
	return nil
}

func (m *Manager) mutate(id uuid.UUID, apply func(*List)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.position(id) < 0 {
		return ErrListNotFound
	}
	list, err := m.loadList(id)
	if err != nil {
		return err
	}
	apply(list)
	return m.saveList(list)
}

func (m *Manager) position(id uuid.UUID) int {
	for i, info := range m.index {
		if info.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) listPath(id uuid.UUID) string {
	return filepath.Join(m.dir, fmt.Sprintf("tracklist_%s.json", id))
}

func (m *Manager) loadList(id uuid.UUID) (*List, error) {
	data, err := os.ReadFile(m.listPath(id))
	if err != nil {
		return nil, fmt.Errorf("read playlist %s: %w", id, err)
	}
	var list List
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse playlist %s: %w", id, err)
	}
	if list.Tracks == nil {
		list.Tracks = []uuid.UUID{}
	}
	return &list, nil
}

func (m *Manager) saveList(list *List) error {
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encode playlist %s: %w", list.ID, err)
	}
	if err := storeutil.WriteFileAtomic(m.listPath(list.ID), data, 0o644); err != nil {
		return fmt.Errorf("write playlist %s: %w", list.ID, err)
	}
	return nil
}

func (m *Manager) saveIndex() error {
	data, err := json.MarshalIndent(m.index, "", "  ")
	if err != nil {
		return fmt.Errorf("encode playlist index: %w", err)
	}
	if err := storeutil.WriteFileAtomic(filepath.Join(m.dir, indexFile), data, 0o644); err != nil {
		return fmt.Errorf("write playlist index: %w", err)
	}
	return nil
}
