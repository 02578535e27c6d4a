package resolver

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"treklist/internal/bookmark"
	"treklist/internal/logging"
	"treklist/internal/registry"
)

const defaultRecoveryDepth = 6

// Option configures the resolver.
type Option func(*Resolver)

// WithBroker overrides the scoped-access broker. Tests use this to
// simulate denied access.
func WithBroker(broker bookmark.Broker) Option {
	return func(r *Resolver) {
		if broker != nil {
			r.broker = broker
		}
	}
}

// WithRecoveryDepth bounds the directory walk used during stale-bookmark
// recovery.
func WithRecoveryDepth(depth int) Option {
	return func(r *Resolver) {
		if depth > 0 {
			r.recoveryDepth = depth
		}
	}
}

// Resolver resolves track IDs to scoped access grants.
type Resolver struct {
	tracks        *registry.TrackRegistry
	folders       *registry.FolderRegistry
	broker        bookmark.Broker
	logger        *slog.Logger
	recoveryDepth int

	mu       sync.Mutex
	inflight map[uuid.UUID]*resolveCall
}

type resolveCall struct {
	done chan struct{}
	path string
	ok   bool
	err  error
}

// New constructs a resolver over the given registries.
func New(tracks *registry.TrackRegistry, folders *registry.FolderRegistry, logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		tracks:        tracks,
		folders:       folders,
		broker:        bookmark.OSBroker{},
		logger:        logging.NewComponentLogger(logger, "resolver"),
		recoveryDepth: defaultRecoveryDepth,
		inflight:      make(map[uuid.UUID]*resolveCall),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve produces a scoped access grant for the track, or nil when the
// file is unavailable. Unavailability is routine, recoverable by user
// action, and therefore not an error; the error return is reserved for
// registry storage faults. Concurrent calls for the same ID share one
// resolution pass, but every caller receives its own independent grant
// and owns its own Release.
func (r *Resolver) Resolve(ctx context.Context, trackID uuid.UUID) (*bookmark.Access, error) {
	path, ok, err := r.resolvePath(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	access, err := r.broker.Start(path)
	if err != nil {
		// The file vanished or access was denied between resolution and
		// the grant. Downgrade and report unavailable.
		r.logger.Warn("scoped access denied",
			logging.String(logging.FieldTrackID, trackID.String()),
			logging.String(logging.FieldPath, path),
			logging.Error(err))
		if stateErr := r.tracks.SetState(trackID, registry.StateMissing); stateErr != nil {
			return nil, stateErr
		}
		return nil, nil
	}
	return access, nil
}

// resolvePath performs the registry-facing half of resolution, coalescing
// concurrent work for the same track ID.
func (r *Resolver) resolvePath(ctx context.Context, trackID uuid.UUID) (string, bool, error) {
	r.mu.Lock()
	if call, found := r.inflight[trackID]; found {
		r.mu.Unlock()
		select {
		case <-call.done:
			return call.path, call.ok, call.err
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}
	call := &resolveCall{done: make(chan struct{})}
	r.inflight[trackID] = call
	r.mu.Unlock()

	call.path, call.ok, call.err = r.doResolvePath(ctx, trackID)

	r.mu.Lock()
	delete(r.inflight, trackID)
	r.mu.Unlock()
	close(call.done)

	return call.path, call.ok, call.err
}

func (r *Resolver) doResolvePath(ctx context.Context, trackID uuid.UUID) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	entry, found := r.tracks.Lookup(trackID)
	if !found {
		return "", false, nil
	}

	resolved, err := bookmark.Decode(entry.Bookmark)
	if err != nil {
		r.logger.Warn("bookmark undecodable",
			logging.String(logging.FieldTrackID, trackID.String()),
			logging.Error(err))
		if stateErr := r.tracks.SetState(trackID, registry.StateMissing); stateErr != nil {
			return "", false, stateErr
		}
		return "", false, nil
	}

	if !resolved.Stale {
		if entry.State != registry.StateActive {
			if stateErr := r.tracks.SetState(trackID, registry.StateActive); stateErr != nil {
				return "", false, stateErr
			}
		}
		return resolved.Path, true, nil
	}

	newPath, newFolderID, recovered := r.recover(entry, resolved)
	if !recovered {
		if stateErr := r.tracks.SetState(trackID, registry.StateMissing); stateErr != nil {
			return "", false, stateErr
		}
		return "", false, nil
	}

	newBookmark, err := bookmark.Encode(newPath)
	if err != nil {
		if stateErr := r.tracks.SetState(trackID, registry.StateMissing); stateErr != nil {
			return "", false, stateErr
		}
		return "", false, nil
	}
	if _, err := r.tracks.Reanchor(trackID, newBookmark, newFolderID); err != nil {
		return "", false, err
	}

	r.logger.Info("recovered stale bookmark",
		logging.String(logging.FieldTrackID, trackID.String()),
		logging.String(logging.FieldPath, newPath))
	return newPath, true, nil
}

// recover searches for the file behind a stale bookmark by walking the
// folder ancestry the registry can still reach, matching by file identity
// first and by name as a fallback.
func (r *Resolver) recover(entry registry.TrackEntry, resolved bookmark.Resolved) (string, uuid.UUID, bool) {
	fileName := entry.FileName
	if fileName == "" {
		fileName = resolved.Name
	}
	if fileName == "" {
		return "", uuid.Nil, false
	}

	candidates := r.folders.ResolveAll()
	searchRoots := r.searchRoots(filepath.Dir(resolved.Path), candidates)
	if len(searchRoots) == 0 {
		return "", uuid.Nil, false
	}

	for _, root := range searchRoots {
		if found, ok := r.searchUnder(root, fileName, resolved.Identity); ok {
			folderID := entry.FolderID
			if owner, ok := folderForDir(filepath.Dir(found), candidates); ok {
				folderID = owner.Entry.ID
			}
			return found, folderID, true
		}
	}
	return "", uuid.Nil, false
}

// searchRoots orders the directories worth searching: the deepest still-
// existing ancestor from the reconstructed folder chain first, then any
// attached roots that exist on disk.
func (r *Resolver) searchRoots(lastKnownDir string, candidates []registry.ResolvedFolder) []string {
	var roots []string
	seen := make(map[string]struct{})
	add := func(dir string) {
		if dir == "" {
			return
		}
		if _, dup := seen[dir]; dup {
			return
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return
		}
		seen[dir] = struct{}{}
		roots = append(roots, dir)
	}

	if chain := registry.BuildPath(lastKnownDir, candidates); chain != nil {
		for i := len(chain) - 1; i >= 0; i-- {
			add(chain[i].Path)
		}
	}
	for _, candidate := range candidates {
		if candidate.Entry.IsRoot() {
			add(candidate.Path)
		}
	}
	return roots
}

// searchUnder walks root to the configured depth looking for the file.
// An identity match wins immediately; a name match is kept as fallback.
func (r *Resolver) searchUnder(root, fileName string, identity bookmark.Identity) (string, bool) {
	rootDepth := strings.Count(filepath.Clean(root), string(os.PathSeparator))
	var nameMatch string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtrees are skipped, not fatal
		}
		if d.IsDir() {
			depth := strings.Count(filepath.Clean(path), string(os.PathSeparator)) - rootDepth
			if depth > r.recoveryDepth {
				return fs.SkipDir
			}
			return nil
		}
		if d.Name() != fileName {
			return nil
		}
		if current, idErr := bookmark.CaptureIdentity(path); idErr == nil && current.SameFile(identity) {
			nameMatch = path
			return fs.SkipAll
		}
		if nameMatch == "" {
			nameMatch = path
		}
		return nil
	})
	if err != nil {
		return "", false
	}
	return nameMatch, nameMatch != ""
}

func folderForDir(dir string, candidates []registry.ResolvedFolder) (registry.ResolvedFolder, bool) {
	dir = filepath.Clean(dir)
	for _, candidate := range candidates {
		if candidate.Path == dir {
			return candidate, true
		}
	}
	return registry.ResolvedFolder{}, false
}
