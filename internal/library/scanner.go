package library

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"treklist/internal/bookmark"
	"treklist/internal/config"
	"treklist/internal/logging"
	"treklist/internal/registry"
)

// ScanResult summarizes one folder scan.
type ScanResult struct {
	TracksAdded  int
	TracksSeen   int
	FoldersAdded int
	Skipped      int
}

// Scanner walks attached folders and registers the audio files it
// finds, assigning stable IDs through the identity index.
type Scanner struct {
	tracks   *registry.TrackRegistry
	folders  *registry.FolderRegistry
	identity *IdentityIndex
	cfg      config.Scan
	logger   *slog.Logger
	exts     map[string]bool
}

// NewScanner constructs a scanner over the registries.
func NewScanner(tracks *registry.TrackRegistry, folders *registry.FolderRegistry, identity *IdentityIndex, cfg config.Scan, logger *slog.Logger) *Scanner {
	exts := make(map[string]bool, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		exts[strings.ToLower(ext)] = true
	}
	return &Scanner{
		tracks:   tracks,
		folders:  folders,
		identity: identity,
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "scanner"),
		exts:     exts,
	}
}

// ScanFolder walks the folder's current path, registering sub-folders
// and audio files. Files already known keep their IDs; entries whose
// bookmark drifted are re-anchored in place.
func (s *Scanner) ScanFolder(ctx context.Context, folderID uuid.UUID) (ScanResult, error) {
	var result ScanResult

	entry, ok := s.folders.Folder(folderID)
	if !ok {
		return result, fmt.Errorf("folder %s not registered", folderID)
	}
	resolved, err := bookmark.Decode(entry.Bookmark)
	if err != nil {
		return result, fmt.Errorf("folder bookmark undecodable: %w", err)
	}
	if resolved.Stale {
		return result, fmt.Errorf("folder %s is not reachable at %s", folderID, resolved.Path)
	}

	root := filepath.Clean(resolved.Path)
	rootDepth := strings.Count(root, string(os.PathSeparator))

	// Folder IDs by current path, so sub-folders rediscovered on a
	// re-scan keep their identity.
	folderByPath := make(map[string]uuid.UUID)
	for _, rf := range s.folders.ResolveAll() {
		folderByPath[rf.Path] = rf.Entry.ID
	}
	folderByPath[root] = folderID

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			result.Skipped++
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 && !s.cfg.FollowSymlinks {
			result.Skipped++
			return nil
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			depth := strings.Count(filepath.Clean(path), string(os.PathSeparator)) - rootDepth
			if s.cfg.MaxDepth > 0 && depth > s.cfg.MaxDepth {
				return fs.SkipDir
			}
			if err := s.ensureFolder(path, folderByPath, &result); err != nil {
				return err
			}
			return nil
		}

		if !s.exts[strings.ToLower(filepath.Ext(path))] {
			result.Skipped++
			return nil
		}
		parentID, ok := folderByPath[filepath.Dir(path)]
		if !ok {
			parentID = folderID
		}
		if err := s.registerTrack(path, parentID, &result); err != nil {
			s.logger.Warn("skipping unregistrable file",
				logging.String(logging.FieldPath, path),
				logging.Error(err))
			result.Skipped++
		}
		return nil
	})
	if walkErr != nil {
		return result, walkErr
	}

	s.logger.Info("scan complete",
		logging.String(logging.FieldFolderID, folderID.String()),
		logging.Int("tracks_added", result.TracksAdded),
		logging.Int("tracks_seen", result.TracksSeen),
		logging.Int("folders_added", result.FoldersAdded),
		logging.Int("skipped", result.Skipped))
	return result, nil
}

func (s *Scanner) ensureFolder(path string, folderByPath map[string]uuid.UUID, result *ScanResult) error {
	path = filepath.Clean(path)
	if _, known := folderByPath[path]; known {
		return nil
	}
	parentID, ok := folderByPath[filepath.Dir(path)]
	if !ok {
		// Deeper than its unregistered parent; skip rather than attach
		// to the wrong node.
		return nil
	}
	bm, err := bookmark.Encode(path)
	if err != nil {
		return fmt.Errorf("bookmark folder %s: %w", path, err)
	}
	entry := registry.FolderEntry{
		ID:       uuid.New(),
		ParentID: parentID,
		Bookmark: bm,
		Name:     filepath.Base(path),
	}
	if err := s.folders.Upsert(entry); err != nil {
		return err
	}
	folderByPath[path] = entry.ID
	result.FoldersAdded++
	return nil
}

func (s *Scanner) registerTrack(path string, folderID uuid.UUID, result *ScanResult) error {
	trackID, isNew, err := s.identity.Assign(path)
	if err != nil {
		return err
	}

	if !isNew {
		if existing, ok := s.tracks.Lookup(trackID); ok {
			resolved, err := bookmark.Decode(existing.Bookmark)
			if err == nil && !resolved.Stale && filepath.Clean(resolved.Path) == filepath.Clean(path) {
				result.TracksSeen++
				return nil
			}
			// Known track at a new location: refresh the bookmark.
			bm, err := bookmark.Encode(path)
			if err != nil {
				return err
			}
			if _, err := s.tracks.Reanchor(trackID, bm, folderID); err != nil {
				return err
			}
			result.TracksSeen++
			return nil
		}
	}

	bm, err := bookmark.Encode(path)
	if err != nil {
		return err
	}
	err = s.tracks.Upsert(registry.TrackEntry{
		ID:       trackID,
		FolderID: folderID,
		Bookmark: bm,
		FileName: filepath.Base(path),
	})
	if err != nil {
		return err
	}
	result.TracksAdded++
	return nil
}
