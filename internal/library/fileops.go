package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"treklist/internal/bookmark"
	"treklist/internal/logging"
	"treklist/internal/registry"
)

// ErrTrackBusy indicates an unreleased access grant holds the file.
var ErrTrackBusy = errors.New("track is in use")

// ErrTrackUnavailable indicates the track's file cannot be located.
var ErrTrackUnavailable = errors.New("track file unavailable")

// MoveTrack moves a track's file into another registered folder and
// re-anchors its bookmark. The track keeps its ID. Moves are refused
// while any access grant is outstanding, since playback or a tag write
// could be mid-flight on the old path.
func (l *Library) MoveTrack(trackID, destFolderID uuid.UUID) error {
	if l.InUse(trackID) {
		return ErrTrackBusy
	}

	entry, ok := l.Tracks.Lookup(trackID)
	if !ok {
		return registry.ErrTrackNotFound
	}
	srcPath, err := l.currentPath(entry)
	if err != nil {
		return err
	}

	destFolder, ok := l.Folders.Folder(destFolderID)
	if !ok {
		return fmt.Errorf("destination folder %s not registered", destFolderID)
	}
	destResolved, err := bookmark.Decode(destFolder.Bookmark)
	if err != nil {
		return fmt.Errorf("destination bookmark undecodable: %w", err)
	}
	if destResolved.Stale {
		return fmt.Errorf("destination folder unreachable at %s", destResolved.Path)
	}

	destPath := filepath.Join(destResolved.Path, entry.FileName)
	if destPath == srcPath {
		return nil
	}
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("destination %s already exists", destPath)
	}

	if err := os.Rename(srcPath, destPath); err != nil {
		return fmt.Errorf("move file: %w", err)
	}
	if err := l.rebookmark(entry, destPath, destFolderID, entry.FileName); err != nil {
		// Put the file back so disk and registry stay consistent.
		_ = os.Rename(destPath, srcPath)
		return err
	}

	l.logger.Info("track moved",
		logging.String(logging.FieldTrackID, trackID.String()),
		logging.String(logging.FieldPath, destPath))
	return nil
}

// RenameTrack renames a track's file within its folder and re-anchors
// its bookmark. The track keeps its ID.
func (l *Library) RenameTrack(trackID uuid.UUID, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" || strings.ContainsRune(newName, os.PathSeparator) {
		return fmt.Errorf("invalid file name %q", newName)
	}
	if l.InUse(trackID) {
		return ErrTrackBusy
	}

	entry, ok := l.Tracks.Lookup(trackID)
	if !ok {
		return registry.ErrTrackNotFound
	}
	srcPath, err := l.currentPath(entry)
	if err != nil {
		return err
	}

	if filepath.Ext(newName) == "" {
		newName += filepath.Ext(srcPath)
	}
	destPath := filepath.Join(filepath.Dir(srcPath), newName)
	if destPath == srcPath {
		return nil
	}
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("%s already exists", destPath)
	}

	if err := os.Rename(srcPath, destPath); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	if err := l.rebookmark(entry, destPath, entry.FolderID, newName); err != nil {
		_ = os.Rename(destPath, srcPath)
		return err
	}

	l.logger.Info("track renamed",
		logging.String(logging.FieldTrackID, trackID.String()),
		logging.String(logging.FieldPath, destPath))
	return nil
}

func (l *Library) currentPath(entry registry.TrackEntry) (string, error) {
	resolved, err := bookmark.Decode(entry.Bookmark)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrTrackUnavailable, err)
	}
	if resolved.Stale {
		return "", fmt.Errorf("%w: %s", ErrTrackUnavailable, resolved.Path)
	}
	return resolved.Path, nil
}

func (l *Library) rebookmark(entry registry.TrackEntry, newPath string, folderID uuid.UUID, fileName string) error {
	bm, err := bookmark.Encode(newPath)
	if err != nil {
		return err
	}
	entry.Bookmark = bm
	entry.FolderID = folderID
	entry.FileName = fileName
	entry.State = registry.StateActive
	return l.Tracks.Upsert(entry)
}
