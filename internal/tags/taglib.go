package tags

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.senan.xyz/taglib"

	"treklist/internal/logging"
	"treklist/internal/storeutil"
)

// Writer applies tag patches to audio files.
type Writer interface {
	WriteTags(ctx context.Context, path string, patch Patch) error
}

// writableFormats lists the container formats the native library can
// save. Anything else fails upfront with unsupported_format rather than
// mid-write.
var writableFormats = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
	".aiff": true,
}

// TagLibWriter writes text frames through the embedded TagLib runtime
// and artwork through per-format codecs. Text frames are written with
// merge semantics, so fields absent from the patch stay byte-identical
// in the file.
type TagLibWriter struct {
	logger *slog.Logger
}

// NewWriter constructs the production tag writer.
func NewWriter(logger *slog.Logger) *TagLibWriter {
	return &TagLibWriter{logger: logging.NewComponentLogger(logger, "tagwriter")}
}

// WriteTags applies patch to the file at path. The whole patch succeeds
// or the file is left untouched. Cancellation is honored only before
// the native call dispatches; once saving starts it runs to completion.
func (w *TagLibWriter) WriteTags(ctx context.Context, path string, patch Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return nil
	}

	if err := w.preflight(path); err != nil {
		return err
	}

	// FLAC gets a dedicated path: comments and artwork share one
	// parse/save round instead of rewriting the container twice.
	if strings.EqualFold(filepath.Ext(path), ".flac") {
		return applyFLACPatch(path, patch)
	}

	frames := patchFrames(patch)
	artworkActive := patch.Artwork.Op == ArtworkRemove || patch.Artwork.Op == ArtworkSet

	// Artwork and text frames need two independent native saves. Stage
	// them on a copy and rename it over the original, so a failure in
	// the second save cannot leave a half-applied patch.
	if artworkActive && len(frames) > 0 {
		return w.writeStaged(path, patch, frames)
	}
	if artworkActive {
		return applyArtwork(path, patch.Artwork)
	}
	if len(frames) == 0 {
		return nil
	}
	if err := taglib.WriteTags(path, frames, 0); err != nil {
		return w.mapNativeError(path, err)
	}
	return nil
}

// writeStaged applies both halves of the patch to a temp copy in the
// same directory and replaces the original only after both saves
// succeed. The staging name keeps the extension because the per-format
// codecs dispatch on it.
func (w *TagLibWriter) writeStaged(path string, patch Patch, frames map[string][]string) error {
	ext := filepath.Ext(path)
	staged := strings.TrimSuffix(path, ext) + ".staging" + ext
	if err := storeutil.CopyFile(path, staged); err != nil {
		return writeError(KindSaveFailed, path, err)
	}
	defer os.Remove(staged)

	if err := applyArtwork(staged, patch.Artwork); err != nil {
		return reportOn(err, path)
	}
	if err := taglib.WriteTags(staged, frames, 0); err != nil {
		return reportOn(w.mapNativeError(staged, err), path)
	}
	if err := os.Rename(staged, path); err != nil {
		return writeError(KindSaveFailed, path, err)
	}
	return nil
}

// reportOn rewrites the path on a typed write error so callers see the
// file they asked about, not the staging copy.
func reportOn(err error, path string) error {
	if we, ok := err.(*WriteError); ok {
		we.Path = path
	}
	return err
}

// preflight classifies failures the native library would only report as
// an opaque save error.
func (w *TagLibWriter) preflight(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return writeError(KindFileNotFound, path, err)
		}
		return writeError(KindFileNotReadable, path, err)
	}
	if info.IsDir() {
		return writeError(KindUnsupportedFormat, path, nil)
	}
	if !writableFormats[strings.ToLower(filepath.Ext(path))] {
		return writeError(KindUnsupportedFormat, path, nil)
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return writeError(KindFileNotWritable, path, err)
		}
		return writeError(KindFileNotReadable, path, err)
	}
	f.Close()
	return nil
}

func (w *TagLibWriter) mapNativeError(path string, err error) error {
	s := statusUnknown
	switch {
	case errors.Is(err, taglib.ErrInvalidFile):
		s = statusUnsupportedFormat
	case errors.Is(err, fs.ErrNotExist):
		s = statusFileNotFound
	case errors.Is(err, fs.ErrPermission):
		s = statusFileNotWritable
	case errors.Is(err, taglib.ErrSavingFile):
		s = statusSaveFailed
	}
	w.logger.Warn("native tag write failed",
		logging.String(logging.FieldPath, path),
		logging.Error(err))
	werr := statusError(s, path, err.Error())
	if we, ok := werr.(*WriteError); ok {
		we.Err = err
	}
	return werr
}

func patchFrames(patch Patch) map[string][]string {
	frames := make(map[string][]string)
	set := func(key string, value *string) {
		if value != nil {
			frames[key] = []string{*value}
		}
	}
	setInt := func(key string, value *int) {
		if value != nil {
			frames[key] = []string{strconv.Itoa(*value)}
		}
	}
	set(taglib.Title, patch.Title)
	set(taglib.Artist, patch.Artist)
	set(taglib.Album, patch.Album)
	set(taglib.Genre, patch.Genre)
	set(taglib.Comment, patch.Comment)
	setInt(taglib.Date, patch.Year)
	setInt(taglib.TrackNumber, patch.TrackNumber)
	setInt("BPM", patch.BPM)
	return frames
}
