package tags

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dhowden/tag"

	"treklist/internal/logging"
)

// Reader extracts embedded metadata from audio files.
type Reader struct {
	logger *slog.Logger
}

// NewReader constructs a Reader.
func NewReader(logger *slog.Logger) *Reader {
	return &Reader{logger: logging.NewComponentLogger(logger, "tagreader")}
}

// ReadMetadata parses the tag container at path. A file that carries no
// tags, or whose container the parser does not recognize, yields a nil
// result without error; only I/O failures opening the file are errors.
func (r *Reader) ReadMetadata(path string) (*ParsedMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		if !errors.Is(err, tag.ErrNoTagsFound) {
			r.logger.Debug("tag container unreadable",
				logging.String(logging.FieldPath, path),
				logging.Error(err))
		}
		return nil, nil
	}

	parsed := &ParsedMetadata{
		Title:   m.Title(),
		Artist:  m.Artist(),
		Album:   m.Album(),
		Genre:   m.Genre(),
		Comment: m.Comment(),
		Year:    m.Year(),
	}
	parsed.TrackNumber, _ = m.Track()
	if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
		parsed.Artwork = &Artwork{MIME: pic.MIMEType, Data: pic.Data}
	}
	return parsed, nil
}
