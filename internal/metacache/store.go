package metacache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"treklist/internal/tags"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the
// schema changes; stale cache databases are simply rebuilt.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by an
// incompatible version.
var ErrSchemaMismatch = errors.New("metadata cache schema version mismatch")

// Store persists parsed metadata rows in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// OpenStore connects to the cache database at path, creating it and the
// schema when absent.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: have %d, want %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

// Put stores the parsed metadata for a track. A nil parsed result is
// recorded as "no tags" so the fetch is not retried on every listing.
func (s *Store) Put(ctx context.Context, trackID uuid.UUID, parsed *tags.ParsedMetadata) error {
	row := struct {
		hasTags                              bool
		title, artist, album, genre, comment string
		year, trackNumber                    int
		artworkMIME                          string
		artwork                              []byte
	}{}
	if parsed != nil {
		row.hasTags = true
		row.title = parsed.Title
		row.artist = parsed.Artist
		row.album = parsed.Album
		row.genre = parsed.Genre
		row.comment = parsed.Comment
		row.year = parsed.Year
		row.trackNumber = parsed.TrackNumber
		if parsed.Artwork != nil {
			row.artworkMIME = parsed.Artwork.MIME
			row.artwork = parsed.Artwork.Data
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO track_metadata (
            track_id, has_tags, title, artist, album, genre, comment,
            year, track_number, artwork_mime, artwork, fetched_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(track_id) DO UPDATE SET
            has_tags = excluded.has_tags,
            title = excluded.title,
            artist = excluded.artist,
            album = excluded.album,
            genre = excluded.genre,
            comment = excluded.comment,
            year = excluded.year,
            track_number = excluded.track_number,
            artwork_mime = excluded.artwork_mime,
            artwork = excluded.artwork,
            fetched_at = excluded.fetched_at`,
		trackID.String(), row.hasTags, row.title, row.artist, row.album,
		row.genre, row.comment, row.year, row.trackNumber,
		row.artworkMIME, row.artwork, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put metadata for %s: %w", trackID, err)
	}
	return nil
}

// Get loads the cached row for a track. found reports whether a row
// exists; a found row with nil metadata means the file carries no tags.
func (s *Store) Get(ctx context.Context, trackID uuid.UUID) (parsed *tags.ParsedMetadata, found bool, err error) {
	var (
		hasTags                              bool
		title, artist, album, genre, comment string
		year, trackNumber                    int
		artworkMIME                          string
		artwork                              []byte
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT has_tags, title, artist, album, genre, comment,
            year, track_number, artwork_mime, artwork
        FROM track_metadata WHERE track_id = ?`,
		trackID.String(),
	).Scan(&hasTags, &title, &artist, &album, &genre, &comment,
		&year, &trackNumber, &artworkMIME, &artwork)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get metadata for %s: %w", trackID, err)
	}
	if !hasTags {
		return nil, true, nil
	}

	parsed = &tags.ParsedMetadata{
		Title:       title,
		Artist:      artist,
		Album:       album,
		Genre:       genre,
		Comment:     comment,
		Year:        year,
		TrackNumber: trackNumber,
	}
	if len(artwork) > 0 {
		parsed.Artwork = &tags.Artwork{MIME: artworkMIME, Data: artwork}
	}
	return parsed, true, nil
}

// Delete removes the cached row for a track, if any.
func (s *Store) Delete(ctx context.Context, trackID uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM track_metadata WHERE track_id = ?", trackID.String()); err != nil {
		return fmt.Errorf("delete metadata for %s: %w", trackID, err)
	}
	return nil
}
