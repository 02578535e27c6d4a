package library

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/google/uuid"

	"treklist/internal/registry"
)

// ListTracks returns the tracks of a folder ordered by file name using
// locale-aware, case-insensitive collation, so "Électro.mp3" sorts next
// to "electro.mp3" the way a file browser would show them.
func (l *Library) ListTracks(folderID uuid.UUID) []registry.TrackEntry {
	entries := l.Tracks.Tracks(folderID)
	sortTracksByName(entries)
	return entries
}

// AllTracks returns every registered track in collated name order.
func (l *Library) AllTracks() []registry.TrackEntry {
	entries := l.Tracks.All()
	sortTracksByName(entries)
	return entries
}

func sortTracksByName(entries []registry.TrackEntry) {
	c := collate.New(language.Und, collate.IgnoreCase, collate.Numeric)
	c.Sort(trackSlice(entries))
}

type trackSlice []registry.TrackEntry

func (s trackSlice) Len() int           { return len(s) }
func (s trackSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s trackSlice) Bytes(i int) []byte { return []byte(s[i].FileName) }
