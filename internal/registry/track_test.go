package registry

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func newTrackRegistry(t *testing.T) (*TrackRegistry, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracks.json")
	r, err := OpenTrackRegistry(path, nil)
	if err != nil {
		t.Fatalf("OpenTrackRegistry failed: %v", err)
	}
	return r, path
}

func TestTrackUpsertAndLookup(t *testing.T) {
	r, _ := newTrackRegistry(t)

	id := uuid.New()
	folderID := uuid.New()
	entry := TrackEntry{
		ID:       id,
		FolderID: folderID,
		Bookmark: "bm",
		FileName: "song.mp3",
	}
	if err := r.Upsert(entry); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, ok := r.Lookup(id)
	if !ok {
		t.Fatal("Lookup failed to find upserted entry")
	}
	if got.FileName != "song.mp3" {
		t.Errorf("FileName = %q, want song.mp3", got.FileName)
	}
	if got.State != StateActive {
		t.Errorf("State = %q, want active by default", got.State)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}
}

func TestTrackRemoveIdempotent(t *testing.T) {
	r, _ := newTrackRegistry(t)

	id := uuid.New()
	if err := r.Upsert(TrackEntry{ID: id, FileName: "a.mp3"}); err != nil {
		t.Fatal(err)
	}

	if err := r.Remove(id); err != nil {
		t.Fatalf("first Remove failed: %v", err)
	}
	if err := r.Remove(id); err != nil {
		t.Fatalf("second Remove errored: %v", err)
	}
	if err := r.Remove(uuid.New()); err != nil {
		t.Fatalf("Remove of never-present ID errored: %v", err)
	}
	if _, ok := r.Lookup(id); ok {
		t.Error("entry still present after Remove")
	}
}

func TestTrackReanchorSetsActive(t *testing.T) {
	r, _ := newTrackRegistry(t)

	id := uuid.New()
	if err := r.Upsert(TrackEntry{ID: id, FileName: "a.mp3", State: StateStale}); err != nil {
		t.Fatal(err)
	}

	newFolder := uuid.New()
	entry, err := r.Reanchor(id, "fresh-bookmark", newFolder)
	if err != nil {
		t.Fatalf("Reanchor failed: %v", err)
	}
	if entry.State != StateActive {
		t.Errorf("State = %q, want active", entry.State)
	}
	if entry.Bookmark != "fresh-bookmark" || entry.FolderID != newFolder {
		t.Errorf("entry not updated: %+v", entry)
	}

	if _, err := r.Reanchor(uuid.New(), "bm", newFolder); err != ErrTrackNotFound {
		t.Errorf("Reanchor of absent ID = %v, want ErrTrackNotFound", err)
	}
}

func TestTrackSetStateAbsentIsNoop(t *testing.T) {
	r, _ := newTrackRegistry(t)
	if err := r.SetState(uuid.New(), StateMissing); err != nil {
		t.Fatalf("SetState on absent ID errored: %v", err)
	}
}

func TestTrackPersistsAcrossReopen(t *testing.T) {
	r, path := newTrackRegistry(t)

	id := uuid.New()
	if err := r.Upsert(TrackEntry{ID: id, FileName: "a.mp3", Bookmark: "bm"}); err != nil {
		t.Fatal(err)
	}
	if err := r.SetState(id, StateMissing); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenTrackRegistry(path, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, ok := reopened.Lookup(id)
	if !ok {
		t.Fatal("entry lost across reopen")
	}
	if got.State != StateMissing {
		t.Errorf("State = %q, want missing", got.State)
	}
}

func TestTracksByFolder(t *testing.T) {
	r, _ := newTrackRegistry(t)

	folderA := uuid.New()
	folderB := uuid.New()
	for _, e := range []TrackEntry{
		{ID: uuid.New(), FolderID: folderA, FileName: "a1.mp3"},
		{ID: uuid.New(), FolderID: folderA, FileName: "a2.mp3"},
		{ID: uuid.New(), FolderID: folderB, FileName: "b1.mp3"},
	} {
		if err := r.Upsert(e); err != nil {
			t.Fatal(err)
		}
	}

	if got := len(r.Tracks(folderA)); got != 2 {
		t.Errorf("Tracks(folderA) = %d entries, want 2", got)
	}
	if got := len(r.All()); got != 3 {
		t.Errorf("All() = %d entries, want 3", got)
	}
	if r.Count() != 3 {
		t.Errorf("Count() = %d, want 3", r.Count())
	}
}
