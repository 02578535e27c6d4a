package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"

	"treklist/internal/bookmark"
	"treklist/internal/registry"
)

type fixture struct {
	tracks   *registry.TrackRegistry
	folders  *registry.FolderRegistry
	resolver *Resolver
	base     string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	tracks, err := registry.OpenTrackRegistry(filepath.Join(dir, "tracks.json"), nil)
	if err != nil {
		t.Fatal(err)
	}
	folders, err := registry.OpenFolderRegistry(filepath.Join(dir, "folders.json"), nil)
	if err != nil {
		t.Fatal(err)
	}
	base := filepath.Join(dir, "library")
	if err := os.MkdirAll(base, 0o755); err != nil {
		t.Fatal(err)
	}
	return &fixture{
		tracks:   tracks,
		folders:  folders,
		resolver: New(tracks, folders, nil, opts...),
		base:     base,
	}
}

func (f *fixture) attachRoot(t *testing.T, name string) (registry.FolderEntry, string) {
	t.Helper()
	path := filepath.Join(f.base, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	bm, err := bookmark.Encode(path)
	if err != nil {
		t.Fatal(err)
	}
	entry := registry.FolderEntry{ID: uuid.New(), Bookmark: bm, Name: name}
	if err := f.folders.Upsert(entry); err != nil {
		t.Fatal(err)
	}
	return entry, path
}

func (f *fixture) registerTrack(t *testing.T, folder registry.FolderEntry, dir, name string) uuid.UUID {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("audio:"+name), 0o644); err != nil {
		t.Fatal(err)
	}
	bm, err := bookmark.Encode(path)
	if err != nil {
		t.Fatal(err)
	}
	id := uuid.New()
	err = f.tracks.Upsert(registry.TrackEntry{
		ID:       id,
		FolderID: folder.ID,
		Bookmark: bm,
		FileName: name,
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestResolveUnknownTrack(t *testing.T) {
	f := newFixture(t)
	access, err := f.resolver.Resolve(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Resolve errored: %v", err)
	}
	if access != nil {
		t.Fatal("expected nil access for unknown track")
	}
}

func TestResolveHappyPath(t *testing.T) {
	f := newFixture(t)
	folder, path := f.attachRoot(t, "Music")
	id := f.registerTrack(t, folder, path, "song.mp3")

	access, err := f.resolver.Resolve(context.Background(), id)
	if err != nil {
		t.Fatalf("Resolve errored: %v", err)
	}
	if access == nil {
		t.Fatal("expected access grant")
	}
	defer access.Release()

	if access.Path() != filepath.Join(path, "song.mp3") {
		t.Errorf("Path = %q", access.Path())
	}
	entry, _ := f.tracks.Lookup(id)
	if entry.State != registry.StateActive {
		t.Errorf("State = %q, want active", entry.State)
	}
}

func TestResolveMissingFileDowngrades(t *testing.T) {
	f := newFixture(t)
	folder, path := f.attachRoot(t, "Music")
	id := f.registerTrack(t, folder, path, "song.mp3")

	if err := os.Remove(filepath.Join(path, "song.mp3")); err != nil {
		t.Fatal(err)
	}

	access, err := f.resolver.Resolve(context.Background(), id)
	if err != nil {
		t.Fatalf("Resolve errored: %v", err)
	}
	if access != nil {
		access.Release()
		t.Fatal("expected nil access for deleted file")
	}
	entry, _ := f.tracks.Lookup(id)
	if entry.State != registry.StateMissing {
		t.Errorf("State = %q, want missing", entry.State)
	}
}

func TestResolveCorruptedBookmarkDowngrades(t *testing.T) {
	f := newFixture(t)
	folder, _ := f.attachRoot(t, "Music")

	id := uuid.New()
	err := f.tracks.Upsert(registry.TrackEntry{
		ID:       id,
		FolderID: folder.ID,
		Bookmark: "garbage!!!",
		FileName: "song.mp3",
	})
	if err != nil {
		t.Fatal(err)
	}

	access, err := f.resolver.Resolve(context.Background(), id)
	if err != nil {
		t.Fatalf("Resolve errored: %v", err)
	}
	if access != nil {
		access.Release()
		t.Fatal("expected nil access for corrupted bookmark")
	}
	entry, _ := f.tracks.Lookup(id)
	if entry.State != registry.StateMissing {
		t.Errorf("State = %q, want missing", entry.State)
	}
}

func TestResolveRecoversAfterFolderRename(t *testing.T) {
	f := newFixture(t)
	root, rootPath := f.attachRoot(t, "Music")

	subPath := filepath.Join(rootPath, "Albums")
	if err := os.MkdirAll(subPath, 0o755); err != nil {
		t.Fatal(err)
	}
	subBM, err := bookmark.Encode(subPath)
	if err != nil {
		t.Fatal(err)
	}
	sub := registry.FolderEntry{ID: uuid.New(), ParentID: root.ID, Bookmark: subBM, Name: "Albums"}
	if err := f.folders.Upsert(sub); err != nil {
		t.Fatal(err)
	}

	id := f.registerTrack(t, sub, subPath, "song.mp3")

	// Rename the containing folder; the track bookmark goes stale.
	renamed := filepath.Join(rootPath, "Albums-2024")
	if err := os.Rename(subPath, renamed); err != nil {
		t.Fatal(err)
	}

	access, err := f.resolver.Resolve(context.Background(), id)
	if err != nil {
		t.Fatalf("Resolve errored: %v", err)
	}
	if access == nil {
		t.Fatal("expected recovery to produce an access grant")
	}
	defer access.Release()

	want := filepath.Join(renamed, "song.mp3")
	if access.Path() != want {
		t.Errorf("Path = %q, want %q", access.Path(), want)
	}

	entry, _ := f.tracks.Lookup(id)
	if entry.State != registry.StateActive {
		t.Errorf("State = %q, want active after reanchor", entry.State)
	}
	resolved, err := bookmark.Decode(entry.Bookmark)
	if err != nil {
		t.Fatalf("reanchored bookmark undecodable: %v", err)
	}
	if resolved.Stale {
		t.Error("reanchored bookmark still stale")
	}
	if resolved.Path != want {
		t.Errorf("reanchored path = %q, want %q", resolved.Path, want)
	}
}

func TestResolveFileRenamedOutsideApp(t *testing.T) {
	f := newFixture(t)
	root, rootPath := f.attachRoot(t, "Music")
	id := f.registerTrack(t, root, rootPath, "song.mp3")

	if err := os.Rename(filepath.Join(rootPath, "song.mp3"), filepath.Join(rootPath, "renamed.mp3")); err != nil {
		t.Fatal(err)
	}

	// Recovery searches by the registered file name, which no longer
	// exists anywhere under the attached roots.
	access, err := f.resolver.Resolve(context.Background(), id)
	if err != nil {
		t.Fatalf("Resolve errored: %v", err)
	}
	if access != nil {
		access.Release()
		t.Fatal("expected nil access when the file name changed outside the app")
	}
	entry, _ := f.tracks.Lookup(id)
	if entry.State != registry.StateMissing {
		t.Errorf("State = %q, want missing", entry.State)
	}
}

type denyBroker struct{}

func (denyBroker) Start(string) (*bookmark.Access, error) {
	return nil, errors.New("scope denied")
}

func TestResolveDeniedAccessDowngrades(t *testing.T) {
	f := newFixture(t, WithBroker(denyBroker{}))
	folder, path := f.attachRoot(t, "Music")
	id := f.registerTrack(t, folder, path, "song.mp3")

	access, err := f.resolver.Resolve(context.Background(), id)
	if err != nil {
		t.Fatalf("Resolve errored: %v", err)
	}
	if access != nil {
		t.Fatal("expected nil access when broker denies")
	}
	entry, _ := f.tracks.Lookup(id)
	if entry.State != registry.StateMissing {
		t.Errorf("State = %q, want missing", entry.State)
	}
}

func TestConcurrentResolveSameID(t *testing.T) {
	f := newFixture(t)
	folder, path := f.attachRoot(t, "Music")
	id := f.registerTrack(t, folder, path, "song.mp3")

	const workers = 8
	var wg sync.WaitGroup
	grants := make([]*bookmark.Access, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			grants[i], errs[i] = f.resolver.Resolve(context.Background(), id)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d errored: %v", i, errs[i])
		}
		if grants[i] == nil {
			t.Fatalf("worker %d got nil access", i)
		}
	}
	// Grants are independent: releasing one must not affect the others.
	grants[0].Release()
	for i := 1; i < workers; i++ {
		if grants[i].Released() {
			t.Fatalf("grant %d released by another caller", i)
		}
		grants[i].Release()
	}

	entry, _ := f.tracks.Lookup(id)
	if entry.State != registry.StateActive {
		t.Errorf("State = %q, want active", entry.State)
	}
}

func TestResolveCancelledContext(t *testing.T) {
	f := newFixture(t)
	folder, path := f.attachRoot(t, "Music")
	id := f.registerTrack(t, folder, path, "song.mp3")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.resolver.Resolve(ctx, id)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestActiveEntriesAlwaysDecode(t *testing.T) {
	f := newFixture(t)
	folder, path := f.attachRoot(t, "Music")

	ids := []uuid.UUID{
		f.registerTrack(t, folder, path, "a.mp3"),
		f.registerTrack(t, folder, path, "b.mp3"),
	}
	// Corrupt one bookmark behind the registry's back.
	entry, _ := f.tracks.Lookup(ids[1])
	entry.Bookmark = "???"
	if err := f.tracks.Upsert(entry); err != nil {
		t.Fatal(err)
	}

	for _, id := range ids {
		if access, err := f.resolver.Resolve(context.Background(), id); err != nil {
			t.Fatal(err)
		} else if access != nil {
			access.Release()
		}
	}

	// After resolution touched every entry, any still-active entry must
	// carry a decodable bookmark.
	for _, e := range f.tracks.All() {
		if e.State != registry.StateActive {
			continue
		}
		if _, err := bookmark.Decode(e.Bookmark); err != nil {
			t.Errorf("active entry %s has undecodable bookmark: %v", e.ID, err)
		}
	}
}
