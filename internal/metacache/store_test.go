package metacache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"treklist/internal/tags"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metadata.db")
	s, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestStorePutGetRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	want := &tags.ParsedMetadata{
		Title:       "Crossing",
		Artist:      "Platform Nine",
		Album:       "Junctions",
		Year:        2019,
		TrackNumber: 7,
		Artwork:     &tags.Artwork{MIME: "image/jpeg", Data: []byte{0xFF, 0xD8}},
	}
	if err := s.Put(ctx, id, want); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, found, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("row not found after Put")
	}
	if got.Title != want.Title || got.Artist != want.Artist || got.Year != want.Year {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got.Artwork == nil || got.Artwork.MIME != "image/jpeg" {
		t.Errorf("artwork lost: %+v", got.Artwork)
	}
}

func TestStoreRecordsNoTags(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	if err := s.Put(ctx, id, nil); err != nil {
		t.Fatal(err)
	}
	parsed, found, err := s.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("no-tags row not recorded")
	}
	if parsed != nil {
		t.Errorf("expected nil metadata for no-tags row, got %+v", parsed)
	}
}

func TestStoreGetMissing(t *testing.T) {
	s, _ := openTestStore(t)
	if _, found, err := s.Get(context.Background(), uuid.New()); err != nil || found {
		t.Errorf("missing row: found=%v err=%v", found, err)
	}
}

func TestStoreDelete(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	if err := s.Put(ctx, id, &tags.ParsedMetadata{Title: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found, _ := s.Get(ctx, id); found {
		t.Error("row survived Delete")
	}
	if err := s.Delete(ctx, uuid.New()); err != nil {
		t.Errorf("Delete of absent row errored: %v", err)
	}
}

func TestStoreReopenKeepsRows(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	if err := s.Put(ctx, id, &tags.ParsedMetadata{Title: "persisted"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got, found, err := reopened.Get(ctx, id)
	if err != nil || !found {
		t.Fatalf("row lost across reopen: found=%v err=%v", found, err)
	}
	if got.Title != "persisted" {
		t.Errorf("Title = %q", got.Title)
	}
}

func TestStoreSchemaMismatch(t *testing.T) {
	s, path := openTestStore(t)
	if _, err := s.db.Exec("UPDATE schema_version SET version = 999"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := OpenStore(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("error = %v, want ErrSchemaMismatch", err)
	}
}
