package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"treklist/internal/registry"
	"treklist/internal/testsupport"
)

func newTestLibrary(t *testing.T) (*Library, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)

	lib, err := Open(cfg, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	musicDir := filepath.Join(t.TempDir(), "music")
	if err := os.MkdirAll(musicDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return lib, musicDir
}

func writeAudio(t *testing.T, dir, name string) string {
	t.Helper()
	return testsupport.WriteAudioFile(t, dir, name)
}

func TestAttachScansTracksAndSubfolders(t *testing.T) {
	lib, musicDir := newTestLibrary(t)

	writeAudio(t, musicDir, "one.mp3")
	writeAudio(t, filepath.Join(musicDir, "Albums"), "two.flac")
	writeAudio(t, musicDir, "notes.txt") // wrong extension

	entry, result, err := lib.Attach(context.Background(), musicDir)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if result.TracksAdded != 2 {
		t.Errorf("TracksAdded = %d, want 2", result.TracksAdded)
	}
	if result.FoldersAdded != 1 {
		t.Errorf("FoldersAdded = %d, want 1", result.FoldersAdded)
	}
	if len(lib.Folders.AttachedFolders()) != 1 {
		t.Error("root folder not registered")
	}
	if lib.Tracks.Count() != 2 {
		t.Errorf("track count = %d, want 2", lib.Tracks.Count())
	}

	// Attaching the same path again is refused.
	if _, _, err := lib.Attach(context.Background(), musicDir); !errors.Is(err, ErrAlreadyAttached) {
		t.Errorf("second attach = %v, want ErrAlreadyAttached", err)
	}
	_ = entry
}

func TestRescanKeepsTrackIDs(t *testing.T) {
	lib, musicDir := newTestLibrary(t)
	writeAudio(t, musicDir, "one.mp3")

	entry, _, err := lib.Attach(context.Background(), musicDir)
	if err != nil {
		t.Fatal(err)
	}
	before := lib.Tracks.All()
	if len(before) != 1 {
		t.Fatalf("tracks = %d, want 1", len(before))
	}

	result, err := lib.Scan(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("rescan failed: %v", err)
	}
	if result.TracksAdded != 0 || result.TracksSeen != 1 {
		t.Errorf("rescan added=%d seen=%d, want 0/1", result.TracksAdded, result.TracksSeen)
	}
	after := lib.Tracks.All()
	if after[0].ID != before[0].ID {
		t.Error("track ID changed across rescan")
	}
}

func TestIdentitySurvivesRename(t *testing.T) {
	lib, musicDir := newTestLibrary(t)
	path := writeAudio(t, musicDir, "original.mp3")

	entry, _, err := lib.Attach(context.Background(), musicDir)
	if err != nil {
		t.Fatal(err)
	}
	originalID := lib.Tracks.All()[0].ID

	// Rename behind the app's back, then re-scan: the inode key keeps
	// the ID stable.
	if err := os.Rename(path, filepath.Join(musicDir, "renamed.mp3")); err != nil {
		t.Fatal(err)
	}
	if _, err := lib.Scan(context.Background(), entry.ID); err != nil {
		t.Fatal(err)
	}

	all := lib.Tracks.All()
	if len(all) != 1 {
		t.Fatalf("tracks = %d, want 1 (no duplicate for renamed file)", len(all))
	}
	if all[0].ID != originalID {
		t.Error("renamed file got a new ID")
	}
}

func TestDetachDowngradesTracks(t *testing.T) {
	lib, musicDir := newTestLibrary(t)
	writeAudio(t, musicDir, "one.mp3")

	if _, _, err := lib.Attach(context.Background(), musicDir); err != nil {
		t.Fatal(err)
	}
	if err := lib.Detach(musicDir); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}

	if len(lib.Folders.AttachedFolders()) != 0 {
		t.Error("root survived detach")
	}
	for _, entry := range lib.Tracks.All() {
		if entry.State != registry.StateMissing {
			t.Errorf("track %s state = %q, want missing", entry.ID, entry.State)
		}
		if entry.FolderID != uuid.Nil {
			t.Errorf("track %s still points at folder %s", entry.ID, entry.FolderID)
		}
	}
}

func TestResolveTracksHeldGrants(t *testing.T) {
	lib, musicDir := newTestLibrary(t)
	writeAudio(t, musicDir, "one.mp3")
	if _, _, err := lib.Attach(context.Background(), musicDir); err != nil {
		t.Fatal(err)
	}
	trackID := lib.Tracks.All()[0].ID

	access, err := lib.Resolve(context.Background(), trackID)
	if err != nil || access == nil {
		t.Fatalf("Resolve = %v, %v", access, err)
	}
	if !lib.InUse(trackID) {
		t.Error("grant not tracked")
	}
	access.Release()
	if lib.InUse(trackID) {
		t.Error("grant still tracked after release")
	}
}

func TestRemoveTrackCleansEverything(t *testing.T) {
	lib, musicDir := newTestLibrary(t)
	writeAudio(t, musicDir, "one.mp3")
	if _, _, err := lib.Attach(context.Background(), musicDir); err != nil {
		t.Fatal(err)
	}
	trackID := lib.Tracks.All()[0].ID

	list, err := lib.Playlists.Create("Favorites")
	if err != nil {
		t.Fatal(err)
	}
	if err := lib.Playlists.AppendTracks(list.ID, trackID); err != nil {
		t.Fatal(err)
	}

	if err := lib.RemoveTrack(trackID); err != nil {
		t.Fatalf("RemoveTrack failed: %v", err)
	}
	if _, ok := lib.Tracks.Lookup(trackID); ok {
		t.Error("track survived removal")
	}
	if has, _ := lib.Playlists.ContainsTrack(list.ID, trackID); has {
		t.Error("track survived in playlist")
	}

	// A re-scan mints a fresh identity for the same file.
	folderID := lib.Folders.AttachedFolders()[0].ID
	if _, err := lib.Scan(context.Background(), folderID); err != nil {
		t.Fatal(err)
	}
	all := lib.Tracks.All()
	if len(all) != 1 {
		t.Fatalf("tracks after rescan = %d, want 1", len(all))
	}
	if all[0].ID == trackID {
		t.Error("removed identity was reused")
	}
}

func TestMoveTrack(t *testing.T) {
	lib, musicDir := newTestLibrary(t)
	writeAudio(t, musicDir, "one.mp3")
	writeAudio(t, filepath.Join(musicDir, "Albums"), "two.mp3")

	if _, _, err := lib.Attach(context.Background(), musicDir); err != nil {
		t.Fatal(err)
	}

	var trackID, destFolderID uuid.UUID
	for _, entry := range lib.Tracks.All() {
		if entry.FileName == "one.mp3" {
			trackID = entry.ID
		}
	}
	for _, folder := range lib.Folders.All() {
		if folder.Name == "Albums" {
			destFolderID = folder.ID
		}
	}
	if trackID == uuid.Nil || destFolderID == uuid.Nil {
		t.Fatal("fixture entries missing")
	}

	if err := lib.MoveTrack(trackID, destFolderID); err != nil {
		t.Fatalf("MoveTrack failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(musicDir, "Albums", "one.mp3")); err != nil {
		t.Errorf("file not at destination: %v", err)
	}
	entry, _ := lib.Tracks.Lookup(trackID)
	if entry.FolderID != destFolderID {
		t.Error("registry folder not updated")
	}
	if entry.State != registry.StateActive {
		t.Errorf("state = %q, want active", entry.State)
	}

	// The new bookmark must resolve without recovery.
	access, err := lib.Resolve(context.Background(), trackID)
	if err != nil || access == nil {
		t.Fatalf("Resolve after move = %v, %v", access, err)
	}
	access.Release()
}

func TestMoveTrackRefusedWhileInUse(t *testing.T) {
	lib, musicDir := newTestLibrary(t)
	writeAudio(t, musicDir, "one.mp3")
	if _, _, err := lib.Attach(context.Background(), musicDir); err != nil {
		t.Fatal(err)
	}
	trackID := lib.Tracks.All()[0].ID
	folderID := lib.Folders.AttachedFolders()[0].ID

	access, err := lib.Resolve(context.Background(), trackID)
	if err != nil || access == nil {
		t.Fatal(err)
	}
	defer access.Release()

	if err := lib.MoveTrack(trackID, folderID); !errors.Is(err, ErrTrackBusy) {
		t.Errorf("MoveTrack while held = %v, want ErrTrackBusy", err)
	}
	if err := lib.RenameTrack(trackID, "other.mp3"); !errors.Is(err, ErrTrackBusy) {
		t.Errorf("RenameTrack while held = %v, want ErrTrackBusy", err)
	}
}

func TestRenameTrack(t *testing.T) {
	lib, musicDir := newTestLibrary(t)
	writeAudio(t, musicDir, "draft.mp3")
	if _, _, err := lib.Attach(context.Background(), musicDir); err != nil {
		t.Fatal(err)
	}
	trackID := lib.Tracks.All()[0].ID

	if err := lib.RenameTrack(trackID, "final"); err != nil {
		t.Fatalf("RenameTrack failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(musicDir, "final.mp3")); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}
	entry, _ := lib.Tracks.Lookup(trackID)
	if entry.FileName != "final.mp3" {
		t.Errorf("FileName = %q, want final.mp3 (extension preserved)", entry.FileName)
	}

	if err := lib.RenameTrack(trackID, "bad/name.mp3"); err == nil {
		t.Error("separator in name accepted")
	}
}

func TestListTracksCollatedOrder(t *testing.T) {
	lib, musicDir := newTestLibrary(t)
	for _, name := range []string{"track10.mp3", "Track2.mp3", "track1.mp3"} {
		writeAudio(t, musicDir, name)
	}
	if _, _, err := lib.Attach(context.Background(), musicDir); err != nil {
		t.Fatal(err)
	}

	listed := lib.AllTracks()
	got := make([]string, len(listed))
	for i, entry := range listed {
		got[i] = entry.FileName
	}
	want := []string{"track1.mp3", "Track2.mp3", "track10.mp3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v (numeric, case-insensitive)", got, want)
		}
	}
}
