package bookmark

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	path := writeFile(t, t.TempDir(), "track.mp3", "audio")

	encoded, err := Encode(path)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	resolved, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if resolved.Path != path {
		t.Errorf("Path = %q, want %q", resolved.Path, path)
	}
	if resolved.Stale {
		t.Error("bookmark for unmoved file reported stale")
	}
	if resolved.Name != "track.mp3" {
		t.Errorf("Name = %q, want track.mp3", resolved.Name)
	}
}

func TestDecodeCorruptedPayload(t *testing.T) {
	for _, encoded := range []string{"not-base64!!!", "aGVsbG8=", ""} {
		_, err := Decode(encoded)
		if !errors.Is(err, ErrCorrupted) {
			t.Errorf("Decode(%q) error = %v, want ErrCorrupted", encoded, err)
		}
	}
}

func TestDecodeDeletedFileIsStaleNotError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "gone.mp3", "audio")

	encoded, err := Encode(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	resolved, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !resolved.Stale {
		t.Error("deleted file should decode stale")
	}
}

func TestDecodeReplacedFileIsStale(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "track.mp3", "audio")

	encoded, err := Encode(path)
	if err != nil {
		t.Fatal(err)
	}

	// Replace the inode behind the same path.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "track.mp3", "different audio")

	resolved, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !resolved.Stale {
		t.Error("replaced file should decode stale")
	}
}

func TestEncodeMissingFileFails(t *testing.T) {
	if _, err := Encode(filepath.Join(t.TempDir(), "absent.mp3")); err == nil {
		t.Fatal("expected error encoding missing file")
	}
}

func TestAccessReleaseIdempotent(t *testing.T) {
	path := writeFile(t, t.TempDir(), "track.mp3", "audio")

	access, err := OSBroker{}.Start(path)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if access.Path() != path {
		t.Errorf("Path = %q, want %q", access.Path(), path)
	}
	if access.File() == nil {
		t.Fatal("File() returned nil before release")
	}

	access.Release()
	access.Release()
	if !access.Released() {
		t.Error("access not marked released")
	}
	if access.File() != nil {
		t.Error("File() should be nil after release")
	}
}

func TestOnReleaseRunsOnce(t *testing.T) {
	path := writeFile(t, t.TempDir(), "track.mp3", "audio")

	access, err := OSBroker{}.Start(path)
	if err != nil {
		t.Fatal(err)
	}

	calls := 0
	access.OnRelease(func() { calls++ })
	if calls != 0 {
		t.Fatal("hook ran before release")
	}

	access.Release()
	access.Release()
	if calls != 1 {
		t.Errorf("hook calls = %d, want 1", calls)
	}

	// Registering after release runs the hook immediately.
	access.OnRelease(func() { calls++ })
	if calls != 2 {
		t.Errorf("late hook calls = %d, want 2", calls)
	}
}

func TestOverlappingAccessIndependent(t *testing.T) {
	path := writeFile(t, t.TempDir(), "track.mp3", "audio")

	a, err := OSBroker{}.Start(path)
	if err != nil {
		t.Fatal(err)
	}
	b, err := OSBroker{}.Start(path)
	if err != nil {
		t.Fatal(err)
	}
	a.Release()
	if b.Released() {
		t.Error("releasing one grant released the other")
	}
	if b.File() == nil {
		t.Error("second grant lost its descriptor")
	}
	b.Release()
}

func TestStartMissingFile(t *testing.T) {
	_, err := OSBroker{}.Start(filepath.Join(t.TempDir(), "absent.mp3"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want ErrNotExist", err)
	}
}
