package tags

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"treklist/internal/bookmark"
)

type stubResolver struct {
	path string
	err  error
}

func (s *stubResolver) Resolve(_ context.Context, _ uuid.UUID) (*bookmark.Access, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.path == "" {
		return nil, nil
	}
	return bookmark.OSBroker{}.Start(s.path)
}

type recordingWriter struct {
	calls   int
	lastDir string
	patch   Patch
	err     error
}

func (w *recordingWriter) WriteTags(_ context.Context, path string, patch Patch) error {
	w.calls++
	w.lastDir = filepath.Dir(path)
	w.patch = patch
	return w.err
}

type recordingCache struct {
	invalidated []uuid.UUID
}

func (c *recordingCache) Invalidate(id uuid.UUID) error {
	c.invalidated = append(c.invalidated, id)
	return nil
}

func tempTrack(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "song.mp3")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPipelineWriteInvalidatesCache(t *testing.T) {
	path := tempTrack(t)
	writer := &recordingWriter{}
	cache := &recordingCache{}
	p := NewPipeline(&stubResolver{path: path}, NewReader(nil), writer, cache, nil)

	id := uuid.New()
	patch := Patch{Title: StringField("x")}
	if err := p.WriteTags(context.Background(), id, patch); err != nil {
		t.Fatalf("WriteTags failed: %v", err)
	}
	if writer.calls != 1 {
		t.Errorf("writer calls = %d, want 1", writer.calls)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != id {
		t.Errorf("invalidated = %v, want [%s]", cache.invalidated, id)
	}
}

func TestPipelineWriteUnavailableTrack(t *testing.T) {
	writer := &recordingWriter{}
	cache := &recordingCache{}
	p := NewPipeline(&stubResolver{}, NewReader(nil), writer, cache, nil)

	err := p.WriteTags(context.Background(), uuid.New(), Patch{Title: StringField("x")})
	assertWriteKind(t, err, KindSecurityScopeDenied)
	if writer.calls != 0 {
		t.Error("writer dispatched for unavailable track")
	}
	if len(cache.invalidated) != 0 {
		t.Error("cache invalidated despite failure")
	}
}

func TestPipelineWriteFailureSkipsInvalidation(t *testing.T) {
	path := tempTrack(t)
	writer := &recordingWriter{err: &WriteError{Kind: KindSaveFailed}}
	cache := &recordingCache{}
	p := NewPipeline(&stubResolver{path: path}, NewReader(nil), writer, cache, nil)

	err := p.WriteTags(context.Background(), uuid.New(), Patch{Title: StringField("x")})
	assertWriteKind(t, err, KindSaveFailed)
	if len(cache.invalidated) != 0 {
		t.Error("cache invalidated despite write failure")
	}
}

func TestPipelineResolverErrorPropagates(t *testing.T) {
	boom := errors.New("store fault")
	p := NewPipeline(&stubResolver{err: boom}, NewReader(nil), &recordingWriter{}, nil, nil)

	if err := p.WriteTags(context.Background(), uuid.New(), Patch{}); !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped store fault", err)
	}
	if _, err := p.ReadMetadata(context.Background(), uuid.New()); !errors.Is(err, boom) {
		t.Errorf("read error = %v, want wrapped store fault", err)
	}
}

func TestPipelineReadUnavailableTrack(t *testing.T) {
	p := NewPipeline(&stubResolver{}, NewReader(nil), &recordingWriter{}, nil, nil)
	parsed, err := p.ReadMetadata(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("ReadMetadata errored: %v", err)
	}
	if parsed != nil {
		t.Error("expected nil metadata for unavailable track")
	}
}

func TestPipelineReadUntaggedTrack(t *testing.T) {
	path := tempTrack(t)
	p := NewPipeline(&stubResolver{path: path}, NewReader(nil), &recordingWriter{}, nil, nil)
	parsed, err := p.ReadMetadata(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("ReadMetadata errored: %v", err)
	}
	if parsed != nil {
		t.Errorf("expected nil metadata for untagged file, got %+v", parsed)
	}
}
