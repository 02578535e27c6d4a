package metacache

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"treklist/internal/logging"
	"treklist/internal/tags"
)

// MetadataSource produces parsed metadata for a track, typically the
// tag pipeline. A nil result without error means the file carries no
// tags or is unavailable.
type MetadataSource interface {
	ReadMetadata(ctx context.Context, trackID uuid.UUID) (*tags.ParsedMetadata, error)
}

// Cache fronts the SQLite store with an in-memory layer and schedules
// background fetches for uncached tracks.
type Cache struct {
	store  *Store
	source MetadataSource
	logger *slog.Logger

	mu       sync.Mutex
	mem      map[uuid.UUID]*tags.ParsedMetadata
	inflight map[uuid.UUID]struct{}
	pending  sync.WaitGroup
}

// NewCache constructs the cache over store, fetching misses through
// source.
func NewCache(store *Store, source MetadataSource, logger *slog.Logger) *Cache {
	return &Cache{
		store:    store,
		source:   source,
		logger:   logging.NewComponentLogger(logger, "metacache"),
		mem:      make(map[uuid.UUID]*tags.ParsedMetadata),
		inflight: make(map[uuid.UUID]struct{}),
	}
}

// Metadata returns the cached result for a track without touching the
// audio file. found reports whether any result (including "no tags") is
// cached yet.
func (c *Cache) Metadata(trackID uuid.UUID) (parsed *tags.ParsedMetadata, found bool) {
	c.mu.Lock()
	if parsed, found = c.mem[trackID]; found {
		c.mu.Unlock()
		return parsed, true
	}
	c.mu.Unlock()

	parsed, found, err := c.store.Get(context.Background(), trackID)
	if err != nil {
		c.logger.Warn("metadata cache read failed",
			logging.String(logging.FieldTrackID, trackID.String()),
			logging.Error(err))
		return nil, false
	}
	if found {
		c.mu.Lock()
		c.mem[trackID] = parsed
		c.mu.Unlock()
	}
	return parsed, found
}

// RequestIfNeeded schedules a background fetch when the track has no
// cached result and none is already in flight. It never blocks on file
// I/O.
func (c *Cache) RequestIfNeeded(ctx context.Context, trackID uuid.UUID) {
	c.mu.Lock()
	if _, cached := c.mem[trackID]; cached {
		c.mu.Unlock()
		return
	}
	if _, running := c.inflight[trackID]; running {
		c.mu.Unlock()
		return
	}
	c.inflight[trackID] = struct{}{}
	c.pending.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.pending.Done()
		defer func() {
			c.mu.Lock()
			delete(c.inflight, trackID)
			c.mu.Unlock()
		}()

		if _, found, err := c.store.Get(ctx, trackID); err == nil && found {
			return
		}

		parsed, err := c.source.ReadMetadata(ctx, trackID)
		if err != nil {
			c.logger.Warn("metadata fetch failed",
				logging.String(logging.FieldTrackID, trackID.String()),
				logging.Error(err))
			return
		}
		if err := c.store.Put(ctx, trackID, parsed); err != nil {
			c.logger.Warn("metadata cache write failed",
				logging.String(logging.FieldTrackID, trackID.String()),
				logging.Error(err))
			return
		}
		c.mu.Lock()
		c.mem[trackID] = parsed
		c.mu.Unlock()
	}()
}

// Invalidate drops the cached result for a track. Called after every
// successful tag write so the next listing re-reads the file.
func (c *Cache) Invalidate(trackID uuid.UUID) error {
	c.mu.Lock()
	delete(c.mem, trackID)
	c.mu.Unlock()
	return c.store.Delete(context.Background(), trackID)
}

// Wait blocks until all scheduled fetches finish. Tests and shutdown
// paths use it; steady-state callers never need to.
func (c *Cache) Wait() {
	c.pending.Wait()
}

// Close waits for in-flight fetches and closes the store.
func (c *Cache) Close() error {
	c.pending.Wait()
	return c.store.Close()
}
