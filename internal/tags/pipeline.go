package tags

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"treklist/internal/bookmark"
	"treklist/internal/logging"
)

// AccessResolver supplies scoped file access for a track. A nil grant
// without error means the file is unavailable.
type AccessResolver interface {
	Resolve(ctx context.Context, trackID uuid.UUID) (*bookmark.Access, error)
}

// CacheInvalidator drops cached metadata after a successful write.
type CacheInvalidator interface {
	Invalidate(trackID uuid.UUID) error
}

// Pipeline runs tag reads and writes inside a track's access scope.
// Every acquired scope is released exactly once, on every exit path.
type Pipeline struct {
	resolver AccessResolver
	reader   *Reader
	writer   Writer
	cache    CacheInvalidator
	logger   *slog.Logger
}

// NewPipeline constructs the tag pipeline. cache may be nil when no
// metadata cache is in play.
func NewPipeline(resolver AccessResolver, reader *Reader, writer Writer, cache CacheInvalidator, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		resolver: resolver,
		reader:   reader,
		writer:   writer,
		cache:    cache,
		logger:   logging.NewComponentLogger(logger, "tagpipeline"),
	}
}

// AttachCache registers the invalidator after construction. The cache
// reads through the pipeline, so it cannot exist before it.
func (p *Pipeline) AttachCache(cache CacheInvalidator) {
	p.cache = cache
}

// ReadMetadata resolves the track and parses its tag container. An
// unavailable track or an untagged file both yield a nil result.
func (p *Pipeline) ReadMetadata(ctx context.Context, trackID uuid.UUID) (*ParsedMetadata, error) {
	access, err := p.resolver.Resolve(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if access == nil {
		return nil, nil
	}
	defer access.Release()
	return p.reader.ReadMetadata(access.Path())
}

// WriteTags resolves the track and applies the patch inside its access
// scope. An unavailable track surfaces as security_scope_denied, since
// the caller asked for a mutation and silence would hide the failure.
func (p *Pipeline) WriteTags(ctx context.Context, trackID uuid.UUID, patch Patch) error {
	access, err := p.resolver.Resolve(ctx, trackID)
	if err != nil {
		return err
	}
	if access == nil {
		return &WriteError{Kind: KindSecurityScopeDenied}
	}
	defer access.Release()

	if err := p.writer.WriteTags(ctx, access.Path(), patch); err != nil {
		return err
	}

	if p.cache != nil {
		if err := p.cache.Invalidate(trackID); err != nil {
			p.logger.Warn("metadata cache invalidation failed",
				logging.String(logging.FieldTrackID, trackID.String()),
				logging.Error(err))
		}
	}
	p.logger.Info("tags written",
		logging.String(logging.FieldTrackID, trackID.String()),
		logging.String(logging.FieldPath, access.Path()))
	return nil
}
