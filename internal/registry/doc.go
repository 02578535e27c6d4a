// Package registry is the source of truth mapping stable logical
// identifiers to files in the music library.
//
// The TrackRegistry maps a track ID to its owning folder, current
// security-scoped bookmark, cached file name, and lifecycle state
// (active, stale, missing). The FolderRegistry holds attached root
// folders and their known sub-folders, and reconstructs ancestor chains
// purely from filesystem parent/child path relationships so a moved
// hierarchy can be recovered lazily.
//
// Both registries persist as JSON with atomic write-replace. Storage
// errors are surfaced to callers, never swallowed or retried here; retry
// policy belongs to callers who know their latency and consistency needs.
// Treat this package as the single source of truth for entry semantics:
// a track ID never changes across renames and moves, and no entry may
// remain active with an unresolvable bookmark.
package registry
