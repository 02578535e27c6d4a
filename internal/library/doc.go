// Package library is the high-level surface over the registries,
// resolver, and tag pipeline: attaching and scanning folders, assigning
// stable track IDs by file identity, moving and renaming files with
// re-bookmarking, ordered listings, and a filesystem watcher that
// downgrades entries when files change underneath the app.
package library
