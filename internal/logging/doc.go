// Package logging constructs the slog loggers used throughout treklist.
//
// It parses level/format options from configuration, provides a compact
// console handler and an RFC3339 JSON handler, and standardizes the
// structured field keys (track_id, folder_id, playlist_id, component) so
// log lines stay greppable across packages. Components obtain their own
// logger through NewComponentLogger; tests use NewNop.
package logging
