// Package metacache keeps parsed tag metadata in a local SQLite
// database so browsing never re-parses audio files.
//
// Reads are served from memory or the database and never trigger file
// I/O; RequestIfNeeded schedules a background fetch through the tag
// pipeline for tracks that have no cached row yet. Rows are invalidated
// after every successful tag write.
package metacache
