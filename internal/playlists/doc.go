// Package playlists manages ordered track lists persisted as JSON.
//
// An index file (tracklists.json) carries the list summaries; each
// list's track order lives in its own tracklist_<id>.json detail file.
// Lists reference tracks by ID only, so renames and moves in the
// library never touch playlist files. All writes are atomic
// temp-file-and-rename replacements.
package playlists
