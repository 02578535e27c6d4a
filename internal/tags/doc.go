// Package tags reads and writes embedded audio metadata.
//
// The read path degrades gracefully: a file with no tag container yields
// a nil result, not an error, since many containers legitimately carry
// none. The write path applies partial patches — a nil patch field means
// "leave untouched" — and maps every native writer outcome onto a typed
// WriteError so callers can branch on the failure kind.
//
// Pipeline ties the patch vocabulary to the resolver: it acquires scoped
// access for a track, runs the read or write inside that scope, and
// releases exactly once on every exit path.
package tags
