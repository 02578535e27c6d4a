// Package resolver turns a stable track ID into a usable, access-granted
// file location.
//
// It is the single choke point between logical track identity and the
// filesystem: it decodes the registered bookmark, re-checks staleness on
// every call, walks the folder registry's ancestor chain to recover files
// whose containing folder moved, downgrades unrecoverable entries to
// missing, and hands out scoped access grants.
//
// Routine unavailability (deleted file, revoked folder, corrupted
// bookmark) is an expected outcome and yields a nil grant without error;
// only storage faults are returned as errors. Every successful Resolve
// must be paired with exactly one Release by the caller, on every exit
// path including error returns.
package resolver
