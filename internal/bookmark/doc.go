// Package bookmark implements the security-scoped bookmark primitives the
// track and folder registries persist.
//
// A bookmark is a portable base64 string wrapping the file identity
// (device, inode, size, modification time) captured when the bookmark was
// created, plus the path it pointed to at that moment. Decoding re-checks
// the identity against the filesystem and reports staleness as a boolean
// signal rather than an error; callers decide whether a stale-but-present
// file is usable while a refresh is scheduled.
//
// The Broker hands out scoped access grants. A grant pins an open file
// descriptor for its lifetime; callers must pair every successful Start
// with exactly one Release on every exit path.
package bookmark
