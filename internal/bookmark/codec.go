package bookmark

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// ErrCorrupted indicates a bookmark payload that cannot be decoded.
var ErrCorrupted = errors.New("bookmark corrupted")

// Identity captures the filesystem identity of a file at a point in time.
type Identity struct {
	Dev       uint64 `json:"dev"`
	Ino       uint64 `json:"ino"`
	Size      int64  `json:"size"`
	MtimeNano int64  `json:"mtime_nano"`
}

// Mtime returns the modification time recorded in the identity.
func (id Identity) Mtime() time.Time {
	return time.Unix(0, id.MtimeNano)
}

// SameFile reports whether two identities refer to the same inode.
func (id Identity) SameFile(other Identity) bool {
	return id.Dev == other.Dev && id.Ino == other.Ino
}

// CaptureIdentity stats path and records its current identity.
func CaptureIdentity(path string) (Identity, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return Identity{}, &fs.PathError{Op: "stat", Path: path, Err: err}
	}
	return Identity{
		Dev:       uint64(st.Dev),
		Ino:       st.Ino,
		Size:      st.Size,
		MtimeNano: st.Mtim.Sec*1e9 + st.Mtim.Nsec,
	}, nil
}

// payload is the serialized form of a bookmark.
type payload struct {
	Path     string   `json:"path"`
	Name     string   `json:"name"`
	Identity Identity `json:"identity"`
}

// Resolved is the outcome of decoding a bookmark against the live filesystem.
type Resolved struct {
	// Path is the location the bookmark recorded.
	Path string
	// Name is the file name at encoding time.
	Name string
	// Identity is the file identity at encoding time.
	Identity Identity
	// Stale reports that the file at Path no longer matches the recorded
	// identity, or is gone entirely. A stale bookmark may still be
	// recoverable through folder-path reconstruction.
	Stale bool
}

// Encode captures the identity of the file at path and serializes it as a
// portable base64 bookmark string.
func Encode(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	identity, err := CaptureIdentity(abs)
	if err != nil {
		return "", fmt.Errorf("encode bookmark: %w", err)
	}
	data, err := json.Marshal(payload{
		Path:     abs,
		Name:     filepath.Base(abs),
		Identity: identity,
	})
	if err != nil {
		return "", fmt.Errorf("encode bookmark: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Decode unpacks a bookmark string and re-checks it against the filesystem.
// Undecodable payloads return ErrCorrupted; a missing or replaced file is
// reported through Resolved.Stale, not an error.
func Decode(encoded string) (Resolved, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Resolved{}, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Resolved{}, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if p.Path == "" {
		return Resolved{}, fmt.Errorf("%w: empty path", ErrCorrupted)
	}

	resolved := Resolved{Path: p.Path, Name: p.Name, Identity: p.Identity}

	current, err := CaptureIdentity(p.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, unix.ENOENT) || errors.Is(err, unix.ENOTDIR) {
			resolved.Stale = true
			return resolved, nil
		}
		// Permission or I/O trouble: treat as stale rather than corrupted,
		// the payload itself decoded fine.
		resolved.Stale = true
		return resolved, nil
	}
	if !current.SameFile(p.Identity) {
		resolved.Stale = true
	}
	return resolved, nil
}
