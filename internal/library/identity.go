package library

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"treklist/internal/bookmark"
	"treklist/internal/logging"
	"treklist/internal/storeutil"
)

// fingerprintChunk is how much of the file's head and tail goes into
// the content fingerprint. Large enough to survive tag rewrites at
// either end being unlikely to collide, small enough to stay cheap.
const fingerprintChunk = 64 * 1024

// IdentityIndex assigns stable track IDs by file identity. The device
// and inode pair is the preferred key; a head/tail content fingerprint
// catches files that moved across volumes, where the inode changes but
// the bytes do not.
type IdentityIndex struct {
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	keys map[string]uuid.UUID
}

// OpenIdentityIndex loads the persisted identity map at path. A missing
// file means a fresh index.
func OpenIdentityIndex(path string, logger *slog.Logger) (*IdentityIndex, error) {
	idx := &IdentityIndex{
		path:   path,
		logger: logging.NewComponentLogger(logger, "identity"),
		keys:   make(map[string]uuid.UUID),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read identity store: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &idx.keys); err != nil {
			return nil, fmt.Errorf("parse identity store: %w", err)
		}
	}
	return idx, nil
}

// Assign returns the stable track ID for the file at path, minting a
// new one when the file is unknown under both identity keys. isNew
// reports whether an ID was minted.
func (idx *IdentityIndex) Assign(path string) (id uuid.UUID, isNew bool, err error) {
	identity, err := bookmark.CaptureIdentity(path)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("capture identity: %w", err)
	}
	devKey := deviceKey(identity)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if id, ok := idx.keys[devKey]; ok {
		return id, false, nil
	}

	fpKey, err := fingerprintKey(path, identity)
	if err != nil {
		return uuid.Nil, false, err
	}
	if id, ok := idx.keys[fpKey]; ok {
		// Same content under a new inode: the file crossed a volume
		// boundary. Re-home the device key to the existing ID.
		idx.keys[devKey] = id
		if err := idx.save(); err != nil {
			return uuid.Nil, false, err
		}
		idx.logger.Debug("re-homed track identity",
			logging.String(logging.FieldTrackID, id.String()),
			logging.String(logging.FieldPath, path))
		return id, false, nil
	}

	id = uuid.New()
	idx.keys[devKey] = id
	idx.keys[fpKey] = id
	if err := idx.save(); err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

// Forget drops every key mapping to id. Called when a track leaves the
// library so a later re-scan mints a fresh identity.
func (idx *IdentityIndex) Forget(id uuid.UUID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	changed := false
	for key, mapped := range idx.keys {
		if mapped == id {
			delete(idx.keys, key)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return idx.save()
}

// save writes the index atomically. Caller holds the lock.
func (idx *IdentityIndex) save() error {
	data, err := json.MarshalIndent(idx.keys, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal identity store: %w", err)
	}
	if err := storeutil.WriteFileAtomic(idx.path, data, 0o644); err != nil {
		return fmt.Errorf("write identity store: %w", err)
	}
	return nil
}

func deviceKey(identity bookmark.Identity) string {
	return fmt.Sprintf("dev:%d:%d", identity.Dev, identity.Ino)
}

// fingerprintKey hashes the file name, size, mtime, and the first and
// last chunks of content. Renames change the name component on purpose:
// a renamed file should keep its ID through the inode key, while a
// same-named copy on another volume matches here.
func fingerprintKey(path string, identity bookmark.Identity) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for fingerprint: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d|", filepath.Base(path), identity.Size, identity.MtimeNano)

	head := make([]byte, fingerprintChunk)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read fingerprint head: %w", err)
	}
	h.Write(head[:n])

	if identity.Size > 2*fingerprintChunk {
		if _, err := f.Seek(-fingerprintChunk, io.SeekEnd); err != nil {
			return "", fmt.Errorf("seek fingerprint tail: %w", err)
		}
		tail := make([]byte, fingerprintChunk)
		n, err := io.ReadFull(f, tail)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return "", fmt.Errorf("read fingerprint tail: %w", err)
		}
		h.Write(tail[:n])
	}

	return "fp:" + hex.EncodeToString(h.Sum(nil)), nil
}
