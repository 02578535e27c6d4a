package bookmark

import (
	"fmt"
	"os"
	"sync"
)

// Access is an ephemeral scoped-access grant for one file. It pins an open
// descriptor so the inode stays reachable for the duration of the grant.
// An Access is never persisted and is owned by the caller that obtained it;
// the caller must call Release exactly once, on every exit path.
type Access struct {
	path string

	mu       sync.Mutex
	file     *os.File
	released bool
	hooks    []func()
}

// Path returns the resolved filesystem path of the grant.
func (a *Access) Path() string { return a.path }

// File exposes the pinned descriptor. It stays valid until Release.
func (a *Access) File() *os.File {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file
}

// OnRelease registers fn to run when the grant ends. Registering on an
// already-released grant runs fn immediately.
func (a *Access) OnRelease(fn func()) {
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		fn()
		return
	}
	a.hooks = append(a.hooks, fn)
	a.mu.Unlock()
}

// Release ends the scoped access. Releasing twice is a no-op; overlapping
// grants for the same path are independent of each other.
func (a *Access) Release() {
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		return
	}
	a.released = true
	if a.file != nil {
		_ = a.file.Close()
		a.file = nil
	}
	hooks := a.hooks
	a.hooks = nil
	a.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Released reports whether the grant has been released.
func (a *Access) Released() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.released
}

// Broker starts scoped access to files. The OS broker is the production
// implementation; tests substitute fakes to simulate denied access.
type Broker interface {
	Start(path string) (*Access, error)
}

// OSBroker grants access by opening the file read-only.
type OSBroker struct{}

// Start opens path and returns a grant pinning the descriptor.
func (OSBroker) Start(path string) (*Access, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("start scoped access: %w", err)
	}
	return &Access{path: path, file: f}, nil
}

var _ Broker = OSBroker{}
