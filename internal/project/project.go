// Package project tracks registered project roots and hands out the
// sandboxed filesystem plus the per-project mutation lock.
package project

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"taskweave/internal/safeio"
)

// ErrUnknownProject is returned for ids that were never registered.
var ErrUnknownProject = errors.New("project: unknown project id")

// Handle is one registered project. Mutating pipelines hold Mu so that
// command execution and file reads for the same project never interleave.
type Handle struct {
	ID   string
	Root string
	FS   *safeio.SafeFS
	Mu   sync.Mutex
}

// Manager is a concurrency-safe registry of project handles.
type Manager struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

func NewManager() *Manager {
	return &Manager{handles: make(map[string]*Handle)}
}

// Register creates (or replaces) the handle for id, validating root as an
// existing directory. The returned handle is shared, not a copy.
func (m *Manager) Register(id, root string) (*Handle, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("project id is required")
	}
	fs, err := safeio.NewSafeFS(root)
	if err != nil {
		return nil, fmt.Errorf("register project %s: %w", id, err)
	}
	h := &Handle{ID: id, Root: fs.Root(), FS: fs}
	m.mu.Lock()
	m.handles[id] = h
	m.mu.Unlock()
	return h, nil
}

// Get returns the handle for id.
func (m *Manager) Get(id string) (*Handle, error) {
	m.mu.RLock()
	h, ok := m.handles[strings.TrimSpace(id)]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProject, id)
	}
	return h, nil
}

// IDs lists registered project ids.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.handles))
	for id := range m.handles {
		ids = append(ids, id)
	}
	return ids
}
