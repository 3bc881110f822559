package session

import (
	"cmp"
	"errors"
	"slices"
	"sync"

	"mercurial/config"
	"mercurial/modes"
)

var ErrNotFound = errors.New("session not found")

// Manager is the registry of live sessions. Sessions share nothing but the
// Options they were created with.
type Manager struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(opts Options) *Manager {
	return &Manager{
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session in mode; an empty mode selects the default.
func (m *Manager) Create(mode string) (*Session, error) {
	spec := m.opts.defaultMode()
	if mode != "" {
		var err error
		if spec, err = modes.Lookup(mode); err != nil {
			return nil, err
		}
	}

	s := New(spec, m.opts)
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Session] created %s (mode: %s)", s.id, spec.ID)
	}
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete forgets a session. A turn still streaming finishes normally but its
// result is no longer reachable.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// List returns summaries of all sessions, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	slices.SortFunc(sessions, func(a, b *Session) int {
		return cmp.Compare(a.seq, b.seq)
	})
	infos := make([]Info, len(sessions))
	for i, s := range sessions {
		infos[i] = s.Info()
	}
	return infos
}
