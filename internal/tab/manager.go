package tab

import (
	"sort"
	"sync"
	"time"
)

// Manager is the registry of live tabs.
type Manager struct {
	mu   sync.RWMutex
	tabs map[string]*Tab
	opts Options
}

// NewManager creates an empty registry. Every tab it creates shares opts.
func NewManager(opts Options) *Manager {
	return &Manager{
		tabs: make(map[string]*Tab),
		opts: opts.withDefaults(),
	}
}

// Get returns the tab with id.
func (m *Manager) Get(id string) (*Tab, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tabs[id]
	return t, ok
}

// GetOrCreate returns the tab with id, creating it on first use.
func (m *Manager) GetOrCreate(id string) *Tab {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.tabs[id]; ok {
		return t
	}
	t := New(id, m.opts)
	m.tabs[id] = t
	m.opts.Logger.Info("[TAB] Registered", "tab_id", id)
	return t
}

// Remove closes and forgets the tab with id.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	t, ok := m.tabs[id]
	delete(m.tabs, id)
	m.mu.Unlock()

	if !ok {
		return false
	}
	t.Close()
	m.opts.Logger.Info("[TAB] Unregistered", "tab_id", id)
	return true
}

// List returns every tab sorted by ID.
func (m *Manager) List() []*Tab {
	m.mu.RLock()
	tabs := make([]*Tab, 0, len(m.tabs))
	for _, t := range m.tabs {
		tabs = append(tabs, t)
	}
	m.mu.RUnlock()

	sort.Slice(tabs, func(i, j int) bool { return tabs[i].ID() < tabs[j].ID() })
	return tabs
}

// Len returns the number of tabs.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tabs)
}

// CloseIdle closes every tab without a page that has been quiet for ttl and
// returns the IDs it closed.
func (m *Manager) CloseIdle(now time.Time, ttl time.Duration) []string {
	m.mu.Lock()
	var idle []*Tab
	for id, t := range m.tabs {
		if t.Idle(now, ttl) {
			idle = append(idle, t)
			delete(m.tabs, id)
		}
	}
	m.mu.Unlock()

	ids := make([]string, 0, len(idle))
	for _, t := range idle {
		t.Close()
		ids = append(ids, t.ID())
	}
	sort.Strings(ids)
	return ids
}

// CloseAll closes every tab.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	tabs := m.tabs
	m.tabs = make(map[string]*Tab)
	m.mu.Unlock()

	for _, t := range tabs {
		t.Close()
	}
}
