package dom

import "sync"

// Storage is the tab's local storage.
type Storage struct {
	mu    sync.RWMutex
	items map[string]string
}

func newStorage(items map[string]string) *Storage {
	s := &Storage{items: make(map[string]string, len(items))}
	for k, v := range items {
		s.items[k] = v
	}
	return s
}

// Get returns the stored value, or "" when absent.
func (s *Storage) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items[key]
}

// Set stores value under key.
func (s *Storage) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}

// Remove deletes key.
func (s *Storage) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

// Globals is the window's global namespace, as seen by embedded scripts.
type Globals struct {
	mu     sync.RWMutex
	values map[string]any
}

// Define sets name to v unless name is already defined. It reports whether
// v was installed.
func (g *Globals) Define(name string, v any) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.values[name]; ok {
		return false
	}
	if g.values == nil {
		g.values = make(map[string]any)
	}
	g.values[name] = v
	return true
}

// Lookup returns the value bound to name.
func (g *Globals) Lookup(name string) (any, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.values[name]
	return v, ok
}
