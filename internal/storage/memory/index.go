package memory

import (
	"sync"

	"github.com/nguyendn/wwwhisper/pkg/cmap"
)

// IDSet is a concurrent-safe set of IDs.
type IDSet struct {
	mu    sync.RWMutex
	items map[string]struct{}
}

// NewIDSet creates a new ID set.
func NewIDSet() *IDSet {
	return &IDSet{items: make(map[string]struct{})}
}

// Add adds an ID to the set.
func (s *IDSet) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = struct{}{}
}

// Remove removes an ID from the set and reports whether it was present.
func (s *IDSet) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[id]
	delete(s.items, id)
	return ok
}

// Contains checks if an ID is in the set.
func (s *IDSet) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok
}

// Len returns the number of items in the set.
func (s *IDSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Items returns a copy of all IDs.
func (s *IDSet) Items() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]string, 0, len(s.items))
	for id := range s.items {
		items = append(items, id)
	}
	return items
}

// Index maps an owner key to a set of IDs. The store uses it for
// user -> session hashes, location -> granted users and user -> granted
// locations.
type Index struct {
	index *cmap.Map[string, *IDSet]
}

// NewIndex creates a new index.
func NewIndex() *Index {
	return &Index{index: cmap.New[string, *IDSet]()}
}

// Add links id to key.
func (i *Index) Add(key, id string) {
	set, _ := i.index.GetOrSet(key, NewIDSet())
	set.Add(id)
}

// Remove unlinks id from key and reports whether the link existed.
func (i *Index) Remove(key, id string) bool {
	set, ok := i.index.Get(key)
	if !ok {
		return false
	}

	removed := set.Remove(id)

	// Clean up empty sets
	if set.Len() == 0 {
		i.index.Delete(key)
	}
	return removed
}

// Contains reports whether id is linked to key.
func (i *Index) Contains(key, id string) bool {
	set, ok := i.index.Get(key)
	return ok && set.Contains(id)
}

// Get returns all IDs linked to key.
func (i *Index) Get(key string) []string {
	set, ok := i.index.Get(key)
	if !ok {
		return nil
	}
	return set.Items()
}

// Count returns the number of IDs linked to key.
func (i *Index) Count(key string) int {
	set, ok := i.index.Get(key)
	if !ok {
		return 0
	}
	return set.Len()
}

// Pop removes key and returns the IDs that were linked to it.
func (i *Index) Pop(key string) []string {
	set, ok := i.index.Pop(key)
	if !ok {
		return nil
	}
	return set.Items()
}
