package dedupe

import "sync"

// Set records identifiers claimed during one cycle. It is safe for
// concurrent use by detail workers.
type Set struct {
	mu    sync.Mutex
	items map[string]struct{}
}

// NewSet creates an empty set sized for the expected number of keys.
func NewSet(capacity int) *Set {
	if capacity < 0 {
		capacity = 0
	}
	return &Set{items: make(map[string]struct{}, capacity)}
}

// Claim marks key as taken and reports whether the caller is the first to
// claim it.
func (s *Set) Claim(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[key]; ok {
		return false
	}
	s.items[key] = struct{}{}
	return true
}

// Len returns the number of claimed keys.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.items)
}
