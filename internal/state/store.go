package state

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/DeafMist/raad-monitor/internal/logger"
)

// Seen maps a meeting identifier to its last recorded fingerprint.
type Seen map[string]int

// Notified is the set of identifiers that already triggered a user-facing
// notification.
type Notified map[string]struct{}

// NewNotified builds a set from ids.
func NewNotified(ids ...string) Notified {
	n := make(Notified, len(ids))
	for _, id := range ids {
		n.Add(id)
	}
	return n
}

// Has reports membership.
func (n Notified) Has(id string) bool {
	_, ok := n[id]
	return ok
}

// Add inserts id and reports whether it was new.
func (n Notified) Add(id string) bool {
	if n.Has(id) {
		return false
	}
	n[id] = struct{}{}
	return true
}

// Sorted returns the members in ascending order.
func (n Notified) Sorted() []string {
	out := slices.Sorted(maps.Keys(n))
	if out == nil {
		return []string{}
	}
	return out
}

// SeenStore persists Seen as a flat JSON object.
type SeenStore struct {
	file jsonFile
}

// NewSeenStore creates a store backed by path.
func NewSeenStore(path string, log *slog.Logger) *SeenStore {
	if log == nil {
		log = logger.Discard()
	}
	return &SeenStore{file: jsonFile{path: path, log: log}}
}

// Load returns the persisted state, or an empty one when absent or corrupt.
func (s *SeenStore) Load() Seen {
	var seen Seen
	if !s.file.read(&seen) || seen == nil {
		return Seen{}
	}
	return seen
}

// Save atomically replaces the persisted state.
func (s *SeenStore) Save(seen Seen) error {
	if seen == nil {
		seen = Seen{}
	}
	return s.file.write(seen)
}

// NotifiedStore persists Notified as a flat, sorted JSON array.
type NotifiedStore struct {
	file jsonFile
}

// NewNotifiedStore creates a store backed by path.
func NewNotifiedStore(path string, log *slog.Logger) *NotifiedStore {
	if log == nil {
		log = logger.Discard()
	}
	return &NotifiedStore{file: jsonFile{path: path, log: log}}
}

// Load returns the persisted set, or an empty one when absent or corrupt.
func (s *NotifiedStore) Load() Notified {
	var ids []string
	if !s.file.read(&ids) {
		return Notified{}
	}
	return NewNotified(ids...)
}

// Save atomically replaces the persisted set.
func (s *NotifiedStore) Save(n Notified) error {
	return s.file.write(n.Sorted())
}
