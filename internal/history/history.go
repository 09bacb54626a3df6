package history

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

// DefaultCapacity bounds the history when no capacity is configured.
const DefaultCapacity = 15

// Store is a bounded, most-recent-first list of previously queried port
// expressions, persisted as a flat JSON array. It is the only durable
// state the engine touches; a corrupt or missing file is an empty history,
// never a fatal error.
type Store struct {
	path     string
	capacity int

	mu      sync.Mutex
	entries []string
}

// NewStore loads the history at path, tolerating absence and corruption.
func NewStore(path string, capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Store{path: path, capacity: capacity}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Printf("Ignoring corrupt history file %s: %v", s.path, err)
		return
	}
	if len(entries) > s.capacity {
		entries = entries[:s.capacity]
	}
	s.entries = entries
}

// Add records an expression at the front. An already-present expression
// moves to the front without growing the list; the list never exceeds the
// configured capacity. Persistence is best effort.
func (s *Store) Add(expr string) {
	if expr == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]string, 0, len(s.entries)+1)
	next = append(next, expr)
	for _, e := range s.entries {
		if e != expr {
			next = append(next, e)
		}
	}
	if len(next) > s.capacity {
		next = next[:s.capacity]
	}
	s.entries = next

	data, err := json.Marshal(s.entries)
	if err == nil {
		err = os.WriteFile(s.path, data, 0644)
	}
	if err != nil {
		log.Printf("Failed to persist history to %s: %v", s.path, err)
	}
}

// Entries returns the expressions, most recent first.
func (s *Store) Entries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	copy(out, s.entries)
	return out
}
