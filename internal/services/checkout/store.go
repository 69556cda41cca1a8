package checkout

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type storeEntry struct {
	flow     *Flow
	lastSeen time.Time
}

// Store keeps one Flow per visitor in memory, keyed by a random session ID.
type Store struct {
	mu    sync.Mutex
	flows map[string]*storeEntry

	policy        Policy
	defaultAmount string
	now           func() time.Time
}

func NewStore(policy Policy, defaultAmount string) *Store {
	return &Store{
		flows:         make(map[string]*storeEntry),
		policy:        policy,
		defaultAmount: defaultAmount,
		now:           time.Now,
	}
}

func (s *Store) Create() (string, *Flow) {
	id := uuid.NewString()
	flow := NewFlow(s.policy, s.defaultAmount)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.flows[id] = &storeEntry{flow: flow, lastSeen: s.now()}

	return id, flow
}

func (s *Store) Get(id string) (*Flow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.flows[id]
	if !ok {
		return nil, false
	}
	entry.lastSeen = s.now()

	return entry.flow, true
}

// Sweep drops flows that have not been touched within ttl and returns how
// many were removed.
func (s *Store) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	removed := 0
	for id, entry := range s.flows {
		if entry.lastSeen.Before(cutoff) {
			delete(s.flows, id)
			removed++
		}
	}

	return removed
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.flows)
}
