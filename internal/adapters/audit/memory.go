package audit

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in process memory. Entries do not survive a
// restart; use it for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, e Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.ID]; ok {
		return ErrDuplicate
	}
	e.Payload = append([]byte(nil), e.Payload...)
	if e.Status == "" {
		e.Status = StatusReceived
	}
	s.entries[e.ID] = e
	return nil
}

// Resolve implements Store.
func (s *MemoryStore) Resolve(_ context.Context, id string, r Resolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.apply(r)
	s.entries[id] = e
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

// Pending implements Store.
func (s *MemoryStore) Pending(_ context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Status == StatusReceived {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()
	return oldestFirst(out, limit), nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
