package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	fields  map[string][]byte
	touched time.Time
}

// MemoryStore is an in-process Store whose keys expire after a TTL of
// inactivity. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*memoryEntry
}

// NewMemoryStore returns an empty store. A non-positive ttl disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*memoryEntry),
	}
}

func (s *MemoryStore) expired(e *memoryEntry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.touched) > s.ttl
}

// Get returns a copy of the stored value.
func (s *MemoryStore) Get(_ context.Context, key Key, field string) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := key.String()
	e, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	now := s.now()
	if s.expired(e, now) {
		delete(s.entries, id)
		return nil, nil
	}
	e.touched = now

	v, ok := e.fields[field]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value.
func (s *MemoryStore) Set(_ context.Context, key Key, field string, value []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := key.String()
	now := s.now()
	e, ok := s.entries[id]
	if !ok || s.expired(e, now) {
		e = &memoryEntry{fields: make(map[string][]byte)}
		s.entries[id] = e
	}
	e.fields[field] = append([]byte(nil), value...)
	e.touched = now
	return nil
}

// Clear removes field, or the whole key when field is empty.
func (s *MemoryStore) Clear(_ context.Context, key Key, field string) error {
	if err := key.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := key.String()
	if field == "" {
		delete(s.entries, id)
		return nil
	}
	if e, ok := s.entries[id]; ok {
		delete(e.fields, field)
		if len(e.fields) == 0 {
			delete(s.entries, id)
		}
	}
	return nil
}

// Purge drops expired keys and reports how many were removed.
func (s *MemoryStore) Purge(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var removed int64
	for id, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}
