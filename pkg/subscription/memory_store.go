package subscription

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps records in process memory. Writes to the same id are
// serialized by a per-key mutex; reads take a snapshot under a shared lock.
// Intended for tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) lock(id string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *MemoryStore) load(id string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	return r.Clone(), ok
}

func (s *MemoryStore) put(rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec.Clone()
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, ok := s.load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, id)
	}
	return r, nil
}

// FindByUser implements Store.
func (s *MemoryStore) FindByUser(ctx context.Context, userID string) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]*Record, 0)
	for _, r := range s.records {
		if r.UserID == userID {
			out = append(out, r.Clone())
		}
	}
	s.mu.RUnlock()

	SortNewestFirst(out)
	return out, nil
}

// Insert implements Store.
func (s *MemoryStore) Insert(ctx context.Context, rec *Record) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	unlock := s.lock(rec.ID)
	defer unlock()

	if _, ok := s.load(rec.ID); ok {
		return false, nil
	}
	s.put(rec)
	return true, nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*Record) error) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock := s.lock(id)
	defer unlock()

	r, ok := s.load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, id)
	}
	if err := fn(r); err != nil {
		return nil, err
	}
	r.ID = id
	s.put(r)
	return r, nil
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(ctx context.Context, id string, create func() *Record, fn func(*Record) error) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock := s.lock(id)
	defer unlock()

	r, ok := s.load(id)
	if !ok {
		if r = create(); r == nil {
			r = &Record{}
		}
	}
	if err := fn(r); err != nil {
		return nil, err
	}
	r.ID = id
	s.put(r)
	return r, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Healthcheck always succeeds; it lets the memory store stand in for a
// database in readiness checks.
func (s *MemoryStore) Healthcheck(context.Context) error { return nil }
