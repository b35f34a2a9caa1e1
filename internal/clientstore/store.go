// Package clientstore persists registered OIDC clients. The memory backend
// serves tests and tag-less builds; sqlite and postgres backends live in
// subpackages behind build tags.
package clientstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"oidcsync/internal/domain"
)

// Store is the persistence surface the sync engine depends on. Every write
// is its own unit of work so one failed entity never poisons the rest of
// a pass.
type Store interface {
	// All returns every stored client.
	All(ctx context.Context) ([]*domain.ClientRecord, error)

	// ByClientID returns the client with the given client ID, or nil when
	// absent. More than one matching row is an ErrAmbiguous error.
	ByClientID(ctx context.Context, clientID string) (*domain.ClientRecord, error)

	// AllClientIDs returns the set of stored client IDs.
	AllClientIDs(ctx context.Context) (map[string]struct{}, error)

	// Save inserts a new client and fills in its row key.
	Save(ctx context.Context, rec *domain.ClientRecord) error

	// Update rewrites an existing client addressed by its row key.
	Update(ctx context.Context, rec *domain.ClientRecord) error

	// Delete removes every row with the given client ID.
	Delete(ctx context.Context, clientID string) error

	// DeleteByClientIDs removes every row whose client ID is in ids and
	// returns the number of removed rows.
	DeleteByClientIDs(ctx context.Context, ids []string) (int64, error)

	// Close releases the backing resources.
	Close() error
}

// MemoryStore is an in-memory Store. It deliberately does not enforce a
// unique client ID so the ambiguity handling of ByClientID stays testable.
type MemoryStore struct {
	mu     sync.RWMutex
	rows   map[int64]*domain.ClientRecord
	nextID int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[int64]*domain.ClientRecord)}
}

func (s *MemoryStore) All(ctx context.Context) ([]*domain.ClientRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.ClientRecord, 0, len(s.rows))
	for _, rec := range s.rows {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ByClientID(ctx context.Context, clientID string) (*domain.ClientRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *domain.ClientRecord
	for _, rec := range s.rows {
		if rec.ClientID != clientID {
			continue
		}
		if found != nil {
			return nil, ErrAmbiguous
		}
		found = rec
	}
	if found == nil {
		return nil, nil
	}
	return found.Clone(), nil
}

func (s *MemoryStore) AllClientIDs(ctx context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.rows))
	for _, rec := range s.rows {
		out[rec.ClientID] = struct{}{}
	}
	return out, nil
}

func (s *MemoryStore) Save(ctx context.Context, rec *domain.ClientRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec.ID = s.nextID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.rows[rec.ID] = rec.Clone()
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, rec *domain.ClientRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[rec.ID]; !ok {
		return ErrNotFound
	}
	s.rows[rec.ID] = rec.Clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := false
	for id, rec := range s.rows {
		if rec.ClientID == clientID {
			delete(s.rows, id)
			deleted = true
		}
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryStore) DeleteByClientIDs(ctx context.Context, ids []string) (int64, error) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.rows {
		if _, ok := set[rec.ClientID]; ok {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }
