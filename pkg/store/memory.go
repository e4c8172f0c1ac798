package store

import (
	"context"
	"sort"
	"sync"

	"github.com/classworks/rosterd/pkg/principal"
)

// MemoryStore is an in-process PrincipalStore. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*principal.Principal
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*principal.Principal)}
}

// Get returns a copy of the stored record.
func (s *MemoryStore) Get(ctx context.Context, id string) (*principal.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

// Upsert stores a copy of the record.
func (s *MemoryStore) Upsert(ctx context.Context, p *principal.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[p.ID] = p.Clone()
	return nil
}

// ForEach visits records in ID order so batch runs are deterministic.
func (s *MemoryStore) ForEach(ctx context.Context, fn func(*principal.Principal) error) error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	for _, id := range ids {
		p, err := s.Get(ctx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

// Len reports the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// MemoryActivityLog is a canned ActivityLog for tests and examples.
type MemoryActivityLog struct {
	Modifications []Modification
	Counts        []EnrollmentCount
}

// QuizModifications returns the canned modification events.
func (l *MemoryActivityLog) QuizModifications(ctx context.Context) ([]Modification, error) {
	return l.Modifications, nil
}

// SubmissionCounts filters the canned counts by the threshold.
func (l *MemoryActivityLog) SubmissionCounts(ctx context.Context, minSubmissions int) ([]EnrollmentCount, error) {
	var out []EnrollmentCount
	for _, c := range l.Counts {
		if c.Submissions >= minSubmissions {
			out = append(out, c)
		}
	}
	return out, nil
}
