package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/trajview/pkg/domain"
)

// Store implements ports.RequestStore in memory.
// It lives as long as the process, which is the lifetime of a viewer session.
// Safe for concurrent use.
type Store struct {
	data map[domain.Subject]domain.TrajectoryRequest
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[domain.Subject]domain.TrajectoryRequest),
	}
}

// Save records the request. TrajectoryRequest is a value type, so no copy is needed.
func (s *Store) Save(ctx context.Context, subject domain.Subject, req domain.TrajectoryRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[subject] = req
	return nil
}

// Load retrieves the request for a subject.
func (s *Store) Load(ctx context.Context, subject domain.Subject) (domain.TrajectoryRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.data[subject]
	if !ok {
		return domain.TrajectoryRequest{}, domain.ErrRequestNotFound
	}
	return req, nil
}

// Delete removes the request.
func (s *Store) Delete(ctx context.Context, subject domain.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, subject)
	return nil
}

// List returns remembered subjects in lexical order.
func (s *Store) List(ctx context.Context) ([]domain.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subjects := make([]domain.Subject, 0, len(s.data))
	for subject := range s.data {
		subjects = append(subjects, subject)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i] < subjects[j] })
	return subjects, nil
}
