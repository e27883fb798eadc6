// Package testutil provides in-memory fakes of the service collaborators.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	cacheaside "github.com/eugener/cacheaside/internal"
)

// FakeRecordStore is an in-memory implementation of storage.RecordStore for testing.
type FakeRecordStore struct {
	mu     sync.RWMutex
	movies map[string]cacheaside.Movie

	Reads  atomic.Int64 // GetMovie calls
	Writes atomic.Int64 // UpsertMovie calls
}

// NewFakeRecordStore returns a FakeRecordStore holding the given movies.
func NewFakeRecordStore(movies ...cacheaside.Movie) *FakeRecordStore {
	s := &FakeRecordStore{movies: make(map[string]cacheaside.Movie, len(movies))}
	for _, m := range movies {
		s.movies[m.ID] = m
	}
	return s
}

// GetMovie looks up a movie by ID. The returned value is a copy.
func (s *FakeRecordStore) GetMovie(_ context.Context, id string) (*cacheaside.Movie, error) {
	s.Reads.Add(1)
	s.mu.RLock()
	m, ok := s.movies[id]
	s.mu.RUnlock()
	if !ok {
		return nil, cacheaside.ErrNotFound
	}
	return &m, nil
}

// UpsertMovie stores a copy of m.
func (s *FakeRecordStore) UpsertMovie(_ context.Context, m *cacheaside.Movie) error {
	s.Writes.Add(1)
	s.mu.Lock()
	s.movies[m.ID] = *m
	s.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (s *FakeRecordStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *FakeRecordStore) Close() error { return nil }
