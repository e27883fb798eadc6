// Package storage defines the authoritative record store for movies.
package storage

import (
	"context"
	"time"

	cacheaside "github.com/eugener/cacheaside/internal"
)

// RecordStore is the source of truth for movie records.
type RecordStore interface {
	// GetMovie returns the movie with id, or cacheaside.ErrNotFound.
	GetMovie(ctx context.Context, id string) (*cacheaside.Movie, error)
	// UpsertMovie inserts or replaces the movie keyed by m.ID.
	UpsertMovie(ctx context.Context, m *cacheaside.Movie) error
	Ping(ctx context.Context) error
	Close() error
}

// latencyStore delays every call to simulate a slow database.
type latencyStore struct {
	RecordStore
	read, write time.Duration
}

// WithLatency wraps rs so reads sleep for read and writes for write before
// reaching rs. Zero durations skip the delay.
func WithLatency(rs RecordStore, read, write time.Duration) RecordStore {
	if read <= 0 && write <= 0 {
		return rs
	}
	return &latencyStore{RecordStore: rs, read: read, write: write}
}

func (s *latencyStore) GetMovie(ctx context.Context, id string) (*cacheaside.Movie, error) {
	if err := sleep(ctx, s.read); err != nil {
		return nil, err
	}
	return s.RecordStore.GetMovie(ctx, id)
}

func (s *latencyStore) UpsertMovie(ctx context.Context, m *cacheaside.Movie) error {
	if err := sleep(ctx, s.write); err != nil {
		return err
	}
	return s.RecordStore.UpsertMovie(ctx, m)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
