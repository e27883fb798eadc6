// Package app implements the cache-aside services: read-through movies,
// hash-backed profiles, the sorted-set leaderboard, and raw key deletes.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	cacheaside "github.com/eugener/cacheaside/internal"
	"github.com/eugener/cacheaside/internal/cache"
	"github.com/eugener/cacheaside/internal/storage"
	"github.com/eugener/cacheaside/internal/telemetry"
)

var tracer = telemetry.Tracer("github.com/eugener/cacheaside/internal/app")

// MovieService reads movies through the cache and invalidates the cached
// copy on every write. The record store stays the source of truth.
type MovieService struct {
	records storage.RecordStore
	cache   cache.Store
	ttl     time.Duration
	metrics *telemetry.Metrics // nil disables metrics

	loads singleflight.Group
}

// NewMovieService returns a MovieService caching entries for ttl.
func NewMovieService(records storage.RecordStore, store cache.Store, ttl time.Duration, metrics *telemetry.Metrics) *MovieService {
	return &MovieService{records: records, cache: store, ttl: ttl, metrics: metrics}
}

// Get returns the movie with id from the cache, or loads it from the record
// store and populates the cache on a miss. A hit never extends the TTL.
func (s *MovieService) Get(ctx context.Context, id string) (*cacheaside.MovieResult, error) {
	ctx, span := tracer.Start(ctx, "MovieService.Get", trace.WithAttributes(attribute.String("movie.id", id)))
	defer span.End()

	key := cacheaside.MovieKey(id)
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}
	if ok {
		var m cacheaside.Movie
		if err := json.Unmarshal([]byte(raw), &m); err == nil {
			s.hit("movie")
			span.SetAttributes(attribute.String("cache.source", string(cacheaside.SourceCache)))
			return &cacheaside.MovieResult{Source: cacheaside.SourceCache, Data: &m}, nil
		}
		// Corrupt payloads are reloaded and overwritten.
		slog.WarnContext(ctx, "discarding undecodable cache entry", "key", key)
	}
	s.miss("movie")
	span.SetAttributes(attribute.String("cache.source", string(cacheaside.SourceDB)))

	// Concurrent misses share one load. The load is detached from the first
	// caller's cancellation so the others are not failed by it.
	v, err, _ := s.loads.Do(id, func() (any, error) {
		return s.load(context.WithoutCancel(ctx), id, key)
	})
	if err != nil {
		return nil, err
	}
	m := *v.(*cacheaside.Movie)
	return &cacheaside.MovieResult{Source: cacheaside.SourceDB, Data: &m}, nil
}

func (s *MovieService) load(ctx context.Context, id, key string) (*cacheaside.Movie, error) {
	start := time.Now()
	m, err := s.records.GetMovie(ctx, id)
	s.observe("get_movie", start)
	if err != nil {
		return nil, fmt.Errorf("load movie %s: %w", id, err)
	}

	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode movie %s: %w", id, err)
	}
	if err := s.cache.Set(ctx, key, string(data), s.ttl); err != nil {
		return nil, fmt.Errorf("cache set %s: %w", key, err)
	}
	return m, nil
}

// Upsert writes m to the record store and then deletes the cached copy.
func (s *MovieService) Upsert(ctx context.Context, m *cacheaside.Movie) (*cacheaside.Movie, error) {
	ctx, span := tracer.Start(ctx, "MovieService.Upsert", trace.WithAttributes(attribute.String("movie.id", m.ID)))
	defer span.End()

	if m.ID == "" {
		return nil, fmt.Errorf("%w: id is required", cacheaside.ErrInvalidInput)
	}
	if m.Title == "" {
		return nil, fmt.Errorf("%w: title is required", cacheaside.ErrInvalidInput)
	}

	start := time.Now()
	err := s.records.UpsertMovie(ctx, m)
	s.observe("upsert_movie", start)
	if err != nil {
		return nil, fmt.Errorf("upsert movie %s: %w", m.ID, err)
	}

	// A load already in flight may carry the old record; later misses must
	// not join it.
	s.loads.Forget(m.ID)

	key := cacheaside.MovieKey(m.ID)
	if _, err := s.cache.Delete(ctx, key); err != nil {
		return nil, fmt.Errorf("invalidate %s: %w", key, err)
	}
	if s.metrics != nil {
		s.metrics.CacheInvalidations.WithLabelValues("upsert").Inc()
	}

	out := *m
	return &out, nil
}

func (s *MovieService) hit(kind string) {
	if s.metrics != nil {
		s.metrics.CacheHits.WithLabelValues(kind).Inc()
	}
}

func (s *MovieService) miss(kind string) {
	if s.metrics != nil {
		s.metrics.CacheMisses.WithLabelValues(kind).Inc()
	}
}

func (s *MovieService) observe(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordStoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
