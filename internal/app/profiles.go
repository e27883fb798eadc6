package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	cacheaside "github.com/eugener/cacheaside/internal"
	"github.com/eugener/cacheaside/internal/cache"
	"github.com/eugener/cacheaside/internal/telemetry"
)

// ProfileService stores user profiles as flat hashes. Writes merge fields
// and restart the TTL; reads leave the TTL alone.
type ProfileService struct {
	cache   cache.Store
	ttl     time.Duration
	metrics *telemetry.Metrics
}

// NewProfileService returns a ProfileService whose writes reset the TTL to ttl.
func NewProfileService(store cache.Store, ttl time.Duration, metrics *telemetry.Metrics) *ProfileService {
	return &ProfileService{cache: store, ttl: ttl, metrics: metrics}
}

// Patch merges fields into the profile for id and returns the full profile.
// Later duplicates of a field name win.
func (s *ProfileService) Patch(ctx context.Context, id string, fields []cacheaside.Field) (*cacheaside.Profile, error) {
	ctx, span := tracer.Start(ctx, "ProfileService.Patch", trace.WithAttributes(
		attribute.String("user.id", id),
		attribute.Int("profile.fields", len(fields)),
	))
	defer span.End()

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: patch has no fields", cacheaside.ErrBadRequest)
	}

	encoded := make(map[string]string, len(fields))
	for _, f := range fields {
		encoded[f.Name] = f.Value.Encode()
	}

	key := cacheaside.UserKey(id)
	if err := s.cache.HSet(ctx, key, encoded); err != nil {
		return nil, fmt.Errorf("hset %s: %w", key, err)
	}
	if _, err := s.cache.Expire(ctx, key, s.ttl); err != nil {
		return nil, fmt.Errorf("expire %s: %w", key, err)
	}
	return s.read(ctx, key)
}

// Get returns the profile for id without touching its TTL.
func (s *ProfileService) Get(ctx context.Context, id string) (*cacheaside.Profile, error) {
	ctx, span := tracer.Start(ctx, "ProfileService.Get", trace.WithAttributes(attribute.String("user.id", id)))
	defer span.End()

	p, err := s.read(ctx, cacheaside.UserKey(id))
	if s.metrics != nil {
		switch {
		case err == nil:
			s.metrics.CacheHits.WithLabelValues("profile").Inc()
		case errors.Is(err, cacheaside.ErrNotFound):
			s.metrics.CacheMisses.WithLabelValues("profile").Inc()
		}
	}
	return p, err
}

func (s *ProfileService) read(ctx context.Context, key string) (*cacheaside.Profile, error) {
	raw, err := s.cache.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("profile %s: %w", key, cacheaside.ErrNotFound)
	}

	ttl, err := s.cache.TTL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("ttl %s: %w", key, err)
	}

	data := make(map[string]cacheaside.FieldValue, len(raw))
	for name, v := range raw {
		data[name] = cacheaside.DecodeField(v)
	}
	return &cacheaside.Profile{Key: key, Data: data, TTLSeconds: ttlSeconds(ttl)}, nil
}

// ttlSeconds converts a store TTL to whole seconds, passing the -1 and -2
// sentinels through unchanged.
func ttlSeconds(d time.Duration) int64 {
	switch d {
	case cache.TTLNoExpiry:
		return -1
	case cache.TTLMissing:
		return -2
	}
	return int64(math.Round(d.Seconds()))
}
