package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	cacheaside "github.com/eugener/cacheaside/internal"
	"github.com/eugener/cacheaside/internal/cache"
	"github.com/eugener/cacheaside/internal/telemetry"
)

// KeyService deletes arbitrary cache keys. Any key of any type may be
// removed, including the leaderboard.
type KeyService struct {
	cache   cache.Store
	metrics *telemetry.Metrics
}

// NewKeyService returns a KeyService over store.
func NewKeyService(store cache.Store, metrics *telemetry.Metrics) *KeyService {
	return &KeyService{cache: store, metrics: metrics}
}

// Delete removes key and reports how many keys were removed (0 or 1).
func (s *KeyService) Delete(ctx context.Context, key string) (int64, error) {
	ctx, span := tracer.Start(ctx, "KeyService.Delete", trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	if key == "" {
		return 0, fmt.Errorf("%w: key is required", cacheaside.ErrBadRequest)
	}
	n, err := s.cache.Delete(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", key, err)
	}
	if n > 0 && s.metrics != nil {
		s.metrics.CacheInvalidations.WithLabelValues("manual").Inc()
	}
	return n, nil
}
