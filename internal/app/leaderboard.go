package app

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	cacheaside "github.com/eugener/cacheaside/internal"
	"github.com/eugener/cacheaside/internal/cache"
	"github.com/eugener/cacheaside/internal/telemetry"
)

// LeaderboardService accumulates user scores in a single sorted set and
// reports ranks by descending score.
type LeaderboardService struct {
	cache   cache.Store
	key     string
	topMax  int64
	metrics *telemetry.Metrics
}

// NewLeaderboardService returns a LeaderboardService over the sorted set at
// key. Top pages are capped at topMax entries.
func NewLeaderboardService(store cache.Store, key string, topMax int64, metrics *telemetry.Metrics) *LeaderboardService {
	return &LeaderboardService{cache: store, key: key, topMax: topMax, metrics: metrics}
}

// AddScore adds delta to the user's cumulative score and returns the new
// score with the user's one-based rank.
func (s *LeaderboardService) AddScore(ctx context.Context, userID string, delta float64) (*cacheaside.ScoreResult, error) {
	ctx, span := tracer.Start(ctx, "LeaderboardService.AddScore", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.Float64("score.delta", delta),
	))
	defer span.End()

	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", cacheaside.ErrInvalidInput)
	}
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return nil, fmt.Errorf("%w: delta must be finite", cacheaside.ErrInvalidInput)
	}

	member := cacheaside.UserKey(userID)
	var (
		score float64
		rank  int64
		found bool
		err   error
	)
	if r, ok := s.cache.(cache.ScoreRanker); ok {
		score, rank, found, err = r.ZIncrByRank(ctx, s.key, member, delta)
		if err != nil {
			return nil, fmt.Errorf("zincrby %s: %w", member, err)
		}
	} else {
		score, err = s.cache.ZIncrBy(ctx, s.key, member, delta)
		if err != nil {
			return nil, fmt.Errorf("zincrby %s: %w", member, err)
		}
		rank, found, err = s.cache.ZRevRank(ctx, s.key, member)
		if err != nil {
			return nil, fmt.Errorf("zrevrank %s: %w", member, err)
		}
	}
	// Stores that cannot refuse an overflowing increment report it here.
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return nil, fmt.Errorf("zincrby %s: %w", member, cache.ErrScoreOverflow)
	}
	if s.metrics != nil {
		s.metrics.LeaderboardUpdates.Inc()
	}

	res := &cacheaside.ScoreResult{UserID: userID, Score: score}
	if found {
		oneBased := rank + 1
		res.Rank = &oneBased
	}
	return res, nil
}

// Top returns the n highest scores, best first. n is clamped to [1, topMax].
func (s *LeaderboardService) Top(ctx context.Context, n int64) ([]cacheaside.RankedEntry, error) {
	n = max(1, min(n, s.topMax))
	ctx, span := tracer.Start(ctx, "LeaderboardService.Top", trace.WithAttributes(attribute.Int64("top.n", n)))
	defer span.End()

	members, err := s.cache.ZRevRangeWithScores(ctx, s.key, 0, n-1)
	if err != nil {
		return nil, fmt.Errorf("zrevrange %s: %w", s.key, err)
	}

	out := make([]cacheaside.RankedEntry, len(members))
	for i, m := range members {
		out[i] = cacheaside.RankedEntry{
			Member: m.Member,
			UserID: cacheaside.UserIDFromMember(m.Member),
			Score:  m.Score,
			Rank:   int64(i) + 1,
		}
	}
	return out, nil
}
