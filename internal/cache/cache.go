// Package cache provides the key-value store that fronts the record store:
// strings with expiry, hashes, and sorted sets.
package cache

import (
	"context"
	"fmt"
	"time"

	cacheaside "github.com/eugener/cacheaside/internal"
)

// ErrScoreOverflow is returned when an increment would leave a sorted-set
// score infinite or NaN. The increment is not applied.
var ErrScoreOverflow = fmt.Errorf("%w: score would overflow", cacheaside.ErrInvalidInput)

// TTL sentinels returned by Store.TTL, matching Redis TTL replies.
const (
	TTLNoExpiry time.Duration = -1 // key exists without an expiry
	TTLMissing  time.Duration = -2 // key does not exist
)

// Store is the key-value store contract used by the services.
// Every method is a single atomic store operation.
type Store interface {
	// Get returns the string at key; ok is false when the key is absent.
	Get(ctx context.Context, key string) (val string, ok bool, err error)
	// Set stores a string. ttl <= 0 stores it without expiry.
	Set(ctx context.Context, key, val string, ttl time.Duration) error
	// Delete removes key of any type and reports how many keys were removed.
	Delete(ctx context.Context, key string) (int64, error)

	// HSet merges fields into the hash at key, creating it if needed.
	// An existing expiry is left untouched.
	HSet(ctx context.Context, key string, fields map[string]string) error
	// HGetAll returns every field of the hash; an absent key yields an empty map.
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// Expire sets the expiry of an existing key. It reports false when the key is absent.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// TTL returns the remaining time to live, or TTLNoExpiry / TTLMissing.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// ZIncrBy adds delta to member's score, creating the member at delta.
	ZIncrBy(ctx context.Context, key, member string, delta float64) (float64, error)
	// ZRevRank returns member's zero-based rank by descending score.
	ZRevRank(ctx context.Context, key, member string) (rank int64, ok bool, err error)
	// ZRevRangeWithScores returns members between start and stop (inclusive,
	// negative indexes count from the end) by descending score.
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)

	// Ping verifies connectivity.
	Ping(ctx context.Context) error
	// Close releases resources.
	Close() error
}

// ScoreRanker is an optional interface for stores that can increment a
// member and read its descending rank as one atomic operation. Checked via
// type assertion. Increments that would overflow fail with ErrScoreOverflow
// and leave the score unchanged.
type ScoreRanker interface {
	ZIncrByRank(ctx context.Context, key, member string, delta float64) (score float64, rank int64, ok bool, err error)
}

// ScoredMember is a sorted-set member with its score.
type ScoredMember struct {
	Member string
	Score  float64
}
