package testutil

import (
	"context"
	"fmt"
	"time"

	cacheaside "github.com/eugener/cacheaside/internal"
	"github.com/eugener/cacheaside/internal/cache"
)

var errDown = fmt.Errorf("fake cache: %w", cacheaside.ErrStoreUnavailable)

// DownCache is a cache.Store whose every call fails as if the server were unreachable.
type DownCache struct{}

func (DownCache) Get(context.Context, string) (string, bool, error)           { return "", false, errDown }
func (DownCache) Set(context.Context, string, string, time.Duration) error    { return errDown }
func (DownCache) Delete(context.Context, string) (int64, error)               { return 0, errDown }
func (DownCache) HSet(context.Context, string, map[string]string) error       { return errDown }
func (DownCache) HGetAll(context.Context, string) (map[string]string, error)  { return nil, errDown }
func (DownCache) Expire(context.Context, string, time.Duration) (bool, error) { return false, errDown }
func (DownCache) TTL(context.Context, string) (time.Duration, error)          { return 0, errDown }
func (DownCache) ZIncrBy(context.Context, string, string, float64) (float64, error) {
	return 0, errDown
}
func (DownCache) ZRevRank(context.Context, string, string) (int64, bool, error) {
	return 0, false, errDown
}
func (DownCache) ZRevRangeWithScores(context.Context, string, int64, int64) ([]cache.ScoredMember, error) {
	return nil, errDown
}
func (DownCache) Ping(context.Context) error { return errDown }
func (DownCache) Close() error               { return nil }
