package app

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/eugener/cacheaside/internal/cache"
	"github.com/eugener/cacheaside/internal/telemetry"
)

func newTestCache(t *testing.T) *cache.Memory {
	t.Helper()
	m, err := cache.NewMemory(1000)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func newTestMetrics(t *testing.T) *telemetry.Metrics {
	t.Helper()
	return telemetry.NewMetrics(prometheus.NewPedanticRegistry())
}

// plainStore hides optional interfaces such as cache.ScoreRanker.
type plainStore struct {
	cache.Store
}

func counterValue(c prometheus.Collector) float64 {
	return promtestutil.ToFloat64(c)
}
