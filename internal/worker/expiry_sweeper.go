package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sweeper removes expired keys and reports how many it removed.
type Sweeper interface {
	Sweep() int
}

// ExpirySweeper periodically purges expired keys from the in-memory cache
// store. Reads already ignore expired keys; the sweep reclaims their memory.
type ExpirySweeper struct {
	store    Sweeper
	interval time.Duration
	swept    prometheus.Counter // nil = not counted
}

// NewExpirySweeper creates an ExpirySweeper running every interval.
func NewExpirySweeper(store Sweeper, interval time.Duration, swept prometheus.Counter) *ExpirySweeper {
	return &ExpirySweeper{store: store, interval: interval, swept: swept}
}

// Run sweeps on every tick until ctx is cancelled.
func (w *ExpirySweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *ExpirySweeper) sweep(ctx context.Context) {
	n := w.store.Sweep()
	if n == 0 {
		return
	}
	if w.swept != nil {
		w.swept.Add(float64(n))
	}
	slog.LogAttrs(ctx, slog.LevelDebug, "expired keys swept",
		slog.Int("count", n),
	)
}
