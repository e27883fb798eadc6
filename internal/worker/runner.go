package worker

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Runner manages a set of workers, cancelling all on first error.
type Runner struct {
	workers []Worker
}

// NewRunner creates a Runner with the given workers.
func NewRunner(workers ...Worker) *Runner {
	return &Runner{workers: workers}
}

// Run starts all workers in parallel and blocks until they all return.
// The first failure cancels the others; its error is returned tagged with
// the failing worker's name.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range r.workers {
		name := workerName(w)
		slog.Info("worker started", "type", name)
		g.Go(func() error {
			err := w.Run(ctx)
			if err != nil {
				slog.LogAttrs(ctx, slog.LevelError, "worker failed",
					slog.String("type", name),
					slog.String("error", err.Error()),
				)
				return fmt.Errorf("%s: %w", name, err)
			}
			slog.Info("worker stopped", "type", name)
			return nil
		})
	}
	return g.Wait()
}

func workerName(w Worker) string {
	switch w.(type) {
	case *ExpirySweeper:
		return "expiry_sweeper"
	case *DNSRefresher:
		return "dns_refresher"
	default:
		return "unknown"
	}
}
