package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	cacheaside "github.com/eugener/cacheaside/internal"
	"github.com/eugener/cacheaside/internal/storage"
)

// Bootstrap seeds the record store with the configured movies.
// Movies that already exist are left untouched.
func Bootstrap(ctx context.Context, cfg *Config, store storage.RecordStore) error {
	for _, e := range cfg.Movies {
		if e.ID == "" {
			continue
		}
		_, err := store.GetMovie(ctx, e.ID)
		if err == nil {
			continue // already exists, skip
		}
		if !errors.Is(err, cacheaside.ErrNotFound) {
			return fmt.Errorf("lookup movie %s: %w", e.ID, err)
		}
		m := &cacheaside.Movie{ID: e.ID, Title: e.Title, Year: e.Year}
		if err := store.UpsertMovie(ctx, m); err != nil {
			return fmt.Errorf("seed movie %s: %w", e.ID, err)
		}
		slog.Info("bootstrapped movie", "id", m.ID, "title", m.Title)
	}
	return nil
}
