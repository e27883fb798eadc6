package sqlite

import (
	"context"

	cacheaside "github.com/eugener/cacheaside/internal"
)

// GetMovie retrieves a movie by ID.
func (s *Store) GetMovie(ctx context.Context, id string) (*cacheaside.Movie, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT id, title, year FROM movies WHERE id=?`, id,
	)
	return scanMovie(row)
}

// UpsertMovie inserts a movie or replaces the one with the same ID.
func (s *Store) UpsertMovie(ctx context.Context, m *cacheaside.Movie) error {
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO movies (id, title, year) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title=excluded.title,
		   year=excluded.year,
		   updated_at=strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`,
		m.ID, m.Title, m.Year,
	)
	return err
}

// CountMovies returns the number of stored movies.
func (s *Store) CountMovies(ctx context.Context) (int, error) {
	var n int
	err := s.read.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies`).Scan(&n)
	return n, err
}

func scanMovie(s scanner) (*cacheaside.Movie, error) {
	var m cacheaside.Movie
	if err := s.Scan(&m.ID, &m.Title, &m.Year); err != nil {
		return nil, notFoundErr(err)
	}
	return &m, nil
}
