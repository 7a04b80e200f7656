package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgSequence allocates per-day request code numbers from the database so
// counters survive restarts and stay unique across instances.
type PgSequence struct {
	pool *pgxpool.Pool
}

// NewPgSequence creates a database-backed day sequence.
func NewPgSequence(pool *pgxpool.Pool) *PgSequence {
	return &PgSequence{pool: pool}
}

// NextForDay atomically increments and returns the counter for the given day.
func (s *PgSequence) NextForDay(ctx context.Context, day string) (int, error) {
	query := `
		INSERT INTO request_code_sequences (day, counter)
		VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET counter = request_code_sequences.counter + 1
		RETURNING counter`

	var counter int
	if err := s.pool.QueryRow(ctx, query, day).Scan(&counter); err != nil {
		return 0, fmt.Errorf("next request code for day %s: %w", day, err)
	}
	return counter, nil
}
