package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RatingRepository handles per-user game ratings.
type RatingRepository struct {
	pool *pgxpool.Pool
}

// NewRatingRepository creates a new RatingRepository instance.
func NewRatingRepository(pool *pgxpool.Pool) *RatingRepository {
	return &RatingRepository{pool: pool}
}

// Upsert records a user's rating for a game. Re-rating replaces the
// previous value; one vote per (user, game).
func (r *RatingRepository) Upsert(ctx context.Context, userID, gameID int64, rating int) error {
	const query = `
		INSERT INTO ratings (user_id, game_id, rating, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, game_id) DO UPDATE
		SET rating = EXCLUDED.rating, updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, userID, gameID, rating); err != nil {
		return fmt.Errorf("failed to upsert rating: %w", err)
	}
	return nil
}

// Average returns a game's mean rating and the number of votes.
func (r *RatingRepository) Average(ctx context.Context, gameID int64) (avg float64, votes int, err error) {
	const query = `
		SELECT COALESCE(AVG(rating), 0), COUNT(*)
		FROM ratings
		WHERE game_id = $1`

	if err := r.pool.QueryRow(ctx, query, gameID).Scan(&avg, &votes); err != nil {
		return 0, 0, fmt.Errorf("failed to get rating average: %w", err)
	}
	return avg, votes, nil
}
