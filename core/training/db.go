package training

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func Fetch(ctx context.Context, db *sqlx.DB, trainingID string) (Training, error) {
	const q = `SELECT * FROM trainings WHERE training_id = $1`

	var t Training
	if err := db.GetContext(ctx, &t, q, trainingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Training{}, ErrNotFound
		}
		return Training{}, fmt.Errorf("selecting training[%s]: %w", trainingID, err)
	}
	return t, nil
}

func FetchBySlug(ctx context.Context, db *sqlx.DB, slug string) (Training, error) {
	const q = `SELECT * FROM trainings WHERE slug = $1`

	var t Training
	if err := db.GetContext(ctx, &t, q, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Training{}, ErrNotFound
		}
		return Training{}, fmt.Errorf("selecting training[slug=%s]: %w", slug, err)
	}
	return t, nil
}

func ListPublished(ctx context.Context, db *sqlx.DB) ([]Training, error) {
	const q = `SELECT * FROM trainings WHERE status = 'published' ORDER BY date`

	ts := []Training{}
	if err := db.SelectContext(ctx, &ts, q); err != nil {
		return nil, fmt.Errorf("selecting trainings: %w", err)
	}
	return ts, nil
}

// IncrementParticipants takes one seat, but only while seats remain. Seat
// counts are mutated through this guard and DecrementParticipants alone,
// never through a general update.
func IncrementParticipants(ctx context.Context, tx sqlx.ExtContext, trainingID string) error {
	const q = `
	UPDATE trainings SET
		current_participants = current_participants + 1,
		updated_at = now()
	WHERE training_id = $1 AND current_participants < max_participants`

	res, err := tx.ExecContext(ctx, q, trainingID)
	if err != nil {
		return fmt.Errorf("incrementing participants of training[%s]: %w", trainingID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return ErrFull
	}
	return nil
}

// DecrementParticipants releases a seat after a booking cancellation.
func DecrementParticipants(ctx context.Context, tx sqlx.ExtContext, trainingID string) error {
	const q = `
	UPDATE trainings SET
		current_participants = current_participants - 1,
		updated_at = now()
	WHERE training_id = $1 AND current_participants > 0`

	if _, err := tx.ExecContext(ctx, q, trainingID); err != nil {
		return fmt.Errorf("decrementing participants of training[%s]: %w", trainingID, err)
	}
	return nil
}
