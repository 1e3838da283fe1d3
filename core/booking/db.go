package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Create inserts the booking. The unique session index makes duplicate
// webhook commits fail here and roll the whole commit back.
func Create(ctx context.Context, tx sqlx.ExtContext, b Booking) error {
	if b.UserID == nil && b.GuestEmail == nil {
		return ErrNoContact
	}

	const q = `
	INSERT INTO training_bookings
		(booking_id, training_id, name, email, phone, experience, requirements,
		 user_id, guest_email, session_id, amount, full_amount, payment_type,
		 payment_status, status, created_at, updated_at)
	VALUES
		(:booking_id, :training_id, :name, :email, :phone, :experience, :requirements,
		 :user_id, :guest_email, :session_id, :amount, :full_amount, :payment_type,
		 :payment_status, :status, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, tx, q, b); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateSession
		}
		return fmt.Errorf("inserting booking[%s]: %w", b.ID, err)
	}
	return nil
}

func Fetch(ctx context.Context, db *sqlx.DB, bookingID string) (Booking, error) {
	const q = `SELECT * FROM training_bookings WHERE booking_id = $1`

	var b Booking
	if err := db.GetContext(ctx, &b, q, bookingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, fmt.Errorf("selecting booking[%s]: %w", bookingID, err)
	}
	return b, nil
}

func FetchBySessionID(ctx context.Context, db *sqlx.DB, sessionID string) (Booking, error) {
	const q = `SELECT * FROM training_bookings WHERE session_id = $1`

	var b Booking
	if err := db.GetContext(ctx, &b, q, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, fmt.Errorf("selecting booking bound to session[%s]: %w", sessionID, err)
	}
	return b, nil
}

func List(ctx context.Context, db *sqlx.DB) ([]Booking, error) {
	const q = `SELECT * FROM training_bookings ORDER BY created_at DESC`

	bs := []Booking{}
	if err := db.SelectContext(ctx, &bs, q); err != nil {
		return nil, fmt.Errorf("selecting bookings: %w", err)
	}
	return bs, nil
}

// Cancel flips the booking to cancelled, guarded against double cancels so
// the seat is released exactly once.
func Cancel(ctx context.Context, tx sqlx.ExtContext, bookingID string) error {
	const q = `
	UPDATE training_bookings SET status = $1, updated_at = now()
	WHERE booking_id = $2 AND status <> $1`

	res, err := tx.ExecContext(ctx, q, Cancelled, bookingID)
	if err != nil {
		return fmt.Errorf("cancelling booking[%s]: %w", bookingID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
