package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Create inserts the order row. A second insert for the same session id
// trips the unique index and comes back as ErrDuplicateSession; that
// constraint, not any pre-check, is what makes the webhook commit
// idempotent under concurrent delivery.
func Create(ctx context.Context, tx sqlx.ExtContext, ord Order) error {
	const q = `
	INSERT INTO orders
		(order_id, reference, user_id, email, session_id,
		 ship_name, ship_line1, ship_line2, ship_city, ship_postal_code, ship_country,
		 total, status, payment_status, fulfillment_flagged, created_at, updated_at)
	VALUES
		(:order_id, :reference, :user_id, :email, :session_id,
		 :ship_name, :ship_line1, :ship_line2, :ship_city, :ship_postal_code, :ship_country,
		 :total, :status, :payment_status, :fulfillment_flagged, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, tx, q, ord); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateSession
		}
		return fmt.Errorf("inserting order[%s]: %w", ord.ID, err)
	}
	return nil
}

func CreateItem(ctx context.Context, tx sqlx.ExtContext, it Item) error {
	const q = `
	INSERT INTO order_items
		(order_id, product_id, product_name, selections, quantity, unit_price, created_at)
	VALUES
		(:order_id, :product_id, :product_name, :selections, :quantity, :unit_price, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, tx, q, it); err != nil {
		return fmt.Errorf("inserting order item[%s/%s]: %w", it.OrderID, it.ProductID, err)
	}
	return nil
}

func Fetch(ctx context.Context, db *sqlx.DB, orderID string) (Order, error) {
	const q = `SELECT * FROM orders WHERE order_id = $1`

	var ord Order
	if err := db.GetContext(ctx, &ord, q, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("selecting order[%s]: %w", orderID, err)
	}

	if err := loadItems(ctx, db, &ord); err != nil {
		return Order{}, err
	}
	return ord, nil
}

func FetchBySessionID(ctx context.Context, db *sqlx.DB, sessionID string) (Order, error) {
	const q = `SELECT * FROM orders WHERE session_id = $1`

	var ord Order
	if err := db.GetContext(ctx, &ord, q, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("selecting order bound to session[%s]: %w", sessionID, err)
	}

	if err := loadItems(ctx, db, &ord); err != nil {
		return Order{}, err
	}
	return ord, nil
}

func List(ctx context.Context, db *sqlx.DB) ([]Order, error) {
	const q = `SELECT * FROM orders ORDER BY created_at DESC`

	ords := []Order{}
	if err := db.SelectContext(ctx, &ords, q); err != nil {
		return nil, fmt.Errorf("selecting orders: %w", err)
	}
	return ords, nil
}

func loadItems(ctx context.Context, db *sqlx.DB, ord *Order) error {
	const q = `SELECT * FROM order_items WHERE order_id = $1`

	items := []Item{}
	if err := db.SelectContext(ctx, &items, q, ord.ID); err != nil {
		return fmt.Errorf("selecting items of order[%s]: %w", ord.ID, err)
	}
	ord.Items = items
	return nil
}

// UpdateStatus moves the fulfillment status, guarded by the expected
// current value so concurrent admin updates cannot skip states.
func UpdateStatus(ctx context.Context, tx sqlx.ExtContext, orderID string, from, to Status) error {
	const q = `
	UPDATE orders SET status = $1, updated_at = now()
	WHERE order_id = $2 AND status = $3`

	res, err := tx.ExecContext(ctx, q, to, orderID, from)
	if err != nil {
		return fmt.Errorf("updating status of order[%s]: %w", orderID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// UpdatePaymentStatus is guarded the same way. The pending→paid guard is
// what keeps the PayPal capture path exactly-once: the second capture sees
// zero rows and skips the stock decrement.
func UpdatePaymentStatus(ctx context.Context, tx sqlx.ExtContext, orderID string, from, to PaymentStatus) error {
	const q = `
	UPDATE orders SET payment_status = $1, updated_at = now()
	WHERE order_id = $2 AND payment_status = $3`

	res, err := tx.ExecContext(ctx, q, to, orderID, from)
	if err != nil {
		return fmt.Errorf("updating payment status of order[%s]: %w", orderID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func SetTracking(ctx context.Context, tx sqlx.ExtContext, orderID string, trackingNumber string) error {
	const q = `
	UPDATE orders SET tracking_number = $1, updated_at = now()
	WHERE order_id = $2`

	res, err := tx.ExecContext(ctx, q, trackingNumber, orderID)
	if err != nil {
		return fmt.Errorf("setting tracking of order[%s]: %w", orderID, err)
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

func SetFulfillmentFlag(ctx context.Context, tx sqlx.ExtContext, orderID string) error {
	const q = `
	UPDATE orders SET fulfillment_flagged = TRUE, updated_at = now()
	WHERE order_id = $1`

	if _, err := tx.ExecContext(ctx, q, orderID); err != nil {
		return fmt.Errorf("flagging order[%s]: %w", orderID, err)
	}
	return nil
}
