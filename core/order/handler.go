package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/atelierco/storefront/api/web"
	"github.com/atelierco/storefront/api/weberr"
	"github.com/atelierco/storefront/database"
	"github.com/atelierco/storefront/validate"
	"github.com/jmoiron/sqlx"
)

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		ords, err := List(ctx, db)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, ords, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		orderID := web.Param(r, "id")
		if err := validate.CheckID(orderID); err != nil {
			return weberr.BadRequest(err)
		}

		ord, err := Fetch(ctx, db, orderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}
		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}

func HandleUpdateStatus(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		orderID := web.Param(r, "id")
		if err := validate.CheckID(orderID); err != nil {
			return weberr.BadRequest(err)
		}

		var up StatusUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding status update: %w", err))
		}
		if fields := validate.Fields(up); fields != nil {
			return weberr.InvalidFields("invalid status update", fields)
		}

		ord, err := Fetch(ctx, db, orderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		if !ord.Status.CanTransition(up.Status) {
			err := fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ord.Status, up.Status)
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			return UpdateStatus(ctx, tx, orderID, ord.Status, up.Status)
		})
		if err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				// Lost a race with a concurrent update; the client should
				// re-read and decide again.
				return weberr.NewError(err, "order status changed concurrently", http.StatusConflict)
			}
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleSetTracking(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		orderID := web.Param(r, "id")
		if err := validate.CheckID(orderID); err != nil {
			return weberr.BadRequest(err)
		}

		var up TrackingUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding tracking update: %w", err))
		}
		if fields := validate.Fields(up); fields != nil {
			return weberr.InvalidFields("invalid tracking update", fields)
		}

		err := database.Transaction(db, func(tx sqlx.ExtContext) error {
			return SetTracking(ctx, tx, orderID, up.TrackingNumber)
		})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandleRefund records a provider-side refund. Reversing the charge itself
// happens in the provider dashboard; this keeps the local payment state
// machine in step.
func HandleRefund(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		orderID := web.Param(r, "id")
		if err := validate.CheckID(orderID); err != nil {
			return weberr.BadRequest(err)
		}

		err := database.Transaction(db, func(tx sqlx.ExtContext) error {
			return UpdatePaymentStatus(ctx, tx, orderID, PaymentPaid, PaymentRefunded)
		})
		if err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				err := errors.New("only a paid order can be refunded")
				return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
			}
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
