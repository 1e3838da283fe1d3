package booking

import (
	"context"
	"errors"
	"net/http"

	"github.com/atelierco/storefront/api/web"
	"github.com/atelierco/storefront/api/weberr"
	"github.com/atelierco/storefront/core/training"
	"github.com/atelierco/storefront/database"
	"github.com/atelierco/storefront/validate"
	"github.com/jmoiron/sqlx"
)

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		bs, err := List(ctx, db)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, bs, http.StatusOK)
	}
}

// HandleCancel cancels a booking and releases its seat.
func HandleCancel(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		bookingID := web.Param(r, "id")
		if err := validate.CheckID(bookingID); err != nil {
			return weberr.BadRequest(err)
		}

		b, err := Fetch(ctx, db, bookingID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			if err := Cancel(ctx, tx, bookingID); err != nil {
				return err
			}
			// Seats held by pending-approval bookings were never taken.
			if b.Status == Confirmed {
				return training.DecrementParticipants(ctx, tx, b.TrainingID)
			}
			return nil
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
