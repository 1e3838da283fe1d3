package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/atelierco/storefront/api/background"
	"github.com/atelierco/storefront/api/web"
	"github.com/atelierco/storefront/api/weberr"
	"github.com/atelierco/storefront/config"
	"github.com/atelierco/storefront/core/booking"
	"github.com/atelierco/storefront/core/order"
	"github.com/atelierco/storefront/core/product"
	"github.com/atelierco/storefront/core/training"
	"github.com/atelierco/storefront/database"
	"github.com/atelierco/storefront/metrics"
	"github.com/atelierco/storefront/random"
	"github.com/atelierco/storefront/validate"
	"github.com/jmoiron/sqlx"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
)

// HandleWebhook reconciles the provider's asynchronous payment events.
// The contract with the provider: a 2xx is sent only after the commit is
// durable, anything else makes it retry, and an unverifiable signature is
// a 4xx, never a retry case.
func HandleWebhook(db *sqlx.DB, cfg config.Stripe, bg *background.Background, mailer Mailer, m *metrics.Metrics) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			return weberr.BadRequest(errors.New("received stripe event is not signed"))
		}

		event, err := webhook.ConstructEvent(b, sig, cfg.WebhookSecret)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot construct stripe event: %w", err))
		}

		switch event.Type {
		case "checkout.session.completed":
			var session stripe.CheckoutSession
			if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
				return weberr.BadRequest(fmt.Errorf("unable to decode stripe event: %w", err))
			}
			if session.Mode != stripe.CheckoutSessionModePayment {
				return web.Respond(ctx, w, nil, http.StatusNoContent)
			}

			if err := commit(ctx, db, bg, mailer, m, &session); err != nil {
				m.Webhook(ctx, string(event.Type), "error")
				// Non-2xx engages the provider's retry schedule.
				return fmt.Errorf("the session was payed but its commit failed: %w", err)
			}
			m.Webhook(ctx, string(event.Type), "committed")

		case "checkout.session.async_payment_failed":
			var session stripe.CheckoutSession
			if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
				return weberr.BadRequest(fmt.Errorf("unable to decode stripe event: %w", err))
			}

			if err := markFailed(ctx, db, session.ID); err != nil {
				m.Webhook(ctx, string(event.Type), "error")
				return fmt.Errorf("marking session[%s] failed: %w", session.ID, err)
			}
			m.Webhook(ctx, string(event.Type), "recorded")

		default:
			m.Webhook(ctx, string(event.Type), "ignored")
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// commit turns a paid session into an order or booking exactly once.
// The lookup below is a fast path for sequential redelivery; concurrent
// duplicates are caught by the unique index on the session id, which also
// rolls back their stock adjustments.
func commit(ctx context.Context, db *sqlx.DB, bg *background.Background, mailer Mailer, m *metrics.Metrics, session *stripe.CheckoutSession) error {
	if _, err := order.FetchBySessionID(ctx, db, session.ID); err == nil {
		return nil
	} else if !errors.Is(err, order.ErrNotFound) {
		return err
	}
	if _, err := booking.FetchBySessionID(ctx, db, session.ID); err == nil {
		return nil
	} else if !errors.Is(err, booking.ErrNotFound) {
		return err
	}

	kind, raw, err := decodeMetadata(session.Metadata)
	if err != nil {
		// Not a session this service built. Acknowledge so the provider
		// stops retrying an event we will never be able to process.
		m.Webhook(ctx, "checkout.session.completed", "unrecognized")
		return nil
	}

	switch kind {
	case kindOrder:
		return commitOrder(ctx, db, bg, mailer, m, session.ID, raw)
	case kindBooking:
		return commitBooking(ctx, db, bg, mailer, m, session.ID, raw)
	}
	return nil
}

func commitOrder(ctx context.Context, db *sqlx.DB, bg *background.Background, mailer Mailer, m *metrics.Metrics, sessionID string, raw []byte) error {
	var p orderPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return weberr.BadRequest(fmt.Errorf("unmarshalling order payload of session[%s]: %w", sessionID, err))
	}

	ref, err := random.Reference(10)
	if err != nil {
		return fmt.Errorf("generating order reference: %w", err)
	}

	now := time.Now().UTC()
	ord := order.Order{
		ID:            validate.GenerateID(),
		Reference:     ref,
		UserID:        p.UserID,
		Email:         p.Email,
		SessionID:     sessionID,
		Address:       p.Address,
		Status:        order.Pending,
		PaymentStatus: order.PaymentPaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, it := range p.Items {
		ord.Total += it.UnitPrice * int64(it.Quantity)
	}

	var flagged bool
	err = database.Transaction(db, func(tx sqlx.ExtContext) error {
		// Stock first: if the insert below hits the duplicate-session
		// constraint the rollback undoes these decrements too, so a
		// redelivered webhook never drains stock twice.
		for _, it := range p.Items {
			short, err := product.DecrementStock(ctx, tx, it.Selections, it.Quantity)
			if err != nil {
				return err
			}
			if short {
				// Sold out between check and commit. Payment is captured,
				// so the order goes through flagged for manual review.
				flagged = true
			}
		}

		ord.FulfillmentFlagged = flagged
		if err := order.Create(ctx, tx, ord); err != nil {
			return err
		}

		for _, it := range toOrderItems(ord.ID, p.Items) {
			it.CreatedAt = now
			if err := order.CreateItem(ctx, tx, it); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, order.ErrDuplicateSession) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("creating the order bound to session[%s]: %w", sessionID, err)
	}

	m.OrdersCreated.Add(ctx, 1)
	m.Revenue.Add(ctx, ord.Total)
	if flagged {
		m.OversellFlagged.Add(ctx, 1)
	}

	bg.Add("order-confirmation", func() error {
		return mailer.OrderConfirmation(ord.Email, ord.Reference, ord.Total)
	})
	return nil
}

func commitBooking(ctx context.Context, db *sqlx.DB, bg *background.Background, mailer Mailer, m *metrics.Metrics, sessionID string, raw []byte) error {
	var p bookingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return weberr.BadRequest(fmt.Errorf("unmarshalling booking payload of session[%s]: %w", sessionID, err))
	}

	now := time.Now().UTC()
	b := booking.Booking{
		ID:            validate.GenerateID(),
		TrainingID:    p.TrainingID,
		Name:          p.Name,
		Email:         p.Email,
		Phone:         p.Phone,
		Experience:    p.Experience,
		Requirements:  p.Requirements,
		UserID:        p.UserID,
		GuestEmail:    p.GuestEmail,
		SessionID:     sessionID,
		Amount:        p.Amount,
		FullAmount:    p.FullAmount,
		PaymentType:   booking.PaymentType(p.PaymentType),
		PaymentStatus: order.PaymentPaid,
		Status:        booking.Confirmed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var full bool
	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		if err := training.IncrementParticipants(ctx, tx, p.TrainingID); err != nil {
			if !errors.Is(err, training.ErrFull) {
				return err
			}
			// Seat sold out after payment. Same policy as stock oversell:
			// keep the money, park the booking for ops.
			full = true
		}

		if full {
			b.Status = booking.PendingApproval
		}
		return booking.Create(ctx, tx, b)
	})
	if errors.Is(err, booking.ErrDuplicateSession) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("creating the booking bound to session[%s]: %w", sessionID, err)
	}

	m.BookingsCreated.Add(ctx, 1)
	m.Revenue.Add(ctx, b.Amount)
	if full {
		m.OversellFlagged.Add(ctx, 1)
	}

	bg.Add("booking-confirmation", func() error {
		return mailer.BookingConfirmation(b.Email, p.TrainingTitle, b.Amount)
	})
	return nil
}

// markFailed records a failed payment on orders that already exist
// locally (the PayPal path creates them before capture). Sessions without
// a local row simply never become orders.
func markFailed(ctx context.Context, db *sqlx.DB, sessionID string) error {
	ord, err := order.FetchBySessionID(ctx, db, sessionID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return nil
		}
		return err
	}

	if ord.PaymentStatus != order.PaymentPending {
		return nil
	}

	err = database.Transaction(db, func(tx sqlx.ExtContext) error {
		return order.UpdatePaymentStatus(ctx, tx, ord.ID, order.PaymentPending, order.PaymentFailed)
	})
	if errors.Is(err, order.ErrInvalidTransition) {
		return nil
	}
	return err
}
