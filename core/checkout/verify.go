package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/atelierco/storefront/api/web"
	"github.com/atelierco/storefront/api/weberr"
	"github.com/atelierco/storefront/core/booking"
	"github.com/atelierco/storefront/core/order"
	"github.com/jmoiron/sqlx"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

// Session ids are provider-issued opaque tokens; the shape check below
// only guards against garbage reaching the provider API.
var sessionIDRe = regexp.MustCompile(`^cs_(test_|live_)?[A-Za-z0-9]{10,}$`)

// VerifyResponse is what the success page polls on. Status is one of
// "paid", "processing" and "unpaid": processing means the provider says
// paid but the webhook has not landed yet, so the client should poll again.
type VerifyResponse struct {
	Status         string           `json:"status"`
	ProviderStatus string           `json:"providerStatus,omitempty"`
	Order          *order.Order     `json:"order,omitempty"`
	Booking        *booking.Booking `json:"booking,omitempty"`
}

// HandleVerify answers the success page redirect. It trusts the provider
// for the payment fact and the local database for the commit fact, and
// never creates anything itself: creation is the webhook's job.
func HandleVerify(db *sqlx.DB, strp *stripecl.API) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.QueryParam(r, "session_id")
		if !sessionIDRe.MatchString(id) {
			return weberr.BadRequest(fmt.Errorf("malformed session id %q", id))
		}

		s, err := strp.CheckoutSessions.Get(id, nil)
		if err != nil {
			var stripeErr *stripe.Error
			if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
				return weberr.NotFound(fmt.Errorf("unknown session %q", id))
			}
			return weberr.Retryable(fmt.Errorf("fetching stripe session[%s]: %w", id, err))
		}

		if s.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			resp := VerifyResponse{Status: "unpaid", ProviderStatus: string(s.PaymentStatus)}
			return web.Respond(ctx, w, resp, http.StatusOK)
		}

		if ord, err := order.FetchBySessionID(ctx, db, id); err == nil {
			return web.Respond(ctx, w, VerifyResponse{Status: "paid", Order: &ord}, http.StatusOK)
		} else if !errors.Is(err, order.ErrNotFound) {
			return err
		}

		if bk, err := booking.FetchBySessionID(ctx, db, id); err == nil {
			return web.Respond(ctx, w, VerifyResponse{Status: "paid", Booking: &bk}, http.StatusOK)
		} else if !errors.Is(err, booking.ErrNotFound) {
			return err
		}

		// Paid at the provider, not yet committed here: the webhook is
		// still in flight. 202 tells the client to keep polling.
		return web.Respond(ctx, w, VerifyResponse{Status: "processing"}, http.StatusAccepted)
	}
}
