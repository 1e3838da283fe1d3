package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/atelierco/storefront/api/web"
	"github.com/atelierco/storefront/api/weberr"
	"github.com/atelierco/storefront/config"
	"github.com/atelierco/storefront/core/claims"
	"github.com/atelierco/storefront/core/order"
	"github.com/atelierco/storefront/core/product"
	"github.com/atelierco/storefront/core/training"
	"github.com/atelierco/storefront/validate"
	"github.com/jmoiron/sqlx"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

// HandleCheckout turns a client-held cart into a provider checkout session
// and sends the buyer to the hosted payment page. Nothing is persisted
// locally: until the webhook fires, the session metadata is the order.
func HandleCheckout(db *sqlx.DB, strp *stripecl.API, cfg config.Stripe) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var req CartRequest
		if err := web.Decode(w, r, &req); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding cart: %w", err))
		}
		if fields := validate.Fields(req); fields != nil {
			return weberr.InvalidFields("invalid checkout request", fields)
		}

		products, err := fetchProducts(ctx, db, req.Items)
		if err != nil {
			return err
		}

		lines, lineErrs := buildLines(req.Items, products)
		if lineErrs != nil {
			err := errors.New("cart validation failed")
			return weberr.Wrap(&weberr.RequestError{Err: err}, weberr.WithResponse(
				&LineErrorsResponse{Error: err.Error(), Lines: lineErrs},
				http.StatusUnprocessableEntity,
			))
		}

		var userID *string
		if clm := claims.Get(ctx); clm.UserID != "" {
			userID = &clm.UserID
		}

		payload := orderPayload{
			Email:  req.Email,
			UserID: userID,
			Address: order.Address{
				Name:       req.Address.Name,
				Line1:      req.Address.Line1,
				Line2:      req.Address.Line2,
				City:       req.Address.City,
				PostalCode: req.Address.PostalCode,
				Country:    req.Address.Country,
			},
		}
		for _, l := range lines {
			payload.Items = append(payload.Items, orderPayloadItem{
				ProductID:  l.ProductID,
				Name:       l.Name,
				Selections: l.Selections,
				Quantity:   l.Quantity,
				UnitPrice:  l.UnitPrice,
			})
		}

		md, err := encodeMetadata(kindOrder, payload)
		if err != nil {
			return err
		}

		li := make([]*stripe.CheckoutSessionLineItemParams, 0, len(lines))
		for _, l := range lines {
			li = append(li, &stripe.CheckoutSessionLineItemParams{
				Quantity: stripe.Int64(int64(l.Quantity)),

				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(cfg.Currency),
					UnitAmount: stripe.Int64(l.UnitPrice),

					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(l.Name),
					},
				},
			})
		}

		params := &stripe.CheckoutSessionParams{
			SuccessURL:    stripe.String(cfg.SuccessURL),
			CancelURL:     stripe.String(cfg.CancelURL),
			Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
			LineItems:     li,
			CustomerEmail: stripe.String(req.Email),
		}
		params.Metadata = md

		s, err := strp.CheckoutSessions.New(params)
		if err != nil {
			return weberr.Retryable(fmt.Errorf("creating stripe session: %w", err))
		}

		return web.Respond(ctx, w, RedirectResponse{URL: s.URL}, http.StatusOK)
	}
}

// HandleCreateBooking builds a provider session for a training signup.
// The validation ladder rejects hard: missing, unpublished, past, full.
func HandleCreateBooking(db *sqlx.DB, strp *stripecl.API, cfg config.Stripe) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		slug := web.Param(r, "slug")

		var req BookingRequest
		if err := web.Decode(w, r, &req); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding booking: %w", err))
		}
		if fields := validate.Fields(req); fields != nil {
			return weberr.InvalidFields("invalid booking request", fields)
		}

		t, err := training.FetchBySlug(ctx, db, slug)
		if err != nil {
			if errors.Is(err, training.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		if t.Status != training.Published {
			err := errors.New("training is not open for booking")
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}
		if !t.Date.After(time.Now().UTC()) {
			err := errors.New("training date has passed")
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}
		if t.Full() {
			err := errors.New("training is full")
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		amount := training.DepositAmount(t)
		paymentType := "full"
		if amount < t.Price {
			paymentType = "deposit"
		}

		var userID *string
		guestEmail := &req.Email
		if clm := claims.Get(ctx); clm.UserID != "" {
			userID = &clm.UserID
		}

		payload := bookingPayload{
			TrainingID:    t.ID,
			TrainingSlug:  t.Slug,
			TrainingTitle: t.Title,
			Name:          req.Name,
			Email:         req.Email,
			Phone:         req.Phone,
			Experience:    req.Experience,
			Requirements:  req.Requirements,
			UserID:        userID,
			GuestEmail:    guestEmail,
			Amount:        amount,
			FullAmount:    t.Price,
			PaymentType:   paymentType,
		}

		md, err := encodeMetadata(kindBooking, payload)
		if err != nil {
			return err
		}

		name := t.Title
		if paymentType == "deposit" {
			name = fmt.Sprintf("%s (deposit)", t.Title)
		}

		params := &stripe.CheckoutSessionParams{
			SuccessURL:    stripe.String(cfg.SuccessURL),
			CancelURL:     stripe.String(cfg.CancelURL),
			Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
			CustomerEmail: stripe.String(req.Email),

			LineItems: []*stripe.CheckoutSessionLineItemParams{{
				Quantity: stripe.Int64(1),

				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(cfg.Currency),
					UnitAmount: stripe.Int64(amount),

					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(name),
					},
				},
			}},
		}
		params.Metadata = md

		s, err := strp.CheckoutSessions.New(params)
		if err != nil {
			return weberr.Retryable(fmt.Errorf("creating stripe session: %w", err))
		}

		return web.Respond(ctx, w, RedirectResponse{URL: s.URL}, http.StatusOK)
	}
}

func fetchProducts(ctx context.Context, db *sqlx.DB, items []Line) (map[string]product.Product, error) {
	products := make(map[string]product.Product)
	for _, it := range items {
		if _, ok := products[it.ProductID]; ok {
			continue
		}

		p, err := product.Fetch(ctx, db, it.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				continue // reported per line by buildLines
			}
			return nil, fmt.Errorf("fetching product[%s]: %w", it.ProductID, err)
		}
		products[p.ID] = p
	}
	return products, nil
}
