package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/atelierco/storefront/api/background"
	"github.com/atelierco/storefront/api/web"
	"github.com/atelierco/storefront/api/weberr"
	"github.com/atelierco/storefront/config"
	"github.com/atelierco/storefront/core/claims"
	"github.com/atelierco/storefront/core/order"
	"github.com/atelierco/storefront/core/product"
	"github.com/atelierco/storefront/database"
	"github.com/atelierco/storefront/metrics"
	"github.com/atelierco/storefront/random"
	"github.com/atelierco/storefront/validate"
	"github.com/jmoiron/sqlx"
	"github.com/plutov/paypal/v4"
)

// HandlePaypalCheckout is the synchronous sibling of the hosted checkout.
// PayPal has no metadata bag, so the order is created locally up front in
// payment_status pending, keyed by the PayPal order id; the capture call
// flips it to paid.
func HandlePaypalCheckout(db *sqlx.DB, pp *paypal.Client, cfg config.Paypal) web.Handler {
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

		tot := cartTotal(lines)
		items := make([]paypal.Item, 0, len(lines))
		for _, l := range lines {
			items = append(items, paypal.Item{
				Quantity: fmt.Sprintf("%d", l.Quantity),
				Name:     l.Name,

				UnitAmount: &paypal.Money{
					Currency: cfg.Currency,
					Value:    money(l.UnitPrice),
				},
			})
		}

		units := []paypal.PurchaseUnitRequest{{
			Items: items,

			Amount: &paypal.PurchaseUnitAmount{
				Currency: cfg.Currency,
				Value:    money(tot),

				Breakdown: &paypal.PurchaseUnitAmountBreakdown{ItemTotal: &paypal.Money{
					Currency: cfg.Currency,
					Value:    money(tot),
				}},
			},
		}}

		ppOrd, err := pp.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, &paypal.ApplicationContext{})
		if err != nil {
			return weberr.Retryable(fmt.Errorf("creating paypal order: %w", err))
		}

		var userID *string
		if clm := claims.Get(ctx); clm.UserID != "" {
			userID = &clm.UserID
		}

		ref, err := random.Reference(10)
		if err != nil {
			return fmt.Errorf("generating order reference: %w", err)
		}

		now := time.Now().UTC()
		ord := order.Order{
			ID:        validate.GenerateID(),
			Reference: ref,
			UserID:    userID,
			Email:     req.Email,
			SessionID: ppOrd.ID,
			Address: order.Address{
				Name:       req.Address.Name,
				Line1:      req.Address.Line1,
				Line2:      req.Address.Line2,
				City:       req.Address.City,
				PostalCode: req.Address.PostalCode,
				Country:    req.Address.Country,
			},
			Total:         tot,
			Status:        order.Pending,
			PaymentStatus: order.PaymentPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			if err := order.Create(ctx, tx, ord); err != nil {
				return err
			}
			for _, l := range lines {
				it := order.Item{
					OrderID:     ord.ID,
					ProductID:   l.ProductID,
					ProductName: l.Name,
					Selections:  order.Selections(l.Selections),
					Quantity:    l.Quantity,
					UnitPrice:   l.UnitPrice,
					CreatedAt:   now,
				}
				if err := order.CreateItem(ctx, tx, it); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("creating the order bound to paypal order[%s]: %w", ppOrd.ID, err)
		}

		return web.Respond(ctx, w, ppOrd, http.StatusOK)
	}
}

// HandlePaypalCapture settles an approved PayPal order. The guarded
// pending-to-paid transition gates the stock decrement, so a double
// capture of the same order adjusts stock exactly once.
func HandlePaypalCapture(db *sqlx.DB, pp *paypal.Client, bg *background.Background, mailer Mailer, m *metrics.Metrics) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		providerID := web.Param(r, "id")

		ord, err := order.FetchBySessionID(ctx, db, providerID)
		if err != nil {
			if errors.Is(err, order.ErrNotFound) {
				return weberr.NotFound(fmt.Errorf("unknown paypal order %q", providerID))
			}
			return err
		}

		if ord.PaymentStatus == order.PaymentPaid {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		resp, err := pp.CaptureOrder(ctx, providerID, paypal.CaptureOrderRequest{})
		if err != nil {
			return weberr.Retryable(fmt.Errorf("capturing paypal order[%s]: %w", providerID, err))
		}
		if resp.Status != "COMPLETED" {
			err := fmt.Errorf("captured order[%s] with status[%s] different from 'COMPLETED'", providerID, resp.Status)
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		var flagged bool
		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			// The transition first: if a concurrent capture won the race
			// this fails, the tx rolls back and no decrement runs twice.
			if err := order.UpdatePaymentStatus(ctx, tx, ord.ID, order.PaymentPending, order.PaymentPaid); err != nil {
				return err
			}

			for _, it := range ord.Items {
				short, err := product.DecrementStock(ctx, tx, map[string]string(it.Selections), it.Quantity)
				if err != nil {
					return err
				}
				if short {
					flagged = true
				}
			}

			if flagged {
				return order.SetFulfillmentFlag(ctx, tx, ord.ID)
			}
			return nil
		})
		if errors.Is(err, order.ErrInvalidTransition) {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}
		if err != nil {
			return fmt.Errorf("the order was payed but its fulfillment failed: %w", err)
		}

		m.OrdersCreated.Add(ctx, 1)
		m.Revenue.Add(ctx, ord.Total)
		if flagged {
			m.OversellFlagged.Add(ctx, 1)
		}

		bg.Add("order-confirmation", func() error {
			return mailer.OrderConfirmation(ord.Email, ord.Reference, ord.Total)
		})

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
