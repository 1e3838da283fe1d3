// Package checkout holds the payment flow: building provider checkout
// sessions from carts and training signups, reconciling the provider's
// webhook into orders and bookings, and answering the success page's
// "is my order ready yet" poll.
package checkout

import (
	"fmt"

	"github.com/atelierco/storefront/core/order"
	"github.com/atelierco/storefront/core/product"
)

// Mailer sends the post-payment confirmations. Failures are logged and
// dropped; mail never blocks a webhook acknowledgement.
type Mailer interface {
	OrderConfirmation(to, reference string, total int64) error
	BookingConfirmation(to, title string, amount int64) error
}

type Line struct {
	ProductID  string            `json:"productId" validate:"required,uuid4"`
	Selections map[string]string `json:"selections" validate:"dive,required"`
	Quantity   int               `json:"quantity" validate:"required,gte=1,lte=50"`
}

type AddressNew struct {
	Name       string `json:"name" validate:"required"`
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required,iso3166_1_alpha2"`
}

type CartRequest struct {
	Email   string     `json:"email" validate:"required,email"`
	Items   []Line     `json:"items" validate:"required,min=1,max=50,dive"`
	Address AddressNew `json:"address"`
}

type BookingRequest struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"omitempty,e164"`
	Experience   string `json:"experience" validate:"max=2000"`
	Requirements string `json:"requirements" validate:"max=2000"`
}

// LineError describes why one cart line cannot be checked out. The whole
// cart is rejected if any line fails, and every failing line is reported,
// so the buyer fixes everything in one round trip.
type LineError struct {
	Index     int    `json:"index"`
	ProductID string `json:"productId"`
	Message   string `json:"message"`
	Available *int   `json:"available,omitempty"`
}

type LineErrorsResponse struct {
	Error string      `json:"error"`
	Lines []LineError `json:"lines"`
}

type RedirectResponse struct {
	URL string `json:"url"`
}

type pricedLine struct {
	Line
	Name      string
	UnitPrice int64
}

// buildLines validates and prices every cart line against the fetched
// catalog snapshot. It never stops at the first problem.
func buildLines(items []Line, products map[string]product.Product) ([]pricedLine, []LineError) {
	priced := make([]pricedLine, 0, len(items))
	var errs []LineError

	for i, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			errs = append(errs, LineError{Index: i, ProductID: it.ProductID, Message: "unknown product"})
			continue
		}

		if !p.Active {
			errs = append(errs, LineError{Index: i, ProductID: it.ProductID, Message: "product is not available"})
			continue
		}

		unit, err := product.UnitPrice(p, it.Selections)
		if err != nil {
			errs = append(errs, LineError{Index: i, ProductID: it.ProductID, Message: err.Error()})
			continue
		}

		available, err := product.Availability(p, it.Selections)
		if err != nil {
			errs = append(errs, LineError{Index: i, ProductID: it.ProductID, Message: err.Error()})
			continue
		}
		if available < it.Quantity {
			avail := available
			errs = append(errs, LineError{
				Index:     i,
				ProductID: it.ProductID,
				Message:   fmt.Sprintf("insufficient stock: %d available", available),
				Available: &avail,
			})
			continue
		}

		priced = append(priced, pricedLine{Line: it, Name: p.Name, UnitPrice: unit})
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return priced, nil
}

func cartTotal(lines []pricedLine) int64 {
	var tot int64
	for _, l := range lines {
		tot += l.UnitPrice * int64(l.Quantity)
	}
	return tot
}

func toOrderItems(orderID string, items []orderPayloadItem) []order.Item {
	out := make([]order.Item, 0, len(items))
	for _, it := range items {
		out = append(out, order.Item{
			OrderID:     orderID,
			ProductID:   it.ProductID,
			ProductName: it.Name,
			Selections:  order.Selections(it.Selections),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	return out
}

// money renders minor units as the decimal string PayPal expects.
func money(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
