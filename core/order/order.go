package order

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status is the fulfillment lifecycle. It runs independently of the
// payment state: a refunded order can still be mid-shipment.
type Status string

const (
	Pending    Status = "pending"
	Processing Status = "processing"
	Shipped    Status = "shipped"
	Delivered  Status = "delivered"
	Cancelled  Status = "cancelled"
)

// PaymentStatus tracks what the provider told us about the money.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

var (
	ErrNotFound = errors.New("order not found")

	// ErrDuplicateSession means an order for this provider session already
	// exists. The webhook reconciler treats it as success.
	ErrDuplicateSession = errors.New("an order for this session already exists")

	ErrInvalidTransition = errors.New("invalid status transition")
)

func (s Status) CanTransition(to Status) bool {
	switch s {
	case Pending:
		return to == Processing || to == Cancelled
	case Processing:
		return to == Shipped || to == Cancelled
	case Shipped:
		return to == Delivered || to == Cancelled
	default:
		return false
	}
}

func (p PaymentStatus) CanTransition(to PaymentStatus) bool {
	switch p {
	case PaymentPending:
		return to == PaymentPaid || to == PaymentFailed
	case PaymentPaid:
		return to == PaymentRefunded
	default:
		return false
	}
}

// Selections snapshots the chosen option per variant at purchase time. It
// round-trips through a jsonb column.
type Selections map[string]string

func (s Selections) Value() (driver.Value, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s)
}

func (s *Selections) Scan(src interface{}) error {
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into selections", src)
	}
	return json.Unmarshal(b, s)
}

type Address struct {
	Name       string `json:"name" db:"ship_name"`
	Line1      string `json:"line1" db:"ship_line1"`
	Line2      string `json:"line2" db:"ship_line2"`
	City       string `json:"city" db:"ship_city"`
	PostalCode string `json:"postalCode" db:"ship_postal_code"`
	Country    string `json:"country" db:"ship_country"`
}

type Order struct {
	ID        string  `json:"id" db:"order_id"`
	Reference string  `json:"reference" db:"reference"`
	UserID    *string `json:"userId" db:"user_id"`
	Email     string  `json:"email" db:"email"`

	// SessionID is the provider checkout session this order settles. Unique,
	// and therefore the idempotency key for webhook commits.
	SessionID string `json:"-" db:"session_id"`

	Address            `json:"address"`
	Total              int64         `json:"total" db:"total"`
	Status             Status        `json:"status" db:"status"`
	PaymentStatus      PaymentStatus `json:"paymentStatus" db:"payment_status"`
	TrackingNumber     *string       `json:"trackingNumber" db:"tracking_number"`
	FulfillmentFlagged bool          `json:"fulfillmentFlagged" db:"fulfillment_flagged"`
	CreatedAt          time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time     `json:"updatedAt" db:"updated_at"`
	Items              []Item        `json:"items" db:"-"`
}

// Item keeps name and price snapshots so later catalog edits never change
// what the buyer agreed to pay.
type Item struct {
	OrderID     string     `json:"-" db:"order_id"`
	ProductID   string     `json:"productId" db:"product_id"`
	ProductName string     `json:"productName" db:"product_name"`
	Selections  Selections `json:"selections" db:"selections"`
	Quantity    int        `json:"quantity" db:"quantity"`
	UnitPrice   int64      `json:"unitPrice" db:"unit_price"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
}

type StatusUp struct {
	Status Status `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled"`
}

type TrackingUp struct {
	TrackingNumber string `json:"trackingNumber" validate:"required"`
}
