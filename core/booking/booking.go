package booking

import (
	"errors"
	"time"

	"github.com/atelierco/storefront/core/order"
)

type Status string

const (
	Confirmed Status = "confirmed"
	Cancelled Status = "cancelled"

	// PendingApproval marks a booking paid for a seat that sold out between
	// the availability check and the webhook commit. Ops resolves it by hand.
	PendingApproval Status = "pending_approval"
)

var (
	ErrNotFound = errors.New("booking not found")

	// ErrDuplicateSession mirrors order.ErrDuplicateSession for bookings.
	ErrDuplicateSession = errors.New("a booking for this session already exists")

	ErrNoContact = errors.New("booking needs a user id or a guest email")
)

type PaymentType string

const (
	FullPayment PaymentType = "full"
	Deposit     PaymentType = "deposit"
)

type Booking struct {
	ID         string `json:"id" db:"booking_id"`
	TrainingID string `json:"trainingId" db:"training_id"`

	Name         string `json:"name" db:"name"`
	Email        string `json:"email" db:"email"`
	Phone        string `json:"phone" db:"phone"`
	Experience   string `json:"experience" db:"experience"`
	Requirements string `json:"requirements" db:"requirements"`

	UserID     *string `json:"userId" db:"user_id"`
	GuestEmail *string `json:"guestEmail" db:"guest_email"`

	SessionID string `json:"-" db:"session_id"`

	// Amount is what was actually charged; FullAmount is the training price
	// at booking time, kept for reconciling the outstanding balance.
	Amount      int64       `json:"amount" db:"amount"`
	FullAmount  int64       `json:"fullAmount" db:"full_amount"`
	PaymentType PaymentType `json:"paymentType" db:"payment_type"`

	PaymentStatus order.PaymentStatus `json:"paymentStatus" db:"payment_status"`
	Status        Status              `json:"status" db:"status"`
	CreatedAt     time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time           `json:"updatedAt" db:"updated_at"`
}
