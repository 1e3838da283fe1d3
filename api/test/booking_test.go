package test

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"testing"
	"time"

	"github.com/atelierco/storefront/core/booking"
	"github.com/atelierco/storefront/core/order"
	"github.com/atelierco/storefront/core/training"
)

type bookingTest struct {
	*TestEnv
}

type bookingBody struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

func TestBooking(t *testing.T) {
	env, err := NewTestEnv(t, "booking_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}
	bt := &bookingTest{env}

	future := time.Now().UTC().Add(30 * 24 * time.Hour)
	forge := env.createTraining(t, "forge-basics", 100000, 30, 2, future, training.Published)

	bt.testDepositSession(t, forge)
	bt.testCommitAndRedelivery(t, forge)
	bt.testFillsUp(t, forge)
	bt.testRejectsUnbookable(t)
	bt.testAdminCancelReleasesSeat(t, forge)
	bt.testOversoldSeatParksBooking(t)
}

// A 30% deposit training charges 30% at the session, not the full price.
func (bt *bookingTest) testDepositSession(t *testing.T, forge training.Training) {
	w := bt.postJSON(t, "/trainings/"+forge.Slug+"/bookings", bookingBody{
		Name:  "Robin Walsh",
		Email: "robin@example.com",
	})
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("booking checkout: expected 200, got %s", w.Status)
	}

	s := bt.Stripe.lastSession(t)
	if s.Total != 30000 {
		t.Fatalf("expected a 30000 deposit at the session, got %d", s.Total)
	}
}

func (bt *bookingTest) testCommitAndRedelivery(t *testing.T, forge training.Training) {
	s := bt.Stripe.lastSession(t)
	bt.Stripe.markPaid(s.ID)

	for i := 0; i < 2; i++ {
		w := bt.sendWebhook(t, "checkout.session.completed", s.ID)
		w.Body.Close()
		if w.StatusCode != http.StatusNoContent {
			t.Fatalf("webhook %d: expected 204, got %s", i, w.Status)
		}
	}

	b, err := booking.FetchBySessionID(context.Background(), bt.DB, s.ID)
	if err != nil {
		t.Fatalf("fetching the committed booking: %v", err)
	}
	if b.Status != booking.Confirmed {
		t.Fatalf("expected a confirmed booking, got %s", b.Status)
	}
	if b.PaymentStatus != order.PaymentPaid {
		t.Fatalf("expected a paid booking, got %s", b.PaymentStatus)
	}
	if b.Amount != 30000 || b.FullAmount != 100000 {
		t.Fatalf("wrong amounts on the booking: %d / %d", b.Amount, b.FullAmount)
	}
	if b.PaymentType != booking.Deposit {
		t.Fatalf("expected a deposit booking, got %s", b.PaymentType)
	}

	// The duplicate delivery above took exactly one seat.
	if got := bt.participants(t, forge); got != 1 {
		t.Fatalf("expected 1 participant, got %d", got)
	}
}

func (bt *bookingTest) testFillsUp(t *testing.T, forge training.Training) {
	w := bt.postJSON(t, "/trainings/"+forge.Slug+"/bookings", bookingBody{
		Name:  "Sam Okafor",
		Email: "sam@example.com",
	})
	defer w.Body.Close()
	if w.StatusCode != http.StatusOK {
		t.Fatalf("second booking: expected 200, got %s", w.Status)
	}

	var redirect struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(w.Body).Decode(&redirect); err != nil {
		t.Fatal(err)
	}
	sessionID := path.Base(redirect.URL)

	bt.Stripe.markPaid(sessionID)
	hw := bt.sendWebhook(t, "checkout.session.completed", sessionID)
	hw.Body.Close()
	if hw.StatusCode != http.StatusNoContent {
		t.Fatalf("second commit: expected 204, got %s", hw.Status)
	}

	if got := bt.participants(t, forge); got != 2 {
		t.Fatalf("expected 2 participants, got %d", got)
	}

	// Sold out: no third session gets created.
	fw := bt.postJSON(t, "/trainings/"+forge.Slug+"/bookings", bookingBody{
		Name:  "Ade Bakare",
		Email: "ade@example.com",
	})
	fw.Body.Close()
	if fw.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("full training: expected 422, got %s", fw.Status)
	}
}

func (bt *bookingTest) testRejectsUnbookable(t *testing.T) {
	past := time.Now().UTC().Add(-24 * time.Hour)
	bt.createTraining(t, "past-workshop", 50000, 100, 8, past, training.Published)

	future := time.Now().UTC().Add(24 * time.Hour)
	bt.createTraining(t, "draft-workshop", 50000, 100, 8, future, training.Draft)

	body := bookingBody{Name: "Robin Walsh", Email: "robin@example.com"}

	w := bt.postJSON(t, "/trainings/past-workshop/bookings", body)
	w.Body.Close()
	if w.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("past training: expected 422, got %s", w.Status)
	}

	w = bt.postJSON(t, "/trainings/draft-workshop/bookings", body)
	w.Body.Close()
	if w.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("draft training: expected 422, got %s", w.Status)
	}

	w = bt.postJSON(t, "/trainings/no-such-workshop/bookings", body)
	w.Body.Close()
	if w.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown training: expected 404, got %s", w.Status)
	}
}

func (bt *bookingTest) testAdminCancelReleasesSeat(t *testing.T, forge training.Training) {
	w := bt.adminDo(t, http.MethodGet, "/admin/bookings", nil)
	defer w.Body.Close()
	if w.StatusCode != http.StatusOK {
		t.Fatalf("listing bookings: expected 200, got %s", w.Status)
	}

	var bs []booking.Booking
	if err := json.NewDecoder(w.Body).Decode(&bs); err != nil {
		t.Fatalf("decoding bookings: %v", err)
	}
	if len(bs) != 2 {
		t.Fatalf("expected 2 bookings, got %d", len(bs))
	}

	cw := bt.adminDo(t, http.MethodPost, "/admin/bookings/"+bs[0].ID+"/cancel", nil)
	cw.Body.Close()
	if cw.StatusCode != http.StatusNoContent {
		t.Fatalf("cancel: expected 204, got %s", cw.Status)
	}

	if got := bt.participants(t, forge); got != 1 {
		t.Fatalf("cancel must release the seat, got %d participants", got)
	}

	// A second cancel finds nothing left to cancel.
	cw = bt.adminDo(t, http.MethodPost, "/admin/bookings/"+bs[0].ID+"/cancel", nil)
	cw.Body.Close()
	if cw.StatusCode != http.StatusNotFound {
		t.Fatalf("double cancel: expected 404, got %s", cw.Status)
	}
}

// The last seat sells while the buyer is on the payment page. The paid
// booking still commits, parked for ops instead of confirmed, and the seat
// counter never passes capacity.
func (bt *bookingTest) testOversoldSeatParksBooking(t *testing.T) {
	future := time.Now().UTC().Add(14 * 24 * time.Hour)
	welding := bt.createTraining(t, "welding-intro", 80000, 100, 1, future, training.Published)

	w := bt.postJSON(t, "/trainings/"+welding.Slug+"/bookings", bookingBody{
		Name:  "Robin Walsh",
		Email: "robin@example.com",
	})
	w.Body.Close()
	if w.StatusCode != http.StatusOK {
		t.Fatalf("booking checkout: expected 200, got %s", w.Status)
	}

	s := bt.Stripe.lastSession(t)

	const takeSeat = `UPDATE trainings SET current_participants = max_participants WHERE training_id = $1`
	if _, err := bt.DB.Exec(takeSeat, welding.ID); err != nil {
		t.Fatal(err)
	}

	bt.Stripe.markPaid(s.ID)
	hw := bt.sendWebhook(t, "checkout.session.completed", s.ID)
	hw.Body.Close()
	if hw.StatusCode != http.StatusNoContent {
		t.Fatalf("oversold webhook: expected 204, got %s", hw.Status)
	}

	b, err := booking.FetchBySessionID(context.Background(), bt.DB, s.ID)
	if err != nil {
		t.Fatalf("fetching the parked booking: %v", err)
	}
	if b.Status != booking.PendingApproval {
		t.Fatalf("expected a pending-approval booking, got %s", b.Status)
	}
	if b.PaymentStatus != order.PaymentPaid {
		t.Fatalf("the parked booking is still paid, got %s", b.PaymentStatus)
	}

	if got := bt.participants(t, welding); got != welding.MaxParticipants {
		t.Fatalf("seat counter must never pass capacity, got %d", got)
	}
}

func (bt *bookingTest) participants(t *testing.T, tr training.Training) int {
	t.Helper()

	var n int
	const q = `SELECT current_participants FROM trainings WHERE training_id = $1`
	if err := bt.DB.Get(&n, q, tr.ID); err != nil {
		t.Fatalf("reading participants: %v", err)
	}
	return n
}
