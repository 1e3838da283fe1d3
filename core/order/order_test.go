package order

import "testing"

func TestStatusTransitions(t *testing.T) {
	allowed := map[Status][]Status{
		Pending:    {Processing, Cancelled},
		Processing: {Shipped, Cancelled},
		Shipped:    {Delivered, Cancelled},
		Delivered:  {},
		Cancelled:  {},
	}

	all := []Status{Pending, Processing, Shipped, Delivered, Cancelled}
	for from, tos := range allowed {
		ok := make(map[Status]bool)
		for _, to := range tos {
			ok[to] = true
		}

		for _, to := range all {
			if got := from.CanTransition(to); got != ok[to] {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, ok[to])
			}
		}
	}
}

func TestPaymentStatusTransitions(t *testing.T) {
	allowed := map[PaymentStatus][]PaymentStatus{
		PaymentPending:  {PaymentPaid, PaymentFailed},
		PaymentPaid:     {PaymentRefunded},
		PaymentFailed:   {},
		PaymentRefunded: {},
	}

	all := []PaymentStatus{PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded}
	for from, tos := range allowed {
		ok := make(map[PaymentStatus]bool)
		for _, to := range tos {
			ok[to] = true
		}

		for _, to := range all {
			if got := from.CanTransition(to); got != ok[to] {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, ok[to])
			}
		}
	}
}

func TestSelectionsRoundTrip(t *testing.T) {
	s := Selections{"v-size": "o-l", "v-color": "o-indigo"}

	v, err := s.Value()
	if err != nil {
		t.Fatalf("valuing selections: %v", err)
	}

	var out Selections
	if err := out.Scan(v); err != nil {
		t.Fatalf("scanning selections: %v", err)
	}

	if len(out) != 2 || out["v-size"] != "o-l" || out["v-color"] != "o-indigo" {
		t.Fatalf("selections changed across the column round trip: %+v", out)
	}
}
