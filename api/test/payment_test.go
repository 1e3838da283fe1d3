package test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"testing"

	"github.com/atelierco/storefront/api/web"
	"github.com/gorilla/mux"
	mock "github.com/stripe/stripe-mock/param"
)

type stripeSession struct {
	ID            string
	PaymentStatus string
	Metadata      map[string]string
	Total         int64
}

type mockStripe struct {
	mu       sync.Mutex
	seq      int
	sessions map[string]*stripeSession
}

func newMockStripe() *mockStripe {
	return &mockStripe{sessions: make(map[string]*stripeSession)}
}

func (m *mockStripe) handle() http.Handler {
	create := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, err := mock.ParseParams(r)
		if err != nil {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		md := make(map[string]string)
		if raw, ok := params["metadata"].(map[string]any); ok {
			for k, v := range raw {
				s, ok := v.(string)
				if !ok {
					web.Respond(context.Background(), w, nil, 400)
					return
				}
				md[k] = s
			}
		}

		var tot int64
		if lines, ok := params["line_items"].(map[string]any); ok {
			for _, li := range lines {
				it := li.(map[string]any)

				qty, err := strconv.ParseInt(it["quantity"].(string), 10, 0)
				if err != nil {
					web.Respond(context.Background(), w, err, 400)
					return
				}

				pd := it["price_data"].(map[string]any)
				amount, err := strconv.ParseInt(pd["unit_amount"].(string), 10, 0)
				if err != nil {
					web.Respond(context.Background(), w, err, 400)
					return
				}

				tot += qty * amount
			}
		}

		m.mu.Lock()
		m.seq++
		id := fmt.Sprintf("cs_test_storefront%06d", m.seq)
		m.sessions[id] = &stripeSession{
			ID:            id,
			PaymentStatus: "unpaid",
			Metadata:      md,
			Total:         tot,
		}
		m.mu.Unlock()

		resp := map[string]any{
			"id":             id,
			"object":         "checkout.session",
			"mode":           "payment",
			"payment_status": "unpaid",
			"url":            "https://checkout.example.com/pay/" + id,
			"metadata":       md,
		}
		web.Respond(context.Background(), w, resp, 200)
	})

	get := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		m.mu.Lock()
		s, ok := m.sessions[id]
		m.mu.Unlock()

		if !ok {
			body := map[string]any{"error": map[string]any{
				"type":    "invalid_request_error",
				"message": "No such checkout session: " + id,
			}}
			web.Respond(context.Background(), w, body, 404)
			return
		}

		resp := map[string]any{
			"id":             s.ID,
			"object":         "checkout.session",
			"mode":           "payment",
			"payment_status": s.PaymentStatus,
			"metadata":       s.Metadata,
		}
		web.Respond(context.Background(), w, resp, 200)
	})

	r := mux.NewRouter()
	r.Handle("/v1/checkout/sessions", create).Methods("POST")
	r.Handle("/v1/checkout/sessions/{id}", get).Methods("GET")
	return r
}

func (m *mockStripe) session(t *testing.T, id string) stripeSession {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		t.Fatalf("no captured stripe session %q", id)
	}
	return *s
}

// lastSession returns the most recently created session.
func (m *mockStripe) lastSession(t *testing.T) stripeSession {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seq == 0 {
		t.Fatal("no stripe sessions were created")
	}
	return *m.sessions[fmt.Sprintf("cs_test_storefront%06d", m.seq)]
}

func (m *mockStripe) markPaid(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.PaymentStatus = "paid"
	}
}

func (m *mockStripe) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

type mockPaypal struct {
	mu  sync.Mutex
	seq int
}

func newMockPaypal() *mockPaypal {
	return &mockPaypal{}
}

func (m *mockPaypal) handle() http.Handler {
	token := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"access_token": "test-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		web.Respond(context.Background(), w, resp, 200)
	})

	create := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var pu struct {
			Units []json.RawMessage `json:"purchase_units"`
		}
		if err := json.NewDecoder(r.Body).Decode(&pu); err != nil || len(pu.Units) != 1 {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		m.mu.Lock()
		m.seq++
		id := fmt.Sprintf("paypal-order-%06d", m.seq)
		m.mu.Unlock()

		web.Respond(context.Background(), w, map[string]any{"id": id, "status": "CREATED"}, 201)
	})

	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		web.Respond(context.Background(), w, map[string]any{"id": id, "status": "COMPLETED"}, 201)
	})

	r := mux.NewRouter()
	r.Handle("/v1/oauth2/token", token).Methods("POST")
	r.Handle("/v2/checkout/orders", create).Methods("POST")
	r.Handle("/v2/checkout/orders/{id}/capture", capture).Methods("POST")
	return r
}
