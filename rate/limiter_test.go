package rate

import (
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	burst := 1

	interval := 10 * time.Millisecond
	lim := Every(interval)
	r := NewLimiter(burst, time.Hour, lim)

	tooshort := 1 * time.Millisecond

	client := "203.0.113.7"
	expected := []bool{true, false, true, true, false, false}
	waits := []time.Duration{tooshort, interval, interval, tooshort, tooshort, tooshort}
	for i, exp := range expected {
		if got := r.Check(client); got != exp {
			t.Fatalf("iteration %d: expected %v, but got %v", i, exp, got)
		}
		time.Sleep(waits[i])
	}
}

func TestLimiterIsolatesClients(t *testing.T) {
	r := NewLimiter(1, time.Hour, Every(time.Hour))

	if !r.Check("203.0.113.7") {
		t.Fatal("first request for first client should pass")
	}
	if r.Check("203.0.113.7") {
		t.Fatal("second request for first client should be limited")
	}
	if !r.Check("203.0.113.8") {
		t.Fatal("first request for second client should pass")
	}
}
