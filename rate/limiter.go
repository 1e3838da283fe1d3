// Package rate keeps a token bucket per client address. The checkout
// endpoints sit behind it so a misbehaving storefront client cannot hammer
// the payment provider through us.
package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Limiter struct {
	expiry  time.Duration
	burst   int
	rps     float64
	clients map[string]*clientLimiter
	mu      sync.Mutex
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewLimiter allows rps sustained requests per client with the given burst.
// Buckets idle longer than expiry are dropped to bound memory.
func NewLimiter(burst int, expiry time.Duration, rps float64) *Limiter {
	lm := &Limiter{
		expiry:  expiry,
		rps:     rps,
		burst:   burst,
		clients: make(map[string]*clientLimiter),
	}
	go lm.sweep()
	return lm
}

func (l *Limiter) Check(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cl, ok := l.clients[id]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
		l.clients[id] = cl
	}
	cl.lastAccess = time.Now()
	return cl.limiter.Allow()
}

func (l *Limiter) sweep() {
	for {
		time.Sleep(time.Minute)

		l.mu.Lock()
		for id, v := range l.clients {
			if time.Since(v.lastAccess) > l.expiry {
				delete(l.clients, id)
			}
		}
		l.mu.Unlock()
	}
}

func Every(interval time.Duration) float64 {
	return float64(rate.Every(interval))
}
