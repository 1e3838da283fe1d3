package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/atelierco/storefront/api/web"
	"github.com/atelierco/storefront/api/weberr"
	"github.com/atelierco/storefront/rate"
)

// RateLimit rejects clients that exceed their per-address token bucket.
// Checkout and webhook endpoints sit behind it.
func RateLimit(lim *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			if !lim.Check(host) {
				return weberr.NewError(
					errors.New("rate limit exceeded for "+host),
					"too many requests",
					http.StatusTooManyRequests,
				)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
