package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/atelierco/storefront/api/web"
	"github.com/atelierco/storefront/api/weberr"
)

// Admin guards back-office endpoints with a static bearer token. Operator
// identity lives outside this service.
func Admin(token string) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			if token == "" {
				return weberr.NotAuthorized(errors.New("admin endpoints are disabled"))
			}

			auth := r.Header.Get("Authorization")
			got, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok {
				return weberr.NotAuthorized(errors.New("missing bearer token"))
			}

			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return weberr.NotAuthorized(errors.New("invalid admin token"))
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
