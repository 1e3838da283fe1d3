package claims

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/atelierco/storefront/api/web"
)

// Claims carries the optional buyer identity. Guest checkout leaves it empty;
// the order then hangs off the buyer email alone.
type Claims struct {
	UserID string
}

type ctxKey int

const claimsKey ctxKey = 1

func Set(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// Get never fails: an absent claim is a guest.
func Get(ctx context.Context) Claims {
	v, ok := ctx.Value(claimsKey).(Claims)
	if !ok {
		return Claims{}
	}
	return v
}

// LoadAndSave wires the scs session into the handler chain and lifts the
// session's user id, when present, into the request context.
func LoadAndSave(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			var err error

			wrapped := session.LoadAndSave(http.HandlerFunc(func(sw http.ResponseWriter, sr *http.Request) {
				sctx := sr.Context()
				if id := session.GetString(sctx, "user_id"); id != "" {
					sctx = Set(sctx, Claims{UserID: id})
				}
				err = handler(sctx, sw, sr)
			}))

			wrapped.ServeHTTP(w, r.WithContext(ctx))
			return err
		}
		return h
	}
	return m
}
