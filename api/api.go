package api

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/atelierco/storefront/api/background"
	"github.com/atelierco/storefront/api/middleware"
	"github.com/atelierco/storefront/api/web"
	"github.com/atelierco/storefront/config"
	"github.com/atelierco/storefront/core/booking"
	"github.com/atelierco/storefront/core/checkout"
	"github.com/atelierco/storefront/core/claims"
	"github.com/atelierco/storefront/core/order"
	"github.com/atelierco/storefront/core/product"
	"github.com/atelierco/storefront/core/training"
	"github.com/atelierco/storefront/database"
	"github.com/atelierco/storefront/metrics"
	"github.com/atelierco/storefront/rate"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

type APIConfig struct {
	CorsOrigin string
	Log        logrus.FieldLogger
	DB         *sqlx.DB
	Session    *scs.SessionManager
	Stripe     *stripecl.API
	StripeCfg  config.Stripe
	Paypal     *paypal.Client
	PaypalCfg  config.Paypal
	Mailer     checkout.Mailer
	Background *background.Background
	Metrics    *metrics.Metrics
	AdminToken string
	Limiter    *rate.Limiter
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, claims.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	limited := middleware.RateLimit(cfg.Limiter)
	admin := middleware.Admin(cfg.AdminToken)

	a.Handle(http.MethodGet, "/products", product.HandleList(cfg.DB))
	a.Handle(http.MethodGet, "/products/{slug}", product.HandleShow(cfg.DB))

	a.Handle(http.MethodGet, "/trainings", training.HandleList(cfg.DB))
	a.Handle(http.MethodGet, "/trainings/{slug}", training.HandleShow(cfg.DB))
	a.Handle(http.MethodPost, "/trainings/{slug}/bookings", checkout.HandleCreateBooking(cfg.DB, cfg.Stripe, cfg.StripeCfg), limited)

	a.Handle(http.MethodPost, "/checkout", checkout.HandleCheckout(cfg.DB, cfg.Stripe, cfg.StripeCfg), limited)
	a.Handle(http.MethodPost, "/checkout/webhook", checkout.HandleWebhook(cfg.DB, cfg.StripeCfg, cfg.Background, cfg.Mailer, cfg.Metrics))
	a.Handle(http.MethodGet, "/checkout/verify", checkout.HandleVerify(cfg.DB, cfg.Stripe), limited)
	a.Handle(http.MethodPost, "/checkout/paypal", checkout.HandlePaypalCheckout(cfg.DB, cfg.Paypal, cfg.PaypalCfg), limited)
	a.Handle(http.MethodPost, "/checkout/paypal/{id}/capture", checkout.HandlePaypalCapture(cfg.DB, cfg.Paypal, cfg.Background, cfg.Mailer, cfg.Metrics), limited)

	a.Handle(http.MethodGet, "/admin/orders", order.HandleList(cfg.DB), admin)
	a.Handle(http.MethodGet, "/admin/orders/{id}", order.HandleShow(cfg.DB), admin)
	a.Handle(http.MethodPut, "/admin/orders/{id}/status", order.HandleUpdateStatus(cfg.DB), admin)
	a.Handle(http.MethodPut, "/admin/orders/{id}/tracking", order.HandleSetTracking(cfg.DB), admin)
	a.Handle(http.MethodPost, "/admin/orders/{id}/refund", order.HandleRefund(cfg.DB), admin)

	a.Handle(http.MethodGet, "/admin/bookings", booking.HandleList(cfg.DB), admin)
	a.Handle(http.MethodPost, "/admin/bookings/{id}/cancel", booking.HandleCancel(cfg.DB), admin)

	a.Handle(http.MethodGet, "/health", handleHealth(cfg.DB))

	return a.Router
}

func handleHealth(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		status := "ok"
		statusCode := http.StatusOK
		if err := database.StatusCheck(ctx, db); err != nil {
			status = "db not ready"
			statusCode = http.StatusInternalServerError
		}

		health := struct {
			Status string `json:"status"`
		}{Status: status}

		return web.Respond(ctx, w, health, statusCode)
	}
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
