package config

import "time"

type Config struct {
	Web       Web
	Cors      Cors
	DB        DB
	Stripe    Stripe
	Paypal    Paypal
	Email     Email
	Admin     Admin
	Metrics   Metrics
	RateLimit RateLimit
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:4000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type Cors struct {
	Origin string
}

type DB struct {
	User       string `conf:"default:storefront"`
	Password   string `conf:"default:storefront,mask"`
	Host       string `conf:"default:localhost:5432"`
	Name       string `conf:"default:storefront"`
	DisableTLS bool   `conf:"default:true"`
}

type Stripe struct {
	APISecret     string `conf:"mask"`
	WebhookSecret string `conf:"mask"`
	// SuccessURL must carry the {CHECKOUT_SESSION_ID} placeholder so the
	// success page can poll the verify endpoint.
	SuccessURL string `conf:"default:http://localhost:3000/checkout/success?session_id={CHECKOUT_SESSION_ID}"`
	CancelURL  string `conf:"default:http://localhost:3000/checkout/cancelled"`
	Currency   string `conf:"default:usd"`
}

type Paypal struct {
	ClientID string `conf:"mask"`
	Secret   string `conf:"mask"`
	URL      string `conf:"default:https://api.sandbox.paypal.com"`
	Currency string `conf:"default:USD"`
}

type Email struct {
	Address  string
	Password string `conf:"mask"`
	Host     string
	Port     int `conf:"default:587"`
}

type Admin struct {
	Token string `conf:"mask"`
}

type Metrics struct {
	Enabled     bool   `conf:"default:false"`
	Endpoint    string `conf:"default:localhost:4318"`
	Insecure    bool   `conf:"default:true"`
	ServiceName string `conf:"default:storefront-api"`
}

type RateLimit struct {
	Burst        int           `conf:"default:10"`
	Expiry       time.Duration `conf:"default:30m"`
	RequestsPerS float64       `conf:"default:5"`
}
