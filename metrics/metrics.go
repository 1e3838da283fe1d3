package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/atelierco/storefront/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Metrics holds the business counters the checkout core emits. Oversell
// flags in particular are the signal ops watches for manual fulfillment.
type Metrics struct {
	OrdersCreated   metric.Int64Counter
	BookingsCreated metric.Int64Counter
	WebhookEvents   metric.Int64Counter
	OversellFlagged metric.Int64Counter
	Revenue         metric.Int64Counter
}

// New builds the counters and, when enabled, an OTLP exporter behind a
// periodic reader. The returned shutdown func flushes on exit.
func New(ctx context.Context, cfg config.Metrics) (*Metrics, func(context.Context) error, error) {
	if !cfg.Enabled {
		m, err := build(noop.NewMeterProvider().Meter("storefront"))
		return m, func(context.Context) error { return nil }, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("building metrics resource: %w", err)
	}

	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("building otlp metric exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))),
	)
	otel.SetMeterProvider(provider)

	m, err := build(provider.Meter(cfg.ServiceName))
	if err != nil {
		return nil, nil, err
	}
	return m, provider.Shutdown, nil
}

func build(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	if m.OrdersCreated, err = meter.Int64Counter("orders_created_total",
		metric.WithDescription("Orders committed by the payment reconciler")); err != nil {
		return nil, err
	}
	if m.BookingsCreated, err = meter.Int64Counter("bookings_created_total",
		metric.WithDescription("Training bookings committed by the payment reconciler")); err != nil {
		return nil, err
	}
	if m.WebhookEvents, err = meter.Int64Counter("webhook_events_total",
		metric.WithDescription("Payment provider webhook events by type and outcome")); err != nil {
		return nil, err
	}
	if m.OversellFlagged, err = meter.Int64Counter("oversell_flagged_total",
		metric.WithDescription("Paid orders or bookings flagged for manual fulfillment")); err != nil {
		return nil, err
	}
	if m.Revenue, err = meter.Int64Counter("revenue_minor_units_total",
		metric.WithDescription("Captured revenue in minor currency units"),
		metric.WithUnit("1")); err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *Metrics) Webhook(ctx context.Context, eventType, outcome string) {
	m.WebhookEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("outcome", outcome),
	))
}
