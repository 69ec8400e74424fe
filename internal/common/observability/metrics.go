package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider   *metric.MeterProvider
	meter           otelmetric.Meter
	refreshDuration otelmetric.Float64Histogram
	windowItems     otelmetric.Int64Histogram
	refreshCounter  otelmetric.Int64Counter
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	refreshCounter, _ := meter.Int64Counter(
		"dashboard.refreshes",
		otelmetric.WithDescription("Number of dashboard snapshot refreshes"),
	)

	refreshDuration, _ := meter.Float64Histogram(
		"dashboard.refresh.duration",
		otelmetric.WithDescription("Dashboard refresh duration"),
		otelmetric.WithUnit("ms"),
	)

	windowItems, _ := meter.Int64Histogram(
		"notifications.window.items",
		otelmetric.WithDescription("Items per notification section"),
	)

	return &Observability{
		meterProvider:   provider,
		meter:           meter,
		refreshDuration: refreshDuration,
		windowItems:     windowItems,
		refreshCounter:  refreshCounter,
	}
}

// Noop returns an instance that records nothing.
func Noop() *Observability {
	return &Observability{}
}

func (o *Observability) RecordRefresh(ctx context.Context, duration time.Duration, status string) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("status", status))
	if o.refreshCounter != nil {
		o.refreshCounter.Add(ctx, 1, attrs)
	}
	if o.refreshDuration != nil {
		o.refreshDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) RecordWindowComputed(ctx context.Context, section string, items int) {
	if o == nil || o.windowItems == nil {
		return
	}
	o.windowItems.Record(ctx, int64(items), otelmetric.WithAttributes(
		attribute.String("section", section),
	))
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
