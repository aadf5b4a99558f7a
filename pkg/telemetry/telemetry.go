package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// ServiceName is the service name for integration auth telemetry
	ServiceName = "inbox-zero-integrations"

	// MeterName is the meter name for integration auth
	MeterName = "github.com/lufe-digital/inbox-zero"
)

var (
	meter metric.Meter

	// DiscoveryCounter tracks metadata discovery calls by outcome
	// (cache-hit, live, fallback, error)
	DiscoveryCounter metric.Int64Counter

	// RegistrationCounter tracks dynamic client registrations
	RegistrationCounter metric.Int64Counter

	// ExchangeCounter tracks authorization-code exchanges
	ExchangeCounter metric.Int64Counter

	// RefreshCounter tracks refresh-token exchanges by outcome
	RefreshCounter metric.Int64Counter
)

// Init initializes the telemetry package with the global meter provider.
// Without a configured provider every instrument is a no-op.
func Init() {
	meter = otel.GetMeterProvider().Meter(MeterName)

	DiscoveryCounter, _ = meter.Int64Counter(
		"integrations.oauth.discovery",
		metric.WithDescription("Number of authorization-server discovery calls"),
		metric.WithUnit("{call}"),
	)
	RegistrationCounter, _ = meter.Int64Counter(
		"integrations.oauth.registrations",
		metric.WithDescription("Number of dynamic client registrations"),
		metric.WithUnit("{call}"),
	)
	ExchangeCounter, _ = meter.Int64Counter(
		"integrations.oauth.exchanges",
		metric.WithDescription("Number of authorization-code exchanges"),
		metric.WithUnit("{call}"),
	)
	RefreshCounter, _ = meter.Int64Counter(
		"integrations.oauth.refreshes",
		metric.WithDescription("Number of refresh-token exchanges"),
		metric.WithUnit("{call}"),
	)
}

// RecordDiscovery records a discovery call and the path that satisfied it.
func RecordDiscovery(ctx context.Context, integration, outcome string) {
	if DiscoveryCounter == nil {
		return
	}
	DiscoveryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("integration", integration),
		attribute.String("outcome", outcome),
	))
}

// RecordRegistration records a dynamic client registration attempt.
func RecordRegistration(ctx context.Context, integration string, err error) {
	if RegistrationCounter == nil {
		return
	}
	RegistrationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("integration", integration),
		attribute.Bool("error", err != nil),
	))
}

// RecordExchange records an authorization-code exchange attempt.
func RecordExchange(ctx context.Context, integration string, err error) {
	if ExchangeCounter == nil {
		return
	}
	ExchangeCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("integration", integration),
		attribute.Bool("error", err != nil),
	))
}

// RecordRefresh records a refresh-token exchange attempt.
func RecordRefresh(ctx context.Context, integration string, err error) {
	if RefreshCounter == nil {
		return
	}
	RefreshCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("integration", integration),
		attribute.Bool("error", err != nil),
	))
}
