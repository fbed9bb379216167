package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const metricExportInterval = 30 * time.Second

// Metrics bundles the OTEL instruments the HTTP layer records into.
// Permission-resolution counters are Prometheus-native and live in
// internal/permissions instead.
type Metrics struct {
	RequestsTotal       metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	RateLimitRejections metric.Int64Counter
}

// InitMetrics sets up the global meter provider exporting over OTLP
// gRPC and creates the request-level instruments.
func InitMetrics(ctx context.Context, serviceName, endpoint string) (*sdkmetric.MeterProvider, *Metrics, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create resource: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exporter, err := otlpmetricgrpc.New(dialCtx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
		otlpmetricgrpc.WithDialOption(grpc.WithBlock()),
		otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create OTLP metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(metricExportInterval),
		)),
	)
	otel.SetMeterProvider(mp)

	m, err := newInstruments(mp.Meter("adboard-api"))
	if err != nil {
		return nil, nil, err
	}
	return mp, m, nil
}

func newInstruments(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.RequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("create requests counter: %w", err)
	}

	if m.RequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	if m.RateLimitRejections, err = meter.Int64Counter(
		"rate_limit_rejections_total",
		metric.WithDescription("Total number of rate limit rejections"),
		metric.WithUnit("{rejection}"),
	); err != nil {
		return nil, fmt.Errorf("create rate limit counter: %w", err)
	}

	return m, nil
}
