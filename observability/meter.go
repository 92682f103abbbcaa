package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/smokedb/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns defaults for a local collector.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter installs a periodic OTLP meter provider as the global provider.
// The caller shuts it down on exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns the smokedb meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Metrics holds the store instruments.
type Metrics struct {
	scanTotal      metric.Int64Counter
	scanRecords    metric.Int64Counter
	submitTotal    metric.Int64Counter
	submitDuration metric.Float64Histogram
	errorsTotal    metric.Int64Counter
}

// NewMetrics creates the store instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	scanTotal, err := meter.Int64Counter("store.scan.total",
		metric.WithDescription("Store scans started"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating store.scan.total counter: %w", err)
	}

	scanRecords, err := meter.Int64Counter("store.scan.records",
		metric.WithDescription("Records emitted by store scans"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating store.scan.records counter: %w", err)
	}

	submitTotal, err := meter.Int64Counter("store.submit.total",
		metric.WithDescription("Mutation batches submitted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating store.submit.total counter: %w", err)
	}

	submitDuration, err := meter.Float64Histogram("store.submit.duration",
		metric.WithDescription("Duration of mutation submits in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating store.submit.duration histogram: %w", err)
	}

	errorsTotal, err := meter.Int64Counter("store.errors.total",
		metric.WithDescription("Store operation failures by operation and code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating store.errors.total counter: %w", err)
	}

	return &Metrics{
		scanTotal:      scanTotal,
		scanRecords:    scanRecords,
		submitTotal:    submitTotal,
		submitDuration: submitDuration,
		errorsTotal:    errorsTotal,
	}, nil
}

// RecordScan records a finished scan of store that emitted records values.
func (m *Metrics) RecordScan(ctx context.Context, store string, records int, err error) {
	attrs := metric.WithAttributes(
		attribute.String(AttrStore, store),
		attribute.String(AttrStatus, status(err)),
	)
	m.scanTotal.Add(ctx, 1, attrs)
	m.scanRecords.Add(ctx, int64(records), metric.WithAttributes(attribute.String(AttrStore, store)))
}

// RecordSubmit records a submit of mutations mutations against store.
func (m *Metrics) RecordSubmit(ctx context.Context, store string, mutations int, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String(AttrStore, store),
		attribute.String(AttrStatus, status(err)),
	)
	m.submitTotal.Add(ctx, 1, attrs)
	m.submitDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordError records a failed operation against store.
func (m *Metrics) RecordError(ctx context.Context, store, operation, code string) {
	m.errorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrStore, store),
		attribute.String(AttrOperation, operation),
		attribute.String(AttrErrorCode, code),
	))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
