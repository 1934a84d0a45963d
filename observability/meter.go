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

	"github.com/kbukum/pipeflow/logger"
)

// InitMeter installs an OTLP/HTTP meter provider, exporting every
// cfg.Interval, as the global provider.
func InitMeter(ctx context.Context, cfg Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}
	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	logger.Info("meter initialized", logger.Fields(
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Instrument names.
const (
	MetricStepDuration   = "pipeflow.step.duration"
	MetricStepAttempts   = "pipeflow.step.attempts"
	MetricStepErrors     = "pipeflow.step.errors"
	MetricExecutionTotal = "pipeflow.execution.total"
)

// Metrics holds the engine's metric instruments. A nil *Metrics records
// nothing.
type Metrics struct {
	stepDuration   metric.Float64Histogram
	stepAttempts   metric.Int64Counter
	stepErrors     metric.Int64Counter
	executionTotal metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	stepDuration, err := meter.Float64Histogram(MetricStepDuration,
		metric.WithDescription("Duration of step attempts in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricStepDuration, err)
	}

	stepAttempts, err := meter.Int64Counter(MetricStepAttempts,
		metric.WithDescription("Handler invocations, including retries"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricStepAttempts, err)
	}

	stepErrors, err := meter.Int64Counter(MetricStepErrors,
		metric.WithDescription("Failed step attempts by error kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricStepErrors, err)
	}

	executionTotal, err := meter.Int64Counter(MetricExecutionTotal,
		metric.WithDescription("Finished pipeline executions by terminal status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricExecutionTotal, err)
	}

	return &Metrics{
		stepDuration:   stepDuration,
		stepAttempts:   stepAttempts,
		stepErrors:     stepErrors,
		executionTotal: executionTotal,
	}, nil
}

// RecordAttempt records one handler invocation and its duration.
func (m *Metrics) RecordAttempt(ctx context.Context, stepType, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stepAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("step_type", stepType),
		attribute.String("status", status),
	))
	m.stepDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("step_type", stepType),
	))
}

// RecordStepError records a failed attempt by error kind.
func (m *Metrics) RecordStepError(ctx context.Context, stepType, kind string) {
	if m == nil {
		return
	}
	m.stepErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("step_type", stepType),
		attribute.String("kind", kind),
	))
}

// RecordExecution records a finished execution.
func (m *Metrics) RecordExecution(ctx context.Context, pipelineID, status string) {
	if m == nil {
		return
	}
	m.executionTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipeline_id", pipelineID),
		attribute.String("status", status),
	))
}
