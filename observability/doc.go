// Package observability wires OpenTelemetry tracing and metrics for the
// engine.
//
// Setup installs both providers from the application config:
//
//	shutdown, err := observability.Setup(ctx, cfg.Observability)
//	defer shutdown(ctx)
//
// Engine instruments:
//
//	metrics, err := observability.NewMetrics(observability.Meter("pipeflow"))
//	metrics.RecordAttempt(ctx, "http_api", "succeeded", duration)
//	metrics.RecordExecution(ctx, "triage", "completed")
package observability
