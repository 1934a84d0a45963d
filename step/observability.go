package step

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/logger"
	"github.com/kbukum/pipeflow/observability"
	"github.com/kbukum/pipeflow/pipeline"
)

// Attempt outcomes recorded by the decorators.
const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// WithTracing wraps h so every attempt runs in its own span.
func WithTracing(h Handler) Handler {
	return &tracingHandler{inner: h}
}

type tracingHandler struct{ inner Handler }

func (h *tracingHandler) Type() pipeline.StepType { return h.inner.Type() }
func (h *tracingHandler) Unwrap() Handler         { return h.inner }

func (h *tracingHandler) Execute(ctx context.Context, req *Request) (*Result, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanStep, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	observability.SetSpanAttribute(ctx, observability.AttrExecutionID, req.ExecutionID)
	observability.SetSpanAttribute(ctx, observability.AttrStepID, req.Step.ID)
	observability.SetSpanAttribute(ctx, observability.AttrStepType, string(req.Step.Type))
	observability.SetSpanAttribute(ctx, observability.AttrAttempt, req.Attempt)

	res, err := h.inner.Execute(ctx, req)
	if err != nil {
		observability.SetSpanAttribute(ctx, observability.AttrErrorKind, string(errors.KindOf(err)))
		observability.SetSpanError(ctx, err)
	}
	return res, err
}

// WithMetrics wraps h so every attempt is counted and timed. A nil metrics
// records nothing.
func WithMetrics(h Handler, metrics *observability.Metrics) Handler {
	return &metricsHandler{inner: h, metrics: metrics}
}

type metricsHandler struct {
	inner   Handler
	metrics *observability.Metrics
}

func (h *metricsHandler) Type() pipeline.StepType { return h.inner.Type() }
func (h *metricsHandler) Unwrap() Handler         { return h.inner }

func (h *metricsHandler) Execute(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	res, err := h.inner.Execute(ctx, req)
	duration := time.Since(start)

	status := outcomeOK
	if err != nil {
		status = outcomeError
		h.metrics.RecordStepError(ctx, string(h.inner.Type()), string(errors.KindOf(err)))
	}
	h.metrics.RecordAttempt(ctx, string(h.inner.Type()), status, duration)
	return res, err
}

// WithLogging wraps h so every attempt is logged with its step, attempt and
// duration.
func WithLogging(h Handler, log *logger.Logger) Handler {
	return &loggingHandler{inner: h, log: log.WithComponent("step")}
}

type loggingHandler struct {
	inner Handler
	log   *logger.Logger
}

func (h *loggingHandler) Type() pipeline.StepType { return h.inner.Type() }
func (h *loggingHandler) Unwrap() Handler         { return h.inner }

func (h *loggingHandler) Execute(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	res, err := h.inner.Execute(ctx, req)
	duration := time.Since(start)

	fields := map[string]interface{}{
		logger.FieldExecutionID: req.ExecutionID,
		logger.FieldStepID:      req.Step.ID,
		logger.FieldStepType:    string(req.Step.Type),
		logger.FieldAttempt:     req.Attempt,
		logger.FieldDuration:    duration.Milliseconds(),
	}

	if err != nil {
		fields[logger.FieldKind] = string(errors.KindOf(err))
		fields[logger.FieldError] = err.Error()
		h.log.Warn("step attempt failed", fields)
	} else {
		h.log.Debug("step attempt completed", fields)
	}
	return res, err
}
