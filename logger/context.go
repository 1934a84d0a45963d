package logger

import "context"

type contextKey string

const (
	ctxExecutionID contextKey = FieldExecutionID
	ctxPipelineID  contextKey = FieldPipelineID
	ctxStepID      contextKey = FieldStepID
	ctxRequestID   contextKey = FieldRequestID
)

// ContextWithExecution tags ctx with the execution and pipeline being run.
func ContextWithExecution(ctx context.Context, executionID, pipelineID string) context.Context {
	ctx = context.WithValue(ctx, ctxExecutionID, executionID)
	return context.WithValue(ctx, ctxPipelineID, pipelineID)
}

// ContextWithStep tags ctx with the step being run.
func ContextWithStep(ctx context.Context, stepID string) context.Context {
	return context.WithValue(ctx, ctxStepID, stepID)
}

// ContextWithRequestID tags ctx with an inbound API request id.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestID, requestID)
}

// ExecutionIDFromContext returns the execution id stored in ctx, if any.
func ExecutionIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxExecutionID).(string)
	return v
}

// StepIDFromContext returns the step id stored in ctx, if any.
func StepIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxStepID).(string)
	return v
}

// RequestIDFromContext returns the API request id stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxRequestID).(string)
	return v
}
