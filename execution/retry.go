package execution

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/pipeline"
	"github.com/kbukum/pipeflow/resilience"
	"github.com/kbukum/pipeflow/step"
)

// policy is the effective timeout and retry behavior of one step.
type policy struct {
	timeout time.Duration
	retry   resilience.RetryConfig
}

// policyFor merges the step's overrides into the engine defaults. Pure step
// types get a single attempt.
func policyFor(cfg Config, def *pipeline.StepDefinition) policy {
	p := policy{
		timeout: cfg.DefaultTimeout,
		retry: resilience.RetryConfig{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
			Exponential: cfg.Retry.Exponential == nil || *cfg.Retry.Exponential,
			RetryIf:     errors.IsRetryable,
		},
	}
	if def.Timeout > 0 {
		p.timeout = def.Timeout.Std()
	}
	if r := def.Retry; r != nil {
		if r.MaxAttempts > 0 {
			p.retry.MaxAttempts = r.MaxAttempts
		}
		if r.BaseDelay > 0 {
			p.retry.BaseDelay = r.BaseDelay.Std()
		}
		if r.MaxDelay > 0 {
			p.retry.MaxDelay = r.MaxDelay.Std()
		}
		if r.Exponential != nil {
			p.retry.Exponential = *r.Exponential
		}
	}
	if def.Type.Pure() {
		p.retry.MaxAttempts = 1
	}
	if p.retry.MaxDelay > 0 && p.retry.MaxDelay < p.retry.BaseDelay {
		p.retry.MaxDelay = p.retry.BaseDelay
	}
	return p
}

// attempt runs h under p. onAttempt is called before every attempt and
// onRetry before every backoff sleep. It returns the result, the number of
// attempts made and the last error. Errors caused by ctx ending are reported
// as cancellations.
func attempt(ctx context.Context, h step.Handler, req step.Request, p policy,
	onAttempt func(n int), onRetry func(n int, err error, delay time.Duration)) (*step.Result, int, error) {
	attempts := 0
	cfg := p.retry
	cfg.OnRetry = onRetry

	res, err := resilience.Retry(ctx, cfg, func(ctx context.Context, n int) (*step.Result, error) {
		attempts = n
		if onAttempt != nil {
			onAttempt(n)
		}
		r := req
		r.Attempt = n
		r.Timeout = p.timeout
		return invoke(ctx, h, &r, p.timeout)
	})
	if err != nil && ctx.Err() != nil && errors.KindOf(err) != errors.KindCancelled {
		err = errors.Cancelled("step " + req.Step.ID).WithCause(err)
	}
	return res, attempts, err
}

type outcome struct {
	res *step.Result
	err error
}

// settle waits for an attempt's outcome or its deadline. An outcome already
// delivered when the deadline fires wins over the deadline.
func settle(actx context.Context, done <-chan outcome) outcome {
	select {
	case out := <-done:
		return out
	case <-actx.Done():
		select {
		case out := <-done:
			return out
		default:
			return outcome{err: actx.Err()}
		}
	}
}

// invoke runs one attempt under a hard deadline. The attempt fails with a
// timeout as soon as the deadline passes, even if the handler has not
// returned yet; the handler still sees its context cancelled.
func invoke(ctx context.Context, h step.Handler, req *step.Request, timeout time.Duration) (*step.Result, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: errors.HandlerFatal(fmt.Sprintf("handler panicked: %v", r))}
			}
		}()
		res, err := h.Execute(actx, req)
		done <- outcome{res: res, err: err}
	}()

	out := settle(actx, done)
	if out.err == nil {
		if out.res == nil {
			out.res = &step.Result{}
		}
		return out.res, nil
	}
	if ctx.Err() != nil {
		return nil, out.err
	}
	if stderrors.Is(actx.Err(), context.DeadlineExceeded) && errors.KindOf(out.err) != errors.KindTimeout {
		return nil, errors.Timeout(fmt.Sprintf("step %s after %s", req.Step.ID, timeout)).WithCause(out.err)
	}
	return nil, out.err
}
