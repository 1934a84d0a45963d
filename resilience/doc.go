// Package resilience provides retry with backoff and a bulkhead for
// limiting concurrent access to a collaborator.
//
//	cfg := resilience.RetryConfig{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, Exponential: true}
//	out, err := resilience.Retry(ctx, cfg, func(ctx context.Context, attempt int) (T, error) { ... })
package resilience
