// Package step defines the handler contract the engine dispatches steps
// through, the registry keyed by step type, and one handler per step type.
//
// Handlers receive a Request carrying the step definition and a read-only
// state.Scope taken when the step's wave started. They return an output
// value, and condition handlers also return the steps they prune. Errors carry
// an errors.Kind; the engine retries only transient and timeout kinds.
//
// Handlers may also implement Checker, run once per step when a pipeline is
// submitted, and Preflighter, run once per step right before its first
// attempt:
//
//	reg := step.NewRegistry(
//		step.NewConditionHandler(),
//		step.NewTransformHandler(),
//		step.NewHTTPHandler(client),
//	)
//	reg.Wrap(func(h step.Handler) step.Handler { return step.WithLogging(h, log) })
//	if err := reg.Check(p); err != nil {
//		// definition error
//	}
package step
