// Package execution runs pipelines.
//
// An Engine validates a pipeline at submission (definition, graph and
// handler checks) and then drives it on its own goroutine: steps whose
// dependencies are all terminal are dispatched in waves against a snapshot of
// the execution context, bounded by MaxConcurrency. Each attempt runs under a
// hard deadline and transient failures are retried with backoff.
//
// Execution records returned by GetStatus, Wait and List are deep copies.
// Every status change is also written, in order and asynchronously, to the
// configured tracker.Tracker; the terminal status of an execution is
// published only after all of its earlier transitions were acknowledged or
// the flush timeout passed.
package execution
