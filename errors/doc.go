// Package errors provides the structured error type used across pipeflow.
//
// Every failure that crosses a package boundary is an *AppError carrying a
// machine-readable code, an HTTP status for the API layer and a retryable
// flag. KindOf folds codes and context errors into the coarse taxonomy the
// execution coordinator acts on.
package errors
