// Package logger provides structured logging for pipeflow using zerolog.
//
// Loggers are scoped by component and enriched from context with the
// execution and step identifiers of the work being logged.
//
//	log := logger.WithComponent("coordinator")
//	log.WithContext(ctx).Info("step succeeded", logger.Fields(logger.FieldAttempt, 2))
package logger
