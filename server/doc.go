// Package server provides the pipeflow HTTP API on top of Gin.
//
// Server owns the listener and the middleware stack (recovery, request id,
// CORS, body-size limit, request logging and optional per-client rate
// limiting). API mounts the /v1 routes over an Executor:
//
//	GET  /v1/pipelines
//	POST /v1/pipelines/validate
//	POST /v1/pipelines/:id/executions
//	POST /v1/executions
//	GET  /v1/executions
//	GET  /v1/executions/:id
//	POST /v1/executions/:id/cancel
//	GET  /v1/executions/:id/events   (with WithEvents)
//
// Probe endpoints live in server/endpoint: /healthz, /livez, /readyz and
// /version. Errors are rendered from errors.AppError with its HTTP status.
package server
