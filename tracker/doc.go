// Package tracker records execution and step status transitions.
//
// The engine writes one Transition per status change and retries until the
// tracker acknowledges it. Every backend is idempotent by
// (execution_id, step_id, status), so a retried write is harmless.
//
// Backends:
//   - Memory: in-process log, used by tests and the run command
//   - sqlstore: gorm (sqlite or postgres)
//   - redisstore: go-redis
//   - kafkasink: kafka-go event stream
//
// Multi combines backends; a write is acknowledged once all of them
// acknowledge it.
package tracker
