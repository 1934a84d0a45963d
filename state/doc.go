// Package state holds the execution context: the append-only, versioned map
// of step outputs written by the coordinator, and the immutable snapshots and
// per-step scopes handlers read from.
//
// All stored values are normalized to JSON shapes on write so snapshots can be
// deep-copied cheaply and compared predictably by expressions and templates.
package state
