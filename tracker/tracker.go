package tracker

import (
	"context"
	stderrors "errors"
	"time"
)

// Transition is one recorded status change. StepID is empty for
// execution-level transitions.
type Transition struct {
	ExecutionID string         `json:"execution_id"`
	PipelineID  string         `json:"pipeline_id"`
	StepID      string         `json:"step_id,omitempty"`
	Status      string         `json:"status"`
	Attempt     int            `json:"attempt,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	At          time.Time      `json:"at"`
}

// Key identifies a transition for idempotent writes.
func (t Transition) Key() string {
	return t.ExecutionID + "/" + t.StepID + "/" + t.Status
}

// Tracker durably records transitions. Writes are idempotent by Key: writing
// the same key twice keeps the first write.
type Tracker interface {
	RecordTransition(ctx context.Context, t Transition) error
}

// Reader is implemented by trackers that can replay what they stored.
type Reader interface {
	Transitions(ctx context.Context, executionID string) ([]Transition, error)
}

// Nop discards every transition.
type Nop struct{}

// RecordTransition implements Tracker.
func (Nop) RecordTransition(context.Context, Transition) error { return nil }

// Multi fans each transition out to every backend. A write is acknowledged
// only when all backends acknowledge it.
type Multi []Tracker

// RecordTransition implements Tracker.
func (m Multi) RecordTransition(ctx context.Context, t Transition) error {
	var errs []error
	for _, tr := range m {
		if err := tr.RecordTransition(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Close closes every backend that holds resources.
func (m Multi) Close() error {
	var errs []error
	for _, tr := range m {
		if c, ok := tr.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return stderrors.Join(errs...)
}
