package execution

import (
	"time"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/state"
)

// Status is the lifecycle state of an execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// StepStatus is the lifecycle state of one step within an execution.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepReady     StepStatus = "ready"
	StepRunning   StepStatus = "running"
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
	StepCancelled StepStatus = "cancelled"
)

// Terminal reports whether s is final.
func (s StepStatus) Terminal() bool {
	switch s {
	case StepSucceeded, StepFailed, StepSkipped, StepCancelled:
		return true
	}
	return false
}

func (s StepStatus) rank() int {
	switch s {
	case StepPending:
		return 0
	case StepReady:
		return 1
	case StepRunning:
		return 2
	}
	return 3
}

// canMove reports whether a step may move from s to next. Statuses only move
// forward and terminal statuses never change.
func (s StepStatus) canMove(next StepStatus) bool {
	return !s.Terminal() && next.rank() > s.rank()
}

// Reasons a step is skipped.
const (
	SkipDisabled     = "disabled"
	SkipBranchPruned = "branch_pruned"
)

// Failure describes an error in a form that survives serialization.
type Failure struct {
	StepID  string         `json:"step_id,omitempty"`
	Kind    errors.Kind    `json:"kind"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// FailureOf converts err into a Failure.
func FailureOf(stepID string, err error) *Failure {
	f := &Failure{
		StepID:  stepID,
		Kind:    errors.KindOf(err),
		Code:    string(errors.CodeOf(err)),
		Message: errors.MessageOf(err),
	}
	if appErr, ok := errors.AsAppError(err); ok && len(appErr.Details) > 0 {
		if details, err := state.Normalize(appErr.Details); err == nil {
			f.Details, _ = details.(map[string]any)
		}
	}
	return f
}

func (f *Failure) clone() *Failure {
	if f == nil {
		return nil
	}
	c := *f
	if f.Details != nil {
		c.Details = state.CloneMap(f.Details)
	}
	return &c
}

// StepExecution is the record of one step within an execution.
type StepExecution struct {
	StepID      string     `json:"step_id"`
	Type        string     `json:"type"`
	Status      StepStatus `json:"status"`
	Attempts    int        `json:"attempts"`
	BestEffort  bool       `json:"best_effort,omitempty"`
	SkipReason  string     `json:"skip_reason,omitempty"`
	Output      any        `json:"output,omitempty"`
	Error       *Failure   `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Execution is the record of one pipeline run. Records returned by the Engine
// are deep copies.
type Execution struct {
	ID              string           `json:"id"`
	PipelineID      string           `json:"pipeline_id"`
	PipelineVersion int              `json:"pipeline_version,omitempty"`
	Status          Status           `json:"status"`
	Input           map[string]any   `json:"input"`
	Steps           []*StepExecution `json:"steps"`
	// Outputs holds the output of every succeeded step, including after the
	// execution failed.
	Outputs     map[string]any `json:"outputs"`
	Error       *Failure       `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Step returns the record of stepID.
func (e *Execution) Step(stepID string) (*StepExecution, bool) {
	for _, s := range e.Steps {
		if s.StepID == stepID {
			return s, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of e.
func (e *Execution) Clone() *Execution {
	c := *e
	c.Input = state.CloneMap(e.Input)
	c.Outputs = state.CloneMap(e.Outputs)
	c.Error = e.Error.clone()
	c.StartedAt = cloneTime(e.StartedAt)
	c.CompletedAt = cloneTime(e.CompletedAt)
	c.Steps = make([]*StepExecution, len(e.Steps))
	for i, s := range e.Steps {
		sc := *s
		sc.Output = state.Clone(s.Output)
		sc.Error = s.Error.clone()
		sc.StartedAt = cloneTime(s.StartedAt)
		sc.CompletedAt = cloneTime(s.CompletedAt)
		c.Steps[i] = &sc
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func timePtr(t time.Time) *time.Time { return &t }
