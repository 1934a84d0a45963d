package step

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/pipeline"
	"github.com/kbukum/pipeflow/state"
)

// Request is one handler invocation.
type Request struct {
	ExecutionID string
	PipelineID  string
	Step        *pipeline.StepDefinition
	// Scope is the read-only view of the execution context taken when the
	// step's wave started.
	Scope *state.Scope
	// Attempt is 1-based.
	Attempt int
	// Timeout is the hard per-attempt deadline the engine applies. Handlers
	// that pass limits on to a collaborator forward it.
	Timeout time.Duration
}

// Result is the outcome of a successful invocation.
type Result struct {
	Output any
	// Prune lists steps whose branch was not taken. Only condition steps set it.
	Prune []string
}

// Handler runs steps of one type. Handlers must return promptly once ctx is
// done.
type Handler interface {
	Type() pipeline.StepType
	Execute(ctx context.Context, req *Request) (*Result, error)
}

// Checker is implemented by handlers that validate a definition at
// submission, before any step runs. Failures are definition errors.
type Checker interface {
	Check(def *pipeline.StepDefinition) error
}

// Preflighter is implemented by handlers that validate a resolved request at
// dispatch, before the first attempt. Failures fail the step without retry.
type Preflighter interface {
	Preflight(req *Request) error
}

type unwrapper interface {
	Unwrap() Handler
}

// Check runs the submission check of h, looking through decorators.
func Check(h Handler, def *pipeline.StepDefinition) error {
	for h != nil {
		if c, ok := h.(Checker); ok {
			return c.Check(def)
		}
		u, ok := h.(unwrapper)
		if !ok {
			return nil
		}
		h = u.Unwrap()
	}
	return nil
}

// Preflight runs the dispatch check of h, looking through decorators.
func Preflight(h Handler, req *Request) error {
	for h != nil {
		if p, ok := h.(Preflighter); ok {
			return p.Preflight(req)
		}
		u, ok := h.(unwrapper)
		if !ok {
			return nil
		}
		h = u.Unwrap()
	}
	return nil
}

// configOf extracts the typed config of a step.
func configOf[T pipeline.StepConfig](def *pipeline.StepDefinition) (T, error) {
	cfg, ok := def.Config.(T)
	if !ok {
		var zero T
		return zero, errors.HandlerFatal(fmt.Sprintf("step %s: unexpected config %T for type %s", def.ID, def.Config, def.Type))
	}
	return cfg, nil
}

// definitionError reports a step that fails its submission check.
func definitionError(def *pipeline.StepDefinition, cause error) error {
	return errors.Definition(fmt.Sprintf("step %s: %s", def.ID, errors.MessageOf(cause))).
		WithCause(cause).
		WithDetail("step_id", def.ID)
}
