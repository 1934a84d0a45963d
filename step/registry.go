package step

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/pipeline"
)

// Registry maps step types to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[pipeline.StepType]Handler
}

// NewRegistry creates a registry holding the given handlers.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[pipeline.StepType]Handler)}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// Register adds h, replacing any handler of the same type.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Type()] = h
}

// Get returns the handler for t.
func (r *Registry) Get(t pipeline.StepType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[t]
	return h, ok
}

// Types returns the registered step types, sorted.
func (r *Registry) Types() []pipeline.StepType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]pipeline.StepType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Wrap replaces every handler with wrap(handler). Decorators are applied in
// call order, so the last Wrap is outermost.
func (r *Registry) Wrap(wrap func(Handler) Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for t, h := range r.handlers {
		r.handlers[t] = wrap(h)
	}
}

// Check verifies that every enabled step of p has a handler and passes its
// handler's submission check.
func (r *Registry) Check(p *pipeline.Pipeline) error {
	for i := range p.Steps {
		def := &p.Steps[i]
		if !def.IsEnabled() {
			continue
		}
		h, ok := r.Get(def.Type)
		if !ok {
			return errors.Definition(fmt.Sprintf("step %s: no handler registered for type %s", def.ID, def.Type)).
				WithDetail("step_id", def.ID)
		}
		if err := Check(h, def); err != nil {
			if errors.KindOf(err) == errors.KindDefinition {
				return err
			}
			return definitionError(def, err)
		}
	}
	return nil
}
