package state

import (
	"fmt"

	"github.com/kbukum/pipeflow/errors"
)

// Context is the append-only store of step outputs for one execution. It is
// owned by the coordinator and is not safe for concurrent use; handlers only
// ever see Snapshots.
type Context struct {
	input   map[string]any
	outputs map[string]any
	absent  map[string]bool
	version uint64
}

// New creates a Context seeded with the execution input.
func New(input map[string]any) (*Context, error) {
	normalized, err := Normalize(input)
	if err != nil {
		return nil, errors.InvalidInput("input", err.Error())
	}
	in, _ := normalized.(map[string]any)
	if in == nil {
		in = map[string]any{}
	}
	return &Context{
		input:   in,
		outputs: make(map[string]any),
		absent:  make(map[string]bool),
	}, nil
}

// Put records the output of a succeeded step. Each step is written at most
// once.
func (c *Context) Put(stepID string, output any) error {
	if c.written(stepID) {
		return errors.EngineInvariant(fmt.Sprintf("output of step %s written twice", stepID))
	}
	v, err := Normalize(output)
	if err != nil {
		return errors.HandlerFatal(fmt.Sprintf("output of step %s is not serializable", stepID)).WithCause(err)
	}
	c.outputs[stepID] = v
	c.version++
	return nil
}

// MarkAbsent records that stepID finished without a usable output (skipped,
// disabled or a best-effort failure).
func (c *Context) MarkAbsent(stepID string) error {
	if c.written(stepID) {
		return errors.EngineInvariant(fmt.Sprintf("output of step %s written twice", stepID))
	}
	c.absent[stepID] = true
	c.version++
	return nil
}

func (c *Context) written(stepID string) bool {
	_, ok := c.outputs[stepID]
	return ok || c.absent[stepID]
}

// Output returns a copy of the recorded output of stepID.
func (c *Context) Output(stepID string) (any, bool) {
	v, ok := c.outputs[stepID]
	if !ok {
		return nil, false
	}
	return Clone(v), true
}

// Version counts writes; it increases by one per Put or MarkAbsent.
func (c *Context) Version() uint64 { return c.version }

// Snapshot returns an immutable view of the current state.
func (c *Context) Snapshot() *Snapshot {
	outputs := make(map[string]any, len(c.outputs))
	for k, v := range c.outputs {
		outputs[k] = v
	}
	absent := make(map[string]bool, len(c.absent))
	for k := range c.absent {
		absent[k] = true
	}
	return &Snapshot{version: c.version, input: c.input, outputs: outputs, absent: absent}
}

// Outputs returns a deep copy of every recorded output.
func (c *Context) Outputs() map[string]any {
	return CloneMap(c.outputs)
}
