package state

import (
	"strings"

	"github.com/kbukum/pipeflow/expr"
)

// Path roots understood by Scope.
const (
	RootInput = "input"
	RootSteps = "steps"
	RootDeps  = "deps"
)

// Scope resolves references made by one step: input.<path>, steps.<id>.<path>,
// deps.<path> and bare names, which resolve against the merged map outputs of
// the step's direct dependencies.
type Scope struct {
	snap   *Snapshot
	deps   []string
	merged map[string]any
}

var _ expr.Resolver = (*Scope)(nil)

// Deps returns the direct dependencies of the step.
func (s *Scope) Deps() []string { return append([]string(nil), s.deps...) }

// Snapshot returns the underlying snapshot.
func (s *Scope) Snapshot() *Snapshot { return s.snap }

// Dependency returns a copy of the output of a direct dependency. Absent
// dependencies report false.
func (s *Scope) Dependency(id string) (any, bool) { return s.snap.Output(id) }

// Lookup implements expr.Resolver. Returned values must not be modified.
func (s *Scope) Lookup(path []string) (any, bool) {
	if len(path) == 0 {
		return s.merged, true
	}
	switch path[0] {
	case RootInput:
		return expr.Walk(s.snap.input, path[1:])
	case RootSteps:
		return expr.Walk(s.snap.outputs, path[1:])
	case RootDeps:
		return expr.Walk(s.merged, path[1:])
	}
	return expr.Walk(s.merged, path)
}

// Resolve looks up a dotted path and returns a copy of the value. The empty
// path selects the merged dependency outputs; a single dependency with a
// non-map output resolves to that output.
func (s *Scope) Resolve(path string) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		if len(s.deps) == 1 {
			if v, ok := s.snap.outputs[s.deps[0]]; ok {
				if _, isMap := v.(map[string]any); !isMap {
					return Clone(v), true
				}
			}
		}
		return CloneMap(s.merged), true
	}
	v, ok := s.Lookup(strings.Split(path, "."))
	if !ok {
		return nil, false
	}
	return Clone(v), true
}

// Data returns the template data for the step: input, steps and deps, plus
// the merged dependency keys at top level where they do not collide.
func (s *Scope) Data() map[string]any {
	data := CloneMap(s.merged)
	data[RootInput] = CloneMap(s.snap.input)
	data[RootSteps] = CloneMap(s.snap.outputs)
	data[RootDeps] = CloneMap(s.merged)
	return data
}
