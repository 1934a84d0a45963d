package state

// Snapshot is a read-only view of a Context at one version. Stored values are
// never handed out directly, so a Snapshot may be shared between goroutines.
type Snapshot struct {
	version uint64
	input   map[string]any
	outputs map[string]any
	absent  map[string]bool
}

// Version returns the Context version the snapshot was taken at.
func (s *Snapshot) Version() uint64 { return s.version }

// Input returns a copy of the execution input.
func (s *Snapshot) Input() map[string]any { return CloneMap(s.input) }

// Output returns a copy of the output of stepID.
func (s *Snapshot) Output(stepID string) (any, bool) {
	v, ok := s.outputs[stepID]
	if !ok {
		return nil, false
	}
	return Clone(v), true
}

// Absent reports whether stepID finished without an output.
func (s *Snapshot) Absent(stepID string) bool { return s.absent[stepID] }

// Outputs returns a copy of all outputs keyed by step id.
func (s *Snapshot) Outputs() map[string]any { return CloneMap(s.outputs) }

// Scope returns the view a step with the given direct dependencies works
// against.
func (s *Snapshot) Scope(deps []string) *Scope {
	merged := make(map[string]any)
	for _, dep := range deps {
		if m, ok := s.outputs[dep].(map[string]any); ok {
			for k, v := range m {
				merged[k] = v
			}
		}
	}
	return &Scope{snap: s, deps: append([]string(nil), deps...), merged: merged}
}
