package tracker

import (
	"context"
	"sync"
)

// Memory keeps transitions in process, in arrival order.
type Memory struct {
	mu   sync.RWMutex
	seen map[string]bool
	log  map[string][]Transition
}

// NewMemory creates an empty Memory tracker.
func NewMemory() *Memory {
	return &Memory{seen: make(map[string]bool), log: make(map[string][]Transition)}
}

// RecordTransition implements Tracker.
func (m *Memory) RecordTransition(_ context.Context, t Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := t.Key()
	if m.seen[key] {
		return nil
	}
	m.seen[key] = true
	m.log[t.ExecutionID] = append(m.log[t.ExecutionID], t)
	return nil
}

// Transitions implements Reader.
func (m *Memory) Transitions(_ context.Context, executionID string) ([]Transition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Transition(nil), m.log[executionID]...), nil
}
