package tracker

import (
	"context"
	"errors"
	"testing"
)

func TestTransition_Key(t *testing.T) {
	a := Transition{ExecutionID: "e", StepID: "s", Status: "running", Attempt: 1}
	b := Transition{ExecutionID: "e", StepID: "s", Status: "running", Attempt: 2}
	if a.Key() != b.Key() {
		t.Errorf("keys differ by attempt: %s vs %s", a.Key(), b.Key())
	}
	if a.Key() == (Transition{ExecutionID: "e", Status: "running"}).Key() {
		t.Error("step and execution transitions share a key")
	}
}

func TestMemory_Idempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	writes := []Transition{
		{ExecutionID: "e", StepID: "a", Status: "running", Attempt: 1},
		{ExecutionID: "e", StepID: "a", Status: "running", Attempt: 2},
		{ExecutionID: "e", StepID: "a", Status: "succeeded"},
		{ExecutionID: "other", Status: "running"},
	}
	for _, tr := range writes {
		if err := m.RecordTransition(ctx, tr); err != nil {
			t.Fatalf("RecordTransition: %v", err)
		}
	}

	got, _ := m.Transitions(ctx, "e")
	if len(got) != 2 {
		t.Fatalf("got %d transitions, want 2", len(got))
	}
	if got[0].Attempt != 1 {
		t.Errorf("first write not kept: attempt %d", got[0].Attempt)
	}

	got[0].Status = "mutated"
	again, _ := m.Transitions(ctx, "e")
	if again[0].Status != "running" {
		t.Error("Transitions returned shared storage")
	}
}

type failing struct{ err error }

func (f failing) RecordTransition(context.Context, Transition) error { return f.err }

type closer struct {
	Nop
	closed bool
}

func (c *closer) Close() error {
	c.closed = true
	return nil
}

func TestMulti(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	boom := errors.New("boom")

	if err := (Multi{mem, Nop{}}).RecordTransition(ctx, Transition{ExecutionID: "e", Status: "running"}); err != nil {
		t.Fatalf("RecordTransition: %v", err)
	}
	if got, _ := mem.Transitions(ctx, "e"); len(got) != 1 {
		t.Errorf("memory got %d transitions, want 1", len(got))
	}

	err := (Multi{mem, failing{boom}}).RecordTransition(ctx, Transition{ExecutionID: "e", Status: "completed"})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}
	if got, _ := mem.Transitions(ctx, "e"); len(got) != 2 {
		t.Errorf("healthy backend skipped on partial failure")
	}

	c := &closer{}
	if err := (Multi{mem, c}).Close(); err != nil || !c.closed {
		t.Errorf("Close() = %v, closed = %v", err, c.closed)
	}
}
