package execution

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kbukum/pipeflow/logger"
	"github.com/kbukum/pipeflow/tracker"
)

func TestRecorder_FlushWaitsForWrites(t *testing.T) {
	mem := tracker.NewMemory()
	r := newRecorder(mem, logger.Nop())
	defer r.close()

	for i := 0; i < 50; i++ {
		r.record(tracker.Transition{ExecutionID: "e", StepID: fmt.Sprintf("s%d", i), Status: "succeeded"})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	got, _ := mem.Transitions(context.Background(), "e")
	if len(got) != 50 {
		t.Fatalf("recorded %d transitions, want 50", len(got))
	}
	for i, tr := range got {
		if want := fmt.Sprintf("s%d", i); tr.StepID != want {
			t.Errorf("transition %d = %s, want %s", i, tr.StepID, want)
		}
	}
}

type downTracker struct{}

func (downTracker) RecordTransition(context.Context, tracker.Transition) error {
	return fmt.Errorf("tracker down")
}

func TestRecorder_FlushHonorsContext(t *testing.T) {
	r := newRecorder(downTracker{}, logger.Nop())
	r.record(tracker.Transition{ExecutionID: "e", Status: "running"})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := r.flush(ctx); err == nil {
		t.Error("flush succeeded against a failing tracker")
	}

	closed := make(chan struct{})
	go func() {
		r.close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Error("close did not stop the retry loop")
	}
}

func TestRecorder_FlushWhenIdle(t *testing.T) {
	r := newRecorder(tracker.Nop{}, logger.Nop())
	defer r.close()
	if err := r.flush(context.Background()); err != nil {
		t.Errorf("flush on idle recorder = %v", err)
	}
}
