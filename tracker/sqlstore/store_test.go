package sqlstore

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/kbukum/pipeflow/database"
	"github.com/kbukum/pipeflow/logger"
	"github.com/kbukum/pipeflow/tracker"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(context.Background(), database.Config{DSN: ":memory:", LogLevel: "silent"}, logger.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	s, err := New(db)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestStore_RecordAndRead(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	in := []tracker.Transition{
		{ExecutionID: "e1", PipelineID: "p", Status: "running", At: at},
		{ExecutionID: "e1", PipelineID: "p", StepID: "a", Status: "failed", Attempt: 3, At: at,
			Payload: map[string]any{"kind": "transient", "message": "upstream down"}},
		{ExecutionID: "e2", PipelineID: "p", Status: "running", At: at},
	}
	for _, tr := range in {
		if err := s.RecordTransition(ctx, tr); err != nil {
			t.Fatalf("RecordTransition: %v", err)
		}
	}

	got, err := s.Transitions(ctx, "e1")
	if err != nil {
		t.Fatalf("Transitions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d transitions, want 2", len(got))
	}
	if !got[1].At.Equal(at) {
		t.Errorf("At = %v, want %v", got[1].At, at)
	}
	got[1].At = at
	if !reflect.DeepEqual(got[1], in[1]) {
		t.Errorf("round trip = %+v, want %+v", got[1], in[1])
	}
}

func TestStore_IdempotentByKey(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	tr := tracker.Transition{ExecutionID: "e", StepID: "a", Status: "succeeded", At: time.Now()}

	for i := 0; i < 3; i++ {
		tr.Attempt = i + 1
		if err := s.RecordTransition(ctx, tr); err != nil {
			t.Fatalf("RecordTransition #%d: %v", i, err)
		}
	}
	got, _ := s.Transitions(ctx, "e")
	if len(got) != 1 {
		t.Fatalf("got %d transitions, want 1", len(got))
	}
	if got[0].Attempt != 1 {
		t.Errorf("attempt = %d, want the first write kept", got[0].Attempt)
	}
}
