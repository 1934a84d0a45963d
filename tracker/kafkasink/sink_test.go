package kafkasink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/pipeflow/kafka"
	"github.com/kbukum/pipeflow/kafka/producer"
	"github.com/kbukum/pipeflow/tracker"
)

type captureWriter struct {
	msgs []kafkago.Message
	fail error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.fail != nil {
		return w.fail
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Stats() kafkago.WriterStats { return kafkago.WriterStats{} }
func (w *captureWriter) Close() error               { return nil }

func newSink(t *testing.T, w *captureWriter) *Sink {
	t.Helper()
	p, err := producer.NewWithWriter(kafka.Config{Brokers: []string{"broker:9092"}, Topic: "transitions", Retries: 1}, w, nil)
	if err != nil {
		t.Fatalf("producer: %v", err)
	}
	return New(p)
}

func TestSink_PublishesKeyedByExecution(t *testing.T) {
	w := &captureWriter{}
	s := newSink(t, w)
	ctx := context.Background()

	tr := tracker.Transition{ExecutionID: "e1", PipelineID: "p", StepID: "a", Status: "running", Attempt: 1}
	if err := s.RecordTransition(ctx, tr); err != nil {
		t.Fatalf("RecordTransition: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "e1" || msg.Topic != "transitions" {
		t.Errorf("key/topic = %s/%s", msg.Key, msg.Topic)
	}
	got, err := Decode(msg.Value)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.StepID != "a" || got.Status != "running" || got.Attempt != 1 {
		t.Errorf("decoded = %+v", got)
	}
	var found bool
	for _, h := range msg.Headers {
		if h.Key == HeaderTransitionKey && string(h.Value) == tr.Key() {
			found = true
		}
	}
	if !found {
		t.Errorf("headers = %v, missing %s", msg.Headers, HeaderTransitionKey)
	}
}

func TestSink_SkipsAcknowledgedKeys(t *testing.T) {
	w := &captureWriter{}
	s := newSink(t, w)
	ctx := context.Background()

	tr := tracker.Transition{ExecutionID: "e1", StepID: "a", Status: "succeeded"}
	for i := 0; i < 3; i++ {
		if err := s.RecordTransition(ctx, tr); err != nil {
			t.Fatalf("RecordTransition: %v", err)
		}
	}
	if len(w.msgs) != 1 {
		t.Errorf("published %d messages, want 1", len(w.msgs))
	}

	if err := s.RecordTransition(ctx, tracker.Transition{ExecutionID: "e1", Status: "completed"}); err != nil {
		t.Fatalf("RecordTransition: %v", err)
	}
	if len(s.sent) != 0 {
		t.Errorf("keys kept after terminal status: %v", s.sent)
	}
}

func TestSink_FailedWriteIsRetried(t *testing.T) {
	w := &captureWriter{fail: errors.New("broker not available")}
	s := newSink(t, w)
	ctx := context.Background()
	tr := tracker.Transition{ExecutionID: "e1", Status: "running"}

	if err := s.RecordTransition(ctx, tr); err == nil {
		t.Fatal("RecordTransition succeeded against a failing broker")
	}
	w.fail = nil
	if err := s.RecordTransition(ctx, tr); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Errorf("published %d messages, want 1", len(w.msgs))
	}
	var raw map[string]any
	if err := json.Unmarshal(w.msgs[0].Value, &raw); err != nil || raw["execution_id"] != "e1" {
		t.Errorf("value = %s", w.msgs[0].Value)
	}
}
