package producer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	kafkago "github.com/segmentio/kafka-go"

	apperrors "github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/kafka"
)

type fakeWriter struct {
	mu       sync.Mutex
	failures []error
	calls    int
	written  []kafkago.Message
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if len(w.failures) > 0 {
		err := w.failures[0]
		w.failures = w.failures[1:]
		return err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Stats() kafkago.WriterStats { return kafkago.WriterStats{Topic: "t"} }

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func newProducer(t *testing.T, w *fakeWriter) *Producer {
	t.Helper()
	p, err := NewWithWriter(kafka.Config{Brokers: []string{"broker:9092"}, Topic: "transitions"}, w, nil)
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	return p
}

func TestProducer_SendJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(t, w)

	if err := p.SendJSON(context.Background(), "exec-1", map[string]string{"status": "running"}); err != nil {
		t.Fatalf("SendJSON: %v", err)
	}
	if len(w.written) != 1 {
		t.Fatalf("written %d messages, want 1", len(w.written))
	}
	msg := w.written[0]
	if msg.Topic != "transitions" || string(msg.Key) != "exec-1" {
		t.Errorf("topic/key = %s/%s", msg.Topic, msg.Key)
	}
	var body map[string]string
	if err := json.Unmarshal(msg.Value, &body); err != nil || body["status"] != "running" {
		t.Errorf("value = %s (%v)", msg.Value, err)
	}
	if len(msg.Headers) == 0 || msg.Headers[0].Key != "content-type" {
		t.Errorf("headers = %v", msg.Headers)
	}
}

func TestProducer_RetriesTransientErrors(t *testing.T) {
	w := &fakeWriter{failures: []error{errors.New("leader not available")}}
	p := newProducer(t, w)

	if err := p.WriteMessages(context.Background(), kafkago.Message{Value: []byte("x")}); err != nil {
		t.Fatalf("WriteMessages: %v", err)
	}
	if w.calls != 2 {
		t.Errorf("calls = %d, want 2", w.calls)
	}
}

func TestProducer_DoesNotRetryPermanentErrors(t *testing.T) {
	w := &fakeWriter{failures: []error{errors.New("message too large")}}
	p := newProducer(t, w)

	err := p.WriteMessages(context.Background(), kafkago.Message{Value: []byte("x")})
	if w.calls != 1 {
		t.Errorf("calls = %d, want 1", w.calls)
	}
	if apperrors.IsRetryable(err) {
		t.Errorf("error %v should not be retryable", err)
	}
}

func TestProducer_Closed(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(t, w)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !w.closed {
		t.Error("writer not closed")
	}
	if err := p.WriteMessages(context.Background(), kafkago.Message{}); err == nil {
		t.Error("write after Close succeeded")
	}
	if p.Stats().Topic != "t" {
		t.Error("Stats not delegated")
	}
}
