// Package kafkasink publishes transitions to a Kafka topic as JSON events
// keyed by execution id, so every execution's events land on one partition in
// order.
package kafkasink

import (
	"context"
	"encoding/json"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/pipeflow/tracker"
)

// HeaderTransitionKey carries tracker.Transition.Key so consumers can drop
// the rare duplicate a retried write produces.
const HeaderTransitionKey = "transition-key"

// Publisher is the subset of *producer.Producer the sink needs.
type Publisher interface {
	SendJSON(ctx context.Context, key string, value interface{}, headers ...kafkago.Header) error
}

// Sink is a tracker.Tracker backed by Kafka. Acknowledged keys are
// remembered until the execution reaches a terminal status, so a repeated
// write is not published twice.
type Sink struct {
	pub  Publisher
	mu   sync.Mutex
	sent map[string]map[string]struct{}
}

var _ tracker.Tracker = (*Sink)(nil)

// New creates a Sink.
func New(pub Publisher) *Sink {
	return &Sink{pub: pub, sent: make(map[string]map[string]struct{})}
}

// RecordTransition implements tracker.Tracker.
func (s *Sink) RecordTransition(ctx context.Context, t tracker.Transition) error {
	key := t.Key()
	s.mu.Lock()
	_, dup := s.sent[t.ExecutionID][key]
	s.mu.Unlock()
	if dup {
		return nil
	}

	if err := s.pub.SendJSON(ctx, t.ExecutionID, t, kafkago.Header{Key: HeaderTransitionKey, Value: []byte(key)}); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t.StepID == "" && terminal(t.Status) {
		delete(s.sent, t.ExecutionID)
		return nil
	}
	keys, ok := s.sent[t.ExecutionID]
	if !ok {
		keys = make(map[string]struct{})
		s.sent[t.ExecutionID] = keys
	}
	keys[key] = struct{}{}
	return nil
}

// Decode parses a message value written by the sink.
func Decode(value []byte) (tracker.Transition, error) {
	var t tracker.Transition
	err := json.Unmarshal(value, &t)
	return t, err
}

func terminal(status string) bool {
	switch status {
	case "completed", "failed", "cancelled":
		return true
	}
	return false
}
