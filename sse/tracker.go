package sse

import (
	"context"
	"encoding/json"

	"github.com/kbukum/pipeflow/tracker"
)

const clientPrefix = "execution:"

// ExecutionClientID returns a unique client id for a stream watching
// executionID.
func ExecutionClientID(executionID, streamID string) string {
	return clientPrefix + executionID + ":" + streamID
}

// ExecutionPattern matches every client watching executionID.
func ExecutionPattern(executionID string) string {
	return clientPrefix + executionID + ":*"
}

// Tracker publishes transitions to the clients watching their execution.
// It always acknowledges, since a live view is not a durable record.
type Tracker struct {
	hub *Hub
}

var _ tracker.Tracker = (*Tracker)(nil)

// NewTracker creates a Tracker publishing through hub.
func NewTracker(hub *Hub) *Tracker {
	return &Tracker{hub: hub}
}

// RecordTransition implements tracker.Tracker. A terminal execution-level
// transition ends the watching streams.
func (t *Tracker) RecordTransition(_ context.Context, tr tracker.Transition) error {
	data, err := json.Marshal(tr)
	if err != nil {
		// Not streamable; the durable trackers still get it.
		return nil
	}
	t.hub.Broadcast(ExecutionPattern(tr.ExecutionID), Event{
		Name:  EventTransition,
		Data:  data,
		Final: tr.StepID == "" && terminal(tr.Status),
	})
	return nil
}

func terminal(status string) bool {
	switch status {
	case "completed", "failed", "cancelled":
		return true
	}
	return false
}
