package sse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/pipeflow/tracker"
)

func runHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(nil)
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		if !ok {
			t.Fatal("client channel closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	return Event{}
}

func TestClient_SendDropsWhenFull(t *testing.T) {
	c := NewClient("execution:e:1")
	for i := 0; i < clientBuffer; i++ {
		if !c.Send(Event{Data: []byte("x")}) {
			t.Fatalf("send %d failed before the buffer filled", i)
		}
	}
	if c.Send(Event{Data: []byte("overflow")}) {
		t.Error("send succeeded on a full buffer")
	}
}

func TestHub_BroadcastMatchesPattern(t *testing.T) {
	h := runHub(t)
	a := NewClient(ExecutionClientID("e1", "s1"))
	b := NewClient(ExecutionClientID("e2", "s1"))
	h.Register(a)
	h.Register(b)

	h.Broadcast(ExecutionPattern("e1"), Event{Name: EventTransition, Data: []byte(`{}`)})
	if ev := receive(t, a); ev.Name != EventTransition {
		t.Errorf("event = %+v", ev)
	}
	select {
	case ev := <-b.Events():
		t.Errorf("client of another execution got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	if n := h.ClientCount(); n != 2 {
		t.Errorf("ClientCount = %d, want 2", n)
	}
}

func TestHub_UnregisterClosesClient(t *testing.T) {
	h := runHub(t)
	c := NewClient("execution:e:1")
	h.Register(c)
	h.Unregister(c)
	select {
	case _, ok := <-c.Events():
		if ok {
			t.Error("unexpected event after unregister")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestHub_StopClosesClientsAndUnblocks(t *testing.T) {
	h := NewHub(nil)
	done := make(chan struct{})
	go func() {
		h.Run()
		close(done)
	}()
	c := NewClient("execution:e:1")
	h.Register(c)
	h.Stop()
	h.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if _, ok := <-c.Events(); ok {
		t.Error("client channel still open after Stop")
	}

	late := NewClient("execution:e:2")
	h.Register(late)
	h.Unregister(late)
	h.Broadcast("*", Event{})
	if _, ok := <-late.Events(); ok {
		t.Error("client registered after Stop is open")
	}
}

func TestTracker_FinalOnTerminalExecution(t *testing.T) {
	h := runHub(t)
	c := NewClient(ExecutionClientID("e1", "s"))
	h.Register(c)
	trk := NewTracker(h)
	ctx := context.Background()

	tests := []struct {
		tr    tracker.Transition
		final bool
	}{
		{tracker.Transition{ExecutionID: "e1", Status: "running"}, false},
		{tracker.Transition{ExecutionID: "e1", StepID: "a", Status: "failed"}, false},
		{tracker.Transition{ExecutionID: "e1", Status: "failed"}, true},
	}
	for _, tt := range tests {
		if err := trk.RecordTransition(ctx, tt.tr); err != nil {
			t.Fatalf("RecordTransition: %v", err)
		}
		ev := receive(t, c)
		if ev.Final != tt.final {
			t.Errorf("%s/%s final = %v, want %v", tt.tr.StepID, tt.tr.Status, ev.Final, tt.final)
		}
		var got tracker.Transition
		if err := json.Unmarshal(ev.Data, &got); err != nil || got.Status != tt.tr.Status {
			t.Errorf("data = %s (%v)", ev.Data, err)
		}
	}
}

func TestStream(t *testing.T) {
	h := runHub(t)
	c := NewClient(ExecutionClientID("e1", "s"))
	h.Register(c)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/executions/e1/events", nil)
	done := make(chan struct{})
	go func() {
		Stream(rr, req, c, nil, Event{Name: EventSnapshot, Data: []byte(`{"status":"running"}`)})
		close(done)
	}()

	trk := NewTracker(h)
	_ = trk.RecordTransition(context.Background(), tracker.Transition{ExecutionID: "e1", StepID: "a", Status: "succeeded"})
	_ = trk.RecordTransition(context.Background(), tracker.Transition{ExecutionID: "e1", Status: "completed"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end on the terminal transition")
	}

	out := rr.Body.String()
	if !strings.HasPrefix(out, "event: snapshot\ndata: {\"status\":\"running\"}\n\n") {
		t.Errorf("stream does not open with the snapshot: %q", out)
	}
	if strings.Count(out, "event: transition\n") != 2 {
		t.Errorf("want 2 transition events, got %q", out)
	}
	if rr.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q", rr.Header().Get("Content-Type"))
	}
}

func TestStream_FinalInitialEvent(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	Stream(rr, req, NewClient("x"), nil, Event{Name: EventSnapshot, Data: []byte(`{}`), Final: true})
	if rr.Body.String() != "event: snapshot\ndata: {}\n\n" {
		t.Errorf("body = %q", rr.Body.String())
	}
}

func TestStream_RequestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		Stream(rr, req, NewClient("x"), nil)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream ignored request cancellation")
	}
}
