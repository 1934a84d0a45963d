// Package sse streams execution transitions to HTTP clients as
// Server-Sent Events.
//
// A Hub routes events to connected clients by glob pattern over client ids.
// Tracker is a tracker.Tracker that publishes every transition of an
// execution to the clients watching it, and Stream writes a client's events
// to the response until the execution ends or the client goes away.
//
//	events := sse.NewComponent(log)
//	trk := sse.NewTracker(events.Hub())
//	client := sse.NewClient(sse.ExecutionClientID(id, uuid.NewString()))
//	events.Hub().Register(client)
//	defer events.Hub().Unregister(client)
//	sse.Stream(w, r, client, log)
//
// Delivery is best effort: a slow client drops events rather than stalling
// the recorder. The durable trackers remain the record.
package sse
