package sse

import (
	"path/filepath"
	"sync"

	"github.com/kbukum/pipeflow/logger"
)

// Event is one SSE frame.
type Event struct {
	// Name is written as the event field. Empty means "message".
	Name string
	Data []byte
	// Final ends the stream after this event is written.
	Final bool
}

// Event names.
const (
	EventConnected  = "connected"
	EventSnapshot   = "snapshot"
	EventTransition = "transition"
)

const clientBuffer = 256

// Client is one connected stream.
type Client struct {
	id     string
	events chan Event
}

// NewClient creates a client. The id is what broadcast patterns match.
func NewClient(id string) *Client {
	return &Client{id: id, events: make(chan Event, clientBuffer)}
}

// ID returns the client id.
func (c *Client) ID() string { return c.id }

// Events returns the channel the hub delivers to. It is closed when the
// client is unregistered or the hub stops.
func (c *Client) Events() <-chan Event { return c.events }

// Send queues ev, reporting false when the client is too slow to keep up.
func (c *Client) Send(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

type message struct {
	pattern string
	event   Event
}

// Hub routes events to registered clients. Run must be running for
// Register, Unregister and Broadcast to make progress.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	stopOnce   sync.Once
	log        *logger.Logger
	mu         sync.RWMutex
}

// NewHub creates a hub. A nil logger discards output.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, clientBuffer),
		done:       make(chan struct{}),
		log:        log.WithComponent("sse"),
	}
}

// Run is the hub's event loop. It returns after Stop, closing every client.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client registered", map[string]interface{}{"client_id": c.id, "clients": n})

		case c := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[c.id]; ok && cur == c {
				delete(h.clients, c.id)
				close(c.events)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Stop ends Run. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register adds c. Events broadcast after Register returns reach c.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.events)
	}
}

// Unregister removes c and closes its channel.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues ev for every client whose id matches the glob pattern.
// The event is dropped when the hub is saturated or stopped.
func (h *Hub) Broadcast(pattern string, ev Event) {
	select {
	case h.broadcast <- message{pattern: pattern, event: ev}:
	case <-h.done:
	default:
		h.log.Warn("hub saturated, dropping event", map[string]interface{}{"pattern": pattern})
	}
}

func (h *Hub) deliver(msg message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		matched, err := filepath.Match(msg.pattern, id)
		if err != nil {
			h.log.Error("bad broadcast pattern", map[string]interface{}{
				"pattern":         msg.pattern,
				logger.FieldError: err.Error(),
			})
			return
		}
		if matched && !c.Send(msg.event) {
			h.log.Warn("client too slow, dropping event", map[string]interface{}{"client_id": id})
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.events)
		delete(h.clients, id)
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
