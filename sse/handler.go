package sse

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/pipeflow/logger"
)

// KeepAlive is the interval of comment frames that keep idle streams open
// through proxies.
var KeepAlive = 30 * time.Second

// Stream writes initial and then every event of client to w until a Final
// event, the client channel closing or the request ending. The caller
// registers and unregisters client.
func Stream(w http.ResponseWriter, r *http.Request, client *Client, log *logger.Logger, initial ...Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	if log == nil {
		log = logger.Nop()
	}

	// Streams outlive the server's write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Warn("could not clear write deadline", map[string]interface{}{
			"client_id":       client.ID(),
			logger.FieldError: err.Error(),
		})
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for _, ev := range initial {
		write(w, ev)
		if ev.Final {
			flusher.Flush()
			return
		}
	}
	flusher.Flush()

	keepAlive := time.NewTicker(KeepAlive)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-client.Events():
			if !ok {
				return
			}
			write(w, ev)
			flusher.Flush()
			if ev.Final {
				return
			}
		case <-keepAlive.C:
			fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

func write(w http.ResponseWriter, ev Event) {
	if ev.Name != "" {
		fmt.Fprintf(w, "event: %s\n", ev.Name)
	}
	fmt.Fprintf(w, "data: %s\n\n", ev.Data)
}
