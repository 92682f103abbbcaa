package sse

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/kbukum/smokedb/logger"
)

// EventConnected is the first event of every stream.
const EventConnected = "connected"

// KeepAlive is the interval between keep-alive comments.
var KeepAlive = 30 * time.Second

// Serve registers c with hub and streams its events to w until the request
// ends or the hub stops.
func Serve(hub *Hub, w http.ResponseWriter, r *http.Request, c *Client, log *logger.Logger) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	if log == nil {
		log = hub.log
	}

	// Streams outlive the server's write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("sse write deadline not cleared", logger.Fields("client_id", c.id, "error", err.Error()))
	}

	if err := hub.Register(c); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(c)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	hello, _ := json.Marshal(map[string]string{"client_id": c.id, "pattern": c.pattern})
	writeEvent(w, Event{Name: EventConnected, Data: hello})
	flusher.Flush()

	ticker := time.NewTicker(KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug("sse client disconnected", logger.Fields("client_id", c.id))
			return
		case ev, ok := <-c.Events():
			if !ok {
				return
			}
			writeEvent(w, ev)
			flusher.Flush()
		case <-ticker.C:
			_, _ = fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev Event) {
	if ev.Name != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", ev.Name)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", ev.Data)
}
