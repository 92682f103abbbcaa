package sse

import (
	"errors"
	"path"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"

	"github.com/kbukum/smokedb/logger"
)

// DefaultBuffer is the number of events a client may fall behind by before
// events are dropped.
const DefaultBuffer = 256

// ErrHubStopped is returned when publishing to or subscribing on a stopped hub.
var ErrHubStopped = errors.New("sse: hub stopped")

// Event is one server-sent event.
type Event struct {
	Name string
	Data []byte
}

// Client is a subscriber. Its pattern selects the topics it receives.
type Client struct {
	id      string
	pattern string
	events  chan Event
}

// NewClient creates a client subscribed to topics matching pattern. A buffer
// of zero or less uses DefaultBuffer.
func NewClient(id, pattern string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Client{id: id, pattern: pattern, events: make(chan Event, buffer)}
}

func (c *Client) ID() string { return c.id }

func (c *Client) Pattern() string { return c.pattern }

// Events returns the channel the hub delivers to. It is closed when the
// client is unregistered or the hub stops.
func (c *Client) Events() <-chan Event { return c.events }

// send queues ev without blocking and reports whether it was queued.
func (c *Client) send(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

type message struct {
	topic string
	event Event
}

// Hub tracks clients and fans published events out to them.
type Hub struct {
	log *logger.Logger

	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	dropped atomic.Int64
}

// NewHub creates a hub. Call Run to start routing.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Get("sse")
	}
	return &Hub{
		log:        log,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, DefaultBuffer),
		done:       make(chan struct{}),
	}
}

// Run routes registrations and events until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[c.id]; ok {
				close(old.events)
			}
			h.clients[c.id] = c
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("sse client registered", logger.Fields("client_id", c.id, "pattern", c.pattern, "clients", total))

		case c := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[c.id]; ok && cur == c {
				delete(h.clients, c.id)
				close(c.events)
			}
			h.mu.Unlock()
			h.log.Debug("sse client unregistered", logger.Fields("client_id", c.id))

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Stop closes every client and makes Run return. It is safe to call more
// than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register subscribes c. It fails once the hub is stopped.
func (h *Hub) Register(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Unregister removes c and closes its channel.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish encodes data as JSON and sends it to clients matching topic.
func (h *Hub) Publish(topic, name string, data any) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- message{topic: topic, event: Event{Name: name, Data: payload}}:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

func (h *Hub) deliver(msg message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		matched, err := path.Match(c.pattern, msg.topic)
		if err != nil {
			h.log.Warn("sse bad client pattern", logger.Fields("client_id", id, "pattern", c.pattern))
			continue
		}
		if matched && !c.send(msg.event) {
			h.dropped.Add(1)
			h.log.Warn("sse client too slow, event dropped", logger.Fields("client_id", id, "topic", msg.topic))
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

// Dropped returns how many events were dropped for slow clients.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }
