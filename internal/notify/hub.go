// Package notify fans weather change events out to push subscribers:
// websocket clients on the /data namespace and an optional MQTT bridge.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Namespace is the channel clients subscribe to.
const Namespace = "/data"

// defaultQueueSize bounds the per-subscriber backlog.
const defaultQueueSize = 32

// Message is the envelope written to every subscriber.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Conn is the subset of a websocket connection the hub needs.
// *websocket.Conn from gofiber/contrib/websocket satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
}

type subscriber struct {
	id   string
	send chan Message
}

// Hub tracks websocket subscribers and broadcasts events to them.
// Broadcasts never block: a subscriber whose queue is full misses the message.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool
	queueSize   int
	logger      *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[string]*subscriber),
		queueSize:   defaultQueueSize,
		logger:      logger,
	}
}

// Notify queues the event for every connected subscriber.
func (h *Hub) Notify(_ context.Context, event string, payload any) {
	msg := Message{Event: event, Data: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	for _, sub := range h.subscribers {
		select {
		case sub.send <- msg:
		default:
			h.logger.Warn("subscriber queue full; dropping event",
				"subscriber", sub.id,
				"event", event,
			)
		}
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Serve registers conn and pumps queued events to it until the client
// disconnects, a write fails or the hub is closed. It blocks.
func (h *Hub) Serve(conn Conn) {
	sub, ok := h.subscribe()
	if !ok {
		return
	}
	defer h.unsubscribe(sub)

	h.logger.Info("client connected", "namespace", Namespace, "subscriber", sub.id)

	// The read loop only detects disconnects; inbound messages are ignored.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, open := <-sub.send:
			if !open {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("write to subscriber failed", "subscriber", sub.id, "error", err)
				return
			}
		case <-gone:
			h.logger.Info("client disconnected", "namespace", Namespace, "subscriber", sub.id)
			return
		}
	}
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subscribers {
		close(sub.send)
		delete(h.subscribers, id)
	}
}

func (h *Hub) subscribe() (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, false
	}
	sub := &subscriber{
		id:   uuid.NewString(),
		send: make(chan Message, h.queueSize),
	}
	h.subscribers[sub.id] = sub
	return sub, true
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub.id]; ok {
		delete(h.subscribers, sub.id)
		close(sub.send)
	}
}
