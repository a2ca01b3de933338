// Package server exposes the download orchestrator over HTTP: a JSON API,
// an SSE event stream, and a websocket mirror of the same stream.
package server

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/nexmoe/vidbee-server/internal/model"
	"github.com/nexmoe/vidbee-server/internal/queue"
)

// Event is one push-channel frame. Type is task-updated, queue-updated, or
// history-updated; Payload is the task or task list.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	eventTaskUpdated    = "task-updated"
	eventQueueUpdated   = "queue-updated"
	eventHistoryUpdated = "history-updated"
)

// Hub fans encoded events out to every connected push client. A single
// goroutine owns the subscriber set; sends to a client that is not reading
// are dropped rather than blocking the rest.
type Hub struct {
	subscribe   chan chan []byte
	unsubscribe chan chan []byte
	publish     chan []byte
	done        chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		subscribe:   make(chan chan []byte),
		unsubscribe: make(chan chan []byte),
		publish:     make(chan []byte, 100),
		done:        make(chan struct{}),
	}
}

// Run owns the subscriber set until ctx is cancelled. Start it on its own
// goroutine before wiring the hub as a listener; once it returns the hub is
// dead and registration calls become no-ops.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	subscribers := make(map[chan []byte]bool)
	for {
		select {
		case <-ctx.Done():
			return
		case ch := <-h.subscribe:
			subscribers[ch] = true
		case ch := <-h.unsubscribe:
			delete(subscribers, ch)
		case msg := <-h.publish:
			for ch := range subscribers {
				select {
				case ch <- msg:
				default:
					// client not reading; drop
				}
			}
		}
	}
}

// Subscribe registers a client channel. The caller owns the channel and must
// Unsubscribe before abandoning it; the hub never closes it.
func (h *Hub) Subscribe(ch chan []byte) {
	select {
	case h.subscribe <- ch:
	case <-h.done:
	}
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	select {
	case h.unsubscribe <- ch:
	case <-h.done:
	}
}

func (h *Hub) Publish(msg []byte) {
	select {
	case h.publish <- msg:
	default:
		// backlog full; drop rather than stall the queue manager
	}
}

// eventBridge adapts the queue's change notifications onto the hub.
type eventBridge struct {
	hub    *Hub
	logger *zap.Logger
}

var _ queue.Listener = (*eventBridge)(nil)

func (b *eventBridge) TaskUpdated(task model.DownloadTask) {
	b.emit(Event{Type: eventTaskUpdated, Payload: task})
}

func (b *eventBridge) QueueUpdated(tasks []model.DownloadTask) {
	b.emit(Event{Type: eventQueueUpdated, Payload: tasks})
}

func (b *eventBridge) HistoryUpdated(tasks []model.DownloadTask) {
	b.emit(Event{Type: eventHistoryUpdated, Payload: tasks})
}

func (b *eventBridge) emit(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error("encode push event", zap.Error(err), zap.String("type", ev.Type))
		return
	}
	b.hub.Publish(data)
}
