// Package broadcast delivers persisted room messages to live subscribers.
package broadcast

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/teamroom/internal/models"
)

// Channel pushes a message event to everyone watching a room.
// Publish must not block on slow subscribers.
type Channel interface {
	Publish(ctx context.Context, roomID uuid.UUID, ev models.MessageEvent) error
}

// DefaultBuffer is the per-subscriber queue depth.
const DefaultBuffer = 64

type subscriber struct {
	ch chan models.MessageEvent
}

// Hub fans events out to in-process subscribers, keyed by room.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]map[*subscriber]struct{}
	closed bool
	buffer int
	logger zerolog.Logger
}

// NewHub creates a hub. A non-positive buffer uses DefaultBuffer.
func NewHub(logger zerolog.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		rooms:  make(map[uuid.UUID]map[*subscriber]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers interest in a room. The returned cancel func removes
// the subscription and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(roomID uuid.UUID) (<-chan models.MessageEvent, func()) {
	sub := &subscriber{ch: make(chan models.MessageEvent, h.buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	subs, ok := h.rooms[roomID]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.rooms[roomID] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			subs, ok := h.rooms[roomID]
			if !ok {
				return
			}
			if _, member := subs[sub]; !member {
				return // already closed by Close
			}
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.rooms, roomID)
			}
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Close ends every subscription so streaming readers return. Later
// subscriptions receive an already closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID, subs := range h.rooms {
		for sub := range subs {
			close(sub.ch)
		}
		delete(h.rooms, roomID)
	}
	h.closed = true
}

// Subscribers returns the number of live subscriptions for a room.
func (h *Hub) Subscribers(roomID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Publish delivers ev to every current subscriber of the room. Subscribers
// whose queue is full miss the event.
func (h *Hub) Publish(ctx context.Context, roomID uuid.UUID, ev models.MessageEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.rooms[roomID] {
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn().
				Str("room", roomID.String()).
				Str("message_id", ev.ID).
				Msg("subscriber queue full, dropping event")
		}
	}
	return nil
}
