package models

import (
	"time"

	"github.com/google/uuid"
)

// SenderKind distinguishes human from synthetic senders.
type SenderKind string

const (
	SenderHuman     SenderKind = "human"
	SenderSynthetic SenderKind = "synthetic"
)

// ContentText is the only content kind currently produced.
const ContentText = "text"

// Message represents a persisted chat message.
type Message struct {
	ID          string     `json:"id"`  // ULID
	Seq         int64      `json:"seq"` // store-assigned, monotonic
	RoomID      uuid.UUID  `json:"room_id"`
	SenderKind  SenderKind `json:"sender_kind"`
	SenderID    string     `json:"sender_id"` // user UUID or persona ID
	Content     string     `json:"content"`
	ContentKind string     `json:"content_kind"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Before reports whether m sorts before o in room order.
func (m *Message) Before(o *Message) bool {
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.Before(o.CreatedAt)
	}
	return m.Seq < o.Seq
}

// MessageEvent is a message as delivered to room subscribers and history readers.
type MessageEvent struct {
	Message
	SenderName string `json:"sender_name"`
	SenderInfo string `json:"sender_info,omitempty"`
}
