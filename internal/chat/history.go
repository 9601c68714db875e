package chat

import (
	"context"

	"github.com/google/uuid"

	"github.com/eldtechnologies/teamroom/internal/models"
	"github.com/eldtechnologies/teamroom/internal/persona"
	"github.com/eldtechnologies/teamroom/internal/store"
)

// History page limits.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// HistoryPage is a slice of a room's messages in display order.
type HistoryPage struct {
	Messages []models.MessageEvent `json:"messages"` // oldest first
	HasMore  bool                  `json:"has_more"`
}

// HistoryReader serves historical reads for late joiners.
type HistoryReader struct {
	store    store.DataStore
	resolver *SenderResolver
}

// NewHistoryReader creates a history reader.
func NewHistoryReader(ds store.DataStore, personas *persona.Registry) *HistoryReader {
	return &HistoryReader{store: ds, resolver: NewSenderResolver(ds, personas)}
}

// Page returns up to limit messages strictly before the beforeSeq cursor
// (0 for the newest), oldest first.
func (h *HistoryReader) Page(ctx context.Context, roomID uuid.UUID, limit int, beforeSeq int64) (*HistoryPage, error) {
	room, err := h.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	msgs, err := h.store.RecentMessages(ctx, roomID, limit+1, beforeSeq)
	if err != nil {
		return nil, err
	}
	hasMore := len(msgs) > limit
	if hasMore {
		msgs = msgs[:limit]
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	return &HistoryPage{Messages: h.resolver.Events(ctx, msgs), HasMore: hasMore}, nil
}
