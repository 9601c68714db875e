package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// heartbeatInterval keeps idle event streams alive through proxies.
var heartbeatInterval = 15 * time.Second

// RoomEvents streams a room's persisted messages as server-sent events until
// the client disconnects. Clients that fall behind lose events; they recover
// through the history endpoint using the last seen seq as the cursor.
func (h *Handler) RoomEvents(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.pathUUID(w, r, "id", "room")
	if !ok {
		return
	}
	if _, err := h.rooms.GetRoom(r.Context(), roomID); err != nil {
		h.Fail(w, r, err, "database error")
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	events, cancel := h.hub.Subscribe(roomID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		h.logger.Error().Err(err).Msg("event stream flush unsupported")
		return
	}

	log := h.logger.With().Str("room_id", roomID.String()).Logger()
	log.Debug().Msg("event stream opened")
	defer func() { log.Debug().Msg("event stream closed") }()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.Error().Err(err).Str("message_id", ev.ID).Msg("encode event")
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: message\ndata: %s\n\n", ev.Seq, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
