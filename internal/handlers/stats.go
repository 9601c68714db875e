package handlers

import (
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

// RoomStats represents stats for a single room.
type RoomStats struct {
	ID           string `json:"id"`
	ProjectID    string `json:"project_id"`
	Name         string `json:"name"`
	MessageCount int64  `json:"message_count"`
}

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalUsers    int64       `json:"total_users"`
	TotalRooms    int64       `json:"total_rooms"`
	TotalMessages int64       `json:"total_messages"`
	TotalPersonas int         `json:"total_personas"`
	LastActivity  string      `json:"last_activity"`
	TopRooms      []RoomStats `json:"top_rooms"`
}

// Stats returns platform totals and the busiest rooms.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	var (
		resp         StatsResponse
		lastActivity *time.Time
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		resp.TotalUsers, err = h.store.CountUsers(ctx)
		return err
	})
	g.Go(func() (err error) {
		resp.TotalRooms, err = h.store.CountRooms(ctx)
		return err
	})
	g.Go(func() (err error) {
		resp.TotalMessages, err = h.store.CountMessages(ctx)
		return err
	})
	g.Go(func() (err error) {
		lastActivity, err = h.store.GetMostRecentActivity(ctx)
		return err
	})
	g.Go(func() error {
		top, err := h.store.GetTopActiveRooms(ctx, 5)
		if err != nil {
			return err
		}
		resp.TopRooms = make([]RoomStats, 0, len(top))
		for _, room := range top {
			resp.TopRooms = append(resp.TopRooms, RoomStats{
				ID:           room.ID.String(),
				ProjectID:    room.ProjectID.String(),
				Name:         room.Name,
				MessageCount: room.MessageCount,
			})
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		h.Fail(w, r, err, "failed to compute stats")
		return
	}

	resp.TotalPersonas = h.personas.Len()
	resp.LastActivity = "no activity yet"
	if lastActivity != nil {
		resp.LastActivity = formatTimeAgo(*lastActivity)
	}

	h.JSON(w, http.StatusOK, resp)
}

// formatTimeAgo formats a time as a human-readable "X ago" string.
func formatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return strconv.Itoa(n) + " " + unit + "s ago"
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	default:
		return plural(int(diff.Hours()/24), "day")
	}
}
