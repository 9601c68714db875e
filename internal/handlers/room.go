package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/eldtechnologies/teamroom/internal/api/middleware"
	"github.com/eldtechnologies/teamroom/internal/chat"
	"github.com/eldtechnologies/teamroom/internal/models"
)

// maxContentBytes bounds a posted message body.
const maxContentBytes = 4096

// CreateRoomRequest represents the room creation request.
type CreateRoomRequest struct {
	ProjectID string          `json:"project_id"`
	Name      string          `json:"name"`
	Kind      models.RoomKind `json:"kind,omitempty"`
}

// ParticipantInfo represents a room member with its display identity.
type ParticipantInfo struct {
	ID        string            `json:"id"`
	Kind      models.SenderKind `json:"kind"`
	UserID    string            `json:"user_id,omitempty"`
	PersonaID string            `json:"persona_id,omitempty"`
	Name      string            `json:"name"`
	Role      string            `json:"role,omitempty"`
	JoinedAt  string            `json:"joined_at"`
}

// ParticipantListResponse represents the participants of a room.
type ParticipantListResponse struct {
	Participants []ParticipantInfo `json:"participants"`
	Total        int               `json:"total"`
}

// AddParticipantRequest names exactly one of a user or a persona.
type AddParticipantRequest struct {
	UserID    string `json:"user_id,omitempty"`
	PersonaID string `json:"persona_id,omitempty"`
}

// RoomMessagesResponse represents the get room messages response.
type RoomMessagesResponse struct {
	Room     RoomInfo              `json:"room"`
	Messages []models.MessageEvent `json:"messages"`
	HasMore  bool                  `json:"has_more"`
}

// PostMessageRequest represents the post message request.
type PostMessageRequest struct {
	Content string `json:"content"`
}

// CreateRoom handles ad-hoc room creation within a project.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid project ID format")
		return
	}

	room, err := h.rooms.CreateRoom(r.Context(), projectID, sanitizeName(req.Name), req.Kind)
	if err != nil {
		h.Fail(w, r, err, "failed to create room")
		return
	}

	h.JSON(w, http.StatusCreated, roomInfo(*room))
}

// ListParticipants returns every member of a room, human or synthetic.
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.pathUUID(w, r, "id", "room")
	if !ok {
		return
	}

	if _, err := h.rooms.GetRoom(r.Context(), roomID); err != nil {
		h.Fail(w, r, err, "database error")
		return
	}
	members, err := h.rooms.ListAllParticipants(r.Context(), roomID)
	if err != nil {
		h.Fail(w, r, err, "database error")
		return
	}

	out := make([]ParticipantInfo, 0, len(members))
	for _, p := range members {
		out = append(out, h.participantInfo(r, p))
	}
	h.JSON(w, http.StatusOK, ParticipantListResponse{Participants: out, Total: len(out)})
}

func (h *Handler) participantInfo(r *http.Request, p models.Participant) ParticipantInfo {
	info := ParticipantInfo{
		ID:       p.ID.String(),
		Kind:     p.Kind(),
		JoinedAt: p.JoinedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if p.IsSynthetic() {
		info.PersonaID = p.PersonaID
		info.Name = "Unknown agent"
		if persona, ok := h.personas.Get(p.PersonaID); ok {
			info.Name = persona.Name
			info.Role = persona.Role
		}
		return info
	}

	info.UserID = p.UserID.String()
	info.Name = "Unknown user"
	if u, err := h.store.GetUserByID(r.Context(), *p.UserID); err == nil && u != nil {
		info.Name = u.Name
	}
	return info
}

// AddParticipant joins a user or persona to a room. Joining twice is a no-op.
func (h *Handler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.pathUUID(w, r, "id", "room")
	if !ok {
		return
	}

	var req AddParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	m := chat.Membership{PersonaID: strings.TrimSpace(req.PersonaID)}
	if req.UserID != "" {
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid user ID format")
			return
		}
		m.UserID = &userID
	}

	p, err := h.rooms.AddParticipant(r.Context(), roomID, m)
	if err != nil {
		h.Fail(w, r, err, "failed to add participant")
		return
	}
	h.JSON(w, http.StatusOK, h.participantInfo(r, *p))
}

// GetRoomMessages handles fetching a page of a room's history, oldest first.
func (h *Handler) GetRoomMessages(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.pathUUID(w, r, "id", "room")
	if !ok {
		return
	}

	room, err := h.rooms.GetRoom(r.Context(), roomID)
	if err != nil {
		h.Fail(w, r, err, "database error")
		return
	}

	limitStr := r.URL.Query().Get("limit")
	beforeStr := r.URL.Query().Get("before")

	limit := chat.DefaultHistoryLimit
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > chat.MaxHistoryLimit {
		limit = chat.MaxHistoryLimit
	}

	var before int64
	if beforeStr != "" {
		if b, err := strconv.ParseInt(beforeStr, 10, 64); err == nil && b > 0 {
			before = b
		}
	}

	page, err := h.history.Page(r.Context(), roomID, limit, before)
	if err != nil {
		h.Fail(w, r, err, "failed to fetch messages")
		return
	}

	h.JSON(w, http.StatusOK, RoomMessagesResponse{
		Room:     roomInfo(*room),
		Messages: page.Messages,
		HasMore:  page.HasMore,
	})
}

// PostMessage handles a human posting to a room. The reply fan-out to the
// room's personas runs after the response is written.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "user identification required")
		return
	}

	roomID, ok := h.pathUUID(w, r, "id", "room")
	if !ok {
		return
	}

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		h.Error(w, http.StatusBadRequest, "content is required")
		return
	}
	if len(content) > maxContentBytes {
		h.Error(w, http.StatusUnprocessableEntity, "content too long (max 4096 bytes)")
		return
	}

	ev, err := h.sender.HandleHumanMessage(r.Context(), roomID, user.ID, content)
	if err != nil {
		h.Fail(w, r, err, "failed to store message")
		return
	}

	h.logger.Debug().
		Str("room_id", roomID.String()).
		Str("user_id", user.ID.String()).
		Int64("seq", ev.Seq).
		Msg("message posted")
	h.JSON(w, http.StatusCreated, ev)
}
