package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/eldtechnologies/teamroom/internal/models"
)

// CreateProjectRequest represents the project creation request.
type CreateProjectRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Team        []string `json:"team,omitempty"`
}

// CreateProjectResponse is a new project together with its provisioned rooms.
type CreateProjectResponse struct {
	Project models.Project `json:"project"`
	Rooms   []RoomInfo     `json:"rooms"`
}

// SetTeamRequest names the personas staffing a project.
type SetTeamRequest struct {
	PersonaIDs []string `json:"persona_ids"`
}

// TeamResponse represents a project team, most senior first.
type TeamResponse struct {
	ProjectID string           `json:"project_id"`
	Team      []models.Persona `json:"team"`
	TeamSize  int              `json:"team_size"`
}

// RoomInfo represents a room in list responses.
type RoomInfo struct {
	ID           string          `json:"id"`
	ProjectID    string          `json:"project_id"`
	Name         string          `json:"name"`
	Kind         models.RoomKind `json:"kind"`
	MessageCount int64           `json:"message_count"`
	LastActive   string          `json:"last_active"`
}

// RoomListResponse represents a project's rooms.
type RoomListResponse struct {
	Rooms []RoomInfo `json:"rooms"`
	Total int        `json:"total"`
}

func roomInfo(room models.Room) RoomInfo {
	return RoomInfo{
		ID:           room.ID.String(),
		ProjectID:    room.ProjectID.String(),
		Name:         room.Name,
		Kind:         room.Kind,
		MessageCount: room.MessageCount,
		LastActive:   room.LastActiveAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func roomInfos(rooms []models.Room) []RoomInfo {
	out := make([]RoomInfo, len(rooms))
	for i, room := range rooms {
		out[i] = roomInfo(room)
	}
	return out
}

// CreateProject creates a project and provisions its rooms.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := sanitizeName(req.Name)
	if name == "" {
		h.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	description := strings.TrimSpace(req.Description)
	if len(description) > 4096 {
		h.Error(w, http.StatusUnprocessableEntity, "description too long (max 4096 bytes)")
		return
	}

	project, rooms, err := h.users.CreateProject(r.Context(), name, description, req.Team)
	if err != nil {
		h.Fail(w, r, err, "failed to create project")
		return
	}

	h.JSON(w, http.StatusCreated, CreateProjectResponse{
		Project: *project,
		Rooms:   roomInfos(rooms),
	})
}

// GetProject returns a project.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id", "project")
	if !ok {
		return
	}

	project, err := h.users.GetProject(r.Context(), id)
	if err != nil {
		h.Fail(w, r, err, "database error")
		return
	}
	h.JSON(w, http.StatusOK, project)
}

// InitProjectRooms provisions any of the project's standard rooms that are
// missing. Safe to call repeatedly.
func (h *Handler) InitProjectRooms(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id", "project")
	if !ok {
		return
	}

	rooms, err := h.rooms.InitializeRoomsForProject(r.Context(), id)
	if err != nil {
		h.Fail(w, r, err, "failed to initialize rooms")
		return
	}
	h.JSON(w, http.StatusOK, RoomListResponse{Rooms: roomInfos(rooms), Total: len(rooms)})
}

// ListProjectRooms returns a project's rooms in creation order.
func (h *Handler) ListProjectRooms(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id", "project")
	if !ok {
		return
	}

	rooms, err := h.rooms.ListProjectRooms(r.Context(), id)
	if err != nil {
		h.Fail(w, r, err, "database error")
		return
	}
	h.JSON(w, http.StatusOK, RoomListResponse{Rooms: roomInfos(rooms), Total: len(rooms)})
}

// SetProjectTeam replaces a project's team. Members join the project rooms
// they sit in; an empty list clears the team.
func (h *Handler) SetProjectTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id", "project")
	if !ok {
		return
	}

	var req SetTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	team, err := h.users.SetProjectTeam(r.Context(), id, req.PersonaIDs)
	if err != nil {
		h.Fail(w, r, err, "failed to set project team")
		return
	}
	h.JSON(w, http.StatusOK, TeamResponse{ProjectID: id.String(), Team: team, TeamSize: len(team)})
}

// GetProjectTeam returns a project's team.
func (h *Handler) GetProjectTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id", "project")
	if !ok {
		return
	}

	team, err := h.users.ProjectTeam(r.Context(), id)
	if err != nil {
		h.Fail(w, r, err, "database error")
		return
	}
	h.JSON(w, http.StatusOK, TeamResponse{ProjectID: id.String(), Team: team, TeamSize: len(team)})
}
