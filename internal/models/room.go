package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomKind tags the purpose of a project room.
type RoomKind string

const (
	RoomGeneral    RoomKind = "general"
	RoomManagers   RoomKind = "managers"
	RoomDevelopers RoomKind = "developers"
	RoomTesters    RoomKind = "testers"
	RoomDevOps     RoomKind = "devops"
)

// ProjectRoomKinds is the fixed set of rooms provisioned for every project, in creation order.
var ProjectRoomKinds = []RoomKind{RoomGeneral, RoomManagers, RoomDevelopers, RoomTesters, RoomDevOps}

var roomKindNames = map[RoomKind]string{
	RoomGeneral:    "General",
	RoomManagers:   "Managers",
	RoomDevelopers: "Developers",
	RoomTesters:    "Testers",
	RoomDevOps:     "DevOps",
}

// DisplayName returns the default room name for the kind.
func (k RoomKind) DisplayName() string {
	if name, ok := roomKindNames[k]; ok {
		return name
	}
	return string(k)
}

// Valid reports whether k is one of the known room kinds.
func (k RoomKind) Valid() bool {
	_, ok := roomKindNames[k]
	return ok
}

// Room represents a project chat room.
type Room struct {
	ID           uuid.UUID `json:"id"`
	ProjectID    uuid.UUID `json:"project_id"`
	Name         string    `json:"name"`
	Kind         RoomKind  `json:"kind"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	MessageCount int64     `json:"message_count"`
}
