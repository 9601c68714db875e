package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant binds a room to exactly one human or synthetic identity.
type Participant struct {
	ID        uuid.UUID  `json:"id"`
	RoomID    uuid.UUID  `json:"room_id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	PersonaID string     `json:"persona_id,omitempty"`
	JoinedAt  time.Time  `json:"joined_at"`
}

// IsSynthetic reports whether the participant is a persona.
func (p *Participant) IsSynthetic() bool {
	return p.PersonaID != ""
}

// Kind returns the sender kind messages from this participant carry.
func (p *Participant) Kind() SenderKind {
	if p.IsSynthetic() {
		return SenderSynthetic
	}
	return SenderHuman
}
