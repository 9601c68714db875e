package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered human participant.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
