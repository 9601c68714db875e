// Package ids generates identifiers for stored records.
package ids

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewUUIDv7 generates a time-ordered UUID v7.
func NewUUIDv7() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewMessageID returns a lexically sortable message identifier.
func NewMessageID() string {
	return ulid.Make().String()
}
