// Package chat is the room orchestration engine: membership, conversation
// context, persona prompts and the concurrent reply fan-out.
package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMembership is returned when a membership names neither or both
	// of a user and a persona.
	ErrInvalidMembership = errors.New("membership must name exactly one of user or persona")

	// ErrContextUnavailable is returned when the room behind a context
	// assembly cannot be resolved.
	ErrContextUnavailable = errors.New("conversation context unavailable")

	ErrRoomNotFound    = errors.New("room not found")
	ErrProjectNotFound = errors.New("project not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrUnknownPersona  = errors.New("unknown persona")
	ErrInvalidRoomKind = errors.New("invalid room kind")
	ErrEmptyContent    = errors.New("message content is empty")

	// ErrNotParticipant is returned when a sender is not a human participant
	// of the room it posts to.
	ErrNotParticipant = errors.New("sender is not a participant of this room")
)

// GenerationError reports a reply branch whose generator never produced a
// usable reply.
type GenerationError struct {
	PersonaID string
	Attempts  int
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for persona %s after %d attempt(s): %v", e.PersonaID, e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
