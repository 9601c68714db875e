package chat

import (
	"context"

	"github.com/google/uuid"

	"github.com/eldtechnologies/teamroom/internal/models"
	"github.com/eldtechnologies/teamroom/internal/persona"
	"github.com/eldtechnologies/teamroom/internal/store"
)

const (
	unknownUserName    = "Unknown user"
	unknownPersonaName = "Unknown agent"
)

// SenderResolver attaches display names to messages. Humans show their
// name and email; personas show their name and role.
type SenderResolver struct {
	store    store.DataStore
	personas *persona.Registry
}

// NewSenderResolver creates a resolver.
func NewSenderResolver(ds store.DataStore, personas *persona.Registry) *SenderResolver {
	return &SenderResolver{store: ds, personas: personas}
}

// Event resolves a single message.
func (r *SenderResolver) Event(ctx context.Context, m models.Message) models.MessageEvent {
	return r.resolve(ctx, m, nil)
}

// Events resolves a page of messages, looking each user up at most once.
func (r *SenderResolver) Events(ctx context.Context, msgs []models.Message) []models.MessageEvent {
	users := make(map[string]*models.User)
	out := make([]models.MessageEvent, len(msgs))
	for i, m := range msgs {
		out[i] = r.resolve(ctx, m, users)
	}
	return out
}

func (r *SenderResolver) resolve(ctx context.Context, m models.Message, users map[string]*models.User) models.MessageEvent {
	ev := models.MessageEvent{Message: m}

	if m.SenderKind == models.SenderSynthetic {
		if p, ok := r.personas.Get(m.SenderID); ok {
			ev.SenderName = p.Name
			ev.SenderInfo = p.Role
		} else {
			ev.SenderName = unknownPersonaName
		}
		return ev
	}

	u, cached := users[m.SenderID]
	if !cached {
		if id, err := uuid.Parse(m.SenderID); err == nil {
			u, _ = r.store.GetUserByID(ctx, id)
		}
		if users != nil {
			users[m.SenderID] = u
		}
	}
	if u == nil {
		ev.SenderName = unknownUserName
		return ev
	}
	ev.SenderName = u.Name
	ev.SenderInfo = u.Email
	return ev
}
