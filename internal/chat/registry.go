package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/teamroom/internal/models"
	"github.com/eldtechnologies/teamroom/internal/persona"
	"github.com/eldtechnologies/teamroom/internal/store"
)

// Membership names the identity joining a room. Exactly one field is set.
type Membership struct {
	UserID    *uuid.UUID
	PersonaID string
}

// RoomRegistry owns rooms and their participants.
type RoomRegistry struct {
	store    store.DataStore
	personas *persona.Registry
	logger   zerolog.Logger
}

// NewRoomRegistry creates a registry over ds.
func NewRoomRegistry(ds store.DataStore, personas *persona.Registry, logger zerolog.Logger) *RoomRegistry {
	return &RoomRegistry{store: ds, personas: personas, logger: logger}
}

// GetRoom returns the room or ErrRoomNotFound.
func (r *RoomRegistry) GetRoom(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	room, err := r.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// ListAllParticipants returns every participant of a room in join order.
func (r *RoomRegistry) ListAllParticipants(ctx context.Context, roomID uuid.UUID) ([]models.Participant, error) {
	return r.store.ListParticipants(ctx, roomID)
}

// ListSyntheticParticipants returns the personas currently in a room. The
// result is read from the store on every call.
func (r *RoomRegistry) ListSyntheticParticipants(ctx context.Context, roomID uuid.UUID) ([]models.Participant, error) {
	all, err := r.store.ListParticipants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	synthetic := make([]models.Participant, 0, len(all))
	for _, p := range all {
		if p.IsSynthetic() {
			synthetic = append(synthetic, p)
		}
	}
	return synthetic, nil
}

// AddParticipant joins a user or persona to a room. Joining twice returns
// the existing membership.
func (r *RoomRegistry) AddParticipant(ctx context.Context, roomID uuid.UUID, m Membership) (*models.Participant, error) {
	hasUser := m.UserID != nil && *m.UserID != uuid.Nil
	hasPersona := m.PersonaID != ""
	if hasUser == hasPersona {
		return nil, ErrInvalidMembership
	}

	if _, err := r.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	p := &models.Participant{RoomID: roomID}
	if hasPersona {
		if _, ok := r.personas.Get(m.PersonaID); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPersona, m.PersonaID)
		}
		p.PersonaID = m.PersonaID
	} else {
		u, err := r.store.GetUserByID(ctx, *m.UserID)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, ErrUserNotFound
		}
		p.UserID = m.UserID
	}

	added, err := r.store.AddParticipant(ctx, p)
	if errors.Is(err, store.ErrInvalidParticipant) {
		return nil, ErrInvalidMembership
	}
	return added, err
}

// IsHumanParticipant reports whether userID is a human member of the room.
func (r *RoomRegistry) IsHumanParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	all, err := r.store.ListParticipants(ctx, roomID)
	if err != nil {
		return false, err
	}
	for _, p := range all {
		if p.UserID != nil && *p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// InitializeRoomsForProject provisions one room per project room kind and
// seeds each with the personas that sit in it. Re-running it for the same
// project returns the existing rooms without duplicating rooms or members.
func (r *RoomRegistry) InitializeRoomsForProject(ctx context.Context, projectID uuid.UUID) ([]models.Room, error) {
	project, err := r.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	rooms := make([]models.Room, 0, len(models.ProjectRoomKinds))
	for _, kind := range models.ProjectRoomKinds {
		room, err := r.store.EnsureProjectRoom(ctx, projectID, kind.DisplayName(), kind)
		if err != nil {
			return nil, fmt.Errorf("provision %s room: %w", kind, err)
		}
		if err := r.seedRoster(ctx, room); err != nil {
			return nil, err
		}
		rooms = append(rooms, *room)
	}

	r.logger.Info().
		Str("project_id", projectID.String()).
		Int("rooms", len(rooms)).
		Msg("project rooms initialized")
	return rooms, nil
}

// CreateRoom creates an ad-hoc project room and seeds it with the personas
// of its kind. An empty kind means general.
func (r *RoomRegistry) CreateRoom(ctx context.Context, projectID uuid.UUID, name string, kind models.RoomKind) (*models.Room, error) {
	if kind == "" {
		kind = models.RoomGeneral
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRoomKind, kind)
	}
	if name == "" {
		name = kind.DisplayName()
	}

	project, err := r.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	room, err := r.store.CreateRoom(ctx, projectID, name, kind)
	if err != nil {
		return nil, err
	}
	if err := r.seedRoster(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// ListProjectRooms returns a project's rooms in creation order.
func (r *RoomRegistry) ListProjectRooms(ctx context.Context, projectID uuid.UUID) ([]models.Room, error) {
	project, err := r.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	return r.store.ListProjectRooms(ctx, projectID)
}

func (r *RoomRegistry) seedRoster(ctx context.Context, room *models.Room) error {
	roster, err := r.roster(ctx, room)
	if err != nil {
		return err
	}
	for _, p := range roster {
		if _, err := r.store.AddParticipant(ctx, &models.Participant{RoomID: room.ID, PersonaID: p.ID}); err != nil {
			return fmt.Errorf("seed %s into room %s: %w", p.ID, room.ID, err)
		}
	}
	return nil
}

// roster returns the personas that sit in rooms of this kind, narrowed to
// the project team when the project has one.
func (r *RoomRegistry) roster(ctx context.Context, room *models.Room) ([]models.Persona, error) {
	candidates := r.personas.ForRoomKind(room.Kind)
	team, err := r.store.ProjectTeam(ctx, room.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load team of project %s: %w", room.ProjectID, err)
	}
	if len(team) == 0 {
		return candidates, nil
	}

	onTeam := make(map[string]bool, len(team))
	for _, id := range team {
		onTeam[id] = true
	}
	roster := candidates[:0]
	for _, p := range candidates {
		if onTeam[p.ID] {
			roster = append(roster, p)
		}
	}
	return roster, nil
}
