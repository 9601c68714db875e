package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/eldtechnologies/teamroom/internal/models"
)

var (
	// ErrInvalidParticipant is returned when a membership names neither or both identities.
	ErrInvalidParticipant = errors.New("participant must reference exactly one of user or persona")
	// ErrRoomNotFound is returned when a write references a missing room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrProjectNotFound is returned when a write references a missing project.
	ErrProjectNotFound = errors.New("project not found")
)

// DataStore defines the interface for persistent storage of users, projects,
// rooms, participants and messages. PostgresStore, SQLiteStore and
// MemoryStore implement it. Lookups return (nil, nil) when nothing matches.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, name, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CountUsers(ctx context.Context) (int64, error)

	// Project operations
	CreateProject(ctx context.Context, name, description string) (*models.Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	// SetProjectTeam replaces the personas staffing a project. ProjectTeam
	// returns them in the order they were set; an empty result means the
	// project has no team.
	SetProjectTeam(ctx context.Context, projectID uuid.UUID, personaIDs []string) error
	ProjectTeam(ctx context.Context, projectID uuid.UUID) ([]string, error)

	// Room operations
	CreateRoom(ctx context.Context, projectID uuid.UUID, name string, kind models.RoomKind) (*models.Room, error)
	// EnsureProjectRoom returns the project's room of the given kind, creating
	// it if absent. At most one such room ever exists per (project, kind).
	EnsureProjectRoom(ctx context.Context, projectID uuid.UUID, name string, kind models.RoomKind) (*models.Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	ListProjectRooms(ctx context.Context, projectID uuid.UUID) ([]models.Room, error)
	CountRooms(ctx context.Context) (int64, error)
	GetTopActiveRooms(ctx context.Context, limit int) ([]models.Room, error)
	GetMostRecentActivity(ctx context.Context) (*time.Time, error)

	// Participant operations. AddParticipant is a no-op returning the existing
	// record when the identity is already in the room.
	AddParticipant(ctx context.Context, p *models.Participant) (*models.Participant, error)
	ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.Participant, error)

	// Message operations. AppendMessage assigns ID, Seq and CreatedAt when
	// unset; Seq is strictly increasing in append order.
	AppendMessage(ctx context.Context, msg *models.Message) error
	// RecentMessages returns up to limit messages newest first, optionally
	// strictly before the given sequence (0 means no bound). Seq is global
	// across rooms, so the bound applies by value.
	RecentMessages(ctx context.Context, roomID uuid.UUID, limit int, beforeSeq int64) ([]models.Message, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	CountMessages(ctx context.Context) (int64, error)
}

// validParticipant checks the exactly-one-identity rule.
func validParticipant(p *models.Participant) error {
	hasUser := p.UserID != nil && *p.UserID != uuid.Nil
	hasPersona := p.PersonaID != ""
	if hasUser == hasPersona {
		return ErrInvalidParticipant
	}
	return nil
}

var (
	_ DataStore = (*PostgresStore)(nil)
	_ DataStore = (*SQLiteStore)(nil)
	_ DataStore = (*MemoryStore)(nil)
)
