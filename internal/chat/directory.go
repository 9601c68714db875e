package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/teamroom/internal/metrics"
	"github.com/eldtechnologies/teamroom/internal/models"
	"github.com/eldtechnologies/teamroom/internal/store"
)

// Directory manages users and project provisioning.
type Directory struct {
	store  store.DataStore
	rooms  *RoomRegistry
	logger zerolog.Logger
}

// NewDirectory creates a directory that provisions project rooms via rooms.
func NewDirectory(ds store.DataStore, rooms *RoomRegistry, logger zerolog.Logger) *Directory {
	return &Directory{store: ds, rooms: rooms, logger: logger}
}

// RegisterUser creates a user, or returns the existing user with the same
// email. The bool reports whether a new user was created.
func (d *Directory) RegisterUser(ctx context.Context, name, email string) (*models.User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" {
		existing, err := d.store.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	u, err := d.store.CreateUser(ctx, strings.TrimSpace(name), email)
	if err != nil {
		// Lost a race with a concurrent registration of the same email.
		if email != "" {
			if existing, lookupErr := d.store.GetUserByEmail(ctx, email); lookupErr == nil && existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	metrics.UsersRegistered.Inc()
	d.logger.Info().Str("user_id", u.ID.String()).Msg("user registered")
	return u, true, nil
}

// GetUser returns the user or ErrUserNotFound.
func (d *Directory) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := d.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// CreateProject creates a project in planning status and provisions its
// rooms. A non-empty team is recorded first, so only its members are seeded.
func (d *Directory) CreateProject(ctx context.Context, name, description string, team []string) (*models.Project, []models.Room, error) {
	team, err := d.resolveTeam(team)
	if err != nil {
		return nil, nil, err
	}

	p, err := d.store.CreateProject(ctx, strings.TrimSpace(name), strings.TrimSpace(description))
	if err != nil {
		return nil, nil, err
	}
	if len(team) > 0 {
		if err := d.store.SetProjectTeam(ctx, p.ID, team); err != nil {
			return p, nil, err
		}
	}
	rooms, err := d.rooms.InitializeRoomsForProject(ctx, p.ID)
	if err != nil {
		return p, nil, err
	}
	return p, rooms, nil
}

// GetProject returns the project or ErrProjectNotFound.
func (d *Directory) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	p, err := d.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

// SetProjectTeam replaces the personas staffing a project and returns the
// team most senior first. New members join the project's provisioned rooms
// they sit in; existing memberships are left alone. An empty list clears the
// team, after which rooms seed from the whole catalog again.
func (d *Directory) SetProjectTeam(ctx context.Context, projectID uuid.UUID, personaIDs []string) ([]models.Persona, error) {
	team, err := d.resolveTeam(personaIDs)
	if err != nil {
		return nil, err
	}
	if _, err := d.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	if err := d.store.SetProjectTeam(ctx, projectID, team); err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if _, err := d.rooms.InitializeRoomsForProject(ctx, projectID); err != nil {
		return nil, err
	}

	d.logger.Info().
		Str("project_id", projectID.String()).
		Int("team_size", len(team)).
		Msg("project team set")
	return d.orderTeam(team), nil
}

// ProjectTeam returns the personas staffing a project, most senior first.
// A project without a team returns an empty list.
func (d *Directory) ProjectTeam(ctx context.Context, projectID uuid.UUID) ([]models.Persona, error) {
	if _, err := d.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	ids, err := d.store.ProjectTeam(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return d.orderTeam(ids), nil
}

// resolveTeam trims and de-duplicates persona IDs, rejecting unknown ones.
func (d *Directory) resolveTeam(personaIDs []string) ([]string, error) {
	seen := make(map[string]bool, len(personaIDs))
	team := make([]string, 0, len(personaIDs))
	for _, id := range personaIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		if _, ok := d.rooms.personas.Get(id); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPersona, id)
		}
		seen[id] = true
		team = append(team, id)
	}
	return team, nil
}

// orderTeam maps IDs onto the catalog order. IDs the catalog no longer
// knows are skipped.
func (d *Directory) orderTeam(ids []string) []models.Persona {
	onTeam := make(map[string]bool, len(ids))
	for _, id := range ids {
		onTeam[id] = true
	}
	team := make([]models.Persona, 0, len(ids))
	for _, p := range d.rooms.personas.List() {
		if onTeam[p.ID] {
			team = append(team, p)
		}
	}
	return team
}
