// Package persona holds the catalog of synthetic participants.
//
// A Registry is built once at start-up and never mutated afterwards, so
// lookups need no locking.
package persona

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/eldtechnologies/teamroom/internal/models"
)

var (
	ErrEmptyCatalog     = errors.New("persona catalog is empty")
	ErrDuplicatePersona = errors.New("duplicate persona id")
	ErrInvalidPersona   = errors.New("invalid persona")
)

// Registry is an immutable persona catalog.
type Registry struct {
	byID    map[string]models.Persona
	ordered []models.Persona
}

// NewRegistry validates the given personas and builds a registry from them.
func NewRegistry(personas []models.Persona) (*Registry, error) {
	if len(personas) == 0 {
		return nil, ErrEmptyCatalog
	}

	r := &Registry{byID: make(map[string]models.Persona, len(personas))}
	for _, p := range personas {
		p.ID = strings.TrimSpace(p.ID)
		if err := validate(p); err != nil {
			return nil, err
		}
		if _, exists := r.byID[p.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePersona, p.ID)
		}
		p.Rooms = append([]models.RoomKind(nil), p.Rooms...)
		r.byID[p.ID] = p
		r.ordered = append(r.ordered, p)
	}

	// Most senior first, then by name.
	sort.SliceStable(r.ordered, func(i, j int) bool {
		if r.ordered[i].Tier != r.ordered[j].Tier {
			return r.ordered[i].Tier > r.ordered[j].Tier
		}
		return r.ordered[i].Name < r.ordered[j].Name
	})

	return r, nil
}

// Default returns a registry over the built-in catalog.
func Default() *Registry {
	r, err := NewRegistry(DefaultPersonas())
	if err != nil {
		panic(err)
	}
	return r
}

func validate(p models.Persona) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidPersona)
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: %s: name is required", ErrInvalidPersona, p.ID)
	case strings.TrimSpace(p.Role) == "":
		return fmt.Errorf("%w: %s: role is required", ErrInvalidPersona, p.ID)
	case p.Tier < models.TierJunior || p.Tier > models.TierSenior:
		return fmt.Errorf("%w: %s: skill tier is required", ErrInvalidPersona, p.ID)
	}
	for _, k := range p.Rooms {
		if !k.Valid() {
			return fmt.Errorf("%w: %s: unknown room kind %q", ErrInvalidPersona, p.ID, k)
		}
	}
	return nil
}

// Get returns the persona with the given ID.
func (r *Registry) Get(id string) (models.Persona, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// List returns all personas, most senior first.
func (r *Registry) List() []models.Persona {
	out := make([]models.Persona, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// ForRoomKind returns the personas seeded into rooms of the given kind.
func (r *Registry) ForRoomKind(kind models.RoomKind) []models.Persona {
	var out []models.Persona
	for _, p := range r.ordered {
		if p.SitsIn(kind) {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of personas in the catalog.
func (r *Registry) Len() int {
	return len(r.ordered)
}
