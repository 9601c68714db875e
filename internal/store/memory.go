package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eldtechnologies/teamroom/internal/ids"
	"github.com/eldtechnologies/teamroom/internal/models"
)

// MemoryStore is a process-local DataStore used for development and tests.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]models.User
	projects     map[uuid.UUID]models.Project
	rooms        map[uuid.UUID]*models.Room
	provisioned  map[uuid.UUID]map[models.RoomKind]uuid.UUID
	participants map[uuid.UUID][]models.Participant
	teams        map[uuid.UUID][]string
	messages     map[uuid.UUID][]models.Message
	seq          int64
	now          func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[uuid.UUID]models.User),
		projects:     make(map[uuid.UUID]models.Project),
		rooms:        make(map[uuid.UUID]*models.Room),
		provisioned:  make(map[uuid.UUID]map[models.RoomKind]uuid.UUID),
		participants: make(map[uuid.UUID][]models.Participant),
		teams:        make(map[uuid.UUID][]string),
		messages:     make(map[uuid.UUID][]models.Message),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Close is a no-op.
func (s *MemoryStore) Close() {}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// CreateUser creates a new user record.
func (s *MemoryStore) CreateUser(ctx context.Context, name, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := models.User{ID: ids.NewUUIDv7(), Name: name, Email: email, CreatedAt: s.now()}
	s.users[u.ID] = u
	return &u, nil
}

// GetUserByID retrieves a user by ID.
func (s *MemoryStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// GetUserByEmail retrieves a user by email.
func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if email == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

// CountUsers returns the number of registered users.
func (s *MemoryStore) CountUsers(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

// CreateProject creates a project in planning status.
func (s *MemoryStore) CreateProject(ctx context.Context, name, description string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := models.Project{
		ID:          ids.NewUUIDv7(),
		Name:        name,
		Description: description,
		Status:      models.ProjectStatusPlanning,
		CreatedAt:   s.now(),
	}
	s.projects[p.ID] = p
	return &p, nil
}

// GetProject retrieves a project by ID.
func (s *MemoryStore) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// SetProjectTeam replaces a project's team.
func (s *MemoryStore) SetProjectTeam(ctx context.Context, projectID uuid.UUID, personaIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return ErrProjectNotFound
	}
	if len(personaIDs) == 0 {
		delete(s.teams, projectID)
		return nil
	}
	s.teams[projectID] = append([]string(nil), personaIDs...)
	return nil
}

// ProjectTeam returns a project's persona IDs in the order they were set.
func (s *MemoryStore) ProjectTeam(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.teams[projectID]...), nil
}

func (s *MemoryStore) newRoomLocked(projectID uuid.UUID, name string, kind models.RoomKind) *models.Room {
	now := s.now()
	r := &models.Room{
		ID:           ids.NewUUIDv7(),
		ProjectID:    projectID,
		Name:         name,
		Kind:         kind,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	s.rooms[r.ID] = r
	return r
}

// CreateRoom creates an ad-hoc room in a project.
func (s *MemoryStore) CreateRoom(ctx context.Context, projectID uuid.UUID, name string, kind models.RoomKind) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := *s.newRoomLocked(projectID, name, kind)
	return &r, nil
}

// EnsureProjectRoom returns the provisioned room of a kind, inserting it if absent.
func (s *MemoryStore) EnsureProjectRoom(ctx context.Context, projectID uuid.UUID, name string, kind models.RoomKind) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKind, ok := s.provisioned[projectID]
	if !ok {
		byKind = make(map[models.RoomKind]uuid.UUID)
		s.provisioned[projectID] = byKind
	}
	if id, ok := byKind[kind]; ok {
		r := *s.rooms[id]
		return &r, nil
	}

	created := s.newRoomLocked(projectID, name, kind)
	byKind[kind] = created.ID
	r := *created
	return &r, nil
}

// GetRoom retrieves a room by ID.
func (s *MemoryStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[id]
	if !ok {
		return nil, nil
	}
	out := *r
	return &out, nil
}

func (s *MemoryStore) sortedRoomsLocked(keep func(*models.Room) bool) []models.Room {
	var out []models.Room
	for _, r := range s.rooms {
		if keep(r) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// ListProjectRooms returns a project's rooms in creation order.
func (s *MemoryStore) ListProjectRooms(ctx context.Context, projectID uuid.UUID) ([]models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedRoomsLocked(func(r *models.Room) bool { return r.ProjectID == projectID }), nil
}

// CountRooms returns the number of rooms.
func (s *MemoryStore) CountRooms(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.rooms)), nil
}

// GetTopActiveRooms returns the rooms with the most messages.
func (s *MemoryStore) GetTopActiveRooms(ctx context.Context, limit int) ([]models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := s.sortedRoomsLocked(func(r *models.Room) bool { return r.MessageCount > 0 })
	sort.SliceStable(rooms, func(i, j int) bool {
		if rooms[i].MessageCount != rooms[j].MessageCount {
			return rooms[i].MessageCount > rooms[j].MessageCount
		}
		return rooms[i].LastActiveAt.After(rooms[j].LastActiveAt)
	})
	if len(rooms) > limit {
		rooms = rooms[:limit]
	}
	return rooms, nil
}

// GetMostRecentActivity returns the latest room activity, or nil with no messages.
func (s *MemoryStore) GetMostRecentActivity(ctx context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *time.Time
	for _, r := range s.rooms {
		if r.MessageCount == 0 {
			continue
		}
		if latest == nil || r.LastActiveAt.After(*latest) {
			t := r.LastActiveAt
			latest = &t
		}
	}
	return latest, nil
}

// AddParticipant adds a membership, returning the existing one on repeat.
func (s *MemoryStore) AddParticipant(ctx context.Context, p *models.Participant) (*models.Participant, error) {
	if err := validParticipant(p); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[p.RoomID]; !ok {
		return nil, ErrRoomNotFound
	}

	for _, existing := range s.participants[p.RoomID] {
		if p.PersonaID != "" && existing.PersonaID == p.PersonaID {
			return &existing, nil
		}
		if p.UserID != nil && existing.UserID != nil && *existing.UserID == *p.UserID {
			return &existing, nil
		}
	}

	added := models.Participant{
		ID:        ids.NewUUIDv7(),
		RoomID:    p.RoomID,
		PersonaID: p.PersonaID,
		JoinedAt:  s.now(),
	}
	if p.UserID != nil {
		uid := *p.UserID
		added.UserID = &uid
	}
	s.participants[p.RoomID] = append(s.participants[p.RoomID], added)
	return &added, nil
}

// ListParticipants returns a room's participants in join order.
func (s *MemoryStore) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.participants[roomID]
	out := make([]models.Participant, len(src))
	copy(out, src)
	return out, nil
}

// AppendMessage inserts a message and bumps the room's activity counters.
func (s *MemoryStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[msg.RoomID]
	if !ok {
		return ErrRoomNotFound
	}

	if msg.ID == "" {
		msg.ID = ids.NewMessageID()
	}
	if msg.ContentKind == "" {
		msg.ContentKind = models.ContentText
	}

	created := s.now()
	if log := s.messages[msg.RoomID]; len(log) > 0 {
		if last := log[len(log)-1].CreatedAt; created.Before(last) {
			created = last
		}
	}
	s.seq++
	msg.Seq = s.seq
	msg.CreatedAt = created

	s.messages[msg.RoomID] = append(s.messages[msg.RoomID], *msg)
	room.MessageCount++
	room.LastActiveAt = created
	return nil
}

// RecentMessages returns a room's messages newest first.
func (s *MemoryStore) RecentMessages(ctx context.Context, roomID uuid.UUID, limit int, beforeSeq int64) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.messages[roomID]
	end := len(log)
	if beforeSeq > 0 {
		// The log is in append order and seq grows with it.
		end = sort.Search(len(log), func(i int) bool { return log[i].Seq >= beforeSeq })
	}

	out := make([]models.Message, 0, limit)
	for i := end - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, log[i])
	}
	return out, nil
}

// GetMessage retrieves a message by ID.
func (s *MemoryStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, log := range s.messages {
		for _, m := range log {
			if m.ID == id {
				return &m, nil
			}
		}
	}
	return nil, nil
}

// CountMessages returns the total number of messages.
func (s *MemoryStore) CountMessages(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, log := range s.messages {
		n += int64(len(log))
	}
	return n, nil
}
