package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eldtechnologies/teamroom/internal/ids"
	"github.com/eldtechnologies/teamroom/internal/metrics"
	"github.com/eldtechnologies/teamroom/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func observe(backend, op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

const userColumns = `id, name, email, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, name, email string) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `
		INSERT INTO users (id, name, email)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns, ids.NewUUIDv7(), name, email))
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if email == "" {
		return nil, nil
	}
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// CountUsers returns the number of registered users.
func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

const projectColumns = `id, name, description, status, created_at`

func scanProject(row pgx.Row) (*models.Project, error) {
	p := &models.Project{}
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// CreateProject creates a project in planning status.
func (s *PostgresStore) CreateProject(ctx context.Context, name, description string) (*models.Project, error) {
	return scanProject(s.pool.QueryRow(ctx, `
		INSERT INTO projects (id, name, description, status)
		VALUES ($1, $2, $3, $4)
		RETURNING `+projectColumns, ids.NewUUIDv7(), name, description, models.ProjectStatusPlanning))
}

// GetProject retrieves a project by ID.
func (s *PostgresStore) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	defer observe("postgres", "get_project", time.Now())
	return scanProject(s.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
}

// SetProjectTeam replaces a project's team.
func (s *PostgresStore) SetProjectTeam(ctx context.Context, projectID uuid.UUID, personaIDs []string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// Lock the project so concurrent replacements don't interleave.
		var id uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM projects WHERE id = $1 FOR UPDATE`, projectID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProjectNotFound
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM project_team WHERE project_id = $1`, projectID); err != nil {
			return err
		}
		for i, personaID := range personaIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO project_team (project_id, persona_id, position)
				VALUES ($1, $2, $3)
			`, projectID, personaID, i); err != nil {
				return err
			}
		}
		return nil
	})
}

// ProjectTeam returns a project's persona IDs in the order they were set.
func (s *PostgresStore) ProjectTeam(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	defer observe("postgres", "project_team", time.Now())
	rows, err := s.pool.Query(ctx, `
		SELECT persona_id FROM project_team
		WHERE project_id = $1
		ORDER BY position
	`, projectID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

const roomColumns = `id, project_id, name, kind, created_at, last_active_at, message_count`

func scanRoom(row pgx.Row) (*models.Room, error) {
	r := &models.Room{}
	err := row.Scan(&r.ID, &r.ProjectID, &r.Name, &r.Kind, &r.CreatedAt, &r.LastActiveAt, &r.MessageCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

func collectRooms(rows pgx.Rows) ([]models.Room, error) {
	defer rows.Close()
	var rooms []models.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *r)
	}
	return rooms, rows.Err()
}

// CreateRoom creates an ad-hoc room in a project.
func (s *PostgresStore) CreateRoom(ctx context.Context, projectID uuid.UUID, name string, kind models.RoomKind) (*models.Room, error) {
	return scanRoom(s.pool.QueryRow(ctx, `
		INSERT INTO rooms (id, project_id, name, kind)
		VALUES ($1, $2, $3, $4)
		RETURNING `+roomColumns, ids.NewUUIDv7(), projectID, name, kind))
}

// EnsureProjectRoom returns the provisioned room of a kind, inserting it if absent.
func (s *PostgresStore) EnsureProjectRoom(ctx context.Context, projectID uuid.UUID, name string, kind models.RoomKind) (*models.Room, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rooms (id, project_id, name, kind, provisioned)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (project_id, kind) WHERE provisioned DO NOTHING
	`, ids.NewUUIDv7(), projectID, name, kind)
	if err != nil {
		return nil, err
	}
	return scanRoom(s.pool.QueryRow(ctx, `
		SELECT `+roomColumns+` FROM rooms
		WHERE project_id = $1 AND kind = $2 AND provisioned
	`, projectID, kind))
}

// GetRoom retrieves a room by ID.
func (s *PostgresStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	defer observe("postgres", "get_room", time.Now())
	return scanRoom(s.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
}

// ListProjectRooms returns a project's rooms in creation order.
func (s *PostgresStore) ListProjectRooms(ctx context.Context, projectID uuid.UUID) ([]models.Room, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+roomColumns+` FROM rooms
		WHERE project_id = $1
		ORDER BY created_at, id
	`, projectID)
	if err != nil {
		return nil, err
	}
	return collectRooms(rows)
}

// CountRooms returns the number of rooms.
func (s *PostgresStore) CountRooms(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&n)
	return n, err
}

// GetTopActiveRooms returns the rooms with the most messages.
func (s *PostgresStore) GetTopActiveRooms(ctx context.Context, limit int) ([]models.Room, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+roomColumns+` FROM rooms
		WHERE message_count > 0
		ORDER BY message_count DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return collectRooms(rows)
}

// GetMostRecentActivity returns the latest room activity, or nil with no messages.
func (s *PostgresStore) GetMostRecentActivity(ctx context.Context) (*time.Time, error) {
	var t *time.Time
	err := s.pool.QueryRow(ctx, `SELECT MAX(last_active_at) FROM rooms WHERE message_count > 0`).Scan(&t)
	return t, err
}

const participantColumns = `id, room_id, user_id, COALESCE(persona_id, ''), joined_at`

func scanParticipant(row pgx.Row) (*models.Participant, error) {
	p := &models.Participant{}
	if err := row.Scan(&p.ID, &p.RoomID, &p.UserID, &p.PersonaID, &p.JoinedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// AddParticipant adds a membership, returning the existing one on repeat.
func (s *PostgresStore) AddParticipant(ctx context.Context, p *models.Participant) (*models.Participant, error) {
	if err := validParticipant(p); err != nil {
		return nil, err
	}

	var personaID *string
	if p.PersonaID != "" {
		personaID = &p.PersonaID
	}

	var conflict string
	if personaID != nil {
		conflict = `ON CONFLICT (room_id, persona_id) WHERE persona_id IS NOT NULL DO NOTHING`
	} else {
		conflict = `ON CONFLICT (room_id, user_id) WHERE user_id IS NOT NULL DO NOTHING`
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO participants (id, room_id, user_id, persona_id)
		VALUES ($1, $2, $3, $4)
		`+conflict, ids.NewUUIDv7(), p.RoomID, p.UserID, personaID)
	if err != nil {
		return nil, err
	}

	if personaID != nil {
		return scanParticipant(s.pool.QueryRow(ctx, `
			SELECT `+participantColumns+` FROM participants WHERE room_id = $1 AND persona_id = $2
		`, p.RoomID, *personaID))
	}
	return scanParticipant(s.pool.QueryRow(ctx, `
		SELECT `+participantColumns+` FROM participants WHERE room_id = $1 AND user_id = $2
	`, p.RoomID, p.UserID))
}

// ListParticipants returns a room's participants in join order.
func (s *PostgresStore) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.Participant, error) {
	defer observe("postgres", "list_participants", time.Now())
	rows, err := s.pool.Query(ctx, `
		SELECT `+participantColumns+` FROM participants
		WHERE room_id = $1
		ORDER BY joined_at, id
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

const messageColumns = `seq, id, room_id, sender_kind, sender_id, content, content_kind, created_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	m := &models.Message{}
	err := row.Scan(&m.Seq, &m.ID, &m.RoomID, &m.SenderKind, &m.SenderID, &m.Content, &m.ContentKind, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// AppendMessage inserts a message and bumps the room's activity counters.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	defer observe("postgres", "append_message", time.Now())

	if msg.ID == "" {
		msg.ID = ids.NewMessageID()
	}
	if msg.ContentKind == "" {
		msg.ContentKind = models.ContentText
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE rooms SET message_count = message_count + 1, last_active_at = NOW()
			WHERE id = $1
		`, msg.RoomID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrRoomNotFound
		}

		// The room row lock taken above serializes appends per room, so
		// created_at and seq advance together.
		return tx.QueryRow(ctx, `
			INSERT INTO messages (id, room_id, sender_kind, sender_id, content, content_kind, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, clock_timestamp())
			RETURNING seq, created_at
		`, msg.ID, msg.RoomID, msg.SenderKind, msg.SenderID, msg.Content, msg.ContentKind).Scan(&msg.Seq, &msg.CreatedAt)
	})
}

// RecentMessages returns a room's messages newest first.
func (s *PostgresStore) RecentMessages(ctx context.Context, roomID uuid.UUID, limit int, beforeSeq int64) ([]models.Message, error) {
	defer observe("postgres", "recent_messages", time.Now())

	var (
		rows pgx.Rows
		err  error
	)
	if beforeSeq > 0 {
		rows, err = s.pool.Query(ctx, `
			SELECT `+messageColumns+` FROM messages
			WHERE room_id = $1
			  AND seq < $3
			ORDER BY created_at DESC, seq DESC
			LIMIT $2
		`, roomID, limit, beforeSeq)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT `+messageColumns+` FROM messages
			WHERE room_id = $1
			ORDER BY created_at DESC, seq DESC
			LIMIT $2
		`, roomID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0, limit)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

// GetMessage retrieves a message by ID.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	return scanMessage(s.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
}

// CountMessages returns the total number of messages.
func (s *PostgresStore) CountMessages(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(message_count), 0) FROM rooms`).Scan(&n)
	return n, err
}
