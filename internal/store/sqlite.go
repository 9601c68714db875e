package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/eldtechnologies/teamroom/internal/ids"
	"github.com/eldtechnologies/teamroom/internal/models"
)

// SQLiteStore handles SQLite database operations.
// Timestamps are stored as UTC unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/teamroom.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/teamroom.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers, which keeps per-room
	// sequence and timestamp assignment consistent.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'planning',
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'general',
		provisioned INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		last_active_at INTEGER NOT NULL,
		message_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS participants (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		user_id TEXT REFERENCES users(id) ON DELETE CASCADE,
		persona_id TEXT,
		joined_at INTEGER NOT NULL,
		CHECK ((user_id IS NULL) <> (persona_id IS NULL))
	);

	CREATE TABLE IF NOT EXISTS project_team (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		persona_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		added_at INTEGER NOT NULL,
		PRIMARY KEY (project_id, persona_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		sender_kind TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		content TEXT NOT NULL,
		content_kind TEXT NOT NULL DEFAULT 'text',
		created_at INTEGER NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email) WHERE email <> '';
	CREATE INDEX IF NOT EXISTS idx_rooms_project ON rooms(project_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_rooms_last_active ON rooms(last_active_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_rooms_project_kind ON rooms(project_id, kind) WHERE provisioned = 1;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_participants_user ON participants(room_id, user_id) WHERE user_id IS NOT NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_participants_persona ON participants(room_id, persona_id) WHERE persona_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_messages_room_order ON messages(room_id, created_at, seq);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func nowNanos() int64 {
	return time.Now().UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, name, email string) (*models.User, error) {
	id := ids.NewUUIDv7()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, created_at)
		VALUES (?, ?, ?, ?)
	`, id.String(), name, email, nowNanos())
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, id)
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var created int64
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.CreatedAt = fromNanos(created)
	return u, nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM users WHERE id = ?
	`, id.String()))
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if email == "" {
		return nil, nil
	}
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM users WHERE email = ?
	`, email))
}

// CountUsers returns the number of registered users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// CreateProject creates a project in planning status.
func (s *SQLiteStore) CreateProject(ctx context.Context, name, description string) (*models.Project, error) {
	id := ids.NewUUIDv7()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id.String(), name, description, models.ProjectStatusPlanning, nowNanos())
	if err != nil {
		return nil, err
	}
	return s.GetProject(ctx, id)
}

// GetProject retrieves a project by ID.
func (s *SQLiteStore) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	p := &models.Project{}
	var created int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, status, created_at FROM projects WHERE id = ?
	`, id.String()).Scan(&p.ID, &p.Name, &p.Description, &p.Status, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.CreatedAt = fromNanos(created)
	return p, nil
}

// SetProjectTeam replaces a project's team.
func (s *SQLiteStore) SetProjectTeam(ctx context.Context, projectID uuid.UUID, personaIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, `SELECT id FROM projects WHERE id = ?`, projectID.String()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProjectNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM project_team WHERE project_id = ?`, projectID.String()); err != nil {
		return err
	}
	added := nowNanos()
	for i, personaID := range personaIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO project_team (project_id, persona_id, position, added_at)
			VALUES (?, ?, ?, ?)
		`, projectID.String(), personaID, i, added); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ProjectTeam returns a project's persona IDs in the order they were set.
func (s *SQLiteStore) ProjectTeam(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT persona_id FROM project_team
		WHERE project_id = ?
		ORDER BY position
	`, projectID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var team []string
	for rows.Next() {
		var personaID string
		if err := rows.Scan(&personaID); err != nil {
			return nil, err
		}
		team = append(team, personaID)
	}
	return team, rows.Err()
}

const sqliteRoomColumns = `id, project_id, name, kind, created_at, last_active_at, message_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRoom(row rowScanner) (*models.Room, error) {
	r := &models.Room{}
	var kind string
	var created, active int64
	if err := row.Scan(&r.ID, &r.ProjectID, &r.Name, &kind, &created, &active, &r.MessageCount); err != nil {
		return nil, err
	}
	r.Kind = models.RoomKind(kind)
	r.CreatedAt = fromNanos(created)
	r.LastActiveAt = fromNanos(active)
	return r, nil
}

func (s *SQLiteStore) queryRooms(ctx context.Context, query string, args ...any) ([]models.Room, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		r, err := scanSQLiteRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *r)
	}
	return rooms, rows.Err()
}

func (s *SQLiteStore) queryRoom(ctx context.Context, query string, args ...any) (*models.Room, error) {
	r, err := scanSQLiteRoom(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// CreateRoom creates an ad-hoc room in a project.
func (s *SQLiteStore) CreateRoom(ctx context.Context, projectID uuid.UUID, name string, kind models.RoomKind) (*models.Room, error) {
	id := ids.NewUUIDv7()
	now := nowNanos()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (id, project_id, name, kind, created_at, last_active_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id.String(), projectID.String(), name, string(kind), now, now)
	if err != nil {
		return nil, err
	}
	return s.GetRoom(ctx, id)
}

// EnsureProjectRoom returns the provisioned room of a kind, inserting it if absent.
func (s *SQLiteStore) EnsureProjectRoom(ctx context.Context, projectID uuid.UUID, name string, kind models.RoomKind) (*models.Room, error) {
	now := nowNanos()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (id, project_id, name, kind, provisioned, created_at, last_active_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (project_id, kind) WHERE provisioned = 1 DO NOTHING
	`, ids.NewUUIDv7().String(), projectID.String(), name, string(kind), now, now)
	if err != nil {
		return nil, err
	}
	return s.queryRoom(ctx, `
		SELECT `+sqliteRoomColumns+` FROM rooms
		WHERE project_id = ? AND kind = ? AND provisioned = 1
	`, projectID.String(), string(kind))
}

// GetRoom retrieves a room by ID.
func (s *SQLiteStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return s.queryRoom(ctx, `SELECT `+sqliteRoomColumns+` FROM rooms WHERE id = ?`, id.String())
}

// ListProjectRooms returns a project's rooms in creation order.
func (s *SQLiteStore) ListProjectRooms(ctx context.Context, projectID uuid.UUID) ([]models.Room, error) {
	return s.queryRooms(ctx, `
		SELECT `+sqliteRoomColumns+` FROM rooms
		WHERE project_id = ?
		ORDER BY created_at, id
	`, projectID.String())
}

// CountRooms returns the number of rooms.
func (s *SQLiteStore) CountRooms(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&n)
	return n, err
}

// GetTopActiveRooms returns the rooms with the most messages.
func (s *SQLiteStore) GetTopActiveRooms(ctx context.Context, limit int) ([]models.Room, error) {
	return s.queryRooms(ctx, `
		SELECT `+sqliteRoomColumns+` FROM rooms
		WHERE message_count > 0
		ORDER BY message_count DESC, last_active_at DESC
		LIMIT ?
	`, limit)
}

// GetMostRecentActivity returns the latest room activity, or nil with no messages.
func (s *SQLiteStore) GetMostRecentActivity(ctx context.Context) (*time.Time, error) {
	var n sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(last_active_at) FROM rooms WHERE message_count > 0`).Scan(&n)
	if err != nil || !n.Valid {
		return nil, err
	}
	t := fromNanos(n.Int64)
	return &t, nil
}

func scanSQLiteParticipant(row rowScanner) (*models.Participant, error) {
	p := &models.Participant{}
	var userID uuid.NullUUID
	var personaID sql.NullString
	var joined int64
	if err := row.Scan(&p.ID, &p.RoomID, &userID, &personaID, &joined); err != nil {
		return nil, err
	}
	if userID.Valid {
		p.UserID = &userID.UUID
	}
	p.PersonaID = personaID.String
	p.JoinedAt = fromNanos(joined)
	return p, nil
}

// AddParticipant adds a membership, returning the existing one on repeat.
func (s *SQLiteStore) AddParticipant(ctx context.Context, p *models.Participant) (*models.Participant, error) {
	if err := validParticipant(p); err != nil {
		return nil, err
	}

	var (
		userID    any
		personaID any
		conflict  string
		lookup    string
		key       any
	)
	if p.PersonaID != "" {
		personaID = p.PersonaID
		conflict = `ON CONFLICT (room_id, persona_id) WHERE persona_id IS NOT NULL DO NOTHING`
		lookup = `persona_id = ?`
		key = p.PersonaID
	} else {
		userID = p.UserID.String()
		conflict = `ON CONFLICT (room_id, user_id) WHERE user_id IS NOT NULL DO NOTHING`
		lookup = `user_id = ?`
		key = p.UserID.String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO participants (id, room_id, user_id, persona_id, joined_at)
		VALUES (?, ?, ?, ?, ?)
		`+conflict, ids.NewUUIDv7().String(), p.RoomID.String(), userID, personaID, nowNanos())
	if err != nil {
		return nil, err
	}

	return scanSQLiteParticipant(s.db.QueryRowContext(ctx, `
		SELECT id, room_id, user_id, persona_id, joined_at FROM participants
		WHERE room_id = ? AND `+lookup, p.RoomID.String(), key))
}

// ListParticipants returns a room's participants in join order.
func (s *SQLiteStore) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.Participant, error) {
	defer observe("sqlite", "list_participants", time.Now())
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, user_id, persona_id, joined_at FROM participants
		WHERE room_id = ?
		ORDER BY joined_at, id
	`, roomID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Participant
	for rows.Next() {
		p, err := scanSQLiteParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanSQLiteMessage(row rowScanner) (*models.Message, error) {
	m := &models.Message{}
	var kind string
	var created int64
	if err := row.Scan(&m.Seq, &m.ID, &m.RoomID, &kind, &m.SenderID, &m.Content, &m.ContentKind, &created); err != nil {
		return nil, err
	}
	m.SenderKind = models.SenderKind(kind)
	m.CreatedAt = fromNanos(created)
	return m, nil
}

// AppendMessage inserts a message and bumps the room's activity counters.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	defer observe("sqlite", "append_message", time.Now())
	if msg.ID == "" {
		msg.ID = ids.NewMessageID()
	}
	if msg.ContentKind == "" {
		msg.ContentKind = models.ContentText
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Never let a room's clock run backwards.
	var last int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(created_at), 0) FROM messages WHERE room_id = ?
	`, msg.RoomID.String()).Scan(&last); err != nil {
		return err
	}
	created := nowNanos()
	if created < last {
		created = last
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE rooms SET message_count = message_count + 1, last_active_at = ?
		WHERE id = ?
	`, created, msg.RoomID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRoomNotFound
	}

	res, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, room_id, sender_kind, sender_id, content, content_kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.RoomID.String(), string(msg.SenderKind), msg.SenderID, msg.Content, msg.ContentKind, created)
	if err != nil {
		return err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	msg.Seq = seq
	msg.CreatedAt = fromNanos(created)
	return nil
}

// RecentMessages returns a room's messages newest first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, roomID uuid.UUID, limit int, beforeSeq int64) ([]models.Message, error) {
	defer observe("sqlite", "recent_messages", time.Now())
	query := `
		SELECT seq, id, room_id, sender_kind, sender_id, content, content_kind, created_at
		FROM messages
		WHERE room_id = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?`
	args := []any{roomID.String(), limit}
	if beforeSeq > 0 {
		query = `
		SELECT seq, id, room_id, sender_kind, sender_id, content, content_kind, created_at
		FROM messages
		WHERE room_id = ?
		  AND seq < ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?`
		args = []any{roomID.String(), beforeSeq, limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0, limit)
	for rows.Next() {
		m, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	m, err := scanSQLiteMessage(s.db.QueryRowContext(ctx, `
		SELECT seq, id, room_id, sender_kind, sender_id, content, content_kind, created_at
		FROM messages WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// CountMessages returns the total number of messages.
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}
