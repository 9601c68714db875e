package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/teamroom/internal/models"
)

// extraBackends holds stores that need external services; build-tagged
// files register them.
var extraBackends = map[string]func(t *testing.T) DataStore{}

func backends(t *testing.T) map[string]DataStore {
	t.Helper()
	sq, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "teamroom.db"))
	require.NoError(t, err)
	t.Cleanup(sq.Close)

	out := map[string]DataStore{
		"memory": NewMemoryStore(),
		"sqlite": sq,
	}
	for name, open := range extraBackends {
		out[name] = open(t)
	}
	return out
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s DataStore)) {
	for name, s := range backends(t) {
		s := s
		t.Run(name, func(t *testing.T) { fn(t, s) })
	}
}

func seedRoom(t *testing.T, s DataStore) (*models.Project, *models.Room) {
	t.Helper()
	ctx := context.Background()
	p, err := s.CreateProject(ctx, "Checkout", "Rebuild the checkout flow")
	require.NoError(t, err)
	r, err := s.EnsureProjectRoom(ctx, p.ID, "General", models.RoomGeneral)
	require.NoError(t, err)
	require.NotNil(t, r)
	return p, r
}

func TestLookupsReturnNilWhenMissing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s DataStore) {
		ctx := context.Background()

		u, err := s.GetUserByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, u)

		u, err = s.GetUserByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Nil(t, u)

		p, err := s.GetProject(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, p)

		r, err := s.GetRoom(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, r)

		m, err := s.GetMessage(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
		require.NoError(t, err)
		assert.Nil(t, m)

		last, err := s.GetMostRecentActivity(ctx)
		require.NoError(t, err)
		assert.Nil(t, last)
	})
}

func TestUsers(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s DataStore) {
		ctx := context.Background()
		u, err := s.CreateUser(ctx, "Olga", "olga@example.com")
		require.NoError(t, err)
		assert.Equal(t, "Olga", u.Name)

		byEmail, err := s.GetUserByEmail(ctx, "olga@example.com")
		require.NoError(t, err)
		require.NotNil(t, byEmail)
		assert.Equal(t, u.ID, byEmail.ID)

		n, err := s.CountUsers(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

func TestProjectsStartInPlanning(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s DataStore) {
		ctx := context.Background()
		p, err := s.CreateProject(ctx, "Checkout", "desc")
		require.NoError(t, err)

		got, err := s.GetProject(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, models.ProjectStatusPlanning, got.Status)
		assert.Equal(t, "desc", got.Description)
	})
}

func TestEnsureProjectRoomIsIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s DataStore) {
		ctx := context.Background()
		p, first := seedRoom(t, s)

		again, err := s.EnsureProjectRoom(ctx, p.ID, "General", models.RoomGeneral)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)

		// Ad-hoc rooms of the same kind don't collide with the provisioned one.
		extra, err := s.CreateRoom(ctx, p.ID, "Side chat", models.RoomGeneral)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, extra.ID)

		rooms, err := s.ListProjectRooms(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, rooms, 2)
	})
}

func TestAddParticipant(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s DataStore) {
		ctx := context.Background()
		_, room := seedRoom(t, s)
		user, err := s.CreateUser(ctx, "Olga", "olga@example.com")
		require.NoError(t, err)

		_, err = s.AddParticipant(ctx, &models.Participant{RoomID: room.ID})
		assert.ErrorIs(t, err, ErrInvalidParticipant)

		_, err = s.AddParticipant(ctx, &models.Participant{RoomID: room.ID, UserID: &user.ID, PersonaID: "anna"})
		assert.ErrorIs(t, err, ErrInvalidParticipant)

		a, err := s.AddParticipant(ctx, &models.Participant{RoomID: room.ID, PersonaID: "anna"})
		require.NoError(t, err)
		b, err := s.AddParticipant(ctx, &models.Participant{RoomID: room.ID, PersonaID: "anna"})
		require.NoError(t, err)
		assert.Equal(t, a.ID, b.ID)

		h, err := s.AddParticipant(ctx, &models.Participant{RoomID: room.ID, UserID: &user.ID})
		require.NoError(t, err)
		require.NotNil(t, h.UserID)
		assert.Equal(t, user.ID, *h.UserID)

		list, err := s.ListParticipants(ctx, room.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.True(t, list[0].IsSynthetic())
		assert.False(t, list[1].IsSynthetic())
	})
}

func TestAppendAndRecentMessages(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s DataStore) {
		ctx := context.Background()
		_, room := seedRoom(t, s)

		var appended []models.Message
		for _, body := range []string{"one", "two", "three", "four"} {
			m := &models.Message{RoomID: room.ID, SenderKind: models.SenderHuman, SenderID: "u", Content: body}
			require.NoError(t, s.AppendMessage(ctx, m))
			assert.NotEmpty(t, m.ID)
			assert.Equal(t, models.ContentText, m.ContentKind)
			appended = append(appended, *m)
		}
		for i := 1; i < len(appended); i++ {
			assert.True(t, appended[i-1].Before(&appended[i]))
		}

		recent, err := s.RecentMessages(ctx, room.ID, 2, 0)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "four", recent[0].Content)
		assert.Equal(t, "three", recent[1].Content)

		older, err := s.RecentMessages(ctx, room.ID, 10, recent[1].Seq)
		require.NoError(t, err)
		require.Len(t, older, 2)
		assert.Equal(t, "two", older[0].Content)
		assert.Equal(t, "one", older[1].Content)

		got, err := s.GetMessage(ctx, appended[0].ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "one", got.Content)

		r, err := s.GetRoom(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(4), r.MessageCount)

		n, err := s.CountMessages(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)

		top, err := s.GetTopActiveRooms(ctx, 5)
		require.NoError(t, err)
		require.Len(t, top, 1)
		assert.Equal(t, room.ID, top[0].ID)

		last, err := s.GetMostRecentActivity(ctx)
		require.NoError(t, err)
		require.NotNil(t, last)
		assert.False(t, last.Before(appended[3].CreatedAt.Add(-1)))
	})
}

func TestAppendMessageUnknownRoom(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s DataStore) {
		err := s.AppendMessage(context.Background(), &models.Message{
			RoomID: uuid.New(), SenderKind: models.SenderHuman, SenderID: "u", Content: "x",
		})
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})
}

func TestConcurrentAppendsKeepDistinctSeq(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s DataStore) {
		ctx := context.Background()
		_, room := seedRoom(t, s)

		const n = 20
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.AppendMessage(ctx, &models.Message{
					RoomID: room.ID, SenderKind: models.SenderSynthetic, SenderID: "anna", Content: "hi",
				})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		msgs, err := s.RecentMessages(ctx, room.ID, n, 0)
		require.NoError(t, err)
		require.Len(t, msgs, n)
		seen := make(map[int64]bool)
		for i, m := range msgs {
			assert.False(t, seen[m.Seq])
			seen[m.Seq] = true
			if i > 0 {
				assert.True(t, m.Before(&msgs[i-1]))
			}
		}
	})
}

func TestRecentMessagesCursorBoundsBySeq(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s DataStore) {
		ctx := context.Background()
		p, room := seedRoom(t, s)
		other, err := s.EnsureProjectRoom(ctx, p.ID, "Testers", models.RoomTesters)
		require.NoError(t, err)

		appendTo := func(roomID uuid.UUID, body string) models.Message {
			m := &models.Message{RoomID: roomID, SenderKind: models.SenderHuman, SenderID: "u", Content: body}
			require.NoError(t, s.AppendMessage(ctx, m))
			return *m
		}
		appendTo(room.ID, "one")
		appendTo(room.ID, "two")
		foreign := appendTo(other.ID, "elsewhere")
		last := appendTo(room.ID, "three")

		// A cursor taken from another room still bounds by value.
		page, err := s.RecentMessages(ctx, room.ID, 10, foreign.Seq)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "two", page[0].Content)
		assert.Equal(t, "one", page[1].Content)

		// So does one no message was ever given.
		page, err = s.RecentMessages(ctx, room.ID, 10, last.Seq+1000)
		require.NoError(t, err)
		require.Len(t, page, 3)
		assert.Equal(t, "three", page[0].Content)
		for _, m := range page {
			assert.Equal(t, room.ID, m.RoomID)
		}
	})
}

func TestProjectTeam(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s DataStore) {
		ctx := context.Background()
		p, err := s.CreateProject(ctx, "Checkout", "desc")
		require.NoError(t, err)

		team, err := s.ProjectTeam(ctx, p.ID)
		require.NoError(t, err)
		assert.Empty(t, team)

		require.NoError(t, s.SetProjectTeam(ctx, p.ID, []string{"qa", "anna"}))
		team, err = s.ProjectTeam(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"qa", "anna"}, team)

		require.NoError(t, s.SetProjectTeam(ctx, p.ID, []string{"pm"}))
		team, err = s.ProjectTeam(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"pm"}, team)

		require.NoError(t, s.SetProjectTeam(ctx, p.ID, nil))
		team, err = s.ProjectTeam(ctx, p.ID)
		require.NoError(t, err)
		assert.Empty(t, team)

		assert.ErrorIs(t, s.SetProjectTeam(ctx, uuid.New(), []string{"pm"}), ErrProjectNotFound)
	})
}
