package chat

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/teamroom/internal/models"
)

func TestInitializeRoomsForProjectIsIdempotent(t *testing.T) {
	f := newFixture(t, echoGenerator(), Options{})
	ctx := context.Background()

	first, err := f.rooms.ListProjectRooms(ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, first, len(models.ProjectRoomKinds))

	again, err := f.rooms.InitializeRoomsForProject(ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, again, len(models.ProjectRoomKinds))

	byKind := map[models.RoomKind]uuid.UUID{}
	for _, r := range first {
		byKind[r.Kind] = r.ID
	}
	for _, r := range again {
		assert.Equal(t, byKind[r.Kind], r.ID, "kind %s", r.Kind)
	}

	synthetic, err := f.rooms.ListSyntheticParticipants(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Len(t, synthetic, 2, "roster not duplicated")

	_, err = f.rooms.InitializeRoomsForProject(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestRosterSeededByRoomKind(t *testing.T) {
	f := newFixture(t, echoGenerator(), Options{})
	ctx := context.Background()

	rooms, err := f.rooms.ListProjectRooms(ctx, f.project.ID)
	require.NoError(t, err)

	want := map[models.RoomKind][]string{
		models.RoomGeneral:    {"pm", "qa"},
		models.RoomManagers:   {"pm"},
		models.RoomDevelopers: nil,
		models.RoomTesters:    {"qa"},
		models.RoomDevOps:     nil,
	}
	for _, r := range rooms {
		synthetic, err := f.rooms.ListSyntheticParticipants(ctx, r.ID)
		require.NoError(t, err)
		var got []string
		for _, p := range synthetic {
			got = append(got, p.PersonaID)
		}
		assert.ElementsMatch(t, want[r.Kind], got, "room %s", r.Kind)
		assert.Equal(t, r.Kind.DisplayName(), r.Name)
	}
}

func TestAddParticipant(t *testing.T) {
	f := newFixture(t, echoGenerator(), Options{})
	ctx := context.Background()

	_, err := f.rooms.AddParticipant(ctx, f.room.ID, Membership{})
	assert.ErrorIs(t, err, ErrInvalidMembership)

	_, err = f.rooms.AddParticipant(ctx, f.room.ID, Membership{UserID: &f.user.ID, PersonaID: "pm"})
	assert.ErrorIs(t, err, ErrInvalidMembership)

	_, err = f.rooms.AddParticipant(ctx, f.room.ID, Membership{PersonaID: "ghost"})
	assert.ErrorIs(t, err, ErrUnknownPersona)

	missing := uuid.New()
	_, err = f.rooms.AddParticipant(ctx, f.room.ID, Membership{UserID: &missing})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.rooms.AddParticipant(ctx, uuid.New(), Membership{PersonaID: "pm"})
	assert.ErrorIs(t, err, ErrRoomNotFound)

	before, err := f.rooms.ListAllParticipants(ctx, f.room.ID)
	require.NoError(t, err)
	again, err := f.rooms.AddParticipant(ctx, f.room.ID, Membership{UserID: &f.user.ID})
	require.NoError(t, err)
	after, err := f.rooms.ListAllParticipants(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
	assert.False(t, again.IsSynthetic())
}

func TestJoinBetweenMessagesIsPickedUp(t *testing.T) {
	f := newFixture(t, echoGenerator(), Options{})
	ctx := context.Background()

	testers, err := f.rooms.CreateRoom(ctx, f.project.ID, "", models.RoomTesters)
	require.NoError(t, err)
	assert.Equal(t, "Testers", testers.Name)
	_, err = f.rooms.AddParticipant(ctx, testers.ID, Membership{UserID: &f.user.ID})
	require.NoError(t, err)

	_, err = f.orch.HandleHumanMessage(ctx, testers.ID, f.user.ID, "first")
	require.NoError(t, err)
	f.wait(t)
	assert.Len(t, f.channel.snapshot(), 2)

	_, err = f.rooms.AddParticipant(ctx, testers.ID, Membership{PersonaID: "pm"})
	require.NoError(t, err)

	_, err = f.orch.HandleHumanMessage(ctx, testers.ID, f.user.ID, "second")
	require.NoError(t, err)
	f.wait(t)
	assert.Len(t, f.channel.snapshot(), 5)
}

func TestCreateRoomValidation(t *testing.T) {
	f := newFixture(t, echoGenerator(), Options{})
	ctx := context.Background()

	_, err := f.rooms.CreateRoom(ctx, f.project.ID, "Lounge", models.RoomKind("lounge"))
	assert.ErrorIs(t, err, ErrInvalidRoomKind)

	_, err = f.rooms.CreateRoom(ctx, uuid.New(), "Side", "")
	assert.ErrorIs(t, err, ErrProjectNotFound)

	r, err := f.rooms.CreateRoom(ctx, f.project.ID, "Side", "")
	require.NoError(t, err)
	assert.Equal(t, models.RoomGeneral, r.Kind)
}

func TestRegisterUserIsIdempotentByEmail(t *testing.T) {
	f := newFixture(t, echoGenerator(), Options{})
	ctx := context.Background()

	again, created, err := f.dir.RegisterUser(ctx, "Olga K.", " OLGA@example.com ")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, f.user.ID, again.ID)

	other, created, err := f.dir.RegisterUser(ctx, "Ivan", "ivan@example.com")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, f.user.ID, other.ID)

	_, err = f.dir.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = f.dir.GetProject(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestAssembleWindowIsBoundedAndOldestFirst(t *testing.T) {
	f := newFixture(t, echoGenerator(), Options{})
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		require.NoError(t, f.store.AppendMessage(ctx, &models.Message{
			RoomID: f.room.ID, SenderKind: models.SenderHuman, SenderID: f.user.ID.String(),
			Content: fmt.Sprintf("msg %02d", i),
		}))
	}

	a := NewContextAssembler(f.store, NewSenderResolver(f.store, f.personas), 0, f.orch.logger)
	assert.Equal(t, DefaultWindow, a.Window())

	cc, err := a.Assemble(ctx, f.room.ID)
	require.NoError(t, err)
	require.Len(t, cc.Messages, DefaultWindow)
	assert.Equal(t, "msg 05", cc.Messages[0].Content)
	assert.Equal(t, "msg 14", cc.Messages[9].Content)
	for i := 1; i < len(cc.Messages); i++ {
		assert.True(t, cc.Messages[i-1].Before(&cc.Messages[i].Message))
	}
	require.NotNil(t, cc.Project)
	assert.Equal(t, "Checkout", cc.Project.Name)
	assert.Equal(t, models.ProjectStatusPlanning, cc.Project.Status)
	assert.Equal(t, "Olga", cc.Messages[0].SenderName)
}

func TestAssembleEdgeCases(t *testing.T) {
	f := newFixture(t, echoGenerator(), Options{})
	ctx := context.Background()
	a := NewContextAssembler(f.store, NewSenderResolver(f.store, f.personas), 3, f.orch.logger)

	_, err := a.Assemble(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrContextUnavailable)

	cc, err := a.Assemble(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Empty(t, cc.Messages)

	// A room whose project is gone still assembles, without project framing.
	orphan, err := f.store.CreateRoom(ctx, uuid.New(), "Orphan", models.RoomGeneral)
	require.NoError(t, err)
	cc, err = a.Assemble(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Nil(t, cc.Project)
}

func TestHistoryPage(t *testing.T) {
	f := newFixture(t, echoGenerator(), Options{})
	ctx := context.Background()

	var sent []models.Message
	for i := 0; i < 5; i++ {
		m := &models.Message{
			RoomID: f.room.ID, SenderKind: models.SenderHuman, SenderID: f.user.ID.String(),
			Content: fmt.Sprintf("h%d", i), ContentKind: models.ContentText,
		}
		require.NoError(t, f.store.AppendMessage(ctx, m))
		sent = append(sent, *m)
	}

	h := NewHistoryReader(f.store, f.personas)
	page, err := h.Page(ctx, f.room.ID, 3, 0)
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	require.Len(t, page.Messages, 3)
	assert.Equal(t, []string{"h2", "h3", "h4"}, contents(page.Messages))

	older, err := h.Page(ctx, f.room.ID, 3, page.Messages[0].Seq)
	require.NoError(t, err)
	assert.False(t, older.HasMore)
	assert.Equal(t, []string{"h0", "h1"}, contents(older.Messages))

	// Round trip keeps the message fields intact.
	got := older.Messages[0]
	assert.Equal(t, sent[0].RoomID, got.RoomID)
	assert.Equal(t, sent[0].SenderKind, got.SenderKind)
	assert.Equal(t, sent[0].SenderID, got.SenderID)
	assert.Equal(t, sent[0].Content, got.Content)
	assert.Equal(t, sent[0].ContentKind, got.ContentKind)

	_, err = h.Page(ctx, uuid.New(), 10, 0)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func contents(evs []models.MessageEvent) []string {
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Content
	}
	return out
}

func rosterByKind(t *testing.T, f *fixture, projectID uuid.UUID) map[models.RoomKind][]string {
	t.Helper()
	ctx := context.Background()
	rooms, err := f.rooms.ListProjectRooms(ctx, projectID)
	require.NoError(t, err)

	out := map[models.RoomKind][]string{}
	for _, r := range rooms {
		synthetic, err := f.rooms.ListSyntheticParticipants(ctx, r.ID)
		require.NoError(t, err)
		for _, p := range synthetic {
			out[r.Kind] = append(out[r.Kind], p.PersonaID)
		}
	}
	return out
}

func TestProjectTeamRestrictsSeeding(t *testing.T) {
	f := newFixture(t, echoGenerator(), Options{})
	ctx := context.Background()

	p, _, err := f.dir.CreateProject(ctx, "Payments", "", []string{" qa ", "qa"})
	require.NoError(t, err)

	team, err := f.dir.ProjectTeam(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, team, 1)
	assert.Equal(t, "qa", team[0].ID)

	got := rosterByKind(t, f, p.ID)
	assert.Equal(t, []string{"qa"}, got[models.RoomGeneral])
	assert.Empty(t, got[models.RoomManagers])
	assert.Equal(t, []string{"qa"}, got[models.RoomTesters])

	// Ad-hoc rooms follow the team too.
	side, err := f.rooms.CreateRoom(ctx, p.ID, "Side chat", models.RoomManagers)
	require.NoError(t, err)
	synthetic, err := f.rooms.ListSyntheticParticipants(ctx, side.ID)
	require.NoError(t, err)
	assert.Empty(t, synthetic)

	// Growing the team seeds the new member, most senior listed first.
	team, err = f.dir.SetProjectTeam(ctx, p.ID, []string{"qa", "pm"})
	require.NoError(t, err)
	require.Len(t, team, 2)
	assert.Equal(t, "pm", team[0].ID)
	assert.Equal(t, "qa", team[1].ID)

	got = rosterByKind(t, f, p.ID)
	assert.ElementsMatch(t, []string{"qa", "pm"}, got[models.RoomGeneral])
	assert.Equal(t, []string{"pm"}, got[models.RoomManagers])
}

func TestProjectTeamWithoutTeamSeedsWholeCatalog(t *testing.T) {
	f := newFixture(t, echoGenerator(), Options{})
	ctx := context.Background()

	team, err := f.dir.ProjectTeam(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Empty(t, team)
	assert.ElementsMatch(t, []string{"pm", "qa"}, rosterByKind(t, f, f.project.ID)[models.RoomGeneral])
}

func TestProjectTeamValidation(t *testing.T) {
	f := newFixture(t, echoGenerator(), Options{})
	ctx := context.Background()

	_, _, err := f.dir.CreateProject(ctx, "Payments", "", []string{"ghost"})
	assert.ErrorIs(t, err, ErrUnknownPersona)

	_, err = f.dir.SetProjectTeam(ctx, f.project.ID, []string{"pm", "ghost"})
	assert.ErrorIs(t, err, ErrUnknownPersona)

	_, err = f.dir.SetProjectTeam(ctx, uuid.New(), []string{"pm"})
	assert.ErrorIs(t, err, ErrProjectNotFound)

	_, err = f.dir.ProjectTeam(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrProjectNotFound)

	team, err := f.dir.SetProjectTeam(ctx, f.project.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, team)
}
