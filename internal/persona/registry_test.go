package persona

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/teamroom/internal/models"
)

func TestDefaultCatalog(t *testing.T) {
	r := Default()
	require.Equal(t, 6, r.Len())

	list := r.List()
	for i := 1; i < len(list); i++ {
		prev, cur := list[i-1], list[i]
		if prev.Tier == cur.Tier {
			assert.LessOrEqual(t, prev.Name, cur.Name)
		} else {
			assert.Greater(t, prev.Tier, cur.Tier)
		}
	}

	pm, ok := r.Get("alexey")
	require.True(t, ok)
	assert.Equal(t, "Project Manager", pm.Role)
	assert.Equal(t, models.TierSenior, pm.Tier)

	_, ok = r.Get("nobody")
	assert.False(t, ok)
}

func TestForRoomKind(t *testing.T) {
	r := Default()

	assert.Len(t, r.ForRoomKind(models.RoomGeneral), 6)
	assert.Len(t, r.ForRoomKind(models.RoomDevelopers), 3)

	testers := r.ForRoomKind(models.RoomTesters)
	require.Len(t, testers, 1)
	assert.Equal(t, "sergey", testers[0].ID)
}

func TestListReturnsCopy(t *testing.T) {
	r := Default()
	list := r.List()
	list[0].Name = "changed"

	assert.NotEqual(t, "changed", r.List()[0].Name)
}

func TestNewRegistryRejectsInvalid(t *testing.T) {
	_, err := NewRegistry(nil)
	assert.ErrorIs(t, err, ErrEmptyCatalog)

	p := models.Persona{ID: "x", Name: "X", Role: "Dev", Tier: models.TierJunior}
	_, err = NewRegistry([]models.Persona{p, p})
	assert.ErrorIs(t, err, ErrDuplicatePersona)

	noTier := p
	noTier.Tier = 0
	_, err = NewRegistry([]models.Persona{noTier})
	assert.ErrorIs(t, err, ErrInvalidPersona)

	badRoom := p
	badRoom.Rooms = []models.RoomKind{"lounge"}
	_, err = NewRegistry([]models.Persona{badRoom})
	assert.ErrorIs(t, err, ErrInvalidPersona)
}

func TestYAMLRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Default().Encode(&buf))
	assert.Contains(t, buf.String(), "skill_tier: senior")

	r, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, Default().List(), r.List())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	catalog := `
personas:
  - id: olga
    name: Olga
    role: Designer
    specialization: Product design
    personality: Calm and precise.
    skill_tier: junior
    rooms: [general]
`
	require.NoError(t, os.WriteFile(path, []byte(catalog), 0o600))

	r, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, r.Len())

	olga, ok := r.Get("olga")
	require.True(t, ok)
	assert.Equal(t, models.TierJunior, olga.Tier)
	assert.True(t, olga.SitsIn(models.RoomGeneral))
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("personas:\n  - id: a\n    mood: grumpy\n"))
	assert.Error(t, err)
}
