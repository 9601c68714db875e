package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eldtechnologies/teamroom/internal/models"
)

func TestBuildRequest(t *testing.T) {
	p := models.Persona{
		ID: "qa", Name: "Quinn", Role: "QA Engineer",
		Specialization: "test automation", Personality: "Detail oriented.",
		Tier: models.TierIntermediate,
	}
	trigger := models.MessageEvent{Message: models.Message{Content: "Is the build green?"}}
	cc := &ConversationContext{
		Project: &models.ProjectSummary{Name: "Checkout", Description: "Rebuild it", Status: "planning"},
		Messages: []models.MessageEvent{
			{Message: models.Message{SenderKind: models.SenderHuman, Content: "Morning all"}, SenderName: "Olga", SenderInfo: "olga@example.com"},
			{Message: models.Message{SenderKind: models.SenderSynthetic, Content: "Morning!"}, SenderName: "Paula", SenderInfo: "Project Manager"},
		},
	}

	req := BuildRequest(p, cc, trigger)
	assert.Equal(t, "qa", req.PersonaID)
	assert.Equal(t, "Is the build green?", req.Prompt)

	want := "You are Quinn, QA Engineer. Detail oriented.\n\n" +
		"Your specialization: test automation\n" +
		"Skill level: intermediate\n\n" +
		"You work in a development team and talk with your colleagues and the client.\n\n" +
		"Project context:\n" +
		"Name: Checkout\n" +
		"Description: Rebuild it\n" +
		"Status: planning\n\n" +
		"Recent conversation:\n" +
		"Olga: Morning all\n" +
		"Paula (Project Manager): Morning!\n\n" +
		"Reply in your own voice, drawing on your character and expertise. Be helpful and constructive."
	assert.Equal(t, want, req.System)

	assert.Equal(t, req, BuildRequest(p, cc, trigger), "deterministic")
}

func TestBuildRequestOmitsEmptySections(t *testing.T) {
	p := models.Persona{ID: "pm", Name: "Paula", Role: "Project Manager", Tier: models.TierSenior}
	req := BuildRequest(p, &ConversationContext{}, models.MessageEvent{Message: models.Message{Content: "hi"}})

	assert.NotContains(t, req.System, "Project context")
	assert.NotContains(t, req.System, "Recent conversation")
	assert.True(t, strings.HasPrefix(req.System, "You are Paula, Project Manager.\n\n"))
}
