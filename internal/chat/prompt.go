package chat

import (
	"fmt"
	"strings"

	"github.com/eldtechnologies/teamroom/internal/generator"
	"github.com/eldtechnologies/teamroom/internal/models"
)

// BuildRequest renders the generation request for one persona replying to
// trigger. It performs no I/O and is deterministic in its inputs.
func BuildRequest(p models.Persona, cc *ConversationContext, trigger models.MessageEvent) generator.Request {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, %s.", p.Name, p.Role)
	if p.Personality != "" {
		b.WriteString(" ")
		b.WriteString(p.Personality)
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Your specialization: %s\n", p.Specialization)
	fmt.Fprintf(&b, "Skill level: %s\n\n", p.Tier)
	b.WriteString("You work in a development team and talk with your colleagues and the client.")

	if cc != nil && cc.Project != nil {
		b.WriteString("\n\nProject context:\n")
		writeProject(&b, cc.Project)
	}

	if cc != nil && len(cc.Messages) > 0 {
		lines := make([]string, len(cc.Messages))
		for i, m := range cc.Messages {
			lines[i] = historyLine(m)
		}
		b.WriteString("\n\nRecent conversation:\n")
		b.WriteString(strings.Join(lines, "\n"))
	}

	b.WriteString("\n\nReply in your own voice, drawing on your character and expertise. Be helpful and constructive.")

	return generator.Request{
		PersonaID: p.ID,
		System:    b.String(),
		Prompt:    trigger.Content,
	}
}

func writeProject(b *strings.Builder, p *models.ProjectSummary) {
	fmt.Fprintf(b, "Name: %s\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(b, "Description: %s\n", p.Description)
	}
	fmt.Fprintf(b, "Status: %s", p.Status)
}

// historyLine renders "Name (Role): content" for personas and
// "Name: content" for humans.
func historyLine(m models.MessageEvent) string {
	name := m.SenderName
	if name == "" {
		name = m.SenderID
	}
	if m.SenderKind == models.SenderSynthetic && m.SenderInfo != "" {
		return fmt.Sprintf("%s (%s): %s", name, m.SenderInfo, m.Content)
	}
	return fmt.Sprintf("%s: %s", name, m.Content)
}
