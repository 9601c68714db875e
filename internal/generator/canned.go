package generator

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

var cannedOpeners = []string{
	"Good point.",
	"Let me look into that.",
	"Makes sense to me.",
	"I have a few thoughts here.",
	"Noted.",
}

// Canned is an offline generator for local development. Replies are
// deterministic for a given persona and prompt.
type Canned struct{}

// Generate implements Generator.
func (Canned) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h := fnv.New32a()
	h.Write([]byte(req.PersonaID))
	h.Write([]byte(req.Prompt))
	opener := cannedOpeners[h.Sum32()%uint32(len(cannedOpeners))]

	topic := strings.TrimSpace(req.Prompt)
	if r := []rune(topic); len(r) > 80 {
		topic = string(r[:80]) + "..."
	}
	return fmt.Sprintf("%s Re: %q", opener, topic), nil
}
