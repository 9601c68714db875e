package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/eldtechnologies/teamroom/internal/models"
	"github.com/eldtechnologies/teamroom/internal/store"
)

// DefaultWindow is the number of recent messages fed to reply generation.
const DefaultWindow = 10

// ConversationContext is the read-only snapshot shared by every reply
// branch of one fan-out.
type ConversationContext struct {
	Room     models.Room
	Project  *models.ProjectSummary // nil when the project lookup failed
	Messages []models.MessageEvent  // oldest first, at most the window size
}

// ContextAssembler builds conversation contexts from the store.
type ContextAssembler struct {
	store    store.DataStore
	resolver *SenderResolver
	window   int
	logger   zerolog.Logger
}

// NewContextAssembler creates an assembler. A non-positive window uses
// DefaultWindow.
func NewContextAssembler(ds store.DataStore, resolver *SenderResolver, window int, logger zerolog.Logger) *ContextAssembler {
	if window <= 0 {
		window = DefaultWindow
	}
	return &ContextAssembler{store: ds, resolver: resolver, window: window, logger: logger}
}

// Window returns the configured history size.
func (a *ContextAssembler) Window() int {
	return a.window
}

// Assemble reads the room's recent history and project summary. Only an
// unresolvable room is an error; failed project or history reads degrade
// to a context without that section.
func (a *ContextAssembler) Assemble(ctx context.Context, roomID uuid.UUID) (*ConversationContext, error) {
	room, err := a.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextUnavailable, err)
	}
	if room == nil {
		return nil, fmt.Errorf("%w: room %s not found", ErrContextUnavailable, roomID)
	}

	var (
		project *models.ProjectSummary
		recent  []models.Message
	)
	log := a.logger.With().Str("room_id", roomID.String()).Logger()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := a.store.GetProject(gctx, room.ProjectID)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("project lookup failed, assembling context without project")
		case p == nil:
			log.Warn().Str("project_id", room.ProjectID.String()).Msg("room project missing")
		default:
			s := p.Summary()
			project = &s
		}
		return nil
	})
	g.Go(func() error {
		msgs, err := a.store.RecentMessages(gctx, roomID, a.window, 0)
		if err != nil {
			log.Warn().Err(err).Msg("history read failed, assembling context without history")
			return nil
		}
		recent = msgs
		return nil
	})
	_ = g.Wait()

	// The store returns newest first.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}

	return &ConversationContext{
		Room:     *room,
		Project:  project,
		Messages: a.resolver.Events(ctx, recent),
	}, nil
}
