package chat

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/eldtechnologies/teamroom/internal/broadcast"
	"github.com/eldtechnologies/teamroom/internal/generator"
	"github.com/eldtechnologies/teamroom/internal/metrics"
	"github.com/eldtechnologies/teamroom/internal/models"
	"github.com/eldtechnologies/teamroom/internal/persona"
	"github.com/eldtechnologies/teamroom/internal/store"
)

const tracerName = "github.com/eldtechnologies/teamroom/internal/chat"

// Delivery delay bounds for synthetic replies.
const (
	DefaultDelayMin = time.Second
	DefaultDelayMax = 4 * time.Second
)

// DefaultGenerationTimeout bounds a single generation attempt.
const DefaultGenerationTimeout = 60 * time.Second

// BranchState is the lifecycle position of one persona's reply.
type BranchState int

const (
	StatePending BranchState = iota
	StateGenerating
	StatePersisted
	StateScheduled
	StateDelivered
	StateFailed
)

func (s BranchState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateGenerating:
		return "generating"
	case StatePersisted:
		return "persisted"
	case StateScheduled:
		return "scheduled"
	case StateDelivered:
		return "delivered"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Outcome is reported once per reply branch when it reaches a terminal state.
type Outcome struct {
	RoomID    uuid.UUID
	TriggerID string
	PersonaID string
	State     BranchState // StateDelivered or StateFailed
	Reply     *models.MessageEvent
	Delay     time.Duration
	Err       error
}

// Observer receives branch outcomes. It is called from branch goroutines
// and must be safe for concurrent use.
type Observer func(Outcome)

// Scheduler runs f once after d without blocking the caller.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

// Options tune the reply pipeline. Zero values fall back to defaults.
type Options struct {
	Window               int
	DelayMin             time.Duration
	DelayMax             time.Duration
	GenerationTimeout    time.Duration
	GenerationRetries    int
	PersistRetries       int
	RetryInitialInterval time.Duration
	MaxConcurrent        int64 // 0 is unbounded
	MaxTokens            int64
	Temperature          float64

	Scheduler Scheduler
	Observer  Observer
}

// Deps are the collaborators an Orchestrator needs.
type Deps struct {
	Store     store.DataStore
	Personas  *persona.Registry
	Generator generator.Generator
	Channel   broadcast.Channel
	Logger    zerolog.Logger
}

// Orchestrator persists human messages and fans each out to the room's
// synthetic participants, one independent branch per persona.
type Orchestrator struct {
	store     store.DataStore
	personas  *persona.Registry
	gen       generator.Generator
	channel   broadcast.Channel
	rooms     *RoomRegistry
	assembler *ContextAssembler
	resolver  *SenderResolver
	logger    zerolog.Logger
	tracer    trace.Tracer

	opts Options
	sem  *semaphore.Weighted
	wg   sync.WaitGroup
}

// NewOrchestrator wires an orchestrator.
func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	if opts.DelayMin <= 0 && opts.DelayMax <= 0 {
		opts.DelayMin, opts.DelayMax = DefaultDelayMin, DefaultDelayMax
	}
	if opts.DelayMax < opts.DelayMin {
		opts.DelayMax = opts.DelayMin
	}
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = DefaultGenerationTimeout
	}
	if opts.Scheduler == nil {
		opts.Scheduler = timerScheduler{}
	}

	resolver := NewSenderResolver(deps.Store, deps.Personas)
	o := &Orchestrator{
		store:     deps.Store,
		personas:  deps.Personas,
		gen:       deps.Generator,
		channel:   deps.Channel,
		rooms:     NewRoomRegistry(deps.Store, deps.Personas, deps.Logger),
		assembler: NewContextAssembler(deps.Store, resolver, opts.Window, deps.Logger),
		resolver:  resolver,
		logger:    deps.Logger,
		tracer:    otel.Tracer(tracerName),
		opts:      opts,
	}
	if opts.MaxConcurrent > 0 {
		o.sem = semaphore.NewWeighted(opts.MaxConcurrent)
	}
	return o
}

// HandleHumanMessage persists and broadcasts a human message, then starts
// the reply fan-out in the background. It returns once the message is
// durable and published; replies never delay it.
func (o *Orchestrator) HandleHumanMessage(ctx context.Context, roomID, senderID uuid.UUID, content string) (*models.MessageEvent, error) {
	ctx, span := o.tracer.Start(ctx, "chat.HandleHumanMessage", trace.WithAttributes(
		attribute.String("room.id", roomID.String()),
	))
	defer span.End()

	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	room, err := o.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	member, err := o.rooms.IsHumanParticipant(ctx, roomID, senderID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotParticipant
	}

	msg := models.Message{
		RoomID:      roomID,
		SenderKind:  models.SenderHuman,
		SenderID:    senderID.String(),
		Content:     content,
		ContentKind: models.ContentText,
	}
	if err := o.store.AppendMessage(ctx, &msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		if errors.Is(err, store.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("persist message: %w", err)
	}
	metrics.MessagesPosted.WithLabelValues(string(models.SenderHuman)).Inc()
	span.SetAttributes(attribute.String("message.id", msg.ID))

	ev := o.resolver.Event(ctx, msg)
	o.publish(ctx, roomID, ev)

	// Replies outlive the request that triggered them.
	o.wg.Add(1)
	go o.fanOut(context.WithoutCancel(ctx), *room, ev)

	return &ev, nil
}

// Wait blocks until every in-flight branch and scheduled delivery has
// finished, or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) publish(ctx context.Context, roomID uuid.UUID, ev models.MessageEvent) {
	if err := o.channel.Publish(ctx, roomID, ev); err != nil {
		o.logger.Error().Err(err).
			Str("room_id", roomID.String()).
			Str("message_id", ev.ID).
			Msg("broadcast failed")
	}
}

func (o *Orchestrator) fanOut(ctx context.Context, room models.Room, trigger models.MessageEvent) {
	defer o.wg.Done()

	ctx, span := o.tracer.Start(ctx, "chat.fanOut", trace.WithAttributes(
		attribute.String("room.id", room.ID.String()),
		attribute.String("trigger.id", trigger.ID),
	))
	defer span.End()

	log := o.logger.With().
		Str("room_id", room.ID.String()).
		Str("trigger_id", trigger.ID).
		Logger()

	synthetic, err := o.rooms.ListSyntheticParticipants(ctx, room.ID)
	if err != nil {
		log.Error().Err(err).Msg("listing synthetic participants failed")
		span.RecordError(err)
		return
	}
	if len(synthetic) == 0 {
		return
	}
	span.SetAttributes(attribute.Int("branches", len(synthetic)))

	cc, err := o.assembler.Assemble(ctx, room.ID)
	if err != nil {
		log.Error().Err(err).Msg("context assembly failed, skipping replies")
		span.RecordError(err)
		span.SetStatus(codes.Error, "context unavailable")
		return
	}

	for _, participant := range synthetic {
		b := &branch{
			o:       o,
			cc:      cc,
			trigger: trigger,
			log:     log.With().Str("persona_id", participant.PersonaID).Logger(),
			outcome: Outcome{RoomID: room.ID, TriggerID: trigger.ID, PersonaID: participant.PersonaID},
		}
		p, ok := o.personas.Get(participant.PersonaID)
		if !ok {
			b.finish(StateFailed, "unknown_persona", fmt.Errorf("%w: %s", ErrUnknownPersona, participant.PersonaID))
			continue
		}
		o.wg.Add(1)
		metrics.BranchesInFlight.Inc()
		go b.run(ctx, p)
	}
}

// branch is one persona's reply pipeline. It shares only the read-only
// context with its siblings.
type branch struct {
	o       *Orchestrator
	cc      *ConversationContext
	trigger models.MessageEvent
	log     zerolog.Logger
	state   BranchState
	started bool
	span    trace.Span
	outcome Outcome
}

func (b *branch) transition(s BranchState) {
	b.log.Debug().Stringer("from", b.state).Stringer("to", s).Msg("branch transition")
	b.state = s
}

func (b *branch) run(ctx context.Context, p models.Persona) {
	o := b.o
	b.started = true
	ctx, b.span = o.tracer.Start(ctx, "chat.reply", trace.WithAttributes(
		attribute.String("persona.id", p.ID),
	))

	reply, err := b.generate(ctx, p)
	if err != nil {
		b.finish(StateFailed, "generate", err)
		return
	}

	msg := models.Message{
		RoomID:      b.cc.Room.ID,
		SenderKind:  models.SenderSynthetic,
		SenderID:    p.ID,
		Content:     reply,
		ContentKind: models.ContentText,
	}
	persist := RetryPolicy{Retries: o.opts.PersistRetries, InitialInterval: o.opts.RetryInitialInterval}
	if _, err := persist.Do(ctx, func(ctx context.Context) error {
		return o.store.AppendMessage(ctx, &msg)
	}); err != nil {
		b.log.Error().Err(err).Msg("persisting reply failed, reply dropped")
		b.finish(StateFailed, "persist", err)
		return
	}
	b.transition(StatePersisted)
	metrics.MessagesPosted.WithLabelValues(string(models.SenderSynthetic)).Inc()

	ev := models.MessageEvent{Message: msg, SenderName: p.Name, SenderInfo: p.Role}
	b.outcome.Reply = &ev

	delay := o.drawDelay()
	b.outcome.Delay = delay
	metrics.ReplyDelay.Observe(delay.Seconds())
	b.transition(StateScheduled)

	o.opts.Scheduler.AfterFunc(delay, func() {
		o.publish(ctx, b.cc.Room.ID, ev)
		metrics.RepliesDelivered.WithLabelValues(p.ID).Inc()
		b.finish(StateDelivered, "", nil)
	})
}

// generate runs the generator under the concurrency bound, the per-attempt
// timeout and the retry policy.
func (b *branch) generate(ctx context.Context, p models.Persona) (string, error) {
	o := b.o
	if o.sem != nil {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			return "", &GenerationError{PersonaID: p.ID, Err: err}
		}
		defer o.sem.Release(1)
	}

	b.transition(StateGenerating)
	req := BuildRequest(p, b.cc, b.trigger)
	req.MaxTokens = o.opts.MaxTokens
	req.Temperature = o.opts.Temperature

	start := time.Now()
	var reply string
	policy := RetryPolicy{Retries: o.opts.GenerationRetries, InitialInterval: o.opts.RetryInitialInterval}
	attempts, err := policy.Do(ctx, func(ctx context.Context) error {
		actx, cancel := context.WithTimeout(ctx, o.opts.GenerationTimeout)
		defer cancel()
		text, err := o.gen.Generate(actx, req)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return generator.ErrEmptyReply
		}
		reply = text
		return nil
	})
	metrics.GenerationDuration.WithLabelValues(p.ID).Observe(time.Since(start).Seconds())
	if err != nil {
		gerr := &GenerationError{PersonaID: p.ID, Attempts: attempts, Err: err}
		b.log.Warn().Err(gerr).Int("attempts", attempts).Msg("reply generation failed")
		return "", gerr
	}
	return reply, nil
}

// finish records a terminal state, reports it and releases the branch.
func (b *branch) finish(state BranchState, reason string, err error) {
	b.transition(state)
	b.outcome.State = state
	b.outcome.Err = err

	if b.started {
		if err != nil {
			b.span.RecordError(err)
			b.span.SetStatus(codes.Error, reason)
		}
		b.span.SetAttributes(attribute.String("branch.state", state.String()))
		b.span.End()
	}
	if state == StateFailed {
		metrics.GenerationFailures.WithLabelValues(b.outcome.PersonaID, reason).Inc()
	}
	if obs := b.o.opts.Observer; obs != nil {
		obs(b.outcome)
	}
	// Branches that never started hold no in-flight slot.
	if b.started {
		metrics.BranchesInFlight.Dec()
		b.o.wg.Done()
	}
}

func (o *Orchestrator) drawDelay() time.Duration {
	span := o.opts.DelayMax - o.opts.DelayMin
	if span <= 0 {
		return o.opts.DelayMin
	}
	return o.opts.DelayMin + rand.N(span)
}
