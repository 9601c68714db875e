package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/teamroom/internal/generator"
	"github.com/eldtechnologies/teamroom/internal/models"
)

func TestHumanMessageFansOutToEverySyntheticParticipant(t *testing.T) {
	f := newFixture(t, echoGenerator(), Options{})
	ctx := context.Background()

	ev, err := f.orch.HandleHumanMessage(ctx, f.room.ID, f.user.ID, "What's our status?")
	require.NoError(t, err)
	assert.Equal(t, models.SenderHuman, ev.SenderKind)
	assert.Equal(t, "Olga", ev.SenderName)
	assert.Equal(t, "olga@example.com", ev.SenderInfo)
	f.wait(t)

	events := f.channel.snapshot()
	require.Len(t, events, 3)
	assert.Equal(t, ev.ID, events[0].ID, "trigger is broadcast first")

	senders := map[string]bool{}
	for _, e := range events[1:] {
		assert.Equal(t, models.SenderSynthetic, e.SenderKind)
		assert.Equal(t, models.ContentText, e.ContentKind)
		senders[e.SenderID] = true
	}
	assert.Equal(t, map[string]bool{"pm": true, "qa": true}, senders)

	for _, d := range f.sched.snapshot() {
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 4*time.Second)
	}

	outcomes := f.outcomes.byPersona()
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, StateDelivered, o.State)
		assert.Equal(t, ev.ID, o.TriggerID)
		require.NotNil(t, o.Reply)
		assert.NoError(t, o.Err)
	}

	n, err := f.store.CountMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestFailingPersonaIsIsolated(t *testing.T) {
	gen := generator.Func(func(ctx context.Context, req generator.Request) (string, error) {
		if req.PersonaID == "qa" {
			return "", errors.New("provider unavailable")
		}
		return "All on track.", nil
	})
	f := newFixture(t, gen, Options{})

	_, err := f.orch.HandleHumanMessage(context.Background(), f.room.ID, f.user.ID, "What's our status?")
	require.NoError(t, err)
	f.wait(t)

	events := f.channel.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, "pm", events[1].SenderID)
	assert.Equal(t, "Paula", events[1].SenderName)
	assert.Equal(t, "Project Manager", events[1].SenderInfo)

	outcomes := f.outcomes.byPersona()
	assert.Equal(t, StateDelivered, outcomes["pm"].State)

	qa := outcomes["qa"]
	assert.Equal(t, StateFailed, qa.State)
	var gerr *GenerationError
	require.ErrorAs(t, qa.Err, &gerr)
	assert.Equal(t, "qa", gerr.PersonaID)
	assert.Equal(t, 1, gerr.Attempts)
	assert.Nil(t, qa.Reply)
}

func TestSlowPersonaDoesNotBlockSiblings(t *testing.T) {
	release := make(chan struct{})
	gen := generator.Func(func(ctx context.Context, req generator.Request) (string, error) {
		if req.PersonaID == "qa" {
			select {
			case <-release:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		return "done", nil
	})
	f := newFixture(t, gen, Options{})

	start := time.Now()
	_, err := f.orch.HandleHumanMessage(context.Background(), f.room.ID, f.user.ID, "ping")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second, "caller never waits on replies")

	first := f.outcomes.next(t)
	assert.Equal(t, "pm", first.PersonaID)
	assert.Equal(t, StateDelivered, first.State)

	close(release)
	second := f.outcomes.next(t)
	assert.Equal(t, "qa", second.PersonaID)
	f.wait(t)
}

func TestRoomWithoutSyntheticParticipants(t *testing.T) {
	var calls atomic.Int32
	gen := generator.Func(func(ctx context.Context, req generator.Request) (string, error) {
		calls.Add(1)
		return "x", nil
	})
	f := newFixture(t, gen, Options{})
	ctx := context.Background()

	bare, err := f.store.CreateRoom(ctx, f.project.ID, "Quiet", models.RoomGeneral)
	require.NoError(t, err)
	_, err = f.rooms.AddParticipant(ctx, bare.ID, Membership{UserID: &f.user.ID})
	require.NoError(t, err)

	_, err = f.orch.HandleHumanMessage(ctx, bare.ID, f.user.ID, "anyone here?")
	require.NoError(t, err)
	f.wait(t)

	assert.Len(t, f.channel.snapshot(), 1)
	assert.Zero(t, calls.Load())
	assert.Empty(t, f.outcomes.byPersona())
}

func TestTriggerPersistFailureIsFatal(t *testing.T) {
	f := newFixture(t, echoGenerator(), Options{})
	f.store.fail = func(m *models.Message) bool { return true }

	_, err := f.orch.HandleHumanMessage(context.Background(), f.room.ID, f.user.ID, "hello")
	require.Error(t, err)
	f.wait(t)
	assert.Empty(t, f.channel.snapshot(), "no broadcast of an unpersisted message")
}

func TestReplyPersistFailureDropsOnlyThatBranch(t *testing.T) {
	f := newFixture(t, echoGenerator(), Options{})
	f.store.fail = func(m *models.Message) bool { return m.SenderID == "qa" }

	_, err := f.orch.HandleHumanMessage(context.Background(), f.room.ID, f.user.ID, "hello")
	require.NoError(t, err)
	f.wait(t)

	outcomes := f.outcomes.byPersona()
	assert.Equal(t, StateDelivered, outcomes["pm"].State)
	assert.Equal(t, StateFailed, outcomes["qa"].State)
	assert.Len(t, f.channel.snapshot(), 2)
}

func TestHandleHumanMessageValidation(t *testing.T) {
	f := newFixture(t, echoGenerator(), Options{})
	ctx := context.Background()

	_, err := f.orch.HandleHumanMessage(ctx, f.room.ID, f.user.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = f.orch.HandleHumanMessage(ctx, uuid.New(), f.user.ID, "hi")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	stranger, _, err := f.dir.RegisterUser(ctx, "Stranger", "stranger@example.com")
	require.NoError(t, err)
	_, err = f.orch.HandleHumanMessage(ctx, f.room.ID, stranger.ID, "hi")
	assert.ErrorIs(t, err, ErrNotParticipant)

	f.wait(t)
	assert.Empty(t, f.channel.snapshot())
}

func TestOverlappingFanOuts(t *testing.T) {
	releaseFirst := make(chan struct{})
	gen := generator.Func(func(ctx context.Context, req generator.Request) (string, error) {
		if req.Prompt == "m1" {
			<-releaseFirst
		}
		return "re " + req.Prompt, nil
	})
	f := newFixture(t, gen, Options{})
	ctx := context.Background()

	m1, err := f.orch.HandleHumanMessage(ctx, f.room.ID, f.user.ID, "m1")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	m2, err := f.orch.HandleHumanMessage(ctx, f.room.ID, f.user.ID, "m2")
	require.NoError(t, err)
	assert.Greater(t, m2.Seq, m1.Seq)

	// m2's replies arrive while m1's are still pending.
	for i := 0; i < 2; i++ {
		o := f.outcomes.next(t)
		assert.Equal(t, m2.ID, o.TriggerID)
	}

	close(releaseFirst)
	for i := 0; i < 2; i++ {
		o := f.outcomes.next(t)
		assert.Equal(t, m1.ID, o.TriggerID)
	}
	f.wait(t)

	assert.Len(t, f.channel.snapshot(), 6)
}

func TestSharedContextIncludesTrigger(t *testing.T) {
	var mu sync.Mutex
	systems := map[string]string{}
	gen := generator.Func(func(ctx context.Context, req generator.Request) (string, error) {
		mu.Lock()
		systems[req.PersonaID] = req.System
		mu.Unlock()
		return "ok", nil
	})
	f := newFixture(t, gen, Options{})

	_, err := f.orch.HandleHumanMessage(context.Background(), f.room.ID, f.user.ID, "Can we ship Friday?")
	require.NoError(t, err)
	f.wait(t)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, systems, 2)
	for id, system := range systems {
		assert.Contains(t, system, "Olga: Can we ship Friday?", id)
		assert.Contains(t, system, "Name: Checkout", id)
	}
	assert.True(t, strings.HasPrefix(systems["pm"], "You are Paula, Project Manager."))
	assert.True(t, strings.HasPrefix(systems["qa"], "You are Quinn, QA Engineer."))
}

func TestGenerationRetries(t *testing.T) {
	var attempts atomic.Int32
	gen := generator.Func(func(ctx context.Context, req generator.Request) (string, error) {
		if req.PersonaID == "pm" && attempts.Add(1) < 3 {
			return "", errors.New("rate limited")
		}
		return "finally", nil
	})
	f := newFixture(t, gen, Options{GenerationRetries: 2, RetryInitialInterval: time.Millisecond})

	_, err := f.orch.HandleHumanMessage(context.Background(), f.room.ID, f.user.ID, "hi")
	require.NoError(t, err)
	f.wait(t)

	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, StateDelivered, f.outcomes.byPersona()["pm"].State)
}

func TestGenerationTimeout(t *testing.T) {
	gen := generator.Func(func(ctx context.Context, req generator.Request) (string, error) {
		if req.PersonaID == "qa" {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "quick", nil
	})
	f := newFixture(t, gen, Options{GenerationTimeout: 20 * time.Millisecond})

	_, err := f.orch.HandleHumanMessage(context.Background(), f.room.ID, f.user.ID, "hi")
	require.NoError(t, err)
	f.wait(t)

	qa := f.outcomes.byPersona()["qa"]
	assert.Equal(t, StateFailed, qa.State)
	assert.ErrorIs(t, qa.Err, context.DeadlineExceeded)
	assert.Equal(t, StateDelivered, f.outcomes.byPersona()["pm"].State)
}

func TestEmptyReplyFailsBranch(t *testing.T) {
	gen := generator.Func(func(ctx context.Context, req generator.Request) (string, error) {
		return "  ", nil
	})
	f := newFixture(t, gen, Options{})

	_, err := f.orch.HandleHumanMessage(context.Background(), f.room.ID, f.user.ID, "hi")
	require.NoError(t, err)
	f.wait(t)

	for _, o := range f.outcomes.byPersona() {
		assert.ErrorIs(t, o.Err, generator.ErrEmptyReply)
	}
	assert.Len(t, f.channel.snapshot(), 1)
}

func TestMaxConcurrentBoundsGenerations(t *testing.T) {
	var active, peak atomic.Int32
	gen := generator.Func(func(ctx context.Context, req generator.Request) (string, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return "ok", nil
	})
	f := newFixture(t, gen, Options{MaxConcurrent: 1})

	_, err := f.orch.HandleHumanMessage(context.Background(), f.room.ID, f.user.ID, "hi")
	require.NoError(t, err)
	f.wait(t)

	assert.Equal(t, int32(1), peak.Load())
	assert.Len(t, f.outcomes.byPersona(), 2)
}

func TestTimerSchedulerDeliversAfterDelay(t *testing.T) {
	f := newFixture(t, echoGenerator(), Options{
		Scheduler: timerScheduler{},
		DelayMin:  10 * time.Millisecond,
		DelayMax:  20 * time.Millisecond,
	})

	start := time.Now()
	_, err := f.orch.HandleHumanMessage(context.Background(), f.room.ID, f.user.ID, "hi")
	require.NoError(t, err)
	f.wait(t)

	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	assert.Len(t, f.channel.snapshot(), 3)
	for _, o := range f.outcomes.byPersona() {
		assert.GreaterOrEqual(t, o.Delay, 10*time.Millisecond)
		assert.Less(t, o.Delay, 20*time.Millisecond)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	block := make(chan struct{})
	gen := generator.Func(func(ctx context.Context, req generator.Request) (string, error) {
		<-block
		return "late", nil
	})
	f := newFixture(t, gen, Options{})

	_, err := f.orch.HandleHumanMessage(context.Background(), f.room.ID, f.user.ID, "hi")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.orch.Wait(ctx), context.DeadlineExceeded)

	close(block)
	f.wait(t)
}

func TestBranchStateString(t *testing.T) {
	assert.Equal(t, "generating", StateGenerating.String())
	assert.Equal(t, "delivered", StateDelivered.String())
	assert.Equal(t, "state(42)", BranchState(42).String())
}
