package broadcast

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/eldtechnologies/teamroom/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func event(room uuid.UUID, content string) models.MessageEvent {
	return models.MessageEvent{
		Message:    models.Message{ID: content, RoomID: room, Content: content},
		SenderName: "Anna",
	}
}

func TestHubDeliversToRoomSubscribersOnly(t *testing.T) {
	hub := NewHub(zerolog.Nop(), 4)
	roomA, roomB := uuid.New(), uuid.New()

	a, cancelA := hub.Subscribe(roomA)
	defer cancelA()
	b, cancelB := hub.Subscribe(roomB)
	defer cancelB()

	require.NoError(t, hub.Publish(context.Background(), roomA, event(roomA, "hello")))

	select {
	case ev := <-a:
		assert.Equal(t, "hello", ev.Content)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}
	select {
	case ev := <-b:
		t.Fatalf("unexpected event in other room: %v", ev)
	default:
	}
}

func TestHubDropsWhenQueueFull(t *testing.T) {
	hub := NewHub(zerolog.Nop(), 1)
	room := uuid.New()
	ch, cancel := hub.Subscribe(room)
	defer cancel()

	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, room, event(room, "first")))
	require.NoError(t, hub.Publish(ctx, room, event(room, "second")))

	ev := <-ch
	assert.Equal(t, "first", ev.Content)
	select {
	case ev := <-ch:
		t.Fatalf("expected drop, got %q", ev.Content)
	default:
	}
}

func TestHubCancelClosesAndUnregisters(t *testing.T) {
	hub := NewHub(zerolog.Nop(), 0)
	room := uuid.New()
	ch, cancel := hub.Subscribe(room)
	assert.Equal(t, 1, hub.Subscribers(room))

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.Subscribers(room))

	// Publishing to a room nobody watches is fine.
	assert.NoError(t, hub.Publish(context.Background(), room, event(room, "x")))
}

func TestHubCloseEndsSubscriptions(t *testing.T) {
	hub := NewHub(zerolog.Nop(), 0)
	room := uuid.New()
	ch, cancel := hub.Subscribe(room)

	hub.Close()
	_, open := <-ch
	assert.False(t, open)
	cancel() // must not double close

	late, lateCancel := hub.Subscribe(room)
	_, open = <-late
	assert.False(t, open)
	lateCancel()
	assert.Equal(t, 0, hub.Subscribers(room))
}

func TestRoomChannelRoundTrip(t *testing.T) {
	room := uuid.New()
	got, err := parseRoomChannel(roomChannel(room))
	require.NoError(t, err)
	assert.Equal(t, room, got)

	_, err = parseRoomChannel("other:channel")
	assert.Error(t, err)
}

func TestRelayForwardsRedisEvents(t *testing.T) {
	url := os.Getenv("TEAMROOM_TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEAMROOM_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	hub := NewHub(zerolog.Nop(), 4)
	room := uuid.New()
	ch, cancel := hub.Subscribe(room)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	relay := NewRelay(client, hub, zerolog.Nop())
	go func() { done <- relay.Run(ctx) }()

	pub := NewRedisChannel(client)
	require.Eventually(t, func() bool {
		_ = pub.Publish(ctx, room, event(room, "relayed"))
		select {
		case ev := <-ch:
			return ev.Content == "relayed"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	stop()
	require.NoError(t, <-done)
}
