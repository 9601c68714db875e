package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/teamroom/internal/metrics"
	"github.com/eldtechnologies/teamroom/internal/models"
)

const (
	channelPrefix  = "teamroom:room:"
	channelSuffix  = ":events"
	channelPattern = channelPrefix + "*" + channelSuffix
)

// roomChannel returns the pub/sub channel for a room's events.
func roomChannel(roomID uuid.UUID) string {
	return fmt.Sprintf("%s%s%s", channelPrefix, roomID, channelSuffix)
}

// parseRoomChannel extracts the room ID from a pub/sub channel name.
func parseRoomChannel(channel string) (uuid.UUID, error) {
	if !strings.HasPrefix(channel, channelPrefix) || !strings.HasSuffix(channel, channelSuffix) {
		return uuid.Nil, fmt.Errorf("unexpected channel %q", channel)
	}
	return uuid.Parse(strings.TrimSuffix(strings.TrimPrefix(channel, channelPrefix), channelSuffix))
}

// RedisChannel publishes room events through Redis pub/sub so every
// instance's Relay can hand them to local subscribers.
type RedisChannel struct {
	client *redis.Client
}

// NewRedisChannel creates a Redis-backed channel.
func NewRedisChannel(client *redis.Client) *RedisChannel {
	return &RedisChannel{client: client}
}

// Publish sends ev to the room's pub/sub channel.
func (c *RedisChannel) Publish(ctx context.Context, roomID uuid.UUID, ev models.MessageEvent) error {
	start := time.Now()
	defer func() { metrics.RedisLatency.Observe(time.Since(start).Seconds()) }()

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, roomChannel(roomID), data).Err()
}

// Relay forwards events from Redis pub/sub into a local Hub.
type Relay struct {
	client *redis.Client
	hub    *Hub
	logger zerolog.Logger
}

// NewRelay creates a relay feeding hub.
func NewRelay(client *redis.Client, hub *Hub, logger zerolog.Logger) *Relay {
	return &Relay{client: client, hub: hub, logger: logger}
}

// Run consumes room events until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, channelPattern)
	defer pubsub.Close()

	// Wait for confirmation so publishes after Run starts are not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	r.logger.Info().Str("pattern", channelPattern).Msg("broadcast relay subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.dispatch(ctx, msg)
		}
	}
}

func (r *Relay) dispatch(ctx context.Context, msg *redis.Message) {
	roomID, err := parseRoomChannel(msg.Channel)
	if err != nil {
		r.logger.Warn().Err(err).Msg("ignoring relay message")
		return
	}
	var ev models.MessageEvent
	if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
		r.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("malformed relay payload")
		return
	}
	_ = r.hub.Publish(ctx, roomID, ev)
}
