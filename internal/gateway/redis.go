package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"relaychat/internal/config"
	"relaychat/internal/events"
)

// RedisGateway publishes push envelopes over Redis Pub/Sub. The connection
// multiplexer subscribes to the user/group channels and fans out to live
// websocket connections.
type RedisGateway struct {
	client *redis.Client
}

func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedisGateway(client *redis.Client) *RedisGateway {
	return &RedisGateway{client: client}
}

func (g *RedisGateway) SendToUser(ctx context.Context, userID uuid.UUID, method string, payload []byte) error {
	return g.publish(ctx, events.ChannelPrefixUser+userID.String(), method, payload)
}

func (g *RedisGateway) SendToGroup(ctx context.Context, groupID uuid.UUID, method string, payload []byte) error {
	return g.publish(ctx, events.ChannelPrefixGroup+groupID.String(), method, payload)
}

func (g *RedisGateway) publish(ctx context.Context, channel, method string, payload []byte) error {
	env := events.PushEnvelope{
		Method:  method,
		Payload: payload,
		SentAt:  time.Now().UTC(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal push envelope: %w", err)
	}
	return g.client.Publish(ctx, channel, data).Err()
}
