package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"

	"attestd/internal/domain"
)

const DefaultChannel = "attestd.events"

// RedisPublisher sends each event as a JSON message on a Redis pub/sub
// channel. Subscribers that are offline miss messages; the event log is the
// durable record.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisPublisher(client redis.UniversalClient, channel string) (*RedisPublisher, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, body).Err()
}

func (p *RedisPublisher) Channel() string {
	return p.channel
}
