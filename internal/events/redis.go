package events

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher fans events out on a Redis pub/sub channel.
type RedisPublisher struct {
	client  redisClient
	closer  func() error
	pinger  func(ctx context.Context) error
	channel string
}

func NewRedisPublisher(addr string, password string, db int, channel string) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisPublisher{
		client:  client,
		closer:  client.Close,
		pinger:  func(ctx context.Context) error { return client.Ping(ctx).Err() },
		channel: channel,
	}
}

func (p *RedisPublisher) Ping(ctx context.Context) error {
	if p.pinger == nil {
		return nil
	}
	return p.pinger(ctx)
}

func (p *RedisPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", event.Type, err)
	}
	return nil
}
