package realtime

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisBroker fans out through redis pub/sub: every room is a channel and
// each instance holds one pattern subscription over all rooms.
type RedisBroker struct {
	client *redis.Client
	pubsub *redis.PubSub
	hub    *Hub
	done   chan struct{}
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisBroker(ctx context.Context, opts RedisOptions, hub *Hub) (*RedisBroker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	pubsub := client.PSubscribe(ctx, roomPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		_ = client.Close()
		return nil, fmt.Errorf("subscribe to chat rooms: %w", err)
	}
	b := &RedisBroker{client: client, pubsub: pubsub, hub: hub, done: make(chan struct{})}
	go b.consume()
	zap.L().Info("redis channel layer ready", zap.String("addr", opts.Addr))
	return b, nil
}

func (b *RedisBroker) consume() {
	defer close(b.done)
	for msg := range b.pubsub.Channel() {
		b.hub.Broadcast(msg.Channel, []byte(msg.Payload))
	}
}

func (b *RedisBroker) Publish(ctx context.Context, room string, payload []byte) error {
	return b.client.Publish(ctx, room, payload).Err()
}

func (b *RedisBroker) Close() error {
	err := b.pubsub.Close()
	<-b.done
	if cerr := b.client.Close(); err == nil {
		err = cerr
	}
	return err
}
