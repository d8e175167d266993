package realtime

import (
	"context"
	"fmt"

	"marketplace/config"
)

// Broker carries room broadcasts. Publish must eventually reach the local
// hub of every instance with members in room, this one included.
type Broker interface {
	Publish(ctx context.Context, room string, payload []byte) error
	Close() error
}

// LocalBroker delivers straight to the hub of a single instance.
type LocalBroker struct {
	hub *Hub
}

func NewLocalBroker(hub *Hub) *LocalBroker {
	return &LocalBroker{hub: hub}
}

func (b *LocalBroker) Publish(_ context.Context, room string, payload []byte) error {
	b.hub.Broadcast(room, payload)
	return nil
}

func (b *LocalBroker) Close() error {
	return nil
}

// NewBroker builds the channel layer named by conf.ChannelLayer.Backend.
func NewBroker(ctx context.Context, conf *config.ConfigSchema, hub *Hub) (Broker, error) {
	switch conf.ChannelLayer.Backend {
	case "redis":
		return NewRedisBroker(ctx, RedisOptions{
			Addr:     conf.RedisAddr(),
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		}, hub)
	case "rabbitmq":
		return NewRabbitBroker(conf.RabbitMQ.URL, hub)
	case "memory", "":
		return NewLocalBroker(hub), nil
	}
	return nil, fmt.Errorf("unsupported channel layer backend %q", conf.ChannelLayer.Backend)
}
