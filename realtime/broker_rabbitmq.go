package realtime

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const chatExchange = "chat_events"

// RabbitBroker fans out through a topic exchange keyed by room. Every
// instance consumes from its own exclusive queue bound to all rooms.
type RabbitBroker struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	hub     *Hub
	// amqp channels must not be used for concurrent publishes
	publishMu sync.Mutex
	done      chan struct{}
}

func NewRabbitBroker(url string, hub *Hub) (*RabbitBroker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	b, err := setupRabbit(conn, hub)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	zap.L().Info("rabbitmq channel layer ready", zap.String("exchange", chatExchange))
	return b, nil
}

func setupRabbit(conn *amqp.Connection, hub *Hub) (*RabbitBroker, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		chatExchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(
		"",
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "#", chatExchange, false, nil); err != nil {
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}
	deliveries, err := ch.Consume(
		q.Name,
		"",
		true,  // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start consumer: %w", err)
	}

	b := &RabbitBroker{conn: conn, channel: ch, hub: hub, done: make(chan struct{})}
	go b.consume(deliveries)
	return b, nil
}

func (b *RabbitBroker) consume(deliveries <-chan amqp.Delivery) {
	defer close(b.done)
	for d := range deliveries {
		b.hub.Broadcast(d.RoutingKey, d.Body)
	}
}

func (b *RabbitBroker) Publish(ctx context.Context, room string, payload []byte) error {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()
	return b.channel.PublishWithContext(ctx,
		chatExchange,
		room,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        payload,
		},
	)
}

func (b *RabbitBroker) Close() error {
	err := b.channel.Close()
	if cerr := b.conn.Close(); err == nil {
		err = cerr
	}
	<-b.done
	return err
}
