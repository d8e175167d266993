package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"marketplace/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageStore persists chat messages.
type MessageStore interface {
	Create(ctx context.Context, chatID, senderID int64, text string, messageType models.MessageType) (*models.Message, error)
}

// Gateway runs the chat protocol for every websocket connection.
type Gateway struct {
	hub      *Hub
	broker   Broker
	messages MessageStore
	// isRejected reports store errors that mean the sender may not post.
	isRejected func(error) bool
	upgrader   websocket.Upgrader
}

type GatewayOption func(*Gateway)

// WithRejection marks store errors that should be reported to the sender as
// protocol errors instead of internal failures.
func WithRejection(match func(error) bool) GatewayOption {
	return func(g *Gateway) { g.isRejected = match }
}

func NewGateway(hub *Hub, broker Broker, messages MessageStore, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		hub:      hub,
		broker:   broker,
		messages: messages,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Hub() *Hub {
	return g.hub
}

// Serve upgrades the request and runs the connection of userID in chatID
// until it closes. Authorization must be checked by the caller.
func (g *Gateway) Serve(w http.ResponseWriter, r *http.Request, userID, chatID int64) error {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}
	c := newClient(conn, userID, chatID, RoomKey(strconv.FormatInt(chatID, 10)))
	if err := g.connect(c); err != nil {
		_ = conn.Close()
		return err
	}
	defer g.disconnect(c)

	go c.writePump()
	c.readPump(r.Context(), g)
	return nil
}

func (g *Gateway) connect(c *Client) error {
	g.hub.Join(c.Room, c)
	if err := c.transition(StateJoined); err != nil {
		g.hub.Leave(c.Room, c)
		return err
	}
	chatConnections.Inc()
	c.logger().Debug("chat client joined", zap.String("room", c.Room))
	return nil
}

func (g *Gateway) disconnect(c *Client) {
	if c.transition(StateClosed) != nil {
		return
	}
	g.hub.Leave(c.Room, c)
	c.closeQueue()
	chatConnections.Dec()
	c.logger().Debug("chat client left", zap.String("room", c.Room))
}

// Handle processes one inbound frame of c: it validates the frame, stores
// the message once and publishes it to the chat's room.
func (g *Gateway) Handle(ctx context.Context, c *Client, data []byte) error {
	if c.State() != StateJoined {
		return ErrClosed
	}
	in, err := parseFrame(data)
	if err != nil {
		return err
	}
	if in.ChatID != c.ChatID {
		return protocolError("chat_mismatch", "chat_id %d does not match the joined chat", in.ChatID)
	}
	if in.SenderID != c.UserID {
		return protocolError("sender_mismatch", "sender_id %d does not match the authenticated user", in.SenderID)
	}

	msg, err := g.messages.Create(ctx, c.ChatID, c.UserID, in.Text, in.MessageType)
	if err != nil {
		if g.isRejected != nil && g.isRejected(err) {
			return protocolError("not_participant", "sender is not a participant of the chat")
		}
		return fmt.Errorf("store message: %w", err)
	}
	chatMessagesTotal.Inc()

	payload, err := json.Marshal(msg.View())
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := g.broker.Publish(ctx, c.Room, payload); err != nil {
		return fmt.Errorf("publish message %d: %w", msg.ID, err)
	}
	return nil
}
