package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendQueueSize  = 256
)

// ErrClosed is returned for operations on a client that has disconnected.
var ErrClosed = errors.New("connection closed")

type State int32

const (
	StateConnecting State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Client is one websocket connection bound to one chat.
type Client struct {
	UserID int64
	ChatID int64
	Room   string

	conn *websocket.Conn
	send chan []byte

	mu          sync.Mutex
	state       State
	queueClosed bool
}

func newClient(conn *websocket.Conn, userID, chatID int64, room string) *Client {
	return &Client{
		UserID: userID,
		ChatID: chatID,
		Room:   room,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		state:  StateConnecting,
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// transition moves the client forward. Closed is terminal.
func (c *Client) transition(to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return ErrClosed
	}
	c.state = to
	return nil
}

func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queueClosed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) closeQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.queueClosed {
		c.queueClosed = true
		close(c.send)
	}
}

func (c *Client) logger() *zap.Logger {
	return zap.L().With(zap.Int64("user_id", c.UserID), zap.Int64("chat_id", c.ChatID))
}

func (c *Client) readPump(ctx context.Context, g *Gateway) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger().Warn("chat read failed", zap.Error(err))
			}
			return
		}
		err = g.Handle(ctx, c, data)
		var perr *ProtocolError
		switch {
		case err == nil:
		case errors.As(err, &perr):
			chatProtocolErrors.WithLabelValues(perr.Code).Inc()
			c.logger().Info("chat frame rejected", zap.String("reason", perr.Reason))
			c.enqueue(encodeError(perr.Reason))
		case errors.Is(err, ErrClosed):
			return
		default:
			c.logger().Error("chat message failed", zap.Error(err))
			c.enqueue(encodeError("internal error"))
		}
	}
}

// writePump pushes queued payloads as text frames until the queue is
// closed, then says goodbye with a close frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
