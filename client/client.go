// Package client talks to the marketplace api and its chat socket. It backs
// the chatclient command.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marketplace/models"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
)

var ErrNotLoggedIn = errors.New("not logged in")

// APIError is a non-2xx answer of the api.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.Status, e.Body)
}

type Client struct {
	baseURL string
	http    *resty.Client
	token   string
	user    *models.Profile
}

func New(baseURL string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		baseURL: baseURL,
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10*time.Second).
			SetHeader("Content-Type", "application/json"),
	}
}

// SetToken reuses a token obtained earlier, for example from JWT_TOKEN.
func (c *Client) SetToken(token string) {
	c.token = token
	c.user = nil
}

func (c *Client) Token() string {
	return c.token
}

func (c *Client) request(ctx context.Context) *resty.Request {
	r := c.http.R().SetContext(ctx)
	if c.token != "" {
		r.SetAuthToken(c.token)
	}
	return r
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &APIError{Status: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

func (c *Client) Login(ctx context.Context, username, password string) (*models.Profile, error) {
	var out struct {
		Token string         `json:"token"`
		User  models.Profile `json:"user"`
	}
	resp, err := c.request(ctx).
		SetBody(map[string]string{"username": username, "password": password}).
		SetResult(&out).
		Post("/user/login/")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	c.token = out.Token
	c.user = &out.User
	return c.user, nil
}

// Me returns the logged in user.
func (c *Client) Me(ctx context.Context) (*models.Profile, error) {
	if c.token == "" {
		return nil, ErrNotLoggedIn
	}
	if c.user != nil {
		return c.user, nil
	}
	var profile models.Profile
	resp, err := c.request(ctx).SetResult(&profile).Get("/user/")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	c.user = &profile
	return c.user, nil
}

type chatPage struct {
	Count   int64             `json:"count"`
	Results []models.ChatView `json:"results"`
}

type messagePage struct {
	Count   int64                `json:"count"`
	Results []models.MessageView `json:"results"`
}

func (c *Client) Chats(ctx context.Context) ([]models.ChatView, error) {
	var page chatPage
	resp, err := c.request(ctx).SetResult(&page).Get("/chats/")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return page.Results, nil
}

// History returns one page of chat messages, newest first.
func (c *Client) History(ctx context.Context, chatID int64, page int) ([]models.MessageView, error) {
	var out messagePage
	resp, err := c.request(ctx).
		SetQueryParam("page", strconv.Itoa(page)).
		SetResult(&out).
		Get(fmt.Sprintf("/chats/%d/messages/", chatID))
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Dial opens the chat socket of chatID as the logged in user.
func (c *Client) Dial(ctx context.Context, chatID int64) (*ChatConn, error) {
	me, err := c.Me(ctx)
	if err != nil {
		return nil, err
	}
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + fmt.Sprintf("/ws/%d/", chatID)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode, Body: err.Error()}
		}
		return nil, err
	}
	return &ChatConn{conn: conn, chatID: chatID, userID: me.ID}, nil
}

// ChatConn is an open chat socket.
type ChatConn struct {
	conn   *websocket.Conn
	chatID int64
	userID int64
}

// Incoming is either a chat message or the error frame of a rejected send.
type Incoming struct {
	Message *models.MessageView
	Error   string
}

func (cc *ChatConn) Send(text string) error {
	return cc.conn.WriteJSON(map[string]interface{}{
		"text":         text,
		"chat_id":      cc.chatID,
		"sender_id":    cc.userID,
		"message_type": models.MessageTypeText,
	})
}

// Receive blocks until the next frame arrives.
func (cc *ChatConn) Receive() (Incoming, error) {
	_, data, err := cc.conn.ReadMessage()
	if err != nil {
		return Incoming{}, err
	}
	var probe struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Incoming{}, fmt.Errorf("decode frame: %w", err)
	}
	if probe.Error != nil {
		return Incoming{Error: *probe.Error}, nil
	}
	var msg models.MessageView
	if err := json.Unmarshal(data, &msg); err != nil {
		return Incoming{}, fmt.Errorf("decode message: %w", err)
	}
	return Incoming{Message: &msg}, nil
}

func (cc *ChatConn) Close() error {
	_ = cc.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return cc.conn.Close()
}
