package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/syntrixbase/docflow/internal/api"
	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/pkg/model"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

// Send pings to peer with this period. Must be less than pongWait.
var pingPeriod = (pongWait * 9) / 10

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	user    *request.User
	timeout time.Duration
	logger  *slog.Logger

	// Buffered channel of outbound frames: responses and notifications.
	send       chan interface{}
	mu         sync.Mutex
	sendClosed bool
}

func newClient(id string, hub *Hub, conn *websocket.Conn, user *request.User, cfg Config) *Client {
	return &Client{
		id:      id,
		hub:     hub,
		conn:    conn,
		user:    user,
		timeout: cfg.RequestTimeout,
		logger:  hub.logger.With("connection", id),
		send:    make(chan interface{}, cfg.SendBuffer),
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string {
	return c.id
}

// queue adds a frame to the send buffer. It reports false when the buffer
// is full or the client is gone.
func (c *Client) queue(frame interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

func (c *Client) close() {
	c.conn.Close()
}

// readPump pumps request frames from the websocket connection to the
// executor. There is at most one reader on a connection.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	c.logger.Info("WebSocket connection established", "user", c.user.ID)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket connection closed", "error", err)
			} else {
				c.logger.Info("WebSocket connection closed")
			}
			return
		}
		c.handleMessage(ctx, message)
	}
}

func (c *Client) handleMessage(ctx context.Context, data []byte) {
	reqCtx := request.Context{
		Connection: request.Connection{ID: c.id, Protocol: request.ProtocolWebSocket},
		User:       c.user,
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		c.respond(request.New(request.Payload{}, reqCtx), model.NewError(model.KindBadRequest,
			"api.assert.invalid_json", "invalid JSON frame: %v", err))
		return
	}

	payload, err := api.PayloadFromMap(raw)
	req := request.New(payload, reqCtx)
	if err != nil {
		c.respond(req, err)
		return
	}

	exec := c.hub.getExecutor()
	if exec == nil {
		c.respond(req, model.NewError(model.KindUnavailable, "core.unavailable", "server is not ready"))
		return
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	c.respond(req, exec.Execute(ctx, req))
}

func (c *Client) respond(req *request.Request, err error) {
	if !c.queue(api.NewResponse(req, err)) {
		c.logger.Warn("Dropped response, send buffer full",
			"requestId", req.ID,
			"controller", req.Controller,
			"action", req.Action)
	}
}

// writePump pumps frames from the send buffer to the websocket connection.
// There is at most one writer on a connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				c.logger.Warn("Failed to write frame", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
