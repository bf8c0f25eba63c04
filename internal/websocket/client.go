package websocket

import (
	"sync"
	"time"

	"meeting-agent-be/internal/pkg/logger"
	"meeting-agent-be/pkg/store"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 20 // base64 screenshots
)

// Conn is the part of the websocket connection the hub relies on.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// InboundHandler receives every frame a client sends.
type InboundHandler interface {
	HandleMessage(client *Client, raw []byte)
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub     *Hub
	conn    Conn
	handler InboundHandler
	logger  logger.ILogger

	// Session is the meeting state owned by this connection.
	Session *store.Session

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func (c *Client) ID() string {
	return c.Session.ID
}

// enqueue never blocks and never sends on a closed channel.
func (c *Client) enqueue(data []byte) (ok, full bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, false
	}
	select {
	case c.send <- data:
		return true, false
	default:
		return false, true
	}
}

// close stops the write pump. Safe to call more than once.
func (c *Client) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)
	return true
}

func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// readPump pumps messages from the websocket connection to the handler.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn(module, "Unexpected close", map[string]interface{}{"session_id": c.ID(), "error": err.Error()})
			}
			return
		}
		c.Session.Touch()
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if c.handler != nil {
			c.handler.HandleMessage(c, data)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection,
// one frame per message.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug(module, "Write failed", map[string]interface{}{"session_id": c.ID(), "error": err.Error()})
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
