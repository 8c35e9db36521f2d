package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/weiawesome/wes-io-chat/gateway-service/internal/config"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// Client is the hub side of one WebSocket connection.
type Client struct {
	ID      string
	Session *domain.Session

	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	config config.WebSocketConfig
	logger zerolog.Logger

	mu          sync.Mutex
	closed      bool
	closeCode   int
	closeReason string
}

func NewClient(id, username string, hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	size := cfg.SendBufferSize
	if size <= 0 {
		size = 256
	}
	return &Client{
		ID:      id,
		Session: domain.NewSession(id, username),
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, size),
		config:  cfg,
		logger: log.L().With().
			Str(log.FieldConnID, id).
			Str(log.FieldUsername, username).
			Logger(),
	}
}

// Username returns the identity bound at handshake.
func (c *Client) Username() string {
	return c.Session.Username
}

// trySend queues msg without blocking. It reports false when the client is
// closed or its buffer is full.
func (c *Client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeWith stops accepting frames and makes WritePump flush what is
// queued, then send a close frame with code. Only the first call counts.
func (c *Client) closeWith(code int, reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	close(c.send)
	return true
}

// evict discards whatever is still queued, queues notice and closes with
// code, so WritePump sends only the notice before the close frame.
func (c *Client) evict(notice []byte, code int, reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	for drained := false; !drained; {
		select {
		case <-c.send:
		default:
			drained = true
		}
	}
	select {
	case c.send <- notice:
	default:
	}
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	close(c.send)
	return true
}

// Closed reports whether the client has been closed.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// CloseCode returns the code the server closed the client with, or 0.
func (c *Client) CloseCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

// ReadPump reads until the connection fails. Client frames carry no
// commands; reading keeps the pong handler and close handshake working.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.Session.UpdateActivity()
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Debug().Err(err).Msg("connection lost")
			}
			return
		}
		c.Session.UpdateActivity()
	}
}

// WritePump drains the send buffer to the connection and keeps it alive
// with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.mu.Lock()
				code, reason := c.closeCode, c.closeReason
				c.mu.Unlock()
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug().Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
