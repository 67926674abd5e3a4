package web

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lamp-blog/lamp/internal/content"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds client frames, which only carry ping and
	// subscribe requests.
	maxMessageSize = 4096

	// feedBuffer is how many events a slow client may lag behind before
	// events are dropped for it.
	feedBuffer = 256
)

// WSClient is a single feed connection.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn

	// filter is the followed content type, empty for all.
	filter content.Type

	send chan *WSMessage

	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewWSClient creates a feed client.
func NewWSClient(hub *Hub, conn *websocket.Conn,
	filter content.Type) *WSClient {

	return &WSClient{
		hub:    hub,
		conn:   conn,
		filter: filter,
		send:   make(chan *WSMessage, feedBuffer),
	}
}

// Filter returns the followed content type.
func (c *WSClient) Filter() content.Type {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.filter
}

// SetFilter changes the followed content type.
func (c *WSClient) SetFilter(t content.Type) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.filter = t
}

// Send queues a message for the client, dropping it when the client is
// too slow.
func (c *WSClient) Send(msg *WSMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- msg:
	default:
		c.dropped++
		log.Debugf("Feed client lagging, dropped %s (%d total)",
			msg.Type, c.dropped)
	}
}

// Close closes the client connection.
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.send)
	c.conn.Close()
}

// readPump reads client messages until the connection fails.
func (c *WSClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {

				log.Debugf("Feed read error: %v", err)
			}
			return
		}

		c.hub.handleIncomingMessage(c, messageType, data)
	}
}

// writePump writes queued feed events and keepalive pings. It owns all
// writes to the connection.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		var err error
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			err = c.conn.WriteJSON(msg)

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = c.conn.WriteMessage(websocket.PingMessage, nil)
		}

		if err != nil {
			log.Debugf("Feed write error: %v", err)
			return
		}
	}
}
