package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/lamp-blog/lamp/internal/content"
)

// WebSocket message types of the moderation feed.
const (
	WSMsgTypeConnected  = "connected"
	WSMsgTypeStatus     = "status_changed"
	WSMsgTypePublish    = "publish_stage"
	WSMsgTypeSubscribed = "subscribed"
	WSMsgTypePong       = "pong"
	WSMsgTypeError      = "error"
)

// WSMessage is a message sent to feed clients.
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// APIV1ContentEvent is the payload of status_changed and publish_stage
// messages.
type APIV1ContentEvent struct {
	EventID     string `json:"event_id"`
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id"`
	AuthorID    int64  `json:"author_id"`
	Stage       string `json:"stage,omitempty"`
	Previous    string `json:"previous,omitempty"`
	Current     string `json:"current,omitempty"`
	Reason      string `json:"reason,omitempty"`
	At          string `json:"at"`
}

// typedBroadcast is a message for clients following one content type.
type typedBroadcast struct {
	contentType content.Type
	message     *WSMessage
}

// Hub maintains the feed clients and fans content events out to them.
type Hub struct {
	clients map[*WSClient]struct{}

	register   chan *WSClient
	unregister chan *WSClient
	broadcast  chan *typedBroadcast

	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a feed hub. Run must be started before clients connect.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		clients:    make(map[*WSClient]struct{}),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		broadcast:  make(chan *typedBroadcast, 256),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()

			log.DebugS(h.ctx, "Feed client registered",
				"filter", client.Filter(), "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()

			log.DebugS(h.ctx, "Feed client unregistered",
				"total", total)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				filter := client.Filter()
				if filter == "" || filter == msg.contentType {
					client.Send(msg.message)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Stop shuts down the hub and disconnects every client.
func (h *Hub) Stop() {
	h.cancel()
}

// Broadcast queues msg for the clients following t. A full queue drops
// the message; the feed is best effort.
func (h *Hub) Broadcast(t content.Type, msg *WSMessage) {
	select {
	case h.broadcast <- &typedBroadcast{contentType: t, message: msg}:
	default:
		log.WarnS(h.ctx, "Feed broadcast buffer full, dropping message",
			nil, "type", msg.Type)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// handleContentEvent is the bus handler feeding the hub.
func (h *Hub) handleContentEvent(_ context.Context, ev content.Event) error {
	ref := ev.ContentRef()
	payload := APIV1ContentEvent{
		EventID:     ev.EventID(),
		ContentType: ref.Type.String(),
		ContentID:   ref.ID,
		AuthorID:    ref.AuthorID,
	}

	msg := &WSMessage{Payload: &payload}
	switch e := ev.(type) {
	case content.StatusEvent:
		msg.Type = WSMsgTypeStatus
		payload.Previous = e.Previous.UnwrapOr("").String()
		payload.Current = e.Current.String()
		payload.Reason = e.Reason
		payload.At = formatTime(e.At)

	case content.PublishEvent:
		msg.Type = WSMsgTypePublish
		payload.Stage = string(e.Stage)
		payload.At = formatTime(e.At)
	}

	h.Broadcast(ref.Type, msg)

	return nil
}

// upgrader specifies parameters for upgrading an HTTP connection to
// WebSocket.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		host := r.Host
		return origin == "http://"+host || origin == "https://"+host
	},
}

// handleWebSocket handles GET /ws/moderation. The optional type query
// parameter restricts the feed to one content type.
func (s *Server) handleWebSocket(c echo.Context) error {
	filter, err := parseFilter(c.QueryParam("type"))
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response().Writer, c.Request(), nil)
	if err != nil {
		log.WarnS(c.Request().Context(), "WebSocket upgrade failed", err)
		return nil
	}

	client := NewWSClient(s.hub, conn, filter)
	select {
	case s.hub.register <- client:
	case <-s.hub.ctx.Done():
		conn.Close()
		return nil
	}

	client.Send(&WSMessage{
		Type: WSMsgTypeConnected,
		Payload: map[string]any{
			"type": filter.String(),
			"time": time.Now().UTC().Format(time.RFC3339),
		},
	})

	go client.writePump()
	go client.readPump()

	return nil
}

func parseFilter(raw string) (content.Type, error) {
	if raw == "" {
		return "", nil
	}

	return content.ParseType(raw)
}

// handleIncomingMessage processes messages received from feed clients.
func (h *Hub) handleIncomingMessage(client *WSClient, messageType int,
	data []byte) {

	if messageType != websocket.TextMessage {
		return
	}

	var msg struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data,omitempty"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		client.Send(&WSMessage{
			Type:    WSMsgTypeError,
			Payload: map[string]any{"message": "invalid message format"},
		})
		return
	}

	switch msg.Type {
	case "ping":
		client.Send(&WSMessage{
			Type: WSMsgTypePong,
			Payload: map[string]any{
				"time": time.Now().UTC().Format(time.RFC3339),
			},
		})

	case "subscribe":
		var sub struct {
			Type string `json:"type"`
		}
		// An omitted payload subscribes to every content type.
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &sub); err != nil {
				client.Send(&WSMessage{
					Type: WSMsgTypeError,
					Payload: map[string]any{
						"message": "invalid subscribe payload",
					},
				})
				return
			}
		}

		filter, err := parseFilter(sub.Type)
		if err != nil {
			client.Send(&WSMessage{
				Type:    WSMsgTypeError,
				Payload: map[string]any{"message": err.Error()},
			})
			return
		}
		client.SetFilter(filter)

		client.Send(&WSMessage{
			Type:    WSMsgTypeSubscribed,
			Payload: map[string]any{"type": filter.String()},
		})

	default:
		client.Send(&WSMessage{
			Type: WSMsgTypeError,
			Payload: map[string]any{
				"message": "unknown message type: " + msg.Type,
			},
		})
	}
}
