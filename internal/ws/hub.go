package ws

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/BivasNandan/Law-Aid-sub001/internal/metrics"
)

const sendQueue = 64

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan Event

	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger

	// rooms is guarded by Hub.mu.
	rooms map[string]struct{}
}

// Hub tracks live clients by user (the personal channel) and by joined
// conversation (the room). It implements chat.Emitter.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: map[string]map[*Client]struct{}{},
		rooms:   map[string]map[*Client]struct{}{},
		logger:  logger.With().Str("component", "ws").Logger(),
	}
}

func (h *Hub) newClient(userID string, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan Event, sendQueue),
		ctx:    ctx,
		cancel: cancel,
		logger: h.logger.With().Str("user_id", userID).Logger(),
		rooms:  map[string]struct{}{},
	}
}

// AddClient registers conn on userID's personal channel and starts its
// write and keep-alive loops.
func (h *Hub) AddClient(userID string, conn *websocket.Conn) *Client {
	c := h.newClient(userID, conn)
	h.register(c)

	go c.writeLoop()
	go c.keepAliveLoop()

	metrics.WSConnections.Inc()
	return c
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.UserID] == nil {
		h.clients[c.UserID] = map[*Client]struct{}{}
	}
	h.clients[c.UserID][c] = struct{}{}
}

// RemoveClient drops c from its personal channel and every room.
func (h *Hub) RemoveClient(c *Client) {
	c.cancel()

	h.mu.Lock()
	if set, ok := h.clients[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	h.mu.Unlock()

	if c.Conn != nil {
		metrics.WSConnections.Dec()
		_ = c.Conn.Close(websocket.StatusNormalClosure, "bye")
	}
}

func (h *Hub) Join(c *Client, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[conversationID] == nil {
		h.rooms[conversationID] = map[*Client]struct{}{}
	}
	h.rooms[conversationID][c] = struct{}{}
	c.rooms[conversationID] = struct{}{}
}

func (h *Hub) Leave(c *Client, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, conversationID)
}

func (h *Hub) leaveLocked(c *Client, conversationID string) {
	delete(c.rooms, conversationID)
	if set, ok := h.rooms[conversationID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, conversationID)
		}
	}
}

// InRoom reports whether c has joined the conversation's room.
func (h *Hub) InRoom(c *Client, conversationID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[conversationID]
	return ok
}

func (h *Hub) EmitToUser(userID, event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ev := Event{Type: event, Data: payload}
	for c := range h.clients[userID] {
		c.deliver(ev)
	}
}

func (h *Hub) EmitToConversation(conversationID, event string, payload any) {
	h.broadcastRoom(conversationID, Event{Type: event, Data: payload}, nil)
}

// broadcastRoom delivers ev to every client in the room except skip.
func (h *Hub) broadcastRoom(conversationID string, ev Event, skip *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[conversationID] {
		if c == skip {
			continue
		}
		c.deliver(ev)
	}
}

// deliver never blocks; a full queue drops the event.
func (c *Client) deliver(ev Event) {
	select {
	case c.Send <- ev:
	default:
		metrics.WSEventsDropped.Inc()
		c.logger.Warn().Str("event", ev.Type).Msg("send queue full, dropping event")
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.Send:
			writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := wsjson.Write(writeCtx, c.Conn, ev)
			cancel()
			if err != nil {
				c.logger.Debug().Err(err).Str("event", ev.Type).Msg("write failed, closing client")
				c.cancel()
				return
			}
		}
	}
}

func (c *Client) keepAliveLoop() {
	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = c.Conn.Ping(pingCtx)
			cancel()
		}
	}
}
