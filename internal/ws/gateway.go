// Package ws is the realtime gateway: authenticated websocket sessions,
// conversation rooms and per-user channels.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/BivasNandan/Law-Aid-sub001/internal/auth"
	"github.com/BivasNandan/Law-Aid-sub001/internal/chat"
	"github.com/BivasNandan/Law-Aid-sub001/internal/models"
)

// Inbound event types.
const (
	EventJoinConversation  = "joinConversation"
	EventLeaveConversation = "leaveConversation"
	EventSendMessage       = "sendMessage"
	EventTyping            = "typing"
	EventMessageRead       = "messageRead"
)

// Outbound event types owned by the gateway.
const (
	EventJoined = "joined"
	EventError  = "error"
)

// Chat is the subset of the conversation service the gateway drives.
type Chat interface {
	Authorize(ctx context.Context, conversationID, userID, op string) (*models.Conversation, error)
	CreateMessage(ctx context.Context, conversationID, senderID, text string, attachments []models.Attachment) (*models.Message, error)
	MarkRead(ctx context.Context, conversationID, messageID, readerID string) (bool, error)
}

type Options struct {
	// InsecureSkipVerify disables the origin check. Development only.
	InsecureSkipVerify bool
	OriginPatterns     []string
}

type Gateway struct {
	hub      *Hub
	chat     Chat
	verifier *auth.Verifier
	opts     Options
	logger   zerolog.Logger
}

func NewGateway(hub *Hub, svc Chat, verifier *auth.Verifier, opts Options, logger zerolog.Logger) *Gateway {
	return &Gateway{
		hub:      hub,
		chat:     svc,
		verifier: verifier,
		opts:     opts,
		logger:   logger.With().Str("component", "gateway").Logger(),
	}
}

type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type conversationRef struct {
	ConversationID string `json:"conversationId"`
}

type sendMessageData struct {
	ConversationID string              `json:"conversationId"`
	Text           string              `json:"text"`
	Attachments    []models.Attachment `json:"attachments"`
}

type typingData struct {
	ConversationID string `json:"conversationId"`
	Typing         bool   `json:"typing"`
}

type messageReadData struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

type typingEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Typing         bool   `json:"typing"`
}

type messageReadEvent struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	UserID         string `json:"userId"`
}

type errorEvent struct {
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

// token reads the session cookie, falling back to the token query
// parameter for clients that cannot send cookies on the handshake.
func token(r *http.Request) string {
	if ck, err := r.Cookie(auth.CookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	return r.URL.Query().Get("token")
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := g.verifier.Verify(token(r))
	if err != nil {
		g.logger.Debug().Err(err).Msg("handshake rejected")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Unauthorized"})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: g.opts.InsecureSkipVerify,
		OriginPatterns:     g.opts.OriginPatterns,
	})
	if err != nil {
		return // Accept already wrote the response
	}

	client := g.hub.AddClient(id.UserID, conn)
	defer g.hub.RemoveClient(client)

	g.logger.Info().Str("user_id", id.UserID).Msg("client connected")
	g.readLoop(client)
	g.logger.Info().Str("user_id", id.UserID).Msg("client disconnected")
}

func (g *Gateway) readLoop(c *Client) {
	for {
		typ, data, err := c.Conn.Read(c.ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				c.logger.Debug().Err(err).Msg("read failed")
			}
			return
		}
		if typ != websocket.MessageText {
			g.reply(c, EventError, errorEvent{Message: "Text frames only"})
			continue
		}

		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			g.reply(c, EventError, errorEvent{Message: "Malformed event"})
			continue
		}
		g.dispatch(c.ctx, c, in)
	}
}

func (g *Gateway) dispatch(ctx context.Context, c *Client, in inbound) {
	switch in.Type {
	case EventJoinConversation:
		var ref conversationRef
		if !g.decode(c, in, &ref) {
			return
		}
		if _, err := g.chat.Authorize(ctx, ref.ConversationID, c.UserID, "join"); err != nil {
			g.fail(c, in.Type, err)
			return
		}
		g.hub.Join(c, ref.ConversationID)
		g.reply(c, EventJoined, ref)

	case EventLeaveConversation:
		var ref conversationRef
		if !g.decode(c, in, &ref) {
			return
		}
		g.hub.Leave(c, ref.ConversationID)

	case EventSendMessage:
		var req sendMessageData
		if !g.decode(c, in, &req) {
			return
		}
		// Fan-out, including to this connection's room, happens in the service.
		if _, err := g.chat.CreateMessage(ctx, req.ConversationID, c.UserID, req.Text, req.Attachments); err != nil {
			g.fail(c, in.Type, err)
		}

	case EventTyping:
		var req typingData
		if !g.decode(c, in, &req) {
			return
		}
		if !g.hub.InRoom(c, req.ConversationID) {
			g.reply(c, EventError, errorEvent{Message: "Join the conversation first", Event: in.Type})
			return
		}
		g.hub.broadcastRoom(req.ConversationID, Event{
			Type: EventTyping,
			Data: typingEvent{ConversationID: req.ConversationID, UserID: c.UserID, Typing: req.Typing},
		}, c)

	case EventMessageRead:
		var req messageReadData
		if !g.decode(c, in, &req) {
			return
		}
		if !g.hub.InRoom(c, req.ConversationID) {
			g.reply(c, EventError, errorEvent{Message: "Join the conversation first", Event: in.Type})
			return
		}
		changed, err := g.chat.MarkRead(ctx, req.ConversationID, req.MessageID, c.UserID)
		if err != nil {
			g.fail(c, in.Type, err)
			return
		}
		if changed {
			g.hub.EmitToConversation(req.ConversationID, chat.EventMessageRead, messageReadEvent{
				ConversationID: req.ConversationID,
				MessageID:      req.MessageID,
				UserID:         c.UserID,
			})
		}

	default:
		g.reply(c, EventError, errorEvent{Message: "Unknown event", Event: in.Type})
	}
}

func (g *Gateway) decode(c *Client, in inbound, v any) bool {
	if len(in.Data) == 0 {
		in.Data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(in.Data, v); err != nil {
		g.reply(c, EventError, errorEvent{Message: "Malformed event data", Event: in.Type})
		return false
	}
	return true
}

// fail reports err to the client. Only service errors carry their message;
// anything else is logged and reported generically.
func (g *Gateway) fail(c *Client, event string, err error) {
	var ce *chat.Error
	if errors.As(err, &ce) {
		g.reply(c, EventError, errorEvent{Message: ce.Msg, Event: event})
		return
	}
	c.logger.Error().Err(err).Str("event", event).Msg("event failed")
	g.reply(c, EventError, errorEvent{Message: "Internal error", Event: event})
}

func (g *Gateway) reply(c *Client, event string, payload any) {
	c.deliver(Event{Type: event, Data: payload})
}
