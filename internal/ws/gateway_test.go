package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/BivasNandan/Law-Aid-sub001/internal/auth"
	"github.com/BivasNandan/Law-Aid-sub001/internal/chat"
	"github.com/BivasNandan/Law-Aid-sub001/internal/lock"
	"github.com/BivasNandan/Law-Aid-sub001/internal/models"
	"github.com/BivasNandan/Law-Aid-sub001/internal/testutil"
)

type received struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type harness struct {
	srv      *httptest.Server
	svc      *chat.Service
	verifier *auth.Verifier
	client   *models.User
	lawyer   *models.User
	outsider *models.User
	conv     *models.Conversation
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	hub := NewHub(zerolog.Nop())
	svc := chat.NewService(db, hub, lock.NewLocal(), zerolog.Nop())
	verifier := auth.NewVerifier("test-secret")

	gw := NewGateway(hub, svc, verifier, Options{InsecureSkipVerify: true}, zerolog.Nop())
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)

	h := &harness{
		srv:      srv,
		svc:      svc,
		verifier: verifier,
		client:   testutil.CreateUser(t, db, "Client"),
		lawyer:   testutil.CreateUser(t, db, "Lawyer"),
		outsider: testutil.CreateUser(t, db, "Outsider"),
	}
	appt := testutil.CreateAppointment(t, db, h.client, h.lawyer, time.Now().Add(time.Hour), models.AppointmentConfirmed)
	conv, err := svc.GetOrCreate(context.Background(), h.client.ID, chat.ContextRequest{
		Type:          models.ConversationAppointment,
		AppointmentID: appt.ID,
	})
	require.NoError(t, err)
	h.conv = conv
	return h
}

func (h *harness) dial(t *testing.T, user *models.User) *websocket.Conn {
	t.Helper()
	tok, err := h.verifier.Issue(user.ID, user.Role, user.Email, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Cookie", auth.CookieName+"="+tok)
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(h.srv.URL, "http"), &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{"type": typ, "data": data}))
}

// next reads events until one of type typ arrives.
func next(t *testing.T, conn *websocket.Conn, typ string) received {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		var ev received
		require.NoError(t, wsjson.Read(ctx, conn, &ev))
		if ev.Type == typ {
			return ev
		}
	}
}

func TestHandshakeRequiresSession(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(h.srv.URL, "http"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.Dial(ctx, "ws"+strings.TrimPrefix(h.srv.URL, "http")+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestQueryTokenFallback(t *testing.T) {
	h := newHarness(t)
	tok, err := h.verifier.Issue(h.client.ID, "client", "", time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(h.srv.URL, "http")+"?token="+tok, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	send(t, conn, EventJoinConversation, map[string]string{"conversationId": h.conv.ID})
	next(t, conn, EventJoined)
}

func TestJoinRequiresParticipant(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, h.outsider)

	send(t, conn, EventJoinConversation, map[string]string{"conversationId": h.conv.ID})
	ev := next(t, conn, EventError)

	var body errorEvent
	require.NoError(t, json.Unmarshal(ev.Data, &body))
	assert.Equal(t, "Not authorized", body.Message)
	assert.Equal(t, EventJoinConversation, body.Event)
}

func TestSendMessageFansOut(t *testing.T) {
	h := newHarness(t)
	clientConn := h.dial(t, h.client)
	lawyerConn := h.dial(t, h.lawyer)

	for _, conn := range []*websocket.Conn{clientConn, lawyerConn} {
		send(t, conn, EventJoinConversation, map[string]string{"conversationId": h.conv.ID})
		next(t, conn, EventJoined)
	}

	send(t, clientConn, EventSendMessage, map[string]string{"conversationId": h.conv.ID, "text": "hello"})

	roomEv := next(t, clientConn, chat.EventMessage)
	var msg models.Message
	require.NoError(t, json.Unmarshal(roomEv.Data, &msg))
	assert.Equal(t, "hello", msg.Text)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, h.client.ID, msg.Sender.ID)

	personal := next(t, lawyerConn, chat.EventNewMessage)
	var notice struct {
		ConversationID string         `json:"conversationId"`
		Message        models.Message `json:"message"`
	}
	require.NoError(t, json.Unmarshal(personal.Data, &notice))
	assert.Equal(t, h.conv.ID, notice.ConversationID)
	assert.Equal(t, msg.ID, notice.Message.ID)
}

func TestOutsiderCannotSend(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, h.outsider)

	send(t, conn, EventSendMessage, map[string]string{"conversationId": h.conv.ID, "text": "spam"})
	ev := next(t, conn, EventError)

	var body errorEvent
	require.NoError(t, json.Unmarshal(ev.Data, &body))
	assert.Equal(t, "Not authorized", body.Message)

	msgs, err := h.svc.ListMessages(context.Background(), h.conv.ID, h.client.ID, chat.Page{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestTypingAndReadRelay(t *testing.T) {
	h := newHarness(t)
	clientConn := h.dial(t, h.client)
	lawyerConn := h.dial(t, h.lawyer)

	for _, conn := range []*websocket.Conn{clientConn, lawyerConn} {
		send(t, conn, EventJoinConversation, map[string]string{"conversationId": h.conv.ID})
		next(t, conn, EventJoined)
	}

	send(t, clientConn, EventTyping, map[string]any{"conversationId": h.conv.ID, "typing": true})
	ev := next(t, lawyerConn, EventTyping)
	var typing typingEvent
	require.NoError(t, json.Unmarshal(ev.Data, &typing))
	assert.Equal(t, h.client.ID, typing.UserID)
	assert.True(t, typing.Typing)

	msg, err := h.svc.CreateMessage(context.Background(), h.conv.ID, h.client.ID, "read me", nil)
	require.NoError(t, err)

	send(t, lawyerConn, EventMessageRead, map[string]string{"conversationId": h.conv.ID, "messageId": msg.ID})
	ev = next(t, clientConn, chat.EventMessageRead)
	var read messageReadEvent
	require.NoError(t, json.Unmarshal(ev.Data, &read))
	assert.Equal(t, msg.ID, read.MessageID)
	assert.Equal(t, h.lawyer.ID, read.UserID)
}

func TestTypingRequiresJoin(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, h.client)

	send(t, conn, EventTyping, map[string]any{"conversationId": h.conv.ID, "typing": true})
	ev := next(t, conn, EventError)

	var body errorEvent
	require.NoError(t, json.Unmarshal(ev.Data, &body))
	assert.Equal(t, EventTyping, body.Event)
}

func TestUnknownEvent(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, h.client)

	send(t, conn, "dance", nil)
	ev := next(t, conn, EventError)

	var body errorEvent
	require.NoError(t, json.Unmarshal(ev.Data, &body))
	assert.Equal(t, "Unknown event", body.Message)
}
