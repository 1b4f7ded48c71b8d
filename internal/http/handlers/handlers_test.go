package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/BivasNandan/Law-Aid-sub001/internal/auth"
	"github.com/BivasNandan/Law-Aid-sub001/internal/chat"
	"github.com/BivasNandan/Law-Aid-sub001/internal/lock"
	"github.com/BivasNandan/Law-Aid-sub001/internal/models"
	"github.com/BivasNandan/Law-Aid-sub001/internal/notification"
	"github.com/BivasNandan/Law-Aid-sub001/internal/reminder"
	"github.com/BivasNandan/Law-Aid-sub001/internal/testutil"
	"github.com/BivasNandan/Law-Aid-sub001/internal/ws"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRunner struct {
	calls int
}

func (s *stubRunner) RunOnce(context.Context) (reminder.Result, error) {
	s.calls++
	return reminder.Result{Scanned: 2, Created: 2}, nil
}

type api struct {
	t        *testing.T
	db       *gorm.DB
	router   *gin.Engine
	verifier *auth.Verifier
	runner   *stubRunner
	client   *models.User
	lawyer   *models.User
	outsider *models.User
}

func newAPI(t *testing.T) *api {
	t.Helper()
	db := testutil.NewDB(t)
	hub := ws.NewHub(zerolog.Nop())
	svc := chat.NewService(db, hub, lock.NewLocal(), zerolog.Nop())
	verifier := auth.NewVerifier("test-secret")
	runner := &stubRunner{}

	router := NewRouter(Deps{
		DB:             db,
		Chat:           svc,
		Notifications:  notification.NewService(db, zerolog.Nop()),
		Reminders:      runner,
		Gateway:        ws.NewGateway(hub, svc, verifier, ws.Options{}, zerolog.Nop()),
		Verifier:       verifier,
		Logger:         zerolog.Nop(),
		FrontendURL:    "http://localhost:5173",
		InternalAPIKey: "ops-key",
	})

	return &api{
		t:        t,
		db:       db,
		router:   router,
		verifier: verifier,
		runner:   runner,
		client:   testutil.CreateUser(t, db, "Client"),
		lawyer:   testutil.CreateUser(t, db, "Lawyer"),
		outsider: testutil.CreateUser(t, db, "Outsider"),
	}
}

// do sends a request as user (nil for anonymous) using the session cookie.
func (a *api) do(method, target string, user *models.User, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		tok, err := a.verifier.Issue(user.ID, user.Role, user.Email, time.Hour)
		require.NoError(a.t, err)
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: tok})
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (a *api) appointmentConversation() *models.Conversation {
	a.t.Helper()
	appt := testutil.CreateAppointment(a.t, a.db, a.client, a.lawyer, time.Now().Add(time.Hour), models.AppointmentConfirmed)
	w := a.do(http.MethodPost, "/api/chat/conversation?type=appointment&appointmentId="+appt.ID, a.client, nil)
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	conv := decode[models.Conversation](a.t, w)
	return &conv
}

func TestRequiresSession(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodGet, "/api/chat/conversations", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/conversations", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerTokenAccepted(t *testing.T) {
	a := newAPI(t)
	tok, err := a.verifier.Issue(a.client.ID, "client", "", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		User models.User `json:"user"`
	}](t, w)
	assert.Equal(t, a.client.ID, body.User.ID)
	assert.Equal(t, "client@example.com", body.User.Email)
}

func TestGetOrCreateConversationStatuses(t *testing.T) {
	a := newAPI(t)
	appt := testutil.CreateAppointment(t, a.db, a.client, a.lawyer, time.Now(), models.AppointmentConfirmed)

	cases := []struct {
		name  string
		query string
		user  *models.User
		want  int
	}{
		{"missing type", "", a.client, http.StatusBadRequest},
		{"unknown type", "type=group", a.client, http.StatusBadRequest},
		{"missing id", "type=appointment", a.client, http.StatusBadRequest},
		{"no such appointment", "type=appointment&appointmentId=missing", a.client, http.StatusNotFound},
		{"outsider", "type=appointment&appointmentId=" + appt.ID, a.outsider, http.StatusForbidden},
		{"client", "type=appointment&appointmentId=" + appt.ID, a.client, http.StatusOK},
		{"lawyer", "type=appointment&appointmentId=" + appt.ID, a.lawyer, http.StatusOK},
		{"direct", "type=direct&otherUserId=" + a.lawyer.ID, a.client, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := a.do(http.MethodPost, "/api/chat/conversation?"+tc.query, tc.user, nil)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
			if tc.want != http.StatusOK {
				body := decode[map[string]string](t, w)
				assert.NotEmpty(t, body["message"])
			}
		})
	}
}

func TestMessagesRoundTrip(t *testing.T) {
	a := newAPI(t)
	conv := a.appointmentConversation()

	w := a.do(http.MethodPost, "/api/chat/message", a.client, map[string]any{
		"conversationId": conv.ID,
		"text":           "first",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[struct {
		Message models.Message `json:"message"`
	}](t, w)
	assert.Equal(t, "first", created.Message.Text)
	require.NotNil(t, created.Message.Sender)
	assert.Empty(t, created.Message.Sender.Email)

	w = a.do(http.MethodGet, "/api/chat/conversation/"+conv.ID+"/messages", a.lawyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	msgs := decode[[]models.Message](t, w)
	require.Len(t, msgs, 1)
	assert.Equal(t, created.Message.ID, msgs[0].ID)

	before := url.QueryEscape(msgs[0].CreatedAt.Format(time.RFC3339Nano))
	w = a.do(http.MethodGet, "/api/chat/conversation/"+conv.ID+"/messages?before="+before, a.lawyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.Message](t, w))

	w = a.do(http.MethodGet, "/api/chat/conversation/"+conv.ID+"/messages", a.outsider, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodGet, "/api/chat/conversation/"+conv.ID+"/messages?before=yesterday", a.lawyer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodGet, "/api/chat/conversation/"+conv.ID+"/messages?limit=-1", a.lawyer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendMessageValidation(t *testing.T) {
	a := newAPI(t)
	conv := a.appointmentConversation()

	w := a.do(http.MethodPost, "/api/chat/message", a.client, map[string]any{"text": "orphan"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/api/chat/message", a.client, map[string]any{"conversationId": conv.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/api/chat/message", a.client, map[string]any{"conversationId": "missing", "text": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(http.MethodPost, "/api/chat/message", a.outsider, map[string]any{"conversationId": conv.ID, "text": "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestEditMessage(t *testing.T) {
	a := newAPI(t)
	conv := a.appointmentConversation()

	w := a.do(http.MethodPost, "/api/chat/message", a.client, map[string]any{"conversationId": conv.ID, "text": "typo"})
	require.Equal(t, http.StatusCreated, w.Code)
	msg := decode[struct {
		Message models.Message `json:"message"`
	}](t, w).Message

	w = a.do(http.MethodPatch, "/api/chat/message/"+msg.ID, a.lawyer, map[string]any{"text": "mine now"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPatch, "/api/chat/message/"+msg.ID, a.client, map[string]any{"text": "fixed"})
	require.Equal(t, http.StatusOK, w.Code)
	edited := decode[struct {
		Message models.Message `json:"message"`
	}](t, w).Message
	assert.Equal(t, "fixed", edited.Text)
	assert.True(t, edited.Edited)
}

func TestListAndDetail(t *testing.T) {
	a := newAPI(t)
	conv := a.appointmentConversation()

	w := a.do(http.MethodGet, "/api/chat/conversations?type=appointment", a.lawyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	convs := decode[[]models.Conversation](t, w)
	require.Len(t, convs, 1)
	assert.Equal(t, conv.ID, convs[0].ID)

	w = a.do(http.MethodGet, "/api/chat/conversations", a.outsider, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.Conversation](t, w))

	w = a.do(http.MethodGet, "/api/chat/conversation/"+conv.ID, a.client, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodGet, "/api/chat/conversation/"+conv.ID, a.outsider, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestNotificationsEndpoints(t *testing.T) {
	a := newAPI(t)
	n := models.Notification{
		RecipientID: a.client.ID,
		Type:        models.NotificationAppointmentReminder,
		Title:       "Appointment Reminder",
		Body:        "tomorrow",
		SentAt:      time.Now().UTC(),
	}
	require.NoError(t, a.db.Create(&n).Error)

	w := a.do(http.MethodGet, "/api/notifications/unread/count", a.client, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]int](t, w)["unreadCount"])

	w = a.do(http.MethodPatch, "/api/notifications/"+n.ID+"/read", a.lawyer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPatch, "/api/notifications/"+n.ID+"/read", a.client, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodGet, "/api/notifications", a.client, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[notification.List](t, w)
	assert.EqualValues(t, 1, list.Total)
	assert.EqualValues(t, 0, list.UnreadCount)
	require.Len(t, list.Notifications, 1)
	assert.True(t, list.Notifications[0].IsRead)

	w = a.do(http.MethodPatch, "/api/notifications/read-all", a.client, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodDelete, "/api/notifications/"+n.ID, a.client, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = a.do(http.MethodDelete, "/api/notifications/"+n.ID, a.client, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteAllNotifications(t *testing.T) {
	a := newAPI(t)
	for _, recipient := range []string{a.client.ID, a.client.ID, a.lawyer.ID} {
		require.NoError(t, a.db.Create(&models.Notification{
			RecipientID: recipient,
			Type:        models.NotificationAppointmentReminder,
			Title:       "Appointment Reminder",
			Body:        "tomorrow",
			SentAt:      time.Now().UTC(),
		}).Error)
	}

	w := a.do(http.MethodDelete, "/api/notifications", a.client, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, w)["deleted"])

	w = a.do(http.MethodGet, "/api/notifications", a.lawyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[notification.List](t, w).Total)
}

func TestInternalReminderRun(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodPost, "/api/internal/reminders/run", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, a.runner.calls)

	req := httptest.NewRequest(http.MethodPost, "/api/internal/reminders/run", nil)
	req.Header.Set("X-Internal-Key", "ops-key")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, a.runner.calls)
	assert.Equal(t, reminder.Result{Scanned: 2, Created: 2}, decode[reminder.Result](t, rec))
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	w := a.do(http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode[map[string]any](t, w)["status"])
}

func TestWebsocketRejectsAnonymousUpgrade(t *testing.T) {
	a := newAPI(t)
	w := a.do(http.MethodGet, "/ws", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
