package database_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BivasNandan/Law-Aid-sub001/internal/database"
	"github.com/BivasNandan/Law-Aid-sub001/internal/models"
	"github.com/BivasNandan/Law-Aid-sub001/internal/testutil"
)

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := database.Connect("mongodb", "mongodb://localhost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mongodb")
}

func TestContextKeyIsUnique(t *testing.T) {
	db := testutil.NewDB(t)

	first := models.Conversation{Type: models.ConversationDirect, ContextKey: "direct:a:b"}
	require.NoError(t, db.Create(&first).Error)

	second := models.Conversation{Type: models.ConversationDirect, ContextKey: "direct:a:b"}
	assert.Error(t, db.Create(&second).Error)
}

func TestReminderIsUniquePerAppointmentAndRecipient(t *testing.T) {
	db := testutil.NewDB(t)
	appt := "appt-1"

	n := func() *models.Notification {
		return &models.Notification{
			RecipientID:          "user-1",
			Type:                 models.NotificationAppointmentReminder,
			Title:                "Reminder",
			Body:                 "tomorrow",
			RelatedAppointmentID: &appt,
		}
	}
	require.NoError(t, db.Create(n()).Error)
	assert.Error(t, db.Create(n()).Error)

	// Notifications without an appointment never collide.
	other := &models.Notification{RecipientID: "user-1", Type: "general", Title: "a", Body: "b"}
	require.NoError(t, db.Create(other).Error)
	other2 := &models.Notification{RecipientID: "user-1", Type: "general", Title: "a", Body: "b"}
	require.NoError(t, db.Create(other2).Error)
}

func TestAttachmentsRoundTrip(t *testing.T) {
	db := testutil.NewDB(t)

	msg := models.Message{
		ConversationID: "conv-1",
		SenderID:       "user-1",
		Text:           "see attached",
		Attachments: []models.Attachment{
			{Filename: "a.pdf", OriginalName: "brief.pdf", Path: "uploads/chat/a.pdf", MimeType: "application/pdf", Size: 42},
		},
		Status: models.MessageSent,
	}
	require.NoError(t, db.Create(&msg).Error)
	require.NotEmpty(t, msg.ID)

	var got models.Message
	require.NoError(t, db.First(&got, "id = ?", msg.ID).Error)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "brief.pdf", got.Attachments[0].OriginalName)
	assert.Equal(t, int64(42), got.Attachments[0].Size)
}
