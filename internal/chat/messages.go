package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/BivasNandan/Law-Aid-sub001/internal/metrics"
	"github.com/BivasNandan/Law-Aid-sub001/internal/models"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page selects one newest-first slice of a conversation's history.
type Page struct {
	Before *time.Time
	Limit  int
}

func (p Page) size() int {
	switch {
	case p.Limit <= 0:
		return DefaultPageSize
	case p.Limit > MaxPageSize:
		return MaxPageSize
	}
	return p.Limit
}

// ListMessages returns messages newest first, strictly older than
// page.Before when it is set.
func (s *Service) ListMessages(ctx context.Context, conversationID, requesterID string, page Page) ([]models.Message, error) {
	if _, err := s.Authorize(ctx, conversationID, requesterID, "list_messages"); err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).
		Preload("Sender", userProjection).
		Where("conversation_id = ?", conversationID)
	if page.Before != nil {
		q = q.Where("created_at < ?", page.Before.UTC())
	}

	msgs := []models.Message{}
	err := q.Order("created_at DESC").Order("id DESC").Limit(page.size()).Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list messages of %s: %w", conversationID, err)
	}
	return msgs, nil
}

// CreateMessage persists a message and moves the conversation's last
// message pointer, then fans the message out. Fan-out never fails the call.
func (s *Service) CreateMessage(ctx context.Context, conversationID, senderID, text string, attachments []models.Attachment) (*models.Message, error) {
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		return nil, badRequest("Message text or attachments required")
	}

	conv, err := s.Authorize(ctx, conversationID, senderID, "send_message")
	if err != nil {
		return nil, err
	}

	if attachments == nil {
		attachments = []models.Attachment{}
	}
	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Text:           text,
		Attachments:    attachments,
		Status:         models.MessageSent,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(conv).Update("last_message_id", msg.ID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create message in %s: %w", conv.ID, err)
	}

	msg.Sender = s.senderProjection(ctx, senderID)
	metrics.MessagesCreated.WithLabelValues(string(conv.Type)).Inc()

	s.fanOut(ctx, conv, msg)
	return msg, nil
}

func (s *Service) fanOut(ctx context.Context, conv *models.Conversation, msg *models.Message) {
	s.emit(EventMessage, func() {
		s.emitter.EmitToConversation(conv.ID, EventMessage, msg)
	})

	members, err := s.Members(ctx, conv)
	if err != nil {
		s.logger.Error().Err(err).Str("conversation_id", conv.ID).Msg("resolve members for fan-out")
		return
	}
	notice := NewMessageEvent{ConversationID: conv.ID, Message: msg}
	for _, id := range members {
		if id == msg.SenderID {
			continue
		}
		userID := id
		s.emit(EventNewMessage, func() {
			s.emitter.EmitToUser(userID, EventNewMessage, notice)
		})
	}
}

// EditMessage replaces the text of a message, and its attachments when
// attachments is non-nil. Only the sender may edit.
func (s *Service) EditMessage(ctx context.Context, messageID, editorID, text string, attachments []models.Attachment) (*models.Message, error) {
	if messageID == "" {
		return nil, badRequest("messageId required")
	}

	var msg models.Message
	err := s.db.WithContext(ctx).First(&msg, "id = ?", messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Message not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load message %s: %w", messageID, err)
	}
	if msg.SenderID != editorID {
		metrics.AuthorizationDenied.WithLabelValues("edit_message").Inc()
		return nil, forbidden("Only the sender can edit this message")
	}
	if _, err := s.Authorize(ctx, msg.ConversationID, editorID, "edit_message"); err != nil {
		return nil, err
	}

	if attachments == nil {
		attachments = msg.Attachments
	}
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		return nil, badRequest("Message text or attachments required")
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Model(&msg).Updates(map[string]any{
		"text":        text,
		"attachments": datatypes.JSONSlice[models.Attachment](attachments),
		"edited":      true,
		"edited_at":   now,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("edit message %s: %w", messageID, err)
	}

	msg.Text = text
	msg.Attachments = attachments
	msg.Edited = true
	msg.EditedAt = &now
	msg.Sender = s.senderProjection(ctx, editorID)

	s.emit(EventMessageEdited, func() {
		s.emitter.EmitToConversation(msg.ConversationID, EventMessageEdited, &msg)
	})
	return &msg, nil
}

// MarkRead sets a message's status to read on behalf of readerID. The
// message must belong to the conversation; a sender reading their own
// message changes nothing.
func (s *Service) MarkRead(ctx context.Context, conversationID, messageID, readerID string) (bool, error) {
	if messageID == "" {
		return false, badRequest("messageId required")
	}
	if _, err := s.Authorize(ctx, conversationID, readerID, "mark_read"); err != nil {
		return false, err
	}

	var msg models.Message
	err := s.db.WithContext(ctx).
		Select("id", "conversation_id", "sender_id", "status").
		First(&msg, "id = ? AND conversation_id = ?", messageID, conversationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, notFound("Message not found")
	}
	if err != nil {
		return false, fmt.Errorf("load message %s: %w", messageID, err)
	}
	if msg.SenderID == readerID || msg.Status == models.MessageRead {
		return false, nil
	}

	err = s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", msg.ID).
		Update("status", models.MessageRead).Error
	if err != nil {
		return false, fmt.Errorf("mark message %s read: %w", messageID, err)
	}
	return true, nil
}

// senderProjection returns nil when the user row is unavailable; the
// message itself is already stored.
func (s *Service) senderProjection(ctx context.Context, userID string) *models.User {
	var u models.User
	if err := userProjection(s.db.WithContext(ctx)).First(&u, "id = ?", userID).Error; err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("load sender projection")
		return nil
	}
	return &u
}
