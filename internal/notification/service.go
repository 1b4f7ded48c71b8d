// Package notification serves a user's own notifications.
package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/BivasNandan/Law-Aid-sub001/internal/chat"
	"github.com/BivasNandan/Law-Aid-sub001/internal/models"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Query struct {
	Page       int
	Limit      int
	UnreadOnly bool
}

type List struct {
	Notifications []models.Notification `json:"notifications"`
	Total         int64                 `json:"totalNotifications"`
	UnreadCount   int64                 `json:"unreadCount"`
	Page          int                   `json:"page"`
	TotalPages    int                   `json:"totalPages"`
}

type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewService(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{db: db, logger: logger.With().Str("component", "notification").Logger()}
}

func (q Query) normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return q
}

// List returns the recipient's notifications, newest first.
func (s *Service) List(ctx context.Context, recipientID string, q Query) (*List, error) {
	q = q.normalize()
	db := s.db.WithContext(ctx)

	base := db.Model(&models.Notification{}).Where("recipient_id = ?", recipientID)
	if q.UnreadOnly {
		base = base.Where("is_read = ?", false)
	}

	out := &List{Page: q.Page, Notifications: []models.Notification{}}
	if err := base.Session(&gorm.Session{}).Count(&out.Total).Error; err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}
	unread, err := s.UnreadCount(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	out.UnreadCount = unread

	err = base.Session(&gorm.Session{}).
		Preload("RelatedUser", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "user_name", "profile_pic", "specialization")
		}).
		Order("created_at DESC").
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&out.Notifications).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	out.TotalPages = int((out.Total + int64(q.Limit) - 1) / int64(q.Limit))
	return out, nil
}

func (s *Service) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

// MarkRead marks one notification read. Only its recipient may do so.
func (s *Service) MarkRead(ctx context.Context, id, recipientID string) (*models.Notification, error) {
	n, err := s.owned(ctx, id, recipientID)
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return n, nil
	}
	if err := s.db.WithContext(ctx).Model(n).Update("is_read", true).Error; err != nil {
		return nil, fmt.Errorf("mark notification %s read: %w", id, err)
	}
	n.IsRead = true
	return n, nil
}

// MarkAllRead returns how many notifications changed.
func (s *Service) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Service) Delete(ctx context.Context, id, recipientID string) error {
	n, err := s.owned(ctx, id, recipientID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(n).Error; err != nil {
		return fmt.Errorf("delete notification %s: %w", id, err)
	}
	return nil
}

// DeleteAll removes every notification of the recipient and returns how
// many were deleted.
func (s *Service) DeleteAll(ctx context.Context, recipientID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Delete(&models.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete all notifications: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Service) owned(ctx context.Context, id, recipientID string) (*models.Notification, error) {
	var n models.Notification
	err := s.db.WithContext(ctx).First(&n, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &chat.Error{Kind: chat.ErrNotFound, Msg: "Notification not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("load notification %s: %w", id, err)
	}
	if n.RecipientID != recipientID {
		s.logger.Info().Str("notification_id", id).Str("user_id", recipientID).Msg("not the recipient")
		return nil, &chat.Error{Kind: chat.ErrForbidden, Msg: "Unauthorized"}
	}
	return &n, nil
}
