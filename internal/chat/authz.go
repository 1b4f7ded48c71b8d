package chat

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/BivasNandan/Law-Aid-sub001/internal/metrics"
	"github.com/BivasNandan/Law-Aid-sub001/internal/models"
)

// Members resolves the authoritative participant set of conv. Booking
// conversations take it from the booking; everything else from the
// participants table. A booking that no longer exists has no members.
func (s *Service) Members(ctx context.Context, conv *models.Conversation) ([]string, error) {
	db := s.db.WithContext(ctx)

	switch {
	case conv.Type == models.ConversationAppointment && conv.AppointmentID != nil:
		var appt models.Appointment
		err := db.Select("id", "client_id", "lawyer_id").First(&appt, "id = ?", *conv.AppointmentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load appointment %s: %w", *conv.AppointmentID, err)
		}
		return uniq(appt.ClientID, appt.LawyerID), nil

	case conv.Type == models.ConversationConsultation && conv.ConsultationID != nil:
		var cons models.Consultation
		err := db.Select("id", "client_id", "lawyer_id").First(&cons, "id = ?", *conv.ConsultationID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load consultation %s: %w", *conv.ConsultationID, err)
		}
		return uniq(cons.ClientID, cons.LawyerID), nil
	}

	var ids []string
	err := db.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ?", conv.ID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load participants of %s: %w", conv.ID, err)
	}
	return ids, nil
}

// IsParticipant reports whether userID may read or write messages in conv.
// It has no side effects and fails closed.
func (s *Service) IsParticipant(ctx context.Context, userID string, conv *models.Conversation) (bool, error) {
	if userID == "" || conv == nil {
		return false, nil
	}
	members, err := s.Members(ctx, conv)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m == userID {
			return true, nil
		}
	}
	return false, nil
}

// Authorize loads the conversation and checks userID against it. op only
// labels the denial metric.
func (s *Service) Authorize(ctx context.Context, conversationID, userID, op string) (*models.Conversation, error) {
	if conversationID == "" {
		return nil, badRequest("conversationId required")
	}

	var conv models.Conversation
	err := s.db.WithContext(ctx).First(&conv, "id = ?", conversationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Conversation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}

	ok, err := s.IsParticipant(ctx, userID, &conv)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.AuthorizationDenied.WithLabelValues(op).Inc()
		s.logger.Info().
			Str("user_id", userID).
			Str("conversation_id", conversationID).
			Str("op", op).
			Msg("not a participant")
		return nil, forbidden("Not authorized")
	}
	return &conv, nil
}

func uniq(ids ...string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
