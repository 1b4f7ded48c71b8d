package chat

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/BivasNandan/Law-Aid-sub001/internal/metrics"
	"github.com/BivasNandan/Law-Aid-sub001/internal/models"
)

// ContextRequest names the context a conversation is scoped to. Which id
// fields are read depends on Type.
type ContextRequest struct {
	Type           models.ConversationType
	AppointmentID  string
	ConsultationID string
	LawyerID       string
	OtherUserID    string
}

type blueprint struct {
	typ            models.ConversationType
	key            string
	participants   []string
	appointmentID  *string
	consultationID *string
}

const defaultListLimit = 100

// GetOrCreate returns the single conversation for the requested context,
// creating it on first access.
func (s *Service) GetOrCreate(ctx context.Context, requesterID string, req ContextRequest) (*models.Conversation, error) {
	if req.Type == "" {
		return nil, badRequest("Conversation type is required")
	}
	if !req.Type.Valid() {
		return nil, badRequest(fmt.Sprintf("Invalid conversation type %q", req.Type))
	}

	var (
		bp  *blueprint
		err error
	)
	switch req.Type {
	case models.ConversationAppointment:
		bp, err = s.appointmentBlueprint(ctx, requesterID, req.AppointmentID)
	case models.ConversationConsultation:
		bp, err = s.consultationBlueprint(ctx, requesterID, req)
	case models.ConversationDirect:
		bp, err = s.directBlueprint(ctx, requesterID, req.OtherUserID)
	}
	if err != nil {
		return nil, err
	}
	return s.findOrCreate(ctx, bp)
}

func (s *Service) appointmentBlueprint(ctx context.Context, requesterID, appointmentID string) (*blueprint, error) {
	if appointmentID == "" {
		return nil, badRequest("appointmentId required")
	}

	var appt models.Appointment
	err := s.db.WithContext(ctx).First(&appt, "id = ?", appointmentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Appointment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load appointment %s: %w", appointmentID, err)
	}
	if !appt.HasParty(requesterID) {
		metrics.AuthorizationDenied.WithLabelValues("create_conversation").Inc()
		return nil, forbidden("Not authorized for this appointment")
	}

	return &blueprint{
		typ:           models.ConversationAppointment,
		key:           "appointment:" + appt.ID,
		participants:  uniq(appt.ClientID, appt.LawyerID),
		appointmentID: &appt.ID,
	}, nil
}

func (s *Service) consultationBlueprint(ctx context.Context, requesterID string, req ContextRequest) (*blueprint, error) {
	if req.ConsultationID != "" {
		var cons models.Consultation
		err := s.db.WithContext(ctx).First(&cons, "id = ?", req.ConsultationID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Consultation not found")
		}
		if err != nil {
			return nil, fmt.Errorf("load consultation %s: %w", req.ConsultationID, err)
		}
		if !cons.HasParty(requesterID) {
			metrics.AuthorizationDenied.WithLabelValues("create_conversation").Inc()
			return nil, forbidden("Not authorized for this consultation")
		}
		return &blueprint{
			typ:            models.ConversationConsultation,
			key:            "consultation:" + cons.ID,
			participants:   uniq(cons.ClientID, cons.LawyerID),
			consultationID: &cons.ID,
		}, nil
	}

	if req.LawyerID == "" {
		return nil, badRequest("consultationId or lawyerId required")
	}
	if req.LawyerID == requesterID {
		return nil, badRequest("Cannot open a consultation with yourself")
	}
	if err := s.requireUser(ctx, req.LawyerID, "Lawyer not found"); err != nil {
		return nil, err
	}
	return &blueprint{
		typ:          models.ConversationConsultation,
		key:          "consultation:pair:" + pairKey(requesterID, req.LawyerID),
		participants: []string{requesterID, req.LawyerID},
	}, nil
}

func (s *Service) directBlueprint(ctx context.Context, requesterID, otherUserID string) (*blueprint, error) {
	if otherUserID == "" {
		return nil, badRequest("otherUserId required")
	}
	if otherUserID == requesterID {
		return nil, badRequest("Cannot start a conversation with yourself")
	}
	if err := s.requireUser(ctx, otherUserID, "User not found"); err != nil {
		return nil, err
	}
	return &blueprint{
		typ:          models.ConversationDirect,
		key:          "direct:" + pairKey(requesterID, otherUserID),
		participants: []string{requesterID, otherUserID},
	}, nil
}

func (s *Service) requireUser(ctx context.Context, userID, msg string) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error
	if err != nil {
		return fmt.Errorf("load user %s: %w", userID, err)
	}
	if count == 0 {
		return notFound(msg)
	}
	return nil
}

// findOrCreate serializes creators of one context key behind the locker;
// the unique context_key index settles any creator that bypassed it.
func (s *Service) findOrCreate(ctx context.Context, bp *blueprint) (*models.Conversation, error) {
	conv, err := s.findByKey(ctx, bp.key)
	if conv != nil || err != nil {
		return conv, err
	}

	release, err := s.locker.Lock(ctx, "conversation:"+bp.key)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", bp.key, err)
	}
	defer release()

	conv, err = s.findByKey(ctx, bp.key)
	if conv != nil || err != nil {
		return conv, err
	}

	created := &models.Conversation{
		Type:           bp.typ,
		ContextKey:     bp.key,
		AppointmentID:  bp.appointmentID,
		ConsultationID: bp.consultationID,
	}
	for _, id := range bp.participants {
		created.Participants = append(created.Participants, models.ConversationParticipant{UserID: id})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(created).Error; err != nil {
			return err
		}
		switch {
		case bp.appointmentID != nil:
			return tx.Model(&models.Appointment{}).
				Where("id = ?", *bp.appointmentID).
				Update("conversation_id", created.ID).Error
		case bp.consultationID != nil:
			return tx.Model(&models.Consultation{}).
				Where("id = ?", *bp.consultationID).
				Update("conversation_id", created.ID).Error
		}
		return nil
	})
	if err != nil {
		if winner, findErr := s.findByKey(ctx, bp.key); findErr == nil && winner != nil {
			return winner, nil
		}
		return nil, fmt.Errorf("create conversation %s: %w", bp.key, err)
	}

	metrics.ConversationsCreated.WithLabelValues(string(bp.typ)).Inc()
	s.logger.Info().
		Str("conversation_id", created.ID).
		Str("type", string(bp.typ)).
		Strs("participants", bp.participants).
		Msg("conversation created")

	conv, err = s.findByKey(ctx, bp.key)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %s vanished after create", created.ID)
	}

	for _, id := range bp.participants {
		userID := id
		s.emit(EventConversationCreated, func() {
			s.emitter.EmitToUser(userID, EventConversationCreated, conv)
		})
	}
	return conv, nil
}

// findByKey returns nil, nil when no conversation has the key.
func (s *Service) findByKey(ctx context.Context, key string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).Scopes(withDetail).First(&conv, "context_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation %s: %w", key, err)
	}
	return &conv, nil
}

// ListForUser returns the user's conversations, most recently active first.
// An empty typ lists every type. Membership follows Members: booking
// conversations match on the booking's parties, the rest on participant rows.
func (s *Service) ListForUser(ctx context.Context, userID string, typ models.ConversationType, limit int) ([]models.Conversation, error) {
	if typ != "" && !typ.Valid() {
		return nil, badRequest(fmt.Sprintf("Invalid conversation type %q", typ))
	}
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	db := s.db.WithContext(ctx)
	participant := db.Model(&models.ConversationParticipant{}).
		Select("conversation_id").
		Where("user_id = ?", userID)
	appointments := db.Model(&models.Appointment{}).
		Select("id").
		Where("client_id = ? OR lawyer_id = ?", userID, userID)
	consultations := db.Model(&models.Consultation{}).
		Select("id").
		Where("client_id = ? OR lawyer_id = ?", userID, userID)

	q := db.Scopes(withDetail).Where(
		"((type = ? AND appointment_id IN (?))"+
			" OR (type = ? AND consultation_id IN (?))"+
			" OR (id IN (?)"+
			" AND NOT (type = ? AND appointment_id IS NOT NULL)"+
			" AND NOT (type = ? AND consultation_id IS NOT NULL)))",
		models.ConversationAppointment, appointments,
		models.ConversationConsultation, consultations,
		participant,
		models.ConversationAppointment,
		models.ConversationConsultation,
	)
	if typ != "" {
		q = q.Where("type = ?", typ)
	}

	var convs []models.Conversation
	if err := q.Order("updated_at DESC").Limit(limit).Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("list conversations for %s: %w", userID, err)
	}
	return convs, nil
}

// Detail returns one conversation with its participants and last message.
func (s *Service) Detail(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	if _, err := s.Authorize(ctx, conversationID, userID, "detail"); err != nil {
		return nil, err
	}

	var conv models.Conversation
	err := s.db.WithContext(ctx).Scopes(withDetail).First(&conv, "id = ?", conversationID).Error
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}
	return &conv, nil
}

func withDetail(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Participants.User", userProjection).
		Preload("LastMessage").
		Preload("LastMessage.Sender", userProjection)
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
