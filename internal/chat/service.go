// Package chat holds the conversation core: participant authorization,
// find-or-create of conversations per context, and message persistence
// with live fan-out.
package chat

import (
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/BivasNandan/Law-Aid-sub001/internal/lock"
	"github.com/BivasNandan/Law-Aid-sub001/internal/models"
)

// Events pushed to live connections.
const (
	EventMessage             = "message"
	EventNewMessage          = "newMessage"
	EventMessageEdited       = "messageEdited"
	EventMessageRead         = "messageRead"
	EventConversationCreated = "conversationCreated"
	EventNotificationCreated = "notificationCreated"
)

// Emitter delivers events to live connections. Delivery is best-effort and
// never reports failure to the caller.
type Emitter interface {
	EmitToUser(userID, event string, payload any)
	EmitToConversation(conversationID, event string, payload any)
}

// NewMessageEvent is the personal-channel notice sent to the other
// participants of a conversation.
type NewMessageEvent struct {
	ConversationID string          `json:"conversationId"`
	Message        *models.Message `json:"message"`
}

var (
	ErrBadRequest = errors.New("bad request")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
)

// Error carries a client-safe message and one of the sentinel kinds above.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func badRequest(msg string) error { return &Error{Kind: ErrBadRequest, Msg: msg} }
func forbidden(msg string) error  { return &Error{Kind: ErrForbidden, Msg: msg} }
func notFound(msg string) error   { return &Error{Kind: ErrNotFound, Msg: msg} }

type Service struct {
	db      *gorm.DB
	emitter Emitter
	locker  lock.Locker
	logger  zerolog.Logger
}

func NewService(db *gorm.DB, emitter Emitter, locker lock.Locker, logger zerolog.Logger) *Service {
	return &Service{
		db:      db,
		emitter: emitter,
		locker:  locker,
		logger:  logger.With().Str("component", "chat").Logger(),
	}
}

// userProjection limits a preloaded user to display-safe columns.
func userProjection(db *gorm.DB) *gorm.DB {
	return db.Select("id", "user_name", "profile_pic")
}

// emit runs one fan-out call; a panicking emitter must not fail the
// operation that already committed.
func (s *Service) emit(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("event", event).Msg("fan-out failed")
		}
	}()
	fn()
}
