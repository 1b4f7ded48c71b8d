package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Base carries the string identity and timestamps shared by every table.
type Base struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (b *Base) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = NewID()
	}
	return nil
}

// NewID returns a time-ordered identifier.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// User is owned by the account service; this service only reads the
// display projection and the email address.
type User struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	UserName       string    `gorm:"size:120" json:"userName"`
	Email          string    `gorm:"size:190" json:"email,omitempty"`
	ProfilePic     string    `gorm:"size:255" json:"profilePic,omitempty"`
	Role           string    `gorm:"size:20" json:"role,omitempty"`
	Specialization string    `gorm:"size:120" json:"specialization,omitempty"`
	CreatedAt      time.Time `json:"-"`
	UpdatedAt      time.Time `json:"-"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = NewID()
	}
	return nil
}

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentCompleted AppointmentStatus = "completed"
)

type Appointment struct {
	Base
	ClientID         string            `gorm:"size:36;index;not null" json:"client"`
	LawyerID         string            `gorm:"size:36;index;not null" json:"lawyer"`
	Client           *User             `gorm:"foreignKey:ClientID" json:"-"`
	Lawyer           *User             `gorm:"foreignKey:LawyerID" json:"-"`
	DateTime         time.Time         `gorm:"index;not null" json:"dateTime"`
	ProposedDateTime *time.Time        `json:"proposedDateTime,omitempty"`
	Status           AppointmentStatus `gorm:"size:20;index;not null;default:pending" json:"status"`
	ConversationID   *string           `gorm:"size:36" json:"conversationId,omitempty"`
}

// EffectiveTime is the rescheduled time when one has been proposed.
func (a *Appointment) EffectiveTime() time.Time {
	if a.ProposedDateTime != nil {
		return *a.ProposedDateTime
	}
	return a.DateTime
}

// HasParty reports whether userID is the client or the lawyer.
func (a *Appointment) HasParty(userID string) bool {
	return userID != "" && (a.ClientID == userID || a.LawyerID == userID)
}

type Consultation struct {
	Base
	ClientID       string  `gorm:"size:36;index;not null" json:"client"`
	LawyerID       string  `gorm:"size:36;index;not null" json:"lawyer"`
	Active         bool    `gorm:"not null;default:true" json:"active"`
	ConversationID *string `gorm:"size:36" json:"conversationId,omitempty"`
}

func (c *Consultation) HasParty(userID string) bool {
	return userID != "" && (c.ClientID == userID || c.LawyerID == userID)
}

type ConversationType string

const (
	ConversationAppointment  ConversationType = "appointment"
	ConversationConsultation ConversationType = "consultation"
	ConversationDirect       ConversationType = "direct"
)

func (t ConversationType) Valid() bool {
	switch t {
	case ConversationAppointment, ConversationConsultation, ConversationDirect:
		return true
	}
	return false
}

type Conversation struct {
	Base
	Type ConversationType `gorm:"size:20;index;not null" json:"type"`
	// ContextKey is the natural uniqueness tuple of the conversation's context.
	ContextKey     string  `gorm:"size:120;uniqueIndex;not null" json:"-"`
	AppointmentID  *string `gorm:"size:36;index" json:"appointmentId,omitempty"`
	ConsultationID *string `gorm:"size:36;index" json:"consultationId,omitempty"`
	LastMessageID  *string `gorm:"size:36" json:"lastMessageId,omitempty"`

	Participants []ConversationParticipant `json:"participants"`
	LastMessage  *Message                  `gorm:"foreignKey:LastMessageID" json:"lastMessage,omitempty"`
}

// ParticipantIDs returns the user ids of the participants table rows.
func (c *Conversation) ParticipantIDs() []string {
	ids := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

type ConversationParticipant struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	ConversationID string    `gorm:"size:36;uniqueIndex:idx_conversation_user;not null" json:"-"`
	UserID         string    `gorm:"size:36;uniqueIndex:idx_conversation_user;index;not null" json:"userId"`
	User           *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt      time.Time `json:"-"`
}

type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
)

// Attachment describes an already uploaded file.
type Attachment struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	Path         string    `json:"path"`
	MimeType     string    `json:"mimetype"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

type Message struct {
	ID             string                          `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string                          `gorm:"size:36;index:idx_conversation_created,priority:1;not null" json:"conversation"`
	SenderID       string                          `gorm:"size:36;index;not null" json:"-"`
	Sender         *User                           `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Text           string                          `gorm:"type:text" json:"text"`
	Attachments    datatypes.JSONSlice[Attachment] `json:"attachments"`
	Status         MessageStatus                   `gorm:"size:20;not null;default:sent" json:"status"`
	Edited         bool                            `gorm:"not null;default:false" json:"edited"`
	EditedAt       *time.Time                      `json:"editedAt"`
	CreatedAt      time.Time                       `gorm:"index:idx_conversation_created,priority:2" json:"createdAt"`
	UpdatedAt      time.Time                       `json:"updatedAt"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = NewID()
	}
	return nil
}

type NotificationType string

const (
	NotificationAppointmentReminder NotificationType = "appointment_reminder"
)

// Notification is a tagged variant: Type selects which detail field is set.
type Notification struct {
	Base
	RecipientID          string           `gorm:"size:36;not null;uniqueIndex:idx_reminder_once,priority:2;index" json:"recipient"`
	Type                 NotificationType `gorm:"size:40;not null;uniqueIndex:idx_reminder_once,priority:3" json:"type"`
	Title                string           `gorm:"size:200;not null" json:"title"`
	Body                 string           `gorm:"type:text;not null" json:"message"`
	RelatedAppointmentID *string          `gorm:"size:36;uniqueIndex:idx_reminder_once,priority:1" json:"relatedAppointment,omitempty"`
	RelatedUserID        *string          `gorm:"size:36" json:"-"`
	RelatedUser          *User            `gorm:"foreignKey:RelatedUserID" json:"relatedUser,omitempty"`
	IsRead               bool             `gorm:"not null;default:false;index" json:"isRead"`
	ReminderTime         *time.Time       `json:"reminderTime,omitempty"`
	SentAt               time.Time        `json:"sentTime"`

	Reminder *ReminderDetails `gorm:"serializer:json;type:text" json:"reminder,omitempty"`
}

// ReminderDetails is the appointment_reminder variant of a notification.
type ReminderDetails struct {
	AppointmentTime time.Time  `json:"appointmentDateTime"`
	ProposedTime    *time.Time `json:"proposedDateTime,omitempty"`
	OriginalTime    time.Time  `json:"originalDateTime"`
	LawyerName      string     `json:"lawyerName"`
	ClientName      string     `json:"clientName"`
	RecipientRole   string     `json:"recipientRole"`
	OtherPartyName  string     `json:"otherPartyName"`
}

// All lists every table for migrations.
func All() []any {
	return []any{
		&User{},
		&Appointment{},
		&Consultation{},
		&Conversation{},
		&ConversationParticipant{},
		&Message{},
		&Notification{},
	}
}
