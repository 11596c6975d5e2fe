package incident

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ConcernTypeText  = "text"
	ConcernTypeVoice = "voice"
	ConcernTypeImage = "image"
)

const (
	ConcernStatusPending   = "pending"
	ConcernStatusOngoing   = "ongoing"
	ConcernStatusEscalated = "escalated"
	ConcernStatusResolved  = "resolved"
)

// Placeholder title/description for voice concerns awaiting transcription.
const (
	VoicePlaceholderTitle       = "Voice report (processing)"
	VoicePlaceholderDescription = "Awaiting transcription"
)

type Concern struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Type        string    `gorm:"not null;default:text;column:type;index" json:"type"`
	Title       string    `gorm:"not null;column:title" json:"title"`
	Description string    `gorm:"column:description" json:"description"`
	Category    string    `gorm:"column:category;index" json:"category"`
	Severity    string    `gorm:"column:severity;index" json:"severity"`
	Status      string    `gorm:"not null;default:pending;column:status;index" json:"status"`
	Latitude    float64   `gorm:"column:latitude" json:"latitude"`
	Longitude   float64   `gorm:"column:longitude" json:"longitude"`
	Transcript  string    `gorm:"column:transcript" json:"transcript,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Concern) TableName() string { return "concern" }

func (c *Concern) Editable() bool {
	return c != nil && c.Status == ConcernStatusPending
}

func ConcernCanTransition(from, to string) bool {
	switch to {
	case ConcernStatusOngoing:
		return from == ConcernStatusPending
	case ConcernStatusEscalated:
		return from == ConcernStatusOngoing
	case ConcernStatusResolved:
		return from == ConcernStatusOngoing || from == ConcernStatusEscalated
	default:
		return false
	}
}

func ValidConcernType(t string) bool {
	switch t {
	case ConcernTypeText, ConcernTypeVoice, ConcernTypeImage:
		return true
	default:
		return false
	}
}
