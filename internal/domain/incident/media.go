package incident

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SourceKind is the explicit discriminant for polymorphic media attachment.
type SourceKind string

const (
	SourceAccident SourceKind = "accident"
	SourceConcern  SourceKind = "concern"
	SourceDevice   SourceKind = "device"
)

func ValidSourceKind(k SourceKind) bool {
	switch k {
	case SourceAccident, SourceConcern, SourceDevice:
		return true
	default:
		return false
	}
}

type IncidentMedia struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SourceKind SourceKind `gorm:"not null;column:source_kind;index:idx_media_source" json:"source_kind"`
	SourceID   uuid.UUID  `gorm:"type:uuid;not null;column:source_id;index:idx_media_source" json:"source_id"`
	URL        string     `gorm:"not null;column:url" json:"url"`
	StorageKey string     `gorm:"not null;column:storage_key" json:"storage_key"`
	Filename   string     `gorm:"column:filename" json:"filename"`
	MimeType   string     `gorm:"not null;column:mime_type" json:"mime_type"`
	SizeBytes  int64      `gorm:"column:size_bytes" json:"size_bytes"`
	CapturedAt time.Time  `gorm:"column:captured_at" json:"captured_at"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (IncidentMedia) TableName() string { return "incident_media" }
