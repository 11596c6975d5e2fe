package incident

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	CategoryFire     = "fire"
	CategoryFlood    = "flood"
	CategoryAccident = "accident"
	CategoryCrime    = "crime"
	CategoryInfra    = "infrastructure"
	CategoryOther    = "other"
)

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

const (
	AccidentStatusPending    = "pending"
	AccidentStatusInProgress = "in_progress"
	AccidentStatusResolved   = "resolved"
	AccidentStatusArchived   = "archived"
)

type Accident struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DeviceID        *uuid.UUID     `gorm:"type:uuid;column:device_id;index" json:"device_id,omitempty"`
	Title           string         `gorm:"not null;column:title" json:"title"`
	Description     string         `gorm:"column:description" json:"description"`
	Category        string         `gorm:"not null;column:category;index" json:"category"`
	Severity        string         `gorm:"not null;column:severity;index" json:"severity"`
	Status          string         `gorm:"not null;default:pending;column:status;index" json:"status"`
	Latitude        float64        `gorm:"column:latitude" json:"latitude"`
	Longitude       float64        `gorm:"column:longitude" json:"longitude"`
	Confidence      float64        `gorm:"column:confidence" json:"confidence"`
	Reasoning       string         `gorm:"column:reasoning" json:"reasoning"`
	DetectedObjects datatypes.JSON `gorm:"column:detected_objects;type:jsonb" json:"detected_objects"`
	DetectedAt      time.Time      `gorm:"not null;column:detected_at;index" json:"detected_at"`
	ResolvedAt      *time.Time     `gorm:"column:resolved_at" json:"resolved_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Accident) TableName() string { return "accident" }

// AccidentCanTransition reports whether an accident may move from one status
// to the next. Archived is reachable from any non-terminal status.
func AccidentCanTransition(from, to string) bool {
	switch to {
	case AccidentStatusInProgress:
		return from == AccidentStatusPending
	case AccidentStatusResolved:
		return from == AccidentStatusInProgress
	case AccidentStatusArchived:
		return from == AccidentStatusPending || from == AccidentStatusInProgress
	default:
		return false
	}
}

func ValidCategory(c string) bool {
	switch c {
	case CategoryFire, CategoryFlood, CategoryAccident, CategoryCrime, CategoryInfra, CategoryOther:
		return true
	default:
		return false
	}
}

func ValidSeverity(s string) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	default:
		return false
	}
}
