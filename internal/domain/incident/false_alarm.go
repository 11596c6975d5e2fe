package incident

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// FalseAlarm is a write-once record of a rejected detection. No media is
// ever stored for a rejected detection; the snapshot is discarded.
type FalseAlarm struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DeviceID        *uuid.UUID     `gorm:"type:uuid;column:device_id;index" json:"device_id,omitempty"`
	Category        string         `gorm:"column:category;index" json:"category"`
	Confidence      float64        `gorm:"column:confidence" json:"confidence"`
	Reasoning       string         `gorm:"not null;column:reasoning" json:"reasoning"`
	DetectedObjects datatypes.JSON `gorm:"column:detected_objects;type:jsonb" json:"detected_objects"`
	DetectedAt      time.Time      `gorm:"not null;column:detected_at;index" json:"detected_at"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (FalseAlarm) TableName() string { return "false_alarm" }
