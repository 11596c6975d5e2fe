package incident

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Device is a registered CCTV camera pushing YOLO detections.
type Device struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Identifier string    `gorm:"uniqueIndex;not null;column:identifier" json:"identifier"`
	Name       string    `gorm:"column:name" json:"name"`
	APIKeyHash string    `gorm:"not null;column:api_key_hash" json:"-"`
	Purok      string    `gorm:"column:purok;index" json:"purok"`
	Latitude   float64   `gorm:"column:latitude" json:"latitude"`
	Longitude  float64   `gorm:"column:longitude" json:"longitude"`
	Active     bool      `gorm:"not null;default:true;column:active" json:"active"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Device) TableName() string { return "device" }
