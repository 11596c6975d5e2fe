package user

import (
	"time"

	"github.com/google/uuid"
)

// Token abilities. Access tokens may only call the API; refresh tokens may
// only mint new access tokens.
const (
	AbilityAccessAPI    = "access-api"
	AbilityRefreshToken = "refresh-token"
)

type UserToken struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	AccessToken  string    `gorm:"not null;column:access_token" json:"-"`
	RefreshToken string    `gorm:"not null;uniqueIndex;column:refresh_token" json:"-"`
	ExpiresAt    time.Time `gorm:"not null;column:expires_at;index" json:"expires_at"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (UserToken) TableName() string { return "user_token" }

type UserOTP struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	CodeHash  string    `gorm:"not null;column:code_hash" json:"-"`
	Purpose   string    `gorm:"not null;column:purpose;index" json:"purpose"`
	Attempts  int       `gorm:"not null;default:0;column:attempts" json:"attempts"`
	ExpiresAt time.Time `gorm:"not null;column:expires_at;index" json:"expires_at"`
	UsedAt    *time.Time `gorm:"column:used_at" json:"used_at,omitempty"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (UserOTP) TableName() string { return "user_otp" }
