package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleCitizen     = "citizen"
	RoleOperator    = "operator"
	RolePurokLeader = "purok_leader"
)

type User struct {
	ID              uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Email           string    `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Password        string    `gorm:"not null;column:password" json:"-"`
	FirstName       string    `gorm:"not null;column:first_name" json:"first_name"`
	LastName        string    `gorm:"not null;column:last_name" json:"last_name"`
	Phone           string    `gorm:"column:phone;index" json:"phone"`
	Role            string    `gorm:"not null;default:citizen;column:role;index" json:"role"`
	Purok           string    `gorm:"column:purok;index" json:"purok"`
	PhoneVerifiedAt *time.Time `gorm:"column:phone_verified_at" json:"phone_verified_at,omitempty"`
	IDVerifiedAt    *time.Time `gorm:"column:id_verified_at" json:"id_verified_at,omitempty"`
	AvatarColor     string    `gorm:"column:avatar_color" json:"avatar_color"`
	AvatarBucketKey string    `gorm:"column:avatar_bucket_key" json:"avatar_bucket_key"`
	AvatarURL       string    `gorm:"column:avatar_url" json:"avatar_url"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "user" }
