package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Punishment ladder. Escalation is strictly sequential: a citizen must hold
// warning_1 before warning_2, and warning_2 before suspension. A permanent
// suspension admits no further punishment.
const (
	PunishmentWarning1   = "warning_1"
	PunishmentWarning2   = "warning_2"
	PunishmentSuspension = "suspension"
)

type UserSuspension struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	IssuedByID uuid.UUID  `gorm:"type:uuid;not null;column:issued_by_id" json:"issued_by_id"`
	Type       string     `gorm:"not null;column:type;index" json:"type"`
	Reason     string     `gorm:"not null;column:reason" json:"reason"`
	StartsAt   time.Time  `gorm:"not null;column:starts_at" json:"starts_at"`
	ExpiresAt  *time.Time `gorm:"column:expires_at;index" json:"expires_at,omitempty"`
	Permanent  bool       `gorm:"not null;default:false;column:permanent" json:"permanent"`
	LiftedAt   *time.Time `gorm:"column:lifted_at" json:"lifted_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (UserSuspension) TableName() string { return "user_suspension" }

func (s *UserSuspension) ActiveAt(now time.Time) bool {
	if s == nil || s.LiftedAt != nil {
		return false
	}
	if now.Before(s.StartsAt) {
		return false
	}
	if s.Permanent {
		return true
	}
	return s.ExpiresAt != nil && now.Before(*s.ExpiresAt)
}

// NextPunishments returns the punishment types that may legally be issued
// given the citizen's full punishment history, ordered most recent first.
// warning_1 is never offered again once any warning has been issued.
func NextPunishments(history []*UserSuspension, now time.Time) []string {
	highest := ""
	for _, s := range history {
		if s == nil {
			continue
		}
		if s.Permanent && s.LiftedAt == nil {
			return nil
		}
		if punishmentRank(s.Type) > punishmentRank(highest) {
			highest = s.Type
		}
	}
	switch highest {
	case "":
		return []string{PunishmentWarning1}
	case PunishmentWarning1:
		return []string{PunishmentWarning2}
	case PunishmentWarning2, PunishmentSuspension:
		return []string{PunishmentSuspension}
	default:
		return nil
	}
}

func punishmentRank(t string) int {
	switch t {
	case PunishmentWarning1:
		return 1
	case PunishmentWarning2:
		return 2
	case PunishmentSuspension:
		return 3
	default:
		return 0
	}
}
