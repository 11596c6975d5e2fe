package incident

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DistributionStatusAssigned     = "assigned"
	DistributionStatusAcknowledged = "acknowledged"
	DistributionStatusInProgress   = "in_progress"
	DistributionStatusResolved     = "resolved"
)

// ConcernDistribution links a concern to the purok leader responsible for it.
// At most one non-resolved distribution may exist per concern; the partial
// unique index idx_distribution_one_active enforces this at the database.
type ConcernDistribution struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ConcernID  uuid.UUID `gorm:"type:uuid;not null;column:concern_id;index" json:"concern_id"`
	OfficialID uuid.UUID `gorm:"type:uuid;not null;column:official_id;index" json:"official_id"`
	Status     string    `gorm:"not null;default:assigned;column:status;index" json:"status"`
	AssignedAt time.Time `gorm:"not null;column:assigned_at" json:"assigned_at"`
	ResolvedAt *time.Time `gorm:"column:resolved_at" json:"resolved_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ConcernDistribution) TableName() string { return "concern_distribution" }

func (d *ConcernDistribution) Active() bool {
	return d != nil && d.Status != DistributionStatusResolved
}

func DistributionCanTransition(from, to string) bool {
	switch to {
	case DistributionStatusAcknowledged:
		return from == DistributionStatusAssigned
	case DistributionStatusInProgress:
		return from == DistributionStatusAcknowledged
	case DistributionStatusResolved:
		return from == DistributionStatusAcknowledged || from == DistributionStatusInProgress
	default:
		return false
	}
}
