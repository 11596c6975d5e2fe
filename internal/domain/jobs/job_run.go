package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	JobProcessManualConcern = "process_manual_concern"
	JobProcessVoiceConcern  = "process_voice_concern"
	JobNotifyEmail          = "notify_email"
	JobNotifySMS            = "notify_sms"
	JobNotifyAssignment     = "notify_assignment"
)

const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// MaxAttempts is the fixed retry budget per job; exhausted jobs land in the
// operator-visible failure log.
const MaxAttempts = 3

type JobRun struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	JobType    string         `gorm:"column:job_type;not null;index" json:"job_type"`
	EntityType string         `gorm:"column:entity_type;index" json:"entity_type,omitempty"`
	EntityID   *uuid.UUID     `gorm:"type:uuid;column:entity_id;index" json:"entity_id,omitempty"`
	Status     string         `gorm:"column:status;not null;index" json:"status"`
	Attempts   int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Error      string         `gorm:"column:error" json:"error,omitempty"`
	LastErrorAt *time.Time    `gorm:"column:last_error_at;index" json:"last_error_at,omitempty"`
	Payload    datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	Result     datatypes.JSON `gorm:"column:result;type:jsonb" json:"result"`
	CreatedAt  time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (JobRun) TableName() string { return "job_run" }
