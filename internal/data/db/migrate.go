package db

import (
	"fmt"

	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// =========================
		// Identity + auth
		// =========================
		&types.User{},
		&types.UserToken{},
		&types.UserOTP{},
		&types.UserSuspension{},

		// =========================
		// Incidents
		// =========================
		&types.Device{},
		&types.Accident{},
		&types.Concern{},
		&types.ConcernDistribution{},
		&types.IncidentMedia{},
		&types.FalseAlarm{},

		// =========================
		// Jobs / worker
		// =========================
		&types.JobRun{},
	)
}

// EnsureIncidentIndexes adds the constraints AutoMigrate cannot express.
// The partial unique index is what makes "one active distribution per
// concern" hold under concurrent assignment instead of a check-then-insert.
func EnsureIncidentIndexes(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return fmt.Errorf("enable uuid-ossp: %w", err)
	}
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_distribution_one_active
		ON concern_distribution(concern_id)
		WHERE status IN ('assigned', 'acknowledged', 'in_progress') AND deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_distribution_one_active: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_incident_media_source
		ON incident_media(source_kind, source_id);
	`).Error; err != nil {
		return fmt.Errorf("create idx_incident_media_source: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_accident_geo
		ON accident(latitude, longitude);
	`).Error; err != nil {
		return fmt.Errorf("create idx_accident_geo: %w", err)
	}
	return nil
}
