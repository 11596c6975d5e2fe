package repos

import (
	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos/incident"
	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos/jobs"
	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos/user"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type UserRepo = user.UserRepo
type UserTokenRepo = user.UserTokenRepo
type UserOTPRepo = user.UserOTPRepo
type UserSuspensionRepo = user.UserSuspensionRepo

type AccidentRepo = incident.AccidentRepo
type AccidentFilter = incident.AccidentFilter
type ConcernRepo = incident.ConcernRepo
type ConcernFilter = incident.ConcernFilter
type IncidentMediaRepo = incident.IncidentMediaRepo
type FalseAlarmRepo = incident.FalseAlarmRepo
type DeviceRepo = incident.DeviceRepo
type DistributionRepo = incident.DistributionRepo

type JobRunRepo = jobs.JobRunRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }
func NewUserTokenRepo(db *gorm.DB, baseLog *logger.Logger) UserTokenRepo {
	return user.NewUserTokenRepo(db, baseLog)
}
func NewUserOTPRepo(db *gorm.DB, baseLog *logger.Logger) UserOTPRepo {
	return user.NewUserOTPRepo(db, baseLog)
}
func NewUserSuspensionRepo(db *gorm.DB, baseLog *logger.Logger) UserSuspensionRepo {
	return user.NewUserSuspensionRepo(db, baseLog)
}

func NewAccidentRepo(db *gorm.DB, baseLog *logger.Logger) AccidentRepo {
	return incident.NewAccidentRepo(db, baseLog)
}
func NewConcernRepo(db *gorm.DB, baseLog *logger.Logger) ConcernRepo {
	return incident.NewConcernRepo(db, baseLog)
}
func NewIncidentMediaRepo(db *gorm.DB, baseLog *logger.Logger) IncidentMediaRepo {
	return incident.NewIncidentMediaRepo(db, baseLog)
}
func NewFalseAlarmRepo(db *gorm.DB, baseLog *logger.Logger) FalseAlarmRepo {
	return incident.NewFalseAlarmRepo(db, baseLog)
}
func NewDeviceRepo(db *gorm.DB, baseLog *logger.Logger) DeviceRepo {
	return incident.NewDeviceRepo(db, baseLog)
}
func NewDistributionRepo(db *gorm.DB, baseLog *logger.Logger) DistributionRepo {
	return incident.NewDistributionRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}
