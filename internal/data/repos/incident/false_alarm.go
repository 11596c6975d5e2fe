package incident

import (
	"context"
	"time"

	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type FalseAlarmRepo interface {
	Create(ctx context.Context, tx *gorm.DB, alarms []*types.FalseAlarm) ([]*types.FalseAlarm, error)
	List(ctx context.Context, tx *gorm.DB, since time.Time, limit, offset int) ([]*types.FalseAlarm, error)
	CountSince(ctx context.Context, tx *gorm.DB, since time.Time) (int64, error)
}

type falseAlarmRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFalseAlarmRepo(db *gorm.DB, baseLog *logger.Logger) FalseAlarmRepo {
	repoLog := baseLog.With("repo", "FalseAlarmRepo")
	return &falseAlarmRepo{db: db, log: repoLog}
}

func (fr *falseAlarmRepo) Create(ctx context.Context, tx *gorm.DB, alarms []*types.FalseAlarm) ([]*types.FalseAlarm, error) {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}
	if len(alarms) == 0 {
		return []*types.FalseAlarm{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&alarms).Error; err != nil {
		return nil, err
	}
	return alarms, nil
}

func (fr *falseAlarmRepo) List(ctx context.Context, tx *gorm.DB, since time.Time, limit, offset int) ([]*types.FalseAlarm, error) {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}
	q := transaction.WithContext(ctx).Model(&types.FalseAlarm{})
	if !since.IsZero() {
		q = q.Where("detected_at >= ?", since)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var results []*types.FalseAlarm
	if err := q.Order("detected_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (fr *falseAlarmRepo) CountSince(ctx context.Context, tx *gorm.DB, since time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}
	var count int64
	q := transaction.WithContext(ctx).Model(&types.FalseAlarm{})
	if !since.IsZero() {
		q = q.Where("detected_at >= ?", since)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
