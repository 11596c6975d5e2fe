package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	pkgerrors "github.com/urbanwatch/urbanwatch-backend/internal/pkg/errors"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
)

type JobRunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, jobs []*types.JobRun) ([]*types.JobRun, error)
	GetByID(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) (*types.JobRun, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, updates map[string]interface{}) error
	MarkRunning(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) error
	MarkSucceeded(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, result []byte) error
	RecordFailure(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, jobErr string, terminal bool) error
	ListFailed(ctx context.Context, tx *gorm.DB, since time.Time, limit, offset int) ([]*types.JobRun, error)
	ExistsRunnable(ctx context.Context, tx *gorm.DB, jobType, entityType string, entityID *uuid.UUID) (bool, error)
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{
		db:  db,
		log: baseLog.With("repo", "JobRunRepo"),
	}
}

func (r *jobRunRepo) Create(ctx context.Context, tx *gorm.DB, jobs []*types.JobRun) ([]*types.JobRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(jobs) == 0 {
		return []*types.JobRun{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRunRepo) GetByID(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) (*types.JobRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.JobRun
	err := transaction.WithContext(ctx).
		Where("id = ?", jobID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *jobRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if jobID == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.JobRun{}).
		Where("id = ?", jobID).
		Updates(updates).Error
}

func (r *jobRunRepo) MarkRunning(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) error {
	return r.UpdateFields(ctx, tx, jobID, map[string]interface{}{
		"status":   types.JobStatusRunning,
		"attempts": gorm.Expr("attempts + 1"),
	})
}

func (r *jobRunRepo) MarkSucceeded(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, result []byte) error {
	updates := map[string]interface{}{
		"status": types.JobStatusSucceeded,
		"error":  "",
	}
	if len(result) > 0 {
		updates["result"] = result
	}
	return r.UpdateFields(ctx, tx, jobID, updates)
}

// RecordFailure stores the attempt error. Terminal failures flip the status
// to failed and land in the operator-visible failure log; transient ones keep
// the run queued for its next retry.
func (r *jobRunRepo) RecordFailure(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, jobErr string, terminal bool) error {
	status := types.JobStatusQueued
	if terminal {
		status = types.JobStatusFailed
	}
	return r.UpdateFields(ctx, tx, jobID, map[string]interface{}{
		"status":        status,
		"error":         jobErr,
		"last_error_at": time.Now(),
	})
}

func (r *jobRunRepo) ListFailed(ctx context.Context, tx *gorm.DB, since time.Time, limit, offset int) ([]*types.JobRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).
		Model(&types.JobRun{}).
		Where("status = ?", types.JobStatusFailed)
	if !since.IsZero() {
		q = q.Where("last_error_at >= ?", since)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var results []*types.JobRun
	if err := q.Order("last_error_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *jobRunRepo) ExistsRunnable(ctx context.Context, tx *gorm.DB, jobType, entityType string, entityID *uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if jobType == "" {
		return false, nil
	}

	q := transaction.WithContext(ctx).Model(&types.JobRun{}).
		Where("job_type = ? AND status IN ?", jobType, []string{types.JobStatusQueued, types.JobStatusRunning})
	if entityType != "" {
		q = q.Where("entity_type = ?", entityType)
	}
	if entityID != nil && *entityID != uuid.Nil {
		q = q.Where("entity_id = ?", *entityID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
