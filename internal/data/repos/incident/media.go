package incident

import (
	"context"

	"github.com/google/uuid"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type IncidentMediaRepo interface {
	Create(ctx context.Context, tx *gorm.DB, media []*types.IncidentMedia) ([]*types.IncidentMedia, error)
	ListBySource(ctx context.Context, tx *gorm.DB, kind types.SourceKind, sourceID uuid.UUID) ([]*types.IncidentMedia, error)
	ListBySources(ctx context.Context, tx *gorm.DB, kind types.SourceKind, sourceIDs []uuid.UUID) ([]*types.IncidentMedia, error)
	DeleteBySource(ctx context.Context, tx *gorm.DB, kind types.SourceKind, sourceID uuid.UUID) error
}

type incidentMediaRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIncidentMediaRepo(db *gorm.DB, baseLog *logger.Logger) IncidentMediaRepo {
	repoLog := baseLog.With("repo", "IncidentMediaRepo")
	return &incidentMediaRepo{db: db, log: repoLog}
}

func (mr *incidentMediaRepo) Create(ctx context.Context, tx *gorm.DB, media []*types.IncidentMedia) ([]*types.IncidentMedia, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}
	if len(media) == 0 {
		return []*types.IncidentMedia{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&media).Error; err != nil {
		return nil, err
	}
	return media, nil
}

func (mr *incidentMediaRepo) ListBySource(ctx context.Context, tx *gorm.DB, kind types.SourceKind, sourceID uuid.UUID) ([]*types.IncidentMedia, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}
	var results []*types.IncidentMedia
	if err := transaction.WithContext(ctx).
		Where("source_kind = ? AND source_id = ?", kind, sourceID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (mr *incidentMediaRepo) ListBySources(ctx context.Context, tx *gorm.DB, kind types.SourceKind, sourceIDs []uuid.UUID) ([]*types.IncidentMedia, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}
	var results []*types.IncidentMedia
	if len(sourceIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("source_kind = ? AND source_id IN ?", kind, sourceIDs).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (mr *incidentMediaRepo) DeleteBySource(ctx context.Context, tx *gorm.DB, kind types.SourceKind, sourceID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}
	return transaction.WithContext(ctx).
		Where("source_kind = ? AND source_id = ?", kind, sourceID).
		Delete(&types.IncidentMedia{}).Error
}
