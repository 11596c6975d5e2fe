package incident

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	pkgerrors "github.com/urbanwatch/urbanwatch-backend/internal/pkg/errors"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type ConcernFilter struct {
	Status   string
	Category string
	Type     string
	Limit    int
	Offset   int
}

type ConcernRepo interface {
	Create(ctx context.Context, tx *gorm.DB, concern *types.Concern) (*types.Concern, error)
	GetByID(ctx context.Context, tx *gorm.DB, concernID uuid.UUID) (*types.Concern, error)
	GetByIDForUser(ctx context.Context, tx *gorm.DB, concernID, userID uuid.UUID) (*types.Concern, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, filter ConcernFilter) ([]*types.Concern, error)
	ListAll(ctx context.Context, tx *gorm.DB, filter ConcernFilter) ([]*types.Concern, error)
	UpdateContent(ctx context.Context, tx *gorm.DB, concernID uuid.UUID, title, description string) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, concernID uuid.UUID, fromStatuses []string, toStatus string) (bool, error)
	SetTranscript(ctx context.Context, tx *gorm.DB, concernID uuid.UUID, title, description, transcript string) error
	SetClassification(ctx context.Context, tx *gorm.DB, concernID uuid.UUID, category, severity string) error
	Delete(ctx context.Context, tx *gorm.DB, concernID uuid.UUID) error
}

type concernRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConcernRepo(db *gorm.DB, baseLog *logger.Logger) ConcernRepo {
	repoLog := baseLog.With("repo", "ConcernRepo")
	return &concernRepo{db: db, log: repoLog}
}

func (cr *concernRepo) Create(ctx context.Context, tx *gorm.DB, concern *types.Concern) (*types.Concern, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	if concern == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(concern).Error; err != nil {
		return nil, err
	}
	return concern, nil
}

func (cr *concernRepo) GetByID(ctx context.Context, tx *gorm.DB, concernID uuid.UUID) (*types.Concern, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	var result types.Concern
	err := transaction.WithContext(ctx).
		Where("id = ?", concernID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetByIDForUser scopes the lookup to the owner. A concern belonging to
// someone else is indistinguishable from a missing one.
func (cr *concernRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, concernID, userID uuid.UUID) (*types.Concern, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	var result types.Concern
	err := transaction.WithContext(ctx).
		Where("id = ? AND user_id = ?", concernID, userID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (cr *concernRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, filter ConcernFilter) ([]*types.Concern, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	q := applyConcernFilter(transaction.WithContext(ctx).Model(&types.Concern{}), filter).
		Where("user_id = ?", userID)

	var results []*types.Concern
	if err := q.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *concernRepo) ListAll(ctx context.Context, tx *gorm.DB, filter ConcernFilter) ([]*types.Concern, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	q := applyConcernFilter(transaction.WithContext(ctx).Model(&types.Concern{}), filter)

	var results []*types.Concern
	if err := q.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *concernRepo) UpdateContent(ctx context.Context, tx *gorm.DB, concernID uuid.UUID, title, description string) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Concern{}).
		Where("id = ?", concernID).
		Updates(map[string]any{
			"title":       title,
			"description": description,
		}).Error
}

func (cr *concernRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, concernID uuid.UUID, fromStatuses []string, toStatus string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Concern{}).
		Where("id = ? AND status IN ?", concernID, fromStatuses).
		Updates(map[string]any{
			"status":     toStatus,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetTranscript replaces the voice placeholders with transcribed content.
func (cr *concernRepo) SetTranscript(ctx context.Context, tx *gorm.DB, concernID uuid.UUID, title, description, transcript string) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Concern{}).
		Where("id = ?", concernID).
		Updates(map[string]any{
			"title":       title,
			"description": description,
			"transcript":  transcript,
		}).Error
}

func (cr *concernRepo) SetClassification(ctx context.Context, tx *gorm.DB, concernID uuid.UUID, category, severity string) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Concern{}).
		Where("id = ?", concernID).
		Updates(map[string]any{
			"category": category,
			"severity": severity,
		}).Error
}

func (cr *concernRepo) Delete(ctx context.Context, tx *gorm.DB, concernID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", concernID).
		Delete(&types.Concern{}).Error
}

func applyConcernFilter(q *gorm.DB, filter ConcernFilter) *gorm.DB {
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	return q
}
