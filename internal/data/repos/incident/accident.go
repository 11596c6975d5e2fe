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

// AccidentFilter narrows List queries. Zero values mean "no constraint".
type AccidentFilter struct {
	Status   string
	Category string
	Severity string
	Since    time.Time
	Until    time.Time
	Limit    int
	Offset   int
}

type AccidentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, accidents []*types.Accident) ([]*types.Accident, error)
	GetByID(ctx context.Context, tx *gorm.DB, accidentID uuid.UUID) (*types.Accident, error)
	List(ctx context.Context, tx *gorm.DB, filter AccidentFilter) ([]*types.Accident, error)
	ListActive(ctx context.Context, tx *gorm.DB) ([]*types.Accident, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, accidentID uuid.UUID, fromStatuses []string, toStatus string, resolvedAt *time.Time) (bool, error)
	Archive(ctx context.Context, tx *gorm.DB, accidentID uuid.UUID) (bool, error)
	ListSince(ctx context.Context, tx *gorm.DB, since time.Time) ([]*types.Accident, error)
}

type accidentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAccidentRepo(db *gorm.DB, baseLog *logger.Logger) AccidentRepo {
	repoLog := baseLog.With("repo", "AccidentRepo")
	return &accidentRepo{db: db, log: repoLog}
}

func (ar *accidentRepo) Create(ctx context.Context, tx *gorm.DB, accidents []*types.Accident) ([]*types.Accident, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	if len(accidents) == 0 {
		return []*types.Accident{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&accidents).Error; err != nil {
		return nil, err
	}
	return accidents, nil
}

func (ar *accidentRepo) GetByID(ctx context.Context, tx *gorm.DB, accidentID uuid.UUID) (*types.Accident, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var result types.Accident
	err := transaction.WithContext(ctx).
		Where("id = ?", accidentID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (ar *accidentRepo) List(ctx context.Context, tx *gorm.DB, filter AccidentFilter) ([]*types.Accident, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}

	q := transaction.WithContext(ctx).Model(&types.Accident{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Severity != "" {
		q = q.Where("severity = ?", filter.Severity)
	}
	if !filter.Since.IsZero() {
		q = q.Where("detected_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("detected_at < ?", filter.Until)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var results []*types.Accident
	if err := q.Order("detected_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ar *accidentRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]*types.Accident, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var results []*types.Accident
	if err := transaction.WithContext(ctx).
		Where("status IN ?", []string{types.AccidentStatusPending, types.AccidentStatusInProgress}).
		Order("detected_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateStatus performs a guarded transition: the row only changes when its
// current status is one of fromStatuses, so two concurrent operators cannot
// both win the same transition.
func (ar *accidentRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, accidentID uuid.UUID, fromStatuses []string, toStatus string, resolvedAt *time.Time) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}

	updates := map[string]any{
		"status":     toStatus,
		"updated_at": time.Now(),
	}
	if resolvedAt != nil {
		updates["resolved_at"] = *resolvedAt
	}

	res := transaction.WithContext(ctx).
		Model(&types.Accident{}).
		Where("id = ? AND status IN ?", accidentID, fromStatuses).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Archive marks a non-terminal accident archived and soft-deletes the row in
// one guarded UPDATE; archived accidents drop out of every default query.
func (ar *accidentRepo) Archive(ctx context.Context, tx *gorm.DB, accidentID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	now := time.Now()
	res := transaction.WithContext(ctx).
		Model(&types.Accident{}).
		Where("id = ? AND status IN ?", accidentID,
			[]string{types.AccidentStatusPending, types.AccidentStatusInProgress}).
		Updates(map[string]any{
			"status":     types.AccidentStatusArchived,
			"updated_at": now,
			"deleted_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (ar *accidentRepo) ListSince(ctx context.Context, tx *gorm.DB, since time.Time) ([]*types.Accident, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var results []*types.Accident
	if err := transaction.WithContext(ctx).
		Where("detected_at >= ?", since).
		Order("detected_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
