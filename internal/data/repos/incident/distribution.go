package incident

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	pkgerrors "github.com/urbanwatch/urbanwatch-backend/internal/pkg/errors"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
	"gorm.io/gorm"
)

const uniqueViolation = "23505"

type DistributionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, dist *types.ConcernDistribution) (*types.ConcernDistribution, error)
	GetByID(ctx context.Context, tx *gorm.DB, distID uuid.UUID) (*types.ConcernDistribution, error)
	GetActiveByConcern(ctx context.Context, tx *gorm.DB, concernID uuid.UUID) (*types.ConcernDistribution, error)
	ListByOfficial(ctx context.Context, tx *gorm.DB, officialID uuid.UUID, activeOnly bool) ([]*types.ConcernDistribution, error)
	ListByConcern(ctx context.Context, tx *gorm.DB, concernID uuid.UUID) ([]*types.ConcernDistribution, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, distID uuid.UUID, fromStatuses []string, toStatus string, resolvedAt *time.Time) (bool, error)
}

type distributionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDistributionRepo(db *gorm.DB, baseLog *logger.Logger) DistributionRepo {
	repoLog := baseLog.With("repo", "DistributionRepo")
	return &distributionRepo{db: db, log: repoLog}
}

// Create inserts the assignment. The partial unique index on concern_id
// rejects a second active distribution; that violation surfaces as
// ErrAlreadyAssigned so callers need no pre-check.
func (dr *distributionRepo) Create(ctx context.Context, tx *gorm.DB, dist *types.ConcernDistribution) (*types.ConcernDistribution, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	if dist == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(dist).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, pkgerrors.ErrAlreadyAssigned
		}
		return nil, err
	}
	return dist, nil
}

func (dr *distributionRepo) GetByID(ctx context.Context, tx *gorm.DB, distID uuid.UUID) (*types.ConcernDistribution, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var result types.ConcernDistribution
	err := transaction.WithContext(ctx).
		Where("id = ?", distID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (dr *distributionRepo) GetActiveByConcern(ctx context.Context, tx *gorm.DB, concernID uuid.UUID) (*types.ConcernDistribution, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var results []*types.ConcernDistribution
	if err := transaction.WithContext(ctx).
		Where("concern_id = ? AND status <> ?", concernID, types.DistributionStatusResolved).
		Order("created_at DESC").
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (dr *distributionRepo) ListByOfficial(ctx context.Context, tx *gorm.DB, officialID uuid.UUID, activeOnly bool) ([]*types.ConcernDistribution, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	q := transaction.WithContext(ctx).
		Model(&types.ConcernDistribution{}).
		Where("official_id = ?", officialID)
	if activeOnly {
		q = q.Where("status <> ?", types.DistributionStatusResolved)
	}
	var results []*types.ConcernDistribution
	if err := q.Order("assigned_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (dr *distributionRepo) ListByConcern(ctx context.Context, tx *gorm.DB, concernID uuid.UUID) ([]*types.ConcernDistribution, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var results []*types.ConcernDistribution
	if err := transaction.WithContext(ctx).
		Where("concern_id = ?", concernID).
		Order("assigned_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (dr *distributionRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, distID uuid.UUID, fromStatuses []string, toStatus string, resolvedAt *time.Time) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	updates := map[string]any{
		"status":     toStatus,
		"updated_at": time.Now(),
	}
	if resolvedAt != nil {
		updates["resolved_at"] = *resolvedAt
	}
	res := transaction.WithContext(ctx).
		Model(&types.ConcernDistribution{}).
		Where("id = ? AND status IN ?", distID, fromStatuses).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
