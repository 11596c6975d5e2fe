package user

import (
	"context"
	"time"

	"github.com/google/uuid"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type UserSuspensionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, suspension *types.UserSuspension) (*types.UserSuspension, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.UserSuspension, error)
	GetActive(ctx context.Context, tx *gorm.DB, userID uuid.UUID, now time.Time) (*types.UserSuspension, error)
	Lift(ctx context.Context, tx *gorm.DB, suspensionID uuid.UUID, at time.Time) error
}

type userSuspensionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserSuspensionRepo(db *gorm.DB, baseLog *logger.Logger) UserSuspensionRepo {
	repoLog := baseLog.With("repo", "UserSuspensionRepo")
	return &userSuspensionRepo{db: db, log: repoLog}
}

func (sr *userSuspensionRepo) Create(ctx context.Context, tx *gorm.DB, suspension *types.UserSuspension) (*types.UserSuspension, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	if suspension == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(suspension).Error; err != nil {
		return nil, err
	}
	return suspension, nil
}

func (sr *userSuspensionRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.UserSuspension, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var results []*types.UserSuspension
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetActive returns the currently binding suspension, or nil when the citizen
// is in good standing.
func (sr *userSuspensionRepo) GetActive(ctx context.Context, tx *gorm.DB, userID uuid.UUID, now time.Time) (*types.UserSuspension, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var results []*types.UserSuspension
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND lifted_at IS NULL AND starts_at <= ? AND (permanent = TRUE OR expires_at > ?)", userID, now, now).
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

func (sr *userSuspensionRepo) Lift(ctx context.Context, tx *gorm.DB, suspensionID uuid.UUID, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.UserSuspension{}).
		Where("id = ? AND lifted_at IS NULL", suspensionID).
		Update("lifted_at", at).Error
}
