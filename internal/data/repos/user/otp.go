package user

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

type UserOTPRepo interface {
	Create(ctx context.Context, tx *gorm.DB, otp *types.UserOTP) (*types.UserOTP, error)
	GetActive(ctx context.Context, tx *gorm.DB, userID uuid.UUID, purpose string, now time.Time) (*types.UserOTP, error)
	IncrementAttempts(ctx context.Context, tx *gorm.DB, otpID uuid.UUID) error
	MarkUsed(ctx context.Context, tx *gorm.DB, otpID uuid.UUID, at time.Time) error
	InvalidateForPurpose(ctx context.Context, tx *gorm.DB, userID uuid.UUID, purpose string, at time.Time) error
}

type userOTPRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserOTPRepo(db *gorm.DB, baseLog *logger.Logger) UserOTPRepo {
	repoLog := baseLog.With("repo", "UserOTPRepo")
	return &userOTPRepo{db: db, log: repoLog}
}

func (or *userOTPRepo) Create(ctx context.Context, tx *gorm.DB, otp *types.UserOTP) (*types.UserOTP, error) {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}
	if otp == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(otp).Error; err != nil {
		return nil, err
	}
	return otp, nil
}

func (or *userOTPRepo) GetActive(ctx context.Context, tx *gorm.DB, userID uuid.UUID, purpose string, now time.Time) (*types.UserOTP, error) {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}
	var result types.UserOTP
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND purpose = ? AND used_at IS NULL AND expires_at > ?", userID, purpose, now).
		Order("created_at DESC").
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (or *userOTPRepo) IncrementAttempts(ctx context.Context, tx *gorm.DB, otpID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}
	return transaction.WithContext(ctx).
		Model(&types.UserOTP{}).
		Where("id = ?", otpID).
		Update("attempts", gorm.Expr("attempts + 1")).Error
}

func (or *userOTPRepo) MarkUsed(ctx context.Context, tx *gorm.DB, otpID uuid.UUID, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}
	return transaction.WithContext(ctx).
		Model(&types.UserOTP{}).
		Where("id = ?", otpID).
		Update("used_at", at).Error
}

// InvalidateForPurpose marks every open code for the purpose as used so that
// issuing a new code leaves at most one live code per user and purpose.
func (or *userOTPRepo) InvalidateForPurpose(ctx context.Context, tx *gorm.DB, userID uuid.UUID, purpose string, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}
	return transaction.WithContext(ctx).
		Model(&types.UserOTP{}).
		Where("user_id = ? AND purpose = ? AND used_at IS NULL", userID, purpose).
		Update("used_at", at).Error
}
