package incident

import (
	"context"
	"errors"

	"github.com/google/uuid"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	pkgerrors "github.com/urbanwatch/urbanwatch-backend/internal/pkg/errors"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type DeviceRepo interface {
	Create(ctx context.Context, tx *gorm.DB, devices []*types.Device) ([]*types.Device, error)
	GetByID(ctx context.Context, tx *gorm.DB, deviceID uuid.UUID) (*types.Device, error)
	GetByIdentifier(ctx context.Context, tx *gorm.DB, identifier string) (*types.Device, error)
	List(ctx context.Context, tx *gorm.DB, activeOnly bool) ([]*types.Device, error)
	SetActive(ctx context.Context, tx *gorm.DB, deviceID uuid.UUID, active bool) error
}

type deviceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDeviceRepo(db *gorm.DB, baseLog *logger.Logger) DeviceRepo {
	repoLog := baseLog.With("repo", "DeviceRepo")
	return &deviceRepo{db: db, log: repoLog}
}

func (dr *deviceRepo) Create(ctx context.Context, tx *gorm.DB, devices []*types.Device) ([]*types.Device, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	if len(devices) == 0 {
		return []*types.Device{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}

func (dr *deviceRepo) GetByID(ctx context.Context, tx *gorm.DB, deviceID uuid.UUID) (*types.Device, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var result types.Device
	err := transaction.WithContext(ctx).
		Where("id = ?", deviceID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (dr *deviceRepo) GetByIdentifier(ctx context.Context, tx *gorm.DB, identifier string) (*types.Device, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var result types.Device
	err := transaction.WithContext(ctx).
		Where("identifier = ?", identifier).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (dr *deviceRepo) List(ctx context.Context, tx *gorm.DB, activeOnly bool) ([]*types.Device, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	q := transaction.WithContext(ctx).Model(&types.Device{})
	if activeOnly {
		q = q.Where("active = TRUE")
	}
	var results []*types.Device
	if err := q.Order("created_at ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (dr *deviceRepo) SetActive(ctx context.Context, tx *gorm.DB, deviceID uuid.UUID, active bool) error {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Device{}).
		Where("id = ?", deviceID).
		Update("active", active).Error
}
