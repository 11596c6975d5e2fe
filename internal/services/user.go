package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	pkgerrors "github.com/urbanwatch/urbanwatch-backend/internal/pkg/errors"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/apierr"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
)

type UpdateProfileInput struct {
	FirstName string
	LastName  string
	Phone     string
	Purok     string
}

type UserService interface {
	Get(ctx context.Context, userID uuid.UUID) (*types.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, in UpdateProfileInput) (*types.User, error)
	UpdateAvatarColor(ctx context.Context, userID uuid.UUID, colorHex string) (*types.User, error)
	// UploadAvatarImage replaces the generated avatar with a photo.
	UploadAvatarImage(ctx context.Context, userID uuid.UUID, raw []byte) (*types.User, error)
}

type userService struct {
	db       *gorm.DB
	log      *logger.Logger
	userRepo repos.UserRepo
	avatars  AvatarService
}

func NewUserService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, avatars AvatarService) UserService {
	return &userService{
		db:       db,
		log:      log.With("service", "UserService"),
		userRepo: userRepo,
		avatars:  avatars,
	}
}

func (us *userService) Get(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	user, err := us.userRepo.GetByID(ctx, nil, userID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, apierr.NotFound("User not found.")
	}
	return user, err
}

func (us *userService) UpdateProfile(ctx context.Context, userID uuid.UUID, in UpdateProfileInput) (*types.User, error) {
	user, err := us.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	firstName := strings.TrimSpace(in.FirstName)
	lastName := strings.TrimSpace(in.LastName)
	if firstName == "" || lastName == "" {
		return nil, apierr.Validation(errors.New("first and last name are required"))
	}
	phone := strings.TrimSpace(in.Phone)

	err = us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := us.userRepo.UpdateProfile(ctx, tx, userID, firstName, lastName, phone, strings.TrimSpace(in.Purok)); err != nil {
			return err
		}
		// A changed number must be re-verified before SMS goes to it again.
		if phone != user.Phone && user.PhoneVerifiedAt != nil {
			return tx.Model(&types.User{}).
				Where("id = ?", userID).
				Update("phone_verified_at", nil).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return us.Get(ctx, userID)
}

func (us *userService) UpdateAvatarColor(ctx context.Context, userID uuid.UUID, colorHex string) (*types.User, error) {
	user, err := us.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	n := normalizeHex(colorHex)
	if n == "" {
		return nil, apierr.Validation(errors.New("invalid avatar color"))
	}
	user.AvatarColor = n
	if us.avatars != nil {
		// Regenerate so the stored PNG matches the stored color.
		if err := us.avatars.CreateAndUploadUserAvatar(ctx, user); err != nil {
			return nil, err
		}
		if err := us.userRepo.UpdateAvatarFields(ctx, nil, userID, user.AvatarBucketKey, user.AvatarURL); err != nil {
			return nil, err
		}
	}
	if err := us.userRepo.UpdateAvatarColor(ctx, nil, userID, n); err != nil {
		return nil, err
	}
	return us.Get(ctx, userID)
}

func (us *userService) UploadAvatarImage(ctx context.Context, userID uuid.UUID, raw []byte) (*types.User, error) {
	if len(raw) == 0 {
		return nil, apierr.Validation(errors.New("avatar image is required"))
	}
	if us.avatars == nil {
		return nil, apierr.Upstream(errors.New("avatar storage not configured"))
	}
	user, err := us.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := us.avatars.UpdateUserAvatarFromImage(ctx, nil, user, raw); err != nil {
		return nil, err
	}
	return us.Get(ctx, userID)
}
