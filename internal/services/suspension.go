package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"github.com/urbanwatch/urbanwatch-backend/internal/domain/user"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/apierr"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
)

type PunishInput struct {
	Type      string
	Reason    string
	Days      int
	Permanent bool
}

type SuspensionService interface {
	Punish(ctx context.Context, issuedBy, userID uuid.UUID, in PunishInput) (*types.UserSuspension, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*types.UserSuspension, error)
	AvailablePunishments(ctx context.Context, userID uuid.UUID) ([]string, error)
	Lift(ctx context.Context, suspensionID uuid.UUID) error

	// GateWrite blocks concern create/update/delete for suspended citizens.
	GateWrite(ctx context.Context, userID uuid.UUID) error
}

type suspensionService struct {
	db          *gorm.DB
	log         *logger.Logger
	suspensions repos.UserSuspensionRepo
	users       repos.UserRepo
}

func NewSuspensionService(db *gorm.DB, log *logger.Logger, suspensions repos.UserSuspensionRepo, users repos.UserRepo) SuspensionService {
	return &suspensionService{
		db:          db,
		log:         log.With("service", "SuspensionService"),
		suspensions: suspensions,
		users:       users,
	}
}

func (ss *suspensionService) Punish(ctx context.Context, issuedBy, userID uuid.UUID, in PunishInput) (*types.UserSuspension, error) {
	in.Type = strings.TrimSpace(strings.ToLower(in.Type))
	if strings.TrimSpace(in.Reason) == "" {
		return nil, apierr.Validation(fmt.Errorf("reason is required"))
	}

	if _, err := ss.users.GetByID(ctx, nil, userID); err != nil {
		return nil, apierr.NotFound("User not found.")
	}

	now := time.Now()
	history, err := ss.suspensions.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	allowed := user.NextPunishments(history, now)
	if len(allowed) == 0 {
		return nil, apierr.DomainState("User is permanently suspended; no further punishment can be issued.")
	}
	if !contains(allowed, in.Type) {
		return nil, apierr.DomainState(fmt.Sprintf(
			"Punishment %q is not allowed; the next step for this user is %q.", in.Type, allowed[0],
		))
	}

	s := &types.UserSuspension{
		UserID:     userID,
		IssuedByID: issuedBy,
		Type:       in.Type,
		Reason:     in.Reason,
		StartsAt:   now,
		Permanent:  in.Type == user.PunishmentSuspension && in.Permanent,
	}
	if !s.Permanent {
		days := in.Days
		if days <= 0 {
			days = defaultPunishmentDays(in.Type)
		}
		exp := now.AddDate(0, 0, days)
		s.ExpiresAt = &exp
	}

	created, err := ss.suspensions.Create(ctx, nil, s)
	if err != nil {
		return nil, err
	}
	ss.log.Info("Punishment issued", "user_id", userID, "type", in.Type, "permanent", s.Permanent)
	return created, nil
}

func (ss *suspensionService) ListByUser(ctx context.Context, userID uuid.UUID) ([]*types.UserSuspension, error) {
	return ss.suspensions.ListByUser(ctx, nil, userID)
}

func (ss *suspensionService) AvailablePunishments(ctx context.Context, userID uuid.UUID) ([]string, error) {
	history, err := ss.suspensions.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	out := user.NextPunishments(history, time.Now())
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func (ss *suspensionService) Lift(ctx context.Context, suspensionID uuid.UUID) error {
	return ss.suspensions.Lift(ctx, nil, suspensionID, time.Now())
}

func (ss *suspensionService) GateWrite(ctx context.Context, userID uuid.UUID) error {
	active, err := ss.suspensions.GetActive(ctx, nil, userID, time.Now())
	if err != nil {
		return err
	}
	if active == nil {
		return nil
	}
	return apierr.Forbidden(suspensionMessage(active))
}

// suspensionMessage embeds the punishment type and expiry in plain language.
func suspensionMessage(s *types.UserSuspension) string {
	label := strings.ReplaceAll(s.Type, "_", " ")
	if s.Permanent {
		return fmt.Sprintf("Your account is permanently suspended (%s). You cannot submit or modify concerns.", label)
	}
	if s.ExpiresAt != nil {
		return fmt.Sprintf(
			"Your account is suspended (%s) until %s. You cannot submit or modify concerns.",
			label, s.ExpiresAt.Format("January 2, 2006"),
		)
	}
	return fmt.Sprintf("Your account is suspended (%s). You cannot submit or modify concerns.", label)
}

func defaultPunishmentDays(t string) int {
	switch t {
	case user.PunishmentWarning1:
		return 3
	case user.PunishmentWarning2:
		return 7
	default:
		return 30
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
