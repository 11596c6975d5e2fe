package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"github.com/urbanwatch/urbanwatch-backend/internal/domain/incident"
	"github.com/urbanwatch/urbanwatch-backend/internal/jobs"
	pkgerrors "github.com/urbanwatch/urbanwatch-backend/internal/pkg/errors"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/apierr"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
	"github.com/urbanwatch/urbanwatch-backend/internal/realtime"
)

type DistributionService interface {
	// Assign hands the concern to the given official, or to the purok's
	// leader when officialID is nil.
	Assign(ctx context.Context, concernID uuid.UUID, officialID *uuid.UUID) (*types.ConcernDistribution, error)
	Advance(ctx context.Context, actor *types.User, distributionID uuid.UUID, toStatus string) (*types.ConcernDistribution, error)
	ListByOfficial(ctx context.Context, officialID uuid.UUID, activeOnly bool) ([]*types.ConcernDistribution, error)
	ListByConcern(ctx context.Context, concernID uuid.UUID) ([]*types.ConcernDistribution, error)
}

type distributionService struct {
	db            *gorm.DB
	log           *logger.Logger
	distributions repos.DistributionRepo
	concerns      repos.ConcernRepo
	users         repos.UserRepo
	enqueuer      jobs.Enqueuer
	broadcast     Broadcaster
}

func NewDistributionService(
	db *gorm.DB,
	log *logger.Logger,
	distributions repos.DistributionRepo,
	concerns repos.ConcernRepo,
	users repos.UserRepo,
	enqueuer jobs.Enqueuer,
	broadcast Broadcaster,
) DistributionService {
	return &distributionService{
		db:            db,
		log:           log.With("service", "DistributionService"),
		distributions: distributions,
		concerns:      concerns,
		users:         users,
		enqueuer:      enqueuer,
		broadcast:     broadcast,
	}
}

func (ds *distributionService) Assign(ctx context.Context, concernID uuid.UUID, officialID *uuid.UUID) (*types.ConcernDistribution, error) {
	concern, err := ds.concerns.GetByID(ctx, nil, concernID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, apierr.NotFound(concernNotFoundMsg)
	}
	if err != nil {
		return nil, err
	}
	if concern.Status == types.ConcernStatusResolved {
		return nil, apierr.DomainState("A resolved concern cannot be assigned.")
	}

	official, err := ds.resolveOfficial(ctx, concern, officialID)
	if err != nil {
		return nil, err
	}

	dist := &types.ConcernDistribution{
		ConcernID:  concern.ID,
		OfficialID: official.ID,
		Status:     types.DistributionStatusAssigned,
		AssignedAt: time.Now(),
	}
	// The partial unique index is the arbiter: a concurrent second assign
	// loses at insert time, no pre-check involved.
	created, err := ds.distributions.Create(ctx, nil, dist)
	if errors.Is(err, pkgerrors.ErrAlreadyAssigned) {
		return nil, apierr.DomainState("This concern already has an active assignment.")
	}
	if err != nil {
		return nil, err
	}
	dist = created

	// Pending concerns move to ongoing on first assignment; losing this
	// guarded update just means another path already advanced it.
	if concern.Status == types.ConcernStatusPending {
		if _, err := ds.concerns.UpdateStatus(ctx, nil, concern.ID,
			[]string{types.ConcernStatusPending}, types.ConcernStatusOngoing); err != nil {
			return nil, err
		}
	}

	ds.broadcast.Publish(ctx, realtime.ChannelPurokLeader(official.ID), realtime.SSEEventConcernAssigned, dist)
	ds.broadcast.Publish(ctx, realtime.ChannelCitizen(concern.UserID), realtime.SSEEventConcernAssigned, map[string]any{
		"concern_id":  concern.ID,
		"assigned_at": dist.AssignedAt,
	})

	id := dist.ID
	if _, err := ds.enqueuer.Enqueue(ctx, nil, jobs.EnqueueRequest{
		JobType:    types.JobNotifyAssignment,
		EntityType: "distribution",
		EntityID:   &id,
		Payload:    jobs.NotifyAssignmentPayload{DistributionID: dist.ID},
	}); err != nil {
		ds.log.Error("Failed to enqueue assignment notification", "distribution_id", dist.ID, "error", err)
	}

	return dist, nil
}

func (ds *distributionService) Advance(ctx context.Context, actor *types.User, distributionID uuid.UUID, toStatus string) (*types.ConcernDistribution, error) {
	dist, err := ds.distributions.GetByID(ctx, nil, distributionID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, apierr.NotFound("Assignment not found.")
	}
	if err != nil {
		return nil, err
	}
	if actor != nil && actor.Role == types.RolePurokLeader && actor.ID != dist.OfficialID {
		// Same shape as a missing record so leaders cannot probe each
		// other's assignments.
		return nil, apierr.NotFound("Assignment not found.")
	}

	toStatus = strings.TrimSpace(strings.ToLower(toStatus))
	if !incident.DistributionCanTransition(dist.Status, toStatus) {
		return nil, apierr.DomainState(fmt.Sprintf(
			"An assignment cannot move from %s to %s.", dist.Status, toStatus,
		))
	}

	var resolvedAt *time.Time
	if toStatus == types.DistributionStatusResolved {
		now := time.Now()
		resolvedAt = &now
	}
	ok, err := ds.distributions.UpdateStatus(ctx, nil, dist.ID, []string{dist.Status}, toStatus, resolvedAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierr.DomainState("The assignment changed while you were updating it; reload and retry.")
	}
	dist.Status = toStatus
	dist.ResolvedAt = resolvedAt

	concern, err := ds.concerns.GetByID(ctx, nil, dist.ConcernID)
	if err == nil {
		if toStatus == types.DistributionStatusResolved {
			if _, err := ds.concerns.UpdateStatus(ctx, nil, concern.ID,
				[]string{types.ConcernStatusOngoing, types.ConcernStatusEscalated},
				types.ConcernStatusResolved); err != nil {
				ds.log.Warn("Failed to resolve concern with its assignment", "concern_id", concern.ID, "error", err)
			} else {
				ds.broadcast.Publish(ctx, realtime.ChannelCitizen(concern.UserID), realtime.SSEEventConcernStatusUpdated, map[string]any{
					"concern_id": concern.ID,
					"status":     types.ConcernStatusResolved,
				})
			}
		}
		ds.broadcast.Publish(ctx, realtime.ChannelCitizen(concern.UserID), realtime.SSEEventConcernStatusUpdated, map[string]any{
			"concern_id":        concern.ID,
			"assignment_status": toStatus,
		})
	}

	return dist, nil
}

func (ds *distributionService) ListByOfficial(ctx context.Context, officialID uuid.UUID, activeOnly bool) ([]*types.ConcernDistribution, error) {
	return ds.distributions.ListByOfficial(ctx, nil, officialID, activeOnly)
}

func (ds *distributionService) ListByConcern(ctx context.Context, concernID uuid.UUID) ([]*types.ConcernDistribution, error) {
	return ds.distributions.ListByConcern(ctx, nil, concernID)
}

// resolveOfficial picks the explicit official when given, otherwise looks up
// the leader for the reporter's purok, otherwise the earliest-registered
// leader. Never a hardcoded id.
func (ds *distributionService) resolveOfficial(ctx context.Context, concern *types.Concern, officialID *uuid.UUID) (*types.User, error) {
	if officialID != nil && *officialID != uuid.Nil {
		official, err := ds.users.GetByID(ctx, nil, *officialID)
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, apierr.NotFound("Official not found.")
		}
		if err != nil {
			return nil, err
		}
		if official.Role != types.RolePurokLeader && official.Role != types.RoleOperator {
			return nil, apierr.Validation(fmt.Errorf("user %s cannot receive assignments", official.ID))
		}
		return official, nil
	}

	reporter, err := ds.users.GetByID(ctx, nil, concern.UserID)
	if err == nil && strings.TrimSpace(reporter.Purok) != "" {
		leaders, err := ds.users.ListByRoleAndPurok(ctx, nil, types.RolePurokLeader, reporter.Purok)
		if err == nil && len(leaders) > 0 {
			return leaders[0], nil
		}
	}

	leader, err := ds.users.FirstByRole(ctx, nil, types.RolePurokLeader)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, apierr.DomainState("No purok leader is available to receive this assignment.")
	}
	if err != nil {
		return nil, err
	}
	return leader, nil
}
