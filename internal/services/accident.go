package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"github.com/urbanwatch/urbanwatch-backend/internal/domain/incident"
	pkgerrors "github.com/urbanwatch/urbanwatch-backend/internal/pkg/errors"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/apierr"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
	"github.com/urbanwatch/urbanwatch-backend/internal/realtime"
)

type AccidentWithMedia struct {
	*types.Accident
	Media []*types.IncidentMedia `json:"media"`
}

type AccidentService interface {
	List(ctx context.Context, filter repos.AccidentFilter) ([]*types.Accident, error)
	ListActive(ctx context.Context) ([]*types.Accident, error)
	Get(ctx context.Context, accidentID uuid.UUID) (*AccidentWithMedia, error)
	UpdateStatus(ctx context.Context, accidentID uuid.UUID, toStatus string) (*types.Accident, error)
}

type accidentService struct {
	log       *logger.Logger
	accidents repos.AccidentRepo
	media     repos.IncidentMediaRepo
	broadcast Broadcaster
}

func NewAccidentService(log *logger.Logger, accidents repos.AccidentRepo, media repos.IncidentMediaRepo, broadcast Broadcaster) AccidentService {
	return &accidentService{
		log:       log.With("service", "AccidentService"),
		accidents: accidents,
		media:     media,
		broadcast: broadcast,
	}
}

func (as *accidentService) List(ctx context.Context, filter repos.AccidentFilter) ([]*types.Accident, error) {
	return as.accidents.List(ctx, nil, filter)
}

func (as *accidentService) ListActive(ctx context.Context) ([]*types.Accident, error) {
	return as.accidents.ListActive(ctx, nil)
}

func (as *accidentService) Get(ctx context.Context, accidentID uuid.UUID) (*AccidentWithMedia, error) {
	accident, err := as.accidents.GetByID(ctx, nil, accidentID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, apierr.NotFound("Accident not found.")
	}
	if err != nil {
		return nil, err
	}
	media, err := as.media.ListBySource(ctx, nil, types.SourceAccident, accident.ID)
	if err != nil {
		return nil, err
	}
	return &AccidentWithMedia{Accident: accident, Media: media}, nil
}

func (as *accidentService) UpdateStatus(ctx context.Context, accidentID uuid.UUID, toStatus string) (*types.Accident, error) {
	accident, err := as.accidents.GetByID(ctx, nil, accidentID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, apierr.NotFound("Accident not found.")
	}
	if err != nil {
		return nil, err
	}

	toStatus = strings.TrimSpace(strings.ToLower(toStatus))
	if !incident.AccidentCanTransition(accident.Status, toStatus) {
		return nil, apierr.DomainState(fmt.Sprintf(
			"An accident cannot move from %s to %s.", accident.Status, toStatus,
		))
	}

	var ok bool
	switch toStatus {
	case types.AccidentStatusArchived:
		ok, err = as.accidents.Archive(ctx, nil, accident.ID)
	case types.AccidentStatusResolved:
		now := time.Now()
		accident.ResolvedAt = &now
		ok, err = as.accidents.UpdateStatus(ctx, nil, accident.ID, []string{accident.Status}, toStatus, &now)
	default:
		ok, err = as.accidents.UpdateStatus(ctx, nil, accident.ID, []string{accident.Status}, toStatus, nil)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierr.DomainState("The accident changed while you were updating it; reload and retry.")
	}
	accident.Status = toStatus

	as.broadcast.Publish(ctx, realtime.ChannelAccidents, realtime.SSEEventAccidentStatusUpdated, map[string]any{
		"accident_id": accident.ID,
		"status":      toStatus,
	})
	as.broadcast.Publish(ctx, realtime.ChannelActiveAccidents, realtime.SSEEventAccidentStatusUpdated, map[string]any{
		"accident_id": accident.ID,
		"status":      toStatus,
	})
	return accident, nil
}
