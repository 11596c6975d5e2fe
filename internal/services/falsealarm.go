package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/urbanwatch/urbanwatch-backend/internal/clients/gemini"
	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
	"github.com/urbanwatch/urbanwatch-backend/internal/realtime"
)

type FalseAlarmService interface {
	Record(ctx context.Context, deviceID *uuid.UUID, verdict *gemini.Verdict, detectedObjects []string, detectedAt time.Time) (*types.FalseAlarm, error)
	List(ctx context.Context, since time.Time, limit, offset int) ([]*types.FalseAlarm, error)
}

type falseAlarmService struct {
	log       *logger.Logger
	alarms    repos.FalseAlarmRepo
	broadcast Broadcaster
}

func NewFalseAlarmService(log *logger.Logger, alarms repos.FalseAlarmRepo, broadcast Broadcaster) FalseAlarmService {
	return &falseAlarmService{
		log:       log.With("service", "FalseAlarmService"),
		alarms:    alarms,
		broadcast: broadcast,
	}
}

// Record persists the rejected detection and announces it. No media is ever
// written for a rejected detection; the snapshot dies with the request.
func (fs *falseAlarmService) Record(ctx context.Context, deviceID *uuid.UUID, verdict *gemini.Verdict, detectedObjects []string, detectedAt time.Time) (*types.FalseAlarm, error) {
	objects, _ := json.Marshal(detectedObjects)

	alarm := &types.FalseAlarm{
		DeviceID:        deviceID,
		Category:        verdict.Category,
		Confidence:      verdict.Confidence,
		Reasoning:       verdict.Reasoning,
		DetectedObjects: objects,
		DetectedAt:      detectedAt,
	}
	created, err := fs.alarms.Create(ctx, nil, []*types.FalseAlarm{alarm})
	if err != nil {
		return nil, err
	}
	alarm = created[0]

	fs.broadcast.Publish(ctx, realtime.ChannelFalseAlarms, realtime.SSEEventFalseAlarmDetected, alarm)
	return alarm, nil
}

func (fs *falseAlarmService) List(ctx context.Context, since time.Time, limit, offset int) ([]*types.FalseAlarm, error) {
	return fs.alarms.List(ctx, nil, since, limit, offset)
}
