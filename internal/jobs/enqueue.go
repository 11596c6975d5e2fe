package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
	"github.com/urbanwatch/urbanwatch-backend/internal/temporalx"
	"github.com/urbanwatch/urbanwatch-backend/internal/temporalx/jobrun"

	temporalsdkclient "go.temporal.io/sdk/client"
)

type EnqueueRequest struct {
	JobType    string
	EntityType string
	EntityID   *uuid.UUID
	Payload    any

	// Unique skips the enqueue when a queued or running job of the same
	// type already exists for the entity.
	Unique bool
}

type Enqueuer interface {
	Enqueue(ctx context.Context, tx *gorm.DB, req EnqueueRequest) (*types.JobRun, error)
}

type temporalEnqueuer struct {
	log  *logger.Logger
	jobs repos.JobRunRepo
	tc   temporalsdkclient.Client
}

// NewEnqueuer persists job_run rows and schedules their workflows. A nil
// Temporal client is tolerated: rows still land in the queue so a worker can
// be attached later, they just are not scheduled immediately.
func NewEnqueuer(log *logger.Logger, jobRepo repos.JobRunRepo, tc temporalsdkclient.Client) Enqueuer {
	return &temporalEnqueuer{
		log:  log.With("service", "JobEnqueuer"),
		jobs: jobRepo,
		tc:   tc,
	}
}

func (e *temporalEnqueuer) Enqueue(ctx context.Context, tx *gorm.DB, req EnqueueRequest) (*types.JobRun, error) {
	jobType := strings.TrimSpace(req.JobType)
	if jobType == "" {
		return nil, fmt.Errorf("enqueue: empty job type")
	}

	if req.Unique {
		exists, err := e.jobs.ExistsRunnable(ctx, tx, jobType, req.EntityType, req.EntityID)
		if err != nil {
			return nil, err
		}
		if exists {
			e.log.Debug("Skipping duplicate job", "job_type", jobType, "entity_type", req.EntityType)
			return nil, nil
		}
	}

	var raw []byte
	if req.Payload != nil {
		var err error
		raw, err = json.Marshal(req.Payload)
		if err != nil {
			return nil, fmt.Errorf("enqueue: marshal payload: %w", err)
		}
	}

	job := &types.JobRun{
		ID:         uuid.New(),
		JobType:    jobType,
		EntityType: strings.TrimSpace(req.EntityType),
		EntityID:   req.EntityID,
		Status:     types.JobStatusQueued,
		Payload:    raw,
	}
	created, err := e.jobs.Create(ctx, tx, []*types.JobRun{job})
	if err != nil {
		return nil, err
	}
	job = created[0]

	if e.tc == nil {
		e.log.Warn("Temporal disabled; job queued but not scheduled", "job_id", job.ID, "job_type", jobType)
		return job, nil
	}

	cfg := temporalx.LoadConfig()
	_, err = e.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        job.ID.String(),
		TaskQueue: cfg.TaskQueue,
	}, jobrun.WorkflowName)
	if err != nil {
		// The row stays queued; an operator can re-drive it once Temporal
		// recovers.
		e.log.Error("Failed to start job workflow", "job_id", job.ID, "job_type", jobType, "error", err)
		return job, fmt.Errorf("enqueue: start workflow: %w", err)
	}

	e.log.Info("Job enqueued", "job_id", job.ID, "job_type", jobType, "entity_type", job.EntityType)
	return job, nil
}
