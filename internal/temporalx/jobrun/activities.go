package jobrun

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
	jobrt "github.com/urbanwatch/urbanwatch-backend/internal/jobs/runtime"
	pkgerrors "github.com/urbanwatch/urbanwatch-backend/internal/pkg/errors"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"

	"go.temporal.io/sdk/activity"
)

type Activities struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Jobs     repos.JobRunRepo
	Registry *jobrt.Registry

	// RetryWait paces re-queued attempts; the workflow sleeps this long
	// before the next tick.
	RetryWait time.Duration
}

// Tick runs one attempt of the job and reports where the run landed. A tick
// never returns an error for a handler failure; that state travels through
// TickResult so the workflow decides between retrying and giving up.
func (a *Activities) Tick(ctx context.Context, jobID string) (TickResult, error) {
	res := TickResult{JobID: strings.TrimSpace(jobID), RetryAfter: a.RetryWait}
	if a == nil || a.Jobs == nil || a.Registry == nil {
		return res, fmt.Errorf("jobrun: activity not configured")
	}

	parsedJobID, err := uuid.Parse(res.JobID)
	if err != nil || parsedJobID == uuid.Nil {
		return res, fmt.Errorf("jobrun: invalid job_id")
	}

	job, err := a.Jobs.GetByID(ctx, nil, parsedJobID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return res, fmt.Errorf("jobrun: job not found")
	}
	if err != nil {
		return res, err
	}

	status := strings.ToLower(strings.TrimSpace(job.Status))
	if status == types.JobStatusSucceeded || status == types.JobStatusFailed {
		res.Status = job.Status
		res.Attempts = job.Attempts
		res.Message = job.Error
		return res, nil
	}

	stopHB := startHeartbeat(ctx)
	defer stopHB()

	if err := a.Jobs.MarkRunning(ctx, nil, parsedJobID); err != nil {
		return res, err
	}
	job.Attempts++
	res.Attempts = job.Attempts

	result, runErr := a.runHandler(ctx, job)
	if runErr == nil {
		if err := a.Jobs.MarkSucceeded(ctx, nil, parsedJobID, result); err != nil {
			return res, err
		}
		res.Status = types.JobStatusSucceeded
		return res, nil
	}

	terminal := jobrt.IsPermanent(runErr) || job.Attempts >= types.JobMaxAttempts
	if err := a.Jobs.RecordFailure(ctx, nil, parsedJobID, runErr.Error(), terminal); err != nil {
		return res, err
	}
	if terminal {
		if a.Log != nil {
			a.Log.Error("Job failed terminally", "job_id", parsedJobID, "job_type", job.JobType, "attempts", job.Attempts, "error", runErr)
		}
		res.Status = types.JobStatusFailed
	} else {
		if a.Log != nil {
			a.Log.Warn("Job attempt failed; re-queued", "job_id", parsedJobID, "job_type", job.JobType, "attempt", job.Attempts, "error", runErr)
		}
		res.Status = types.JobStatusQueued
	}
	res.Message = runErr.Error()
	return res, nil
}

func (a *Activities) runHandler(ctx context.Context, job *types.JobRun) (result []byte, runErr error) {
	h, ok := a.Registry.Get(job.JobType)
	if !ok {
		return nil, jobrt.Permanent(fmt.Errorf("no handler registered for job_type=%s", job.JobType))
	}
	defer func() {
		if r := recover(); r != nil {
			if a.Log != nil {
				a.Log.Error("Job handler panic", "job_id", job.ID, "job_type", job.JobType, "panic", r)
			}
			runErr = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Run(ctx, job)
}

func startHeartbeat(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		hb := time.NewTicker(10 * time.Second)
		defer hb.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-hb.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
