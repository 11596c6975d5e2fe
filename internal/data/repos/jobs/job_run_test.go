package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos/testutil"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
)

func TestJobRunLifecycle(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewJobRunRepo(db, testutil.Logger(t))

	created, err := repo.Create(ctx, tx, []*types.JobRun{{
		JobType: types.JobProcessManualConcern,
		Status:  types.JobStatusQueued,
		Payload: []byte(`{"concern_id":"x"}`),
	}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	job := created[0]

	if err := repo.MarkRunning(ctx, tx, job.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	got, err := repo.GetByID(ctx, tx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.JobStatusRunning || got.Attempts != 1 {
		t.Fatalf("after MarkRunning: status=%s attempts=%d", got.Status, got.Attempts)
	}

	if err := repo.MarkSucceeded(ctx, tx, job.ID, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("MarkSucceeded: %v", err)
	}
	got, err = repo.GetByID(ctx, tx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.JobStatusSucceeded {
		t.Fatalf("after MarkSucceeded: status=%s", got.Status)
	}
}

func TestJobRunFailureLog(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewJobRunRepo(db, testutil.Logger(t))

	created, err := repo.Create(ctx, tx, []*types.JobRun{
		{JobType: types.JobNotifySMS, Status: types.JobStatusQueued, Payload: []byte(`{}`)},
		{JobType: types.JobNotifyEmail, Status: types.JobStatusQueued, Payload: []byte(`{}`)},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	transient, terminal := created[0], created[1]

	// A transient failure keeps the run queued for its next retry.
	if err := repo.RecordFailure(ctx, tx, transient.ID, "sms gateway timeout", false); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	got, err := repo.GetByID(ctx, tx, transient.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.JobStatusQueued || got.Error != "sms gateway timeout" || got.LastErrorAt == nil {
		t.Fatalf("transient failure: %+v", got)
	}

	if err := repo.RecordFailure(ctx, tx, terminal.ID, "recipient rejected", true); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	failed, err := repo.ListFailed(ctx, tx, time.Time{}, 10, 0)
	if err != nil {
		t.Fatalf("ListFailed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != terminal.ID {
		t.Fatalf("ListFailed returned %d rows", len(failed))
	}

	// The since cutoff filters out old failures.
	failed, err = repo.ListFailed(ctx, tx, time.Now().Add(time.Hour), 10, 0)
	if err != nil {
		t.Fatalf("ListFailed: %v", err)
	}
	if len(failed) != 0 {
		t.Fatalf("future cutoff returned %d rows", len(failed))
	}
}
