package incident

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos/testutil"
	pkgerrors "github.com/urbanwatch/urbanwatch-backend/internal/pkg/errors"
)

func TestDistributionCreateSecondActiveRejected(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewDistributionRepo(db, testutil.Logger(t))

	citizen := testutil.SeedUser(t, tx, types.RoleCitizen)
	leader := testutil.SeedUser(t, tx, types.RolePurokLeader)
	other := testutil.SeedUser(t, tx, types.RolePurokLeader)
	concern := testutil.SeedConcern(t, tx, citizen.ID, types.ConcernStatusPending)

	first, err := repo.Create(ctx, tx, &types.ConcernDistribution{
		ConcernID:  concern.ID,
		OfficialID: leader.ID,
		Status:     types.DistributionStatusAssigned,
		AssignedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if first.ID == uuid.Nil {
		t.Fatal("first distribution has no id")
	}

	// The partial unique index makes the second insert fail; no pre-check
	// races are possible.
	_, err = repo.Create(ctx, tx, &types.ConcernDistribution{
		ConcernID:  concern.ID,
		OfficialID: other.ID,
		Status:     types.DistributionStatusAssigned,
		AssignedAt: time.Now(),
	})
	if !errors.Is(err, pkgerrors.ErrAlreadyAssigned) {
		t.Fatalf("second Create: got %v, want ErrAlreadyAssigned", err)
	}
}

func TestDistributionReassignAfterResolve(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewDistributionRepo(db, testutil.Logger(t))

	citizen := testutil.SeedUser(t, tx, types.RoleCitizen)
	leader := testutil.SeedUser(t, tx, types.RolePurokLeader)
	concern := testutil.SeedConcern(t, tx, citizen.ID, types.ConcernStatusPending)

	resolvedAt := time.Now()
	_, err := repo.Create(ctx, tx, &types.ConcernDistribution{
		ConcernID:  concern.ID,
		OfficialID: leader.ID,
		Status:     types.DistributionStatusResolved,
		AssignedAt: time.Now(),
		ResolvedAt: &resolvedAt,
	})
	if err != nil {
		t.Fatalf("resolved Create: %v", err)
	}

	// A resolved distribution does not block a new assignment.
	if _, err := repo.Create(ctx, tx, &types.ConcernDistribution{
		ConcernID:  concern.ID,
		OfficialID: leader.ID,
		Status:     types.DistributionStatusAssigned,
		AssignedAt: time.Now(),
	}); err != nil {
		t.Fatalf("Create after resolve: %v", err)
	}
}

func TestDistributionUpdateStatusGuards(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewDistributionRepo(db, testutil.Logger(t))

	citizen := testutil.SeedUser(t, tx, types.RoleCitizen)
	leader := testutil.SeedUser(t, tx, types.RolePurokLeader)
	concern := testutil.SeedConcern(t, tx, citizen.ID, types.ConcernStatusOngoing)

	dist, err := repo.Create(ctx, tx, &types.ConcernDistribution{
		ConcernID:  concern.ID,
		OfficialID: leader.ID,
		Status:     types.DistributionStatusAssigned,
		AssignedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A guard listing the wrong current status matches nothing.
	ok, err := repo.UpdateStatus(ctx, tx, dist.ID, []string{types.DistributionStatusInProgress}, types.DistributionStatusResolved, nil)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if ok {
		t.Fatal("transition from a wrong status should not apply")
	}

	ok, err = repo.UpdateStatus(ctx, tx, dist.ID, []string{types.DistributionStatusAssigned}, types.DistributionStatusAcknowledged, nil)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if !ok {
		t.Fatal("assigned -> acknowledged should apply")
	}

	resolvedAt := time.Now()
	ok, err = repo.UpdateStatus(ctx, tx, dist.ID,
		[]string{types.DistributionStatusAcknowledged, types.DistributionStatusInProgress},
		types.DistributionStatusResolved, &resolvedAt)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if !ok {
		t.Fatal("acknowledged -> resolved should apply")
	}

	got, err := repo.GetByID(ctx, tx, dist.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.DistributionStatusResolved || got.ResolvedAt == nil {
		t.Fatalf("distribution after resolve: %+v", got)
	}
}

func TestDistributionGetActiveByConcern(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewDistributionRepo(db, testutil.Logger(t))

	citizen := testutil.SeedUser(t, tx, types.RoleCitizen)
	leader := testutil.SeedUser(t, tx, types.RolePurokLeader)
	concern := testutil.SeedConcern(t, tx, citizen.ID, types.ConcernStatusOngoing)

	active, err := repo.GetActiveByConcern(ctx, tx, concern.ID)
	if err != nil {
		t.Fatalf("GetActiveByConcern: %v", err)
	}
	if active != nil {
		t.Fatalf("expected no active distribution, got %+v", active)
	}

	dist, err := repo.Create(ctx, tx, &types.ConcernDistribution{
		ConcernID:  concern.ID,
		OfficialID: leader.ID,
		Status:     types.DistributionStatusAssigned,
		AssignedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	active, err = repo.GetActiveByConcern(ctx, tx, concern.ID)
	if err != nil {
		t.Fatalf("GetActiveByConcern: %v", err)
	}
	if active == nil || active.ID != dist.ID {
		t.Fatalf("active = %+v, want %s", active, dist.ID)
	}

	list, err := repo.ListByOfficial(ctx, tx, leader.ID, true)
	if err != nil {
		t.Fatalf("ListByOfficial: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListByOfficial returned %d rows", len(list))
	}
}
