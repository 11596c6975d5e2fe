package incident

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos/testutil"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	pkgerrors "github.com/urbanwatch/urbanwatch-backend/internal/pkg/errors"
)

func TestConcernGetByIDForUser(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewConcernRepo(db, testutil.Logger(t))

	owner := testutil.SeedUser(t, tx, types.RoleCitizen)
	stranger := testutil.SeedUser(t, tx, types.RoleCitizen)
	concern := testutil.SeedConcern(t, tx, owner.ID, types.ConcernStatusPending)

	got, err := repo.GetByIDForUser(ctx, tx, concern.ID, owner.ID)
	if err != nil {
		t.Fatalf("GetByIDForUser: %v", err)
	}
	if got.ID != concern.ID {
		t.Fatalf("got %s, want %s", got.ID, concern.ID)
	}

	// Another citizen's lookup behaves exactly like a missing record.
	if _, err := repo.GetByIDForUser(ctx, tx, concern.ID, stranger.ID); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("cross-user lookup: got %v, want ErrNotFound", err)
	}
	if _, err := repo.GetByIDForUser(ctx, tx, uuid.New(), owner.ID); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("missing lookup: got %v, want ErrNotFound", err)
	}
}

func TestConcernUpdateStatusGuard(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewConcernRepo(db, testutil.Logger(t))

	owner := testutil.SeedUser(t, tx, types.RoleCitizen)
	concern := testutil.SeedConcern(t, tx, owner.ID, types.ConcernStatusPending)

	ok, err := repo.UpdateStatus(ctx, tx, concern.ID, []string{types.ConcernStatusOngoing}, types.ConcernStatusResolved)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if ok {
		t.Fatal("pending -> resolved should not apply")
	}

	ok, err = repo.UpdateStatus(ctx, tx, concern.ID, []string{types.ConcernStatusPending}, types.ConcernStatusOngoing)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if !ok {
		t.Fatal("pending -> ongoing should apply")
	}

	got, err := repo.GetByID(ctx, tx, concern.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.ConcernStatusOngoing {
		t.Fatalf("status = %q", got.Status)
	}
}

func TestConcernListByUserFilters(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewConcernRepo(db, testutil.Logger(t))

	owner := testutil.SeedUser(t, tx, types.RoleCitizen)
	other := testutil.SeedUser(t, tx, types.RoleCitizen)
	testutil.SeedConcern(t, tx, owner.ID, types.ConcernStatusPending)
	testutil.SeedConcern(t, tx, owner.ID, types.ConcernStatusResolved)
	testutil.SeedConcern(t, tx, other.ID, types.ConcernStatusPending)

	all, err := repo.ListByUser(ctx, tx, owner.ID, ConcernFilter{})
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d concerns, want 2", len(all))
	}

	pending, err := repo.ListByUser(ctx, tx, owner.ID, ConcernFilter{Status: types.ConcernStatusPending})
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(pending) != 1 || pending[0].Status != types.ConcernStatusPending {
		t.Fatalf("pending filter returned %d rows", len(pending))
	}
}

func TestConcernSoftDelete(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewConcernRepo(db, testutil.Logger(t))

	owner := testutil.SeedUser(t, tx, types.RoleCitizen)
	concern := testutil.SeedConcern(t, tx, owner.ID, types.ConcernStatusPending)

	if err := repo.Delete(ctx, tx, concern.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, tx, concern.ID); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("after delete: got %v, want ErrNotFound", err)
	}

	// Soft delete keeps the row.
	var count int64
	if err := tx.Unscoped().Model(&types.Concern{}).Where("id = ?", concern.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("row count = %d, want 1", count)
	}
}
