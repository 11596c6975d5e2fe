package incident

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos/testutil"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	pkgerrors "github.com/urbanwatch/urbanwatch-backend/internal/pkg/errors"
)

func TestAccidentUpdateStatusGuard(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewAccidentRepo(db, testutil.Logger(t))

	device := testutil.SeedDevice(t, tx)
	accident := testutil.SeedAccident(t, tx, &device.ID, types.AccidentStatusPending)

	ok, err := repo.UpdateStatus(ctx, tx, accident.ID, []string{types.AccidentStatusInProgress}, types.AccidentStatusResolved, nil)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if ok {
		t.Fatal("pending -> resolved should not apply")
	}

	ok, err = repo.UpdateStatus(ctx, tx, accident.ID, []string{types.AccidentStatusPending}, types.AccidentStatusInProgress, nil)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if !ok {
		t.Fatal("pending -> in_progress should apply")
	}

	resolvedAt := time.Now()
	ok, err = repo.UpdateStatus(ctx, tx, accident.ID, []string{types.AccidentStatusInProgress}, types.AccidentStatusResolved, &resolvedAt)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if !ok {
		t.Fatal("in_progress -> resolved should apply")
	}

	got, err := repo.GetByID(ctx, tx, accident.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.AccidentStatusResolved || got.ResolvedAt == nil {
		t.Fatalf("accident after resolve: status=%s resolved_at=%v", got.Status, got.ResolvedAt)
	}
}

func TestAccidentArchiveSoftDeletes(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewAccidentRepo(db, testutil.Logger(t))

	device := testutil.SeedDevice(t, tx)
	accident := testutil.SeedAccident(t, tx, &device.ID, types.AccidentStatusPending)

	ok, err := repo.Archive(ctx, tx, accident.ID)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if !ok {
		t.Fatal("archive of a pending accident should apply")
	}

	// Archived accidents vanish from reads but keep their row.
	if _, err := repo.GetByID(ctx, tx, accident.ID); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("after archive: got %v, want ErrNotFound", err)
	}
	var archived types.Accident
	if err := tx.Unscoped().Where("id = ?", accident.ID).First(&archived).Error; err != nil {
		t.Fatalf("unscoped read: %v", err)
	}
	if archived.Status != types.AccidentStatusArchived {
		t.Fatalf("status = %q, want archived", archived.Status)
	}
	if !archived.DeletedAt.Valid {
		t.Fatal("archived accident should be soft deleted")
	}

	// A second archive finds nothing to update.
	ok, err = repo.Archive(ctx, tx, accident.ID)
	if err != nil {
		t.Fatalf("repeat Archive: %v", err)
	}
	if ok {
		t.Fatal("repeat archive should not apply")
	}
}

func TestAccidentListFiltersAndListActive(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewAccidentRepo(db, testutil.Logger(t))

	device := testutil.SeedDevice(t, tx)
	pending := testutil.SeedAccident(t, tx, &device.ID, types.AccidentStatusPending)
	testutil.SeedAccident(t, tx, &device.ID, types.AccidentStatusResolved)

	active, err := repo.ListActive(ctx, tx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 1 || active[0].ID != pending.ID {
		t.Fatalf("ListActive returned %d rows", len(active))
	}

	highs, err := repo.List(ctx, tx, AccidentFilter{Severity: "high"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(highs) != 2 {
		t.Fatalf("severity filter returned %d rows, want 2", len(highs))
	}
	none, err := repo.List(ctx, tx, AccidentFilter{Category: "flood"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("category filter returned %d rows, want 0", len(none))
	}
}
