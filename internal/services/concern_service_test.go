package services

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	pkgerrors "github.com/urbanwatch/urbanwatch-backend/internal/pkg/errors"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/apierr"
)

type fakeSuspensions struct {
	gateErr error
}

func (f *fakeSuspensions) Punish(ctx context.Context, issuedBy, userID uuid.UUID, in PunishInput) (*types.UserSuspension, error) {
	return nil, nil
}
func (f *fakeSuspensions) ListByUser(ctx context.Context, userID uuid.UUID) ([]*types.UserSuspension, error) {
	return nil, nil
}
func (f *fakeSuspensions) AvailablePunishments(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return nil, nil
}
func (f *fakeSuspensions) Lift(ctx context.Context, suspensionID uuid.UUID) error { return nil }
func (f *fakeSuspensions) GateWrite(ctx context.Context, userID uuid.UUID) error  { return f.gateErr }

type fakeConcernRepo struct {
	repos.ConcernRepo
	concern *types.Concern
	updated bool
}

func (f *fakeConcernRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, concernID, userID uuid.UUID) (*types.Concern, error) {
	if f.concern == nil || f.concern.ID != concernID || f.concern.UserID != userID {
		return nil, pkgerrors.ErrNotFound
	}
	return f.concern, nil
}

func (f *fakeConcernRepo) UpdateContent(ctx context.Context, tx *gorm.DB, concernID uuid.UUID, title, description string) error {
	f.updated = true
	return nil
}

func TestConcernUpdateBlockedWhileSuspended(t *testing.T) {
	expires := time.Date(2026, time.September, 15, 0, 0, 0, 0, time.UTC)
	gateErr := apierr.Forbidden(suspensionMessage(&types.UserSuspension{
		Type:      "warning_2",
		ExpiresAt: &expires,
	}))
	cs := &concernService{
		log:         testLogger(t),
		suspensions: &fakeSuspensions{gateErr: gateErr},
	}

	_, err := cs.Update(context.Background(), uuid.New(), uuid.New(), "t", "d")
	ae := apierr.From(err)
	if ae == nil || ae.Status != http.StatusForbidden {
		t.Fatalf("err = %v", err)
	}
	// The 403 names the punishment and its expiry in plain language.
	if !strings.Contains(ae.Error(), "warning 2") || !strings.Contains(ae.Error(), "September 15, 2026") {
		t.Fatalf("message = %q", ae.Error())
	}
}

func TestConcernUpdateOnlyWhilePending(t *testing.T) {
	userID := uuid.New()
	concern := &types.Concern{ID: uuid.New(), UserID: userID, Status: types.ConcernStatusOngoing}
	concerns := &fakeConcernRepo{concern: concern}
	cs := &concernService{
		log:         testLogger(t),
		concerns:    concerns,
		suspensions: &fakeSuspensions{},
	}

	_, err := cs.Update(context.Background(), userID, concern.ID, "new title", "")
	ae := apierr.From(err)
	if ae == nil || ae.Code != "domain_state" {
		t.Fatalf("err = %v", err)
	}
	if ae.Error() != "Only pending concerns can be edited." {
		t.Fatalf("message = %q", ae.Error())
	}
	if concerns.updated {
		t.Fatal("a non-pending concern was written to")
	}

	if delErr := cs.Delete(context.Background(), userID, concern.ID); apierr.From(delErr) == nil ||
		apierr.From(delErr).Error() != "Only pending concerns can be edited." {
		t.Fatalf("delete err = %v", delErr)
	}
}

func TestConcernUpdateHidesForeignConcerns(t *testing.T) {
	owner := uuid.New()
	concern := &types.Concern{ID: uuid.New(), UserID: owner, Status: types.ConcernStatusPending}
	cs := &concernService{
		log:         testLogger(t),
		concerns:    &fakeConcernRepo{concern: concern},
		suspensions: &fakeSuspensions{},
	}

	// A stranger probing someone else's concern learns nothing about it.
	_, err := cs.Update(context.Background(), uuid.New(), concern.ID, "t", "d")
	ae := apierr.From(err)
	if ae == nil || ae.Code != "not_found" {
		t.Fatalf("err = %v", err)
	}
	if ae.Error() != "Concern not found." {
		t.Fatalf("message = %q", ae.Error())
	}
}

func TestConcernUpdateWhilePending(t *testing.T) {
	userID := uuid.New()
	concern := &types.Concern{ID: uuid.New(), UserID: userID, Status: types.ConcernStatusPending}
	concerns := &fakeConcernRepo{concern: concern}
	cs := &concernService{
		log:         testLogger(t),
		concerns:    concerns,
		suspensions: &fakeSuspensions{},
	}

	got, err := cs.Update(context.Background(), userID, concern.ID, " fallen tree ", "blocking the road")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !concerns.updated {
		t.Fatal("UpdateContent was not called")
	}
	if got.Title != "fallen tree" || got.Description != "blocking the road" {
		t.Fatalf("concern = %+v", got)
	}
}
