package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
)

type stubAccidentRepo struct {
	accidents []*types.Accident
}

func (s *stubAccidentRepo) Create(ctx context.Context, tx *gorm.DB, accidents []*types.Accident) ([]*types.Accident, error) {
	return accidents, nil
}
func (s *stubAccidentRepo) GetByID(ctx context.Context, tx *gorm.DB, accidentID uuid.UUID) (*types.Accident, error) {
	return nil, nil
}
func (s *stubAccidentRepo) List(ctx context.Context, tx *gorm.DB, filter repos.AccidentFilter) ([]*types.Accident, error) {
	return s.accidents, nil
}
func (s *stubAccidentRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]*types.Accident, error) {
	return s.accidents, nil
}
func (s *stubAccidentRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, accidentID uuid.UUID, fromStatuses []string, toStatus string, resolvedAt *time.Time) (bool, error) {
	return false, nil
}
func (s *stubAccidentRepo) Archive(ctx context.Context, tx *gorm.DB, accidentID uuid.UUID) (bool, error) {
	return false, nil
}
func (s *stubAccidentRepo) ListSince(ctx context.Context, tx *gorm.DB, since time.Time) ([]*types.Accident, error) {
	return s.accidents, nil
}

func newTestHeatmapService(t *testing.T, accidents []*types.Accident) HeatmapService {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewHeatmapService(log, &stubAccidentRepo{accidents: accidents})
}

func TestHeatmapCellsAggregatesNearbyAccidents(t *testing.T) {
	// Two accidents inside the same 0.001-degree cell, one in the next cell
	// over, one with no coordinates.
	accidents := []*types.Accident{
		{Latitude: 14.60051, Longitude: 120.98422, Severity: types.SeverityLow},
		{Latitude: 14.60099, Longitude: 120.98488, Severity: types.SeverityHigh},
		{Latitude: 14.60151, Longitude: 120.98422, Severity: types.SeverityMedium},
		{Latitude: 0, Longitude: 0, Severity: types.SeverityHigh},
	}
	hs := newTestHeatmapService(t, accidents)

	cells, err := hs.Cells(context.Background(), time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Cells: %v", err)
	}
	if len(cells) != 2 {
		t.Fatalf("got %d cells, want 2", len(cells))
	}

	var dense *HeatmapCell
	for i := range cells {
		if cells[i].Count == 2 {
			dense = &cells[i]
		}
	}
	if dense == nil {
		t.Fatal("no cell aggregated both nearby accidents")
	}
	if dense.Weight != 5 { // low(1) + high(4)
		t.Errorf("weight = %v, want 5", dense.Weight)
	}
	// Cell centers land on the half-cell grid.
	if math.Abs(dense.Latitude-14.6005) > 1e-9 {
		t.Errorf("cell latitude = %v, want 14.6005", dense.Latitude)
	}
}

func TestHeatmapCellsRejectsFutureCutoff(t *testing.T) {
	hs := newTestHeatmapService(t, nil)
	if _, err := hs.Cells(context.Background(), time.Now().Add(time.Hour)); err == nil {
		t.Fatal("future cutoff should be rejected")
	}
}

func TestHeatmapMarkers(t *testing.T) {
	id := uuid.New()
	detected := time.Now().Add(-time.Hour)
	hs := newTestHeatmapService(t, []*types.Accident{{
		ID:         id,
		Title:      "Vehicle collision on the highway",
		Category:   "accident",
		Severity:   types.SeverityHigh,
		Status:     types.AccidentStatusPending,
		Latitude:   14.6,
		Longitude:  120.98,
		DetectedAt: detected,
	}})

	markers, err := hs.Markers(context.Background(), repos.AccidentFilter{})
	if err != nil {
		t.Fatalf("Markers: %v", err)
	}
	if len(markers) != 1 {
		t.Fatalf("got %d markers, want 1", len(markers))
	}
	m := markers[0]
	if m.ID != id || m.Category != "accident" || !m.DetectedAt.Equal(detected) {
		t.Fatalf("marker = %+v", m)
	}
}

func TestSeverityWeight(t *testing.T) {
	cases := map[string]float64{
		types.SeverityLow:    1,
		types.SeverityMedium: 2,
		types.SeverityHigh:   4,
		"unknown":            1,
	}
	for severity, want := range cases {
		if got := severityWeight(severity); got != want {
			t.Errorf("severityWeight(%q) = %v, want %v", severity, got, want)
		}
	}
}
