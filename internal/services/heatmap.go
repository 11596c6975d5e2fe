package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/apierr"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
)

// heatmapCellSize is the side of one aggregation cell in degrees, roughly
// 110m of latitude. Coarse enough to pool nearby detections, fine enough to
// separate street corners.
const heatmapCellSize = 0.001

type HeatmapCell struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Count     int     `json:"count"`
	// Weight folds severity into the count so one fatal incident outranks
	// several minor ones.
	Weight float64 `json:"weight"`
}

type AccidentMarker struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	Severity   string    `json:"severity"`
	Status     string    `json:"status"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	DetectedAt time.Time `json:"detected_at"`
}

type HeatmapService interface {
	// Cells aggregates accidents since the cutoff into fixed-size geo cells.
	Cells(ctx context.Context, since time.Time) ([]HeatmapCell, error)
	// Markers lists individual accident pins for the map view.
	Markers(ctx context.Context, filter repos.AccidentFilter) ([]AccidentMarker, error)
}

type heatmapService struct {
	log       *logger.Logger
	accidents repos.AccidentRepo
}

func NewHeatmapService(log *logger.Logger, accidents repos.AccidentRepo) HeatmapService {
	return &heatmapService{
		log:       log.With("service", "HeatmapService"),
		accidents: accidents,
	}
}

func (hs *heatmapService) Cells(ctx context.Context, since time.Time) ([]HeatmapCell, error) {
	if since.After(time.Now()) {
		return nil, apierr.Validation(fmt.Errorf("since cannot be in the future"))
	}
	accidents, err := hs.accidents.ListSince(ctx, nil, since)
	if err != nil {
		return nil, err
	}

	type cellAgg struct {
		count  int
		weight float64
	}
	cells := map[[2]int]*cellAgg{}
	for _, a := range accidents {
		if a.Latitude == 0 && a.Longitude == 0 {
			continue
		}
		key := [2]int{
			int(math.Floor(a.Latitude / heatmapCellSize)),
			int(math.Floor(a.Longitude / heatmapCellSize)),
		}
		agg := cells[key]
		if agg == nil {
			agg = &cellAgg{}
			cells[key] = agg
		}
		agg.count++
		agg.weight += severityWeight(a.Severity)
	}

	out := make([]HeatmapCell, 0, len(cells))
	for key, agg := range cells {
		out = append(out, HeatmapCell{
			// Cell center, not corner.
			Latitude:  (float64(key[0]) + 0.5) * heatmapCellSize,
			Longitude: (float64(key[1]) + 0.5) * heatmapCellSize,
			Count:     agg.count,
			Weight:    agg.weight,
		})
	}
	return out, nil
}

func (hs *heatmapService) Markers(ctx context.Context, filter repos.AccidentFilter) ([]AccidentMarker, error) {
	accidents, err := hs.accidents.List(ctx, nil, filter)
	if err != nil {
		return nil, err
	}
	markers := make([]AccidentMarker, 0, len(accidents))
	for _, a := range accidents {
		markers = append(markers, AccidentMarker{
			ID:         a.ID,
			Title:      a.Title,
			Category:   a.Category,
			Severity:   a.Severity,
			Status:     a.Status,
			Latitude:   a.Latitude,
			Longitude:  a.Longitude,
			DetectedAt: a.DetectedAt,
		})
	}
	return markers, nil
}

func severityWeight(severity string) float64 {
	switch severity {
	case types.SeverityLow:
		return 1
	case types.SeverityMedium:
		return 2
	case types.SeverityHigh:
		return 4
	default:
		return 1
	}
}
