package overlap

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/openacre/land-exchange-backend/internal/domain/geo"
	"github.com/openacre/land-exchange-backend/internal/domain/parcel"
)

// Overlap severity bands, expressed as a percentage of the candidate's
// own area. BlockThresholdPct is inclusive: exactly 20% still proceeds.
const (
	BlockThresholdPct    = 20.0
	NearDuplicatePct     = 80.0
	MinorOverlapFloorPct = 5.0
	NegligibleOverlapEps = 1e-9
)

// CorpusRepository loads the accepted-parcel corpus the candidate is
// compared against.
type CorpusRepository interface {
	ListAcceptedBoundaries(ctx context.Context, excludeParcelID *uuid.UUID) ([]parcel.CorpusEntry, error)
}

// Overlapping describes one corpus parcel the candidate intersects.
type Overlapping struct {
	ParcelID   uuid.UUID `json:"parcel_id"`
	Title      string    `json:"title"`
	Percentage float64   `json:"percentage"`
	AreaM2     float64   `json:"area_m2"`
}

// Result is the outcome of an overlap check. When CanProceed is false
// the candidate must not be published, whether because of a real
// conflict or because the corpus could not be consulted.
type Result struct {
	CanProceed    bool          `json:"can_proceed"`
	HasOverlaps   bool          `json:"has_overlaps"`
	MaxPercentage float64       `json:"max_percentage"`
	Overlapping   []Overlapping `json:"overlapping,omitempty"`
	Message       string        `json:"message"`
}

// Service checks a candidate boundary against every accepted parcel.
// Any failure to consult the corpus fails closed: a listing is never
// published on the strength of a check that did not run.
type Service struct {
	corpus CorpusRepository
}

// NewService creates an overlap detector backed by the given corpus.
func NewService(corpus CorpusRepository) *Service {
	return &Service{corpus: corpus}
}

// CheckOverlap measures how much of each accepted parcel's footprint
// the candidate covers. Percentages are relative to the candidate's
// area. excludeParcelID skips the candidate's own stored row during
// resubmission.
func (s *Service) CheckOverlap(ctx context.Context, candidate geo.Polygon, excludeParcelID *uuid.UUID) *Result {
	candidateArea := geo.Area(candidate)
	if candidateArea <= 0 {
		return failClosed("candidate boundary has no measurable area")
	}

	entries, err := s.corpus.ListAcceptedBoundaries(ctx, excludeParcelID)
	if err != nil {
		return failClosed("could not load existing parcels for comparison")
	}

	result := &Result{CanProceed: true}
	for _, entry := range entries {
		if entry.Boundary.IsZero() {
			continue
		}
		interArea, ok := geo.IntersectionArea(candidate, entry.Boundary)
		if !ok || interArea <= 0 {
			continue
		}
		pct := interArea / candidateArea * 100
		if pct <= NegligibleOverlapEps {
			continue
		}
		result.Overlapping = append(result.Overlapping, Overlapping{
			ParcelID:   entry.ID,
			Title:      entry.Title,
			Percentage: pct,
			AreaM2:     interArea,
		})
		if pct > result.MaxPercentage {
			result.MaxPercentage = pct
		}
	}

	sort.Slice(result.Overlapping, func(i, j int) bool {
		return result.Overlapping[i].Percentage > result.Overlapping[j].Percentage
	})

	result.HasOverlaps = len(result.Overlapping) > 0
	// The threshold is inclusive; the epsilon keeps geodetic rounding
	// from tipping an exact 20% over the line.
	result.CanProceed = result.MaxPercentage <= BlockThresholdPct+1e-6
	result.Message = summarize(result)
	return result
}

func summarize(r *Result) string {
	if !r.HasOverlaps {
		return "no overlapping parcels found"
	}
	worst := r.Overlapping[0]
	if !r.CanProceed {
		return fmt.Sprintf("boundary overlaps %d existing parcel(s); largest overlap is %.1f%% with %q",
			len(r.Overlapping), worst.Percentage, worst.Title)
	}
	return fmt.Sprintf("minor overlap with %d existing parcel(s), largest %.1f%%",
		len(r.Overlapping), worst.Percentage)
}

func failClosed(msg string) *Result {
	return &Result{
		CanProceed: false,
		Message:    msg,
	}
}

// SeverityBand maps an overlap percentage to a coarse label used in
// fraud scoring and operator tooling.
func SeverityBand(pct float64) string {
	switch {
	case pct > NearDuplicatePct:
		return "near_duplicate"
	case pct > BlockThresholdPct:
		return "major"
	case pct > MinorOverlapFloorPct:
		return "minor"
	default:
		return "negligible"
	}
}
