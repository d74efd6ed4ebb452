package geovalidation

import (
	"fmt"

	orbgeo "github.com/paulmach/orb/geo"

	"github.com/openacre/land-exchange-backend/internal/domain/geo"
)

// nearZeroAreaM2 is the area below which a ring is considered
// degenerate rather than merely small.
const nearZeroAreaM2 = 0.01

// Config holds the non-blocking warning thresholds.
type Config struct {
	// MinParcelAreaM2 flags suspiciously small parcels.
	MinParcelAreaM2 float64
	// MaxVertices flags probable digitization noise.
	MaxVertices int
	// MaxAspectRatio flags extremely elongated boundaries.
	MaxAspectRatio float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MinParcelAreaM2: 100,
		MaxVertices:     500,
		MaxAspectRatio:  25,
	}
}

// Metrics are informational measurements computed whenever the ring is
// syntactically parseable, even when validation fails, so correction
// UIs can still show the submission.
type Metrics struct {
	AreaM2      float64    `json:"area_m2"`
	PerimeterM  float64    `json:"perimeter_m"`
	NumVertices int        `json:"num_vertices"`
	IsConvex    bool       `json:"is_convex"`
	Centroid    [2]float64 `json:"centroid"` // (lng, lat)
}

// Result is the verdict on one boundary submission. Produced fresh on
// every call; never cached.
type Result struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Metrics  *Metrics `json:"metrics,omitempty"`
}

// Service validates raw boundary submissions. It is pure computation:
// no persistence, no detector calls, no shared state.
type Service struct {
	cfg Config
}

// NewService creates a polygon validator with the given thresholds.
func NewService(cfg Config) *Service {
	if cfg.MinParcelAreaM2 <= 0 {
		cfg.MinParcelAreaM2 = DefaultConfig().MinParcelAreaM2
	}
	if cfg.MaxVertices <= 0 {
		cfg.MaxVertices = DefaultConfig().MaxVertices
	}
	if cfg.MaxAspectRatio <= 0 {
		cfg.MaxAspectRatio = DefaultConfig().MaxAspectRatio
	}
	return &Service{cfg: cfg}
}

// Validate normalizes a raw GeoJSON submission (Polygon, Feature or
// FeatureCollection) and checks it. Malformed input becomes a
// validation error, never a panic or an escaping error.
func (s *Service) Validate(raw []byte) *Result {
	polygon, err := geo.ParseBoundary(raw)
	if err != nil {
		return &Result{
			IsValid: false,
			Errors:  []string{err.Error()},
		}
	}
	return s.ValidatePolygon(polygon)
}

// ValidatePolygon checks an already-parsed boundary.
func (s *Service) ValidatePolygon(polygon geo.Polygon) *Result {
	result := &Result{IsValid: true}

	if len(polygon.Ring) < geo.MinRingPoints {
		result.fail(fmt.Sprintf("boundary must have at least %d points (3 vertices plus the closing point), got %d",
			geo.MinRingPoints, len(polygon.Ring)))
	}
	if len(polygon.Ring) >= 2 && !polygon.Closed() {
		result.fail("boundary ring is not closed: first and last points differ")
	}
	if hasZeroLengthSegment(polygon) {
		result.fail("boundary contains zero-length segments (repeated consecutive points)")
	}

	area := geo.Area(polygon)
	if geo.SelfIntersects(polygon) {
		result.fail("boundary is self-intersecting: edges cross each other")
	}
	if area <= nearZeroAreaM2 {
		result.fail("boundary has zero or near-zero area")
	}

	// Metrics are informational and computed even for invalid rings.
	metrics := &Metrics{
		AreaM2:      area,
		PerimeterM:  geo.Perimeter(polygon),
		NumVertices: polygon.NumVertices(),
		IsConvex:    geo.IsConvex(polygon),
	}
	if center, ok := geo.Centroid(polygon); ok {
		metrics.Centroid = [2]float64{center[0], center[1]}
	}
	result.Metrics = metrics

	if result.IsValid {
		if area < s.cfg.MinParcelAreaM2 {
			result.warn(fmt.Sprintf("parcel area %.1f m² is below the minimum expected size of %.0f m²",
				area, s.cfg.MinParcelAreaM2))
		}
		if metrics.NumVertices > s.cfg.MaxVertices {
			result.warn(fmt.Sprintf("boundary has %d vertices; this may be digitization noise",
				metrics.NumVertices))
		}
		if ratio := boundAspectRatio(polygon); ratio > s.cfg.MaxAspectRatio {
			result.warn(fmt.Sprintf("boundary aspect ratio %.1f is unusually elongated", ratio))
		}
	}

	return result
}

func (r *Result) fail(msg string) {
	r.IsValid = false
	r.Errors = append(r.Errors, msg)
}

func (r *Result) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func hasZeroLengthSegment(p geo.Polygon) bool {
	for i := 1; i < len(p.Ring); i++ {
		if p.Ring[i] == p.Ring[i-1] {
			return true
		}
	}
	return false
}

// boundAspectRatio returns the width/height ratio (whichever is larger)
// of the boundary's bounding box, measured in meters.
func boundAspectRatio(p geo.Polygon) float64 {
	bound := p.Bound()
	width := orbgeo.Distance(bound.Min, [2]float64{bound.Max[0], bound.Min[1]})
	height := orbgeo.Distance(bound.Min, [2]float64{bound.Min[0], bound.Max[1]})
	if width == 0 || height == 0 {
		return 0
	}
	if width > height {
		return width / height
	}
	return height / width
}
