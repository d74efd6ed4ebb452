package geo

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/openacre/land-exchange-backend/internal/domain/errors"
)

// MinRingPoints is the minimum number of points in a closed ring:
// three distinct vertices plus the closing point.
const MinRingPoints = 4

// Polygon is a parcel boundary: a single exterior ring of
// (longitude, latitude) pairs in degrees. Holes are out of scope;
// submissions carrying interior rings keep only the exterior.
type Polygon struct {
	Ring orb.Ring
}

// NewPolygon wraps an exterior ring. It performs no validation; use the
// geovalidation service to produce a verdict on raw submissions.
func NewPolygon(ring orb.Ring) Polygon {
	return Polygon{Ring: ring}
}

// IsZero reports whether the polygon carries no ring at all.
func (p Polygon) IsZero() bool {
	return len(p.Ring) == 0
}

// Closed reports whether the first and last ring points are equal.
func (p Polygon) Closed() bool {
	if len(p.Ring) < 2 {
		return false
	}
	return p.Ring[0] == p.Ring[len(p.Ring)-1]
}

// NumVertices returns the number of distinct vertices, excluding the
// closing point when present.
func (p Polygon) NumVertices() int {
	n := len(p.Ring)
	if n == 0 {
		return 0
	}
	if p.Closed() {
		return n - 1
	}
	return n
}

// Bound returns the polygon's bounding box.
func (p Polygon) Bound() orb.Bound {
	return p.Ring.Bound()
}

// MarshalJSON renders the polygon as a GeoJSON Polygon geometry.
func (p Polygon) MarshalJSON() ([]byte, error) {
	return json.Marshal(geojson.NewGeometry(orb.Polygon{p.Ring}))
}

// UnmarshalJSON accepts a GeoJSON Polygon geometry.
func (p *Polygon) UnmarshalJSON(data []byte) error {
	parsed, err := ParseBoundary(data)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// geoJSONProbe peeks at the top-level GeoJSON type before full decoding.
type geoJSONProbe struct {
	Type string `json:"type"`
}

// ParseBoundary normalizes a raw GeoJSON submission into a Polygon. It
// accepts a bare Polygon geometry, a Feature wrapping a Polygon, or a
// FeatureCollection (first feature only). Any other shape yields a
// validation error, never a panic, since submissions are adversarial input.
func ParseBoundary(raw []byte) (Polygon, error) {
	var probe geoJSONProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Polygon{}, errors.NewValidationError("MALFORMED_GEOJSON",
			"boundary is not parseable JSON").WithCause(err)
	}

	switch probe.Type {
	case "Polygon":
		g, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return Polygon{}, errors.NewValidationError("MALFORMED_GEOJSON",
				"invalid Polygon geometry").WithCause(err)
		}
		return polygonFromGeometry(g.Geometry())

	case "Feature":
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return Polygon{}, errors.NewValidationError("MALFORMED_GEOJSON",
				"invalid GeoJSON feature").WithCause(err)
		}
		return polygonFromGeometry(f.Geometry)

	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			return Polygon{}, errors.NewValidationError("MALFORMED_GEOJSON",
				"invalid GeoJSON feature collection").WithCause(err)
		}
		if len(fc.Features) == 0 {
			return Polygon{}, errors.NewValidationError("EMPTY_FEATURE_COLLECTION",
				"feature collection contains no features")
		}
		return polygonFromGeometry(fc.Features[0].Geometry)

	default:
		return Polygon{}, errors.NewValidationError("UNSUPPORTED_GEOMETRY_TYPE",
			fmt.Sprintf("unsupported geometry type %q", probe.Type))
	}
}

func polygonFromGeometry(g orb.Geometry) (Polygon, error) {
	poly, ok := g.(orb.Polygon)
	if !ok {
		return Polygon{}, errors.NewValidationError("UNSUPPORTED_GEOMETRY_TYPE",
			fmt.Sprintf("unsupported geometry type %q", g.GeoJSONType()))
	}
	if len(poly) == 0 {
		return Polygon{}, errors.NewValidationError("EMPTY_POLYGON",
			"polygon has no exterior ring")
	}
	return Polygon{Ring: poly[0]}, nil
}
