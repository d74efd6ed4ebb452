package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// CoordTolerance is the coordinate tolerance, in degrees, used when
// comparing rings for equality. Roughly 0.1mm at the equator.
const CoordTolerance = 1e-9

// Area returns the polygon's area in square meters. The result is
// invariant to vertex winding direction and is 0 for degenerate rings.
func Area(p Polygon) float64 {
	if p.NumVertices() < 3 {
		return 0
	}
	return math.Abs(orbgeo.Area(orb.Polygon{p.Ring}))
}

// Perimeter returns the total great-circle length of the ring in meters,
// including the closing segment.
func Perimeter(p Polygon) float64 {
	n := len(p.Ring)
	if n < 2 {
		return 0
	}
	var total float64
	for i := 1; i < n; i++ {
		total += orbgeo.Distance(p.Ring[i-1], p.Ring[i])
	}
	if !p.Closed() {
		total += orbgeo.Distance(p.Ring[n-1], p.Ring[0])
	}
	return total
}

// Centroid returns the geometric centroid of the ring as (lng, lat).
// The second return is false when the ring is too degenerate to carry one.
func Centroid(p Polygon) (orb.Point, bool) {
	if p.NumVertices() < 3 {
		return orb.Point{}, false
	}
	center, area := planar.CentroidArea(orb.Polygon{p.Ring})
	if area == 0 {
		// Zero-area ring: fall back to the vertex mean so callers can
		// still show an approximate location.
		var sumX, sumY float64
		n := p.NumVertices()
		for i := 0; i < n; i++ {
			sumX += p.Ring[i][0]
			sumY += p.Ring[i][1]
		}
		return orb.Point{sumX / float64(n), sumY / float64(n)}, true
	}
	return center, true
}

// IsConvex reports whether every interior turn of the ring has the same
// sign. Collinear runs are tolerated. Degenerate rings are not convex.
func IsConvex(p Polygon) bool {
	n := p.NumVertices()
	if n < 3 {
		return false
	}
	var sign int
	for i := 0; i < n; i++ {
		a := p.Ring[i%n]
		b := p.Ring[(i+1)%n]
		c := p.Ring[(i+2)%n]
		cross := (b[0]-a[0])*(c[1]-b[1]) - (b[1]-a[1])*(c[0]-b[0])
		if cross == 0 {
			continue
		}
		s := 1
		if cross < 0 {
			s = -1
		}
		if sign == 0 {
			sign = s
		} else if s != sign {
			return false
		}
	}
	return true
}

// SelfIntersects reports whether any two non-adjacent edges of the ring
// cross. The test is O(n²) over edge pairs, which is fine for
// parcel-sized rings.
func SelfIntersects(p Polygon) bool {
	n := p.NumVertices()
	if n < 4 {
		return false
	}
	for i := 0; i < n; i++ {
		a1 := p.Ring[i]
		a2 := p.Ring[(i+1)%n]
		for j := i + 1; j < n; j++ {
			// Skip the shared-vertex neighbours, including the wrap
			// between the last and first edge.
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			b1 := p.Ring[j]
			b2 := p.Ring[(j+1)%n]
			if segmentsIntersect(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

// Equals reports whether two rings describe the same closed region,
// irrespective of the starting vertex and winding direction, within
// CoordTolerance per coordinate.
func Equals(a, b Polygon) bool {
	av := distinctVertices(a)
	bv := distinctVertices(b)
	if len(av) != len(bv) {
		return false
	}
	n := len(av)
	if n == 0 {
		return true
	}

	for offset := 0; offset < n; offset++ {
		if ringsMatch(av, bv, offset, false) || ringsMatch(av, bv, offset, true) {
			return true
		}
	}
	return false
}

// ContainsPoint reports whether the given (lng, lat) point lies inside
// the ring.
func ContainsPoint(p Polygon, pt orb.Point) bool {
	if p.NumVertices() < 3 {
		return false
	}
	return planar.RingContains(p.Ring, pt)
}

// distinctVertices returns the ring's vertices without the closing point
// and with zero-length consecutive segments collapsed.
func distinctVertices(p Polygon) []orb.Point {
	n := p.NumVertices()
	out := make([]orb.Point, 0, n)
	for i := 0; i < n; i++ {
		pt := p.Ring[i]
		if len(out) > 0 && pointsEqual(out[len(out)-1], pt) {
			continue
		}
		out = append(out, pt)
	}
	if len(out) > 1 && pointsEqual(out[0], out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	return out
}

func ringsMatch(a, b []orb.Point, offset int, reversed bool) bool {
	n := len(a)
	for i := 0; i < n; i++ {
		var bp orb.Point
		if reversed {
			bp = b[((offset-i)%n+n)%n]
		} else {
			bp = b[(offset+i)%n]
		}
		if !pointsEqual(a[i], bp) {
			return false
		}
	}
	return true
}

func pointsEqual(a, b orb.Point) bool {
	return math.Abs(a[0]-b[0]) <= CoordTolerance && math.Abs(a[1]-b[1]) <= CoordTolerance
}
