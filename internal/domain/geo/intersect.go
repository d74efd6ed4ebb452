package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// halfPlaneEps absorbs floating-point noise in the clipping half-plane
// test. Cross products here are in squared degrees.
const halfPlaneEps = 1e-18

// IntersectionArea returns the area of the geometric intersection of the
// two polygons in square meters. The second return is false when the
// regions do not intersect (or the intersection is degenerate).
//
// The intersection region is computed by Sutherland-Hodgman clipping of
// a against b, which is exact when b's ring is convex. Parcel rings are
// overwhelmingly convex or near-convex; concave clip rings can slightly
// over-report.
func IntersectionArea(a, b Polygon) (float64, bool) {
	if a.NumVertices() < 3 || b.NumVertices() < 3 {
		return 0, false
	}
	if !a.Bound().Intersects(b.Bound()) {
		return 0, false
	}

	subject := distinctVertices(a)
	clip := orientCCW(distinctVertices(b))
	if len(subject) < 3 || len(clip) < 3 {
		return 0, false
	}

	out := subject
	for i := 0; i < len(clip); i++ {
		if len(out) == 0 {
			return 0, false
		}
		c1 := clip[i]
		c2 := clip[(i+1)%len(clip)]
		out = clipAgainstEdge(out, c1, c2)
	}
	if len(out) < 3 {
		return 0, false
	}

	ring := make(orb.Ring, 0, len(out)+1)
	ring = append(ring, out...)
	ring = append(ring, out[0])

	area := math.Abs(orbgeo.Area(orb.Polygon{ring}))
	if area == 0 {
		return 0, false
	}
	return area, true
}

// clipAgainstEdge keeps the parts of the subject polygon on the interior
// side of the directed clip edge c1->c2 (interior is to the left for a
// counter-clockwise clip ring).
func clipAgainstEdge(subject []orb.Point, c1, c2 orb.Point) []orb.Point {
	var out []orb.Point
	n := len(subject)
	for i := 0; i < n; i++ {
		cur := subject[i]
		prev := subject[(i+n-1)%n]

		curIn := insideHalfPlane(cur, c1, c2)
		prevIn := insideHalfPlane(prev, c1, c2)

		switch {
		case curIn && prevIn:
			out = append(out, cur)
		case curIn && !prevIn:
			if pt, ok := lineIntersection(prev, cur, c1, c2); ok {
				out = append(out, pt)
			}
			out = append(out, cur)
		case !curIn && prevIn:
			if pt, ok := lineIntersection(prev, cur, c1, c2); ok {
				out = append(out, pt)
			}
		}
	}
	return out
}

func insideHalfPlane(pt, c1, c2 orb.Point) bool {
	return cross(c1, c2, pt) >= -halfPlaneEps
}

// lineIntersection returns the intersection of the infinite lines
// through a1-a2 and b1-b2. Parallel lines report false.
func lineIntersection(a1, a2, b1, b2 orb.Point) (orb.Point, bool) {
	d1x, d1y := a2[0]-a1[0], a2[1]-a1[1]
	d2x, d2y := b2[0]-b1[0], b2[1]-b1[1]

	denom := d1x*d2y - d1y*d2x
	if denom == 0 {
		return orb.Point{}, false
	}
	t := ((b1[0]-a1[0])*d2y - (b1[1]-a1[1])*d2x) / denom
	return orb.Point{a1[0] + t*d1x, a1[1] + t*d1y}, true
}

// orientCCW returns the vertex list in counter-clockwise order.
func orientCCW(pts []orb.Point) []orb.Point {
	if signedDoubleArea(pts) >= 0 {
		return pts
	}
	rev := make([]orb.Point, len(pts))
	for i, p := range pts {
		rev[len(pts)-1-i] = p
	}
	return rev
}

func signedDoubleArea(pts []orb.Point) float64 {
	var sum float64
	n := len(pts)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += pts[i][0]*pts[j][1] - pts[j][0]*pts[i][1]
	}
	return sum
}

// segmentsIntersect reports whether the closed segments a1-a2 and b1-b2
// intersect, including collinear overlap and endpoint touches.
func segmentsIntersect(a1, a2, b1, b2 orb.Point) bool {
	d1 := cross(b1, b2, a1)
	d2 := cross(b1, b2, a2)
	d3 := cross(a1, a2, b1)
	d4 := cross(a1, a2, b2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	if d1 == 0 && onSegment(b1, b2, a1) {
		return true
	}
	if d2 == 0 && onSegment(b1, b2, a2) {
		return true
	}
	if d3 == 0 && onSegment(a1, a2, b1) {
		return true
	}
	if d4 == 0 && onSegment(a1, a2, b2) {
		return true
	}
	return false
}

// cross returns the z component of (b-a) x (p-a).
func cross(a, b, p orb.Point) float64 {
	return (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
}

// onSegment assumes p is collinear with s1-s2 and reports whether it lies
// within the segment's bounding box.
func onSegment(s1, s2, p orb.Point) bool {
	return math.Min(s1[0], s2[0]) <= p[0] && p[0] <= math.Max(s1[0], s2[0]) &&
		math.Min(s1[1], s2[1]) <= p[1] && p[1] <= math.Max(s1[1], s2[1])
}
