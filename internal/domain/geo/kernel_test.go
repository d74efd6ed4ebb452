package geo

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ring builds a closed ring from the given vertices.
func ring(pts ...orb.Point) orb.Ring {
	r := make(orb.Ring, 0, len(pts)+1)
	r = append(r, pts...)
	if len(pts) > 0 && pts[0] != pts[len(pts)-1] {
		r = append(r, pts[0])
	}
	return r
}

func unitSquare() Polygon {
	return NewPolygon(ring(
		orb.Point{0, 0}, orb.Point{0.001, 0}, orb.Point{0.001, 0.001}, orb.Point{0, 0.001},
	))
}

func bowtie() Polygon {
	return NewPolygon(ring(
		orb.Point{0, 0}, orb.Point{1, 1}, orb.Point{1, 0}, orb.Point{0, 1},
	))
}

func lShape() Polygon {
	return NewPolygon(ring(
		orb.Point{0, 0}, orb.Point{2, 0}, orb.Point{2, 1},
		orb.Point{1, 1}, orb.Point{1, 2}, orb.Point{0, 2},
	))
}

func TestArea(t *testing.T) {
	tests := []struct {
		name     string
		polygon  Polygon
		positive bool
	}{
		{"convex quadrilateral", unitSquare(), true},
		{"degenerate two-point ring", NewPolygon(orb.Ring{{0, 0}, {1, 1}}), false},
		{"empty ring", Polygon{}, false},
		{"zero-area collinear ring", NewPolygon(ring(
			orb.Point{0, 0}, orb.Point{1, 1}, orb.Point{2, 2},
		)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			area := Area(tt.polygon)
			if tt.positive {
				assert.Greater(t, area, 0.0)
			} else {
				assert.Zero(t, area)
			}
		})
	}
}

func TestArea_WindingInvariant(t *testing.T) {
	cw := NewPolygon(ring(
		orb.Point{0, 0}, orb.Point{0, 0.001}, orb.Point{0.001, 0.001}, orb.Point{0.001, 0},
	))
	assert.InEpsilon(t, Area(unitSquare()), Area(cw), 1e-9)
}

func TestPerimeter(t *testing.T) {
	p := unitSquare()
	perimeter := Perimeter(p)
	assert.Greater(t, perimeter, 0.0)

	// An unclosed copy of the same ring must include the implicit
	// closing segment.
	open := NewPolygon(p.Ring[:len(p.Ring)-1])
	assert.InEpsilon(t, perimeter, Perimeter(open), 1e-9)

	assert.Zero(t, Perimeter(Polygon{}))
}

func TestCentroid(t *testing.T) {
	center, ok := Centroid(unitSquare())
	require.True(t, ok)
	assert.InDelta(t, 0.0005, center[0], 1e-9)
	assert.InDelta(t, 0.0005, center[1], 1e-9)

	_, ok = Centroid(Polygon{})
	assert.False(t, ok)

	// Zero-area rings still report an approximate location.
	center, ok = Centroid(NewPolygon(ring(
		orb.Point{0, 0}, orb.Point{1, 1}, orb.Point{2, 2},
	)))
	require.True(t, ok)
	assert.InDelta(t, 1.0, center[0], 1e-9)
}

func TestIsConvex(t *testing.T) {
	tests := []struct {
		name    string
		polygon Polygon
		want    bool
	}{
		{"square", unitSquare(), true},
		{"triangle", NewPolygon(ring(orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{0, 1})), true},
		{"l-shape", lShape(), false},
		{"degenerate", NewPolygon(orb.Ring{{0, 0}, {1, 1}}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConvex(tt.polygon))
		})
	}
}

func TestSelfIntersects(t *testing.T) {
	tests := []struct {
		name    string
		polygon Polygon
		want    bool
	}{
		{"bowtie crosses itself", bowtie(), true},
		{"simple convex ring", unitSquare(), false},
		{"simple concave ring", lShape(), false},
		{"triangle", NewPolygon(ring(orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{0, 1})), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelfIntersects(tt.polygon))
		})
	}
}

func TestEquals(t *testing.T) {
	square := unitSquare()

	t.Run("reflexive", func(t *testing.T) {
		assert.True(t, Equals(square, square))
		assert.True(t, Equals(bowtie(), bowtie()))
	})

	t.Run("rotation of starting vertex", func(t *testing.T) {
		rotated := NewPolygon(ring(
			orb.Point{0.001, 0.001}, orb.Point{0, 0.001}, orb.Point{0, 0}, orb.Point{0.001, 0},
		))
		assert.True(t, Equals(square, rotated))
	})

	t.Run("reversed winding", func(t *testing.T) {
		reversed := NewPolygon(ring(
			orb.Point{0, 0}, orb.Point{0, 0.001}, orb.Point{0.001, 0.001}, orb.Point{0.001, 0},
		))
		assert.True(t, Equals(square, reversed))
	})

	t.Run("different region", func(t *testing.T) {
		assert.False(t, Equals(square, lShape()))
	})

	t.Run("within coordinate tolerance", func(t *testing.T) {
		nudged := NewPolygon(ring(
			orb.Point{1e-10, 0}, orb.Point{0.001, 0}, orb.Point{0.001, 0.001}, orb.Point{0, 0.001},
		))
		assert.True(t, Equals(square, nudged))
	})
}

func TestContainsPoint(t *testing.T) {
	assert.True(t, ContainsPoint(unitSquare(), orb.Point{0.0005, 0.0005}))
	assert.False(t, ContainsPoint(unitSquare(), orb.Point{0.5, 0.5}))
	assert.False(t, ContainsPoint(Polygon{}, orb.Point{0, 0}))
}
