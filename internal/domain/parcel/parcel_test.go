package parcel

import (
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openacre/land-exchange-backend/internal/domain/errors"
	"github.com/openacre/land-exchange-backend/internal/domain/geo"
)

func testBoundary() geo.Polygon {
	return geo.NewPolygon(orb.Ring{
		{0, 0}, {0.001, 0}, {0.001, 0.001}, {0, 0.001}, {0, 0},
	})
}

func TestNewParcel(t *testing.T) {
	tests := []struct {
		name     string
		sellerID uuid.UUID
		title    string
		boundary geo.Polygon
		wantErr  bool
	}{
		{"valid", uuid.New(), "5ha plot, south ridge", testBoundary(), false},
		{"missing seller", uuid.Nil, "plot", testBoundary(), true},
		{"missing title", uuid.New(), "", testBoundary(), true},
		{"missing boundary", uuid.New(), "plot", geo.Polygon{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewParcel(tt.sellerID, tt.title, tt.boundary)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusDraft, p.Status)
			assert.Equal(t, 1, p.BoundaryVersion)
		})
	}
}

func TestStatusTransitions(t *testing.T) {
	p, err := NewParcel(uuid.New(), "plot", testBoundary())
	require.NoError(t, err)

	// Accept requires passing through validating.
	require.Error(t, p.Accept())

	require.NoError(t, p.BeginValidation())
	assert.Equal(t, StatusValidating, p.Status)
	assert.ErrorIs(t, p.BeginValidation(), errors.ErrParcelNotDraft)

	require.NoError(t, p.Block("boundary overlaps parcel X by 45.0%"))
	assert.Equal(t, StatusBlocked, p.Status)
	assert.NotEmpty(t, p.BlockReason)

	// Blocked is not terminal: resubmission restarts validation.
	require.NoError(t, p.BeginValidation())
	require.NoError(t, p.Accept())
	assert.Equal(t, StatusAccepted, p.Status)
	assert.Empty(t, p.BlockReason)
}

func TestReviseBoundary(t *testing.T) {
	p, err := NewParcel(uuid.New(), "plot", testBoundary())
	require.NoError(t, err)
	require.NoError(t, p.BeginValidation())
	require.NoError(t, p.Accept())

	revised := geo.NewPolygon(orb.Ring{
		{0, 0}, {0.002, 0}, {0.002, 0.002}, {0, 0.002}, {0, 0},
	})
	require.NoError(t, p.ReviseBoundary(revised))

	assert.Equal(t, 2, p.BoundaryVersion)
	assert.Equal(t, StatusDraft, p.Status)
	assert.True(t, geo.Equals(revised, p.Boundary))

	// Revision is rejected mid-validation.
	require.NoError(t, p.BeginValidation())
	require.Error(t, p.ReviseBoundary(testBoundary()))

	require.Error(t, p.ReviseBoundary(geo.Polygon{}))
}
