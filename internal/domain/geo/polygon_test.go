package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openacre/land-exchange-backend/internal/domain/errors"
)

const squareGeoJSON = `{
	"type": "Polygon",
	"coordinates": [[[0,0],[0.001,0],[0.001,0.001],[0,0.001],[0,0]]]
}`

func TestParseBoundary(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantErr  bool
		vertices int
	}{
		{
			name:     "bare polygon",
			raw:      squareGeoJSON,
			vertices: 4,
		},
		{
			name:     "feature wrapping a polygon",
			raw:      `{"type":"Feature","properties":{},"geometry":` + squareGeoJSON + `}`,
			vertices: 4,
		},
		{
			name:     "feature collection uses first feature",
			raw:      `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":` + squareGeoJSON + `}]}`,
			vertices: 4,
		},
		{
			name:    "unsupported geometry type",
			raw:     `{"type":"LineString","coordinates":[[0,0],[1,1]]}`,
			wantErr: true,
		},
		{
			name:    "unsupported multipolygon",
			raw:     `{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,0]]]]}`,
			wantErr: true,
		},
		{
			name:    "empty feature collection",
			raw:     `{"type":"FeatureCollection","features":[]}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     `{{{`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseBoundary([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation),
					"parse failures must surface as validation errors")
				return
			}
			require.NoError(t, err)
			assert.True(t, p.Closed())
			assert.Equal(t, tt.vertices, p.NumVertices())
		})
	}
}

func TestPolygonJSONRoundTrip(t *testing.T) {
	p, err := ParseBoundary([]byte(squareGeoJSON))
	require.NoError(t, err)

	data, err := p.MarshalJSON()
	require.NoError(t, err)

	var back Polygon
	require.NoError(t, back.UnmarshalJSON(data))
	assert.True(t, Equals(p, back))
}
