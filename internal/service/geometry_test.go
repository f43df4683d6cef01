package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctp-wound-eligibility-server/internal/domain"
)

func TestNormalizeToCentimeters(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		unit    domain.MeasurementUnit
		want    float64
		wantErr bool
	}{
		{"Millimeters", 45, domain.UnitMillimeters, 4.5, false},
		{"Centimeters unchanged", 4.5, domain.UnitCentimeters, 4.5, false},
		{"Inches", 2, domain.UnitInches, 5.08, false},
		{"Meters", 0.04, domain.UnitMeters, 4, false},
		{"Unsupported unit", 4.5, domain.MeasurementUnit("furlong"), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeToCentimeters(tt.value, tt.unit)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrUnsupportedUnit)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestNormalizeToCentimeters_Idempotent(t *testing.T) {
	// Normalizing an already-normalized value must be a no-op.
	once, err := NormalizeToCentimeters(45, domain.UnitMillimeters)
	require.NoError(t, err)

	twice, err := NormalizeToCentimeters(once, domain.UnitCentimeters)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestEllipticalArea(t *testing.T) {
	// 4 × 2 ellipse: π·2·1 = 2π
	assert.InDelta(t, 2*math.Pi, EllipticalArea(4, 2), 1e-9)
}

func TestRectangularArea(t *testing.T) {
	assert.Equal(t, 8.0, RectangularArea(4, 2))
}

func TestIrregularArea(t *testing.T) {
	tests := []struct {
		name     string
		vertices []domain.Vertex
		want     float64
		wantErr  bool
	}{
		{
			name:     "Unit square",
			vertices: []domain.Vertex{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
			want:     1,
		},
		{
			name:     "Triangle",
			vertices: []domain.Vertex{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 0, Y: 3}},
			want:     6,
		},
		{
			name:     "Clockwise ordering gives same magnitude",
			vertices: []domain.Vertex{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}},
			want:     1,
		},
		{
			name:     "Too few vertices",
			vertices: []domain.Vertex{{X: 0, Y: 0}, {X: 1, Y: 1}},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IrregularArea(tt.vertices)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrTooFewVertices)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestValidatePolygon(t *testing.T) {
	t.Run("Valid square", func(t *testing.T) {
		result := ValidatePolygon([]domain.Vertex{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}})
		assert.True(t, result.IsValid)
	})

	t.Run("Self-intersecting bowtie", func(t *testing.T) {
		result := ValidatePolygon([]domain.Vertex{{X: 0, Y: 0}, {X: 2, Y: 2}, {X: 2, Y: 0}, {X: 0, Y: 2}})
		assert.False(t, result.IsValid)
		assert.Contains(t, result.Reason, "self-intersects")
	})

	t.Run("Implausibly small area", func(t *testing.T) {
		result := ValidatePolygon([]domain.Vertex{{X: 0, Y: 0}, {X: 0.1, Y: 0}, {X: 0.1, Y: 0.1}, {X: 0, Y: 0.1}})
		assert.False(t, result.IsValid)
		assert.Contains(t, result.Reason, "outside plausible range")
	})

	t.Run("Implausibly large area", func(t *testing.T) {
		result := ValidatePolygon([]domain.Vertex{{X: 0, Y: 0}, {X: 50, Y: 0}, {X: 50, Y: 50}, {X: 0, Y: 50}})
		assert.False(t, result.IsValid)
	})

	t.Run("Too few vertices", func(t *testing.T) {
		result := ValidatePolygon([]domain.Vertex{{X: 0, Y: 0}, {X: 1, Y: 1}})
		assert.False(t, result.IsValid)
	})
}

func TestVolumes(t *testing.T) {
	assert.InDelta(t, (math.Pi/6)*24, EllipsoidVolume(4, 3, 2), 1e-9)
	assert.InDelta(t, 0.327*24, TruncatedEllipsoidVolume(4, 3, 2), 1e-9)
}

func TestAreaFromMeasurement_Precedence(t *testing.T) {
	explicit := 7.5
	vertices := []domain.Vertex{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}}

	t.Run("Explicit area wins over everything", func(t *testing.T) {
		m := &domain.WoundMeasurement{Length: 4, Width: 2, Area: &explicit, Vertices: vertices, Unit: domain.UnitCentimeters}
		area, method, err := AreaFromMeasurement(m)
		require.NoError(t, err)
		assert.Equal(t, explicit, area)
		assert.Equal(t, domain.MethodPlanimetry, method)
	})

	t.Run("Polygon wins over dimensions", func(t *testing.T) {
		m := &domain.WoundMeasurement{Length: 4, Width: 2, Vertices: vertices, Unit: domain.UnitCentimeters}
		area, method, err := AreaFromMeasurement(m)
		require.NoError(t, err)
		assert.InDelta(t, 4.0, area, 1e-9)
		assert.Equal(t, domain.MethodIrregular, method)
	})

	t.Run("Elliptical is the dimensional default", func(t *testing.T) {
		m := &domain.WoundMeasurement{Length: 4, Width: 2, Unit: domain.UnitCentimeters}
		area, method, err := AreaFromMeasurement(m)
		require.NoError(t, err)
		assert.InDelta(t, 2*math.Pi, area, 1e-9)
		assert.Equal(t, domain.MethodElliptical, method)
	})

	t.Run("Rectangular only when tagged", func(t *testing.T) {
		m := &domain.WoundMeasurement{Length: 4, Width: 2, Method: domain.MethodRectangular, Unit: domain.UnitCentimeters}
		area, method, err := AreaFromMeasurement(m)
		require.NoError(t, err)
		assert.Equal(t, 8.0, area)
		assert.Equal(t, domain.MethodRectangular, method)
	})

	t.Run("No usable data", func(t *testing.T) {
		m := &domain.WoundMeasurement{Unit: domain.UnitCentimeters}
		_, _, err := AreaFromMeasurement(m)
		assert.Error(t, err)
	})
}

func TestComputeAreaReduction(t *testing.T) {
	t.Run("Below threshold justifies CTP", func(t *testing.T) {
		result := ComputeAreaReduction(15.0, 10.0, 50.0)
		assert.InDelta(t, 33.33, result.PercentReduction, 0.01)
		assert.True(t, result.MeetsCTPThreshold)
	})

	t.Run("At threshold means conservative care worked", func(t *testing.T) {
		result := ComputeAreaReduction(10.0, 5.0, 50.0)
		assert.InDelta(t, 50.0, result.PercentReduction, 1e-9)
		assert.False(t, result.MeetsCTPThreshold)
	})

	t.Run("Growing wound is negative reduction", func(t *testing.T) {
		result := ComputeAreaReduction(10.0, 12.0, 50.0)
		assert.InDelta(t, -20.0, result.PercentReduction, 1e-9)
		assert.True(t, result.MeetsCTPThreshold)
	})

	t.Run("Zero baseline yields zero reduction", func(t *testing.T) {
		result := ComputeAreaReduction(0, 5, 50.0)
		assert.Zero(t, result.PercentReduction)
	})

	t.Run("Round trip recovers the baseline", func(t *testing.T) {
		// Applying the complementary ratio to the current area must give
		// back the initial area, for shrinking and growing wounds alike.
		for _, tt := range []struct{ initial, current float64 }{
			{15.0, 10.0},
			{10.0, 12.0},
			{7.3, 7.3},
		} {
			forward := ComputeAreaReduction(tt.initial, tt.current, 50.0)
			recovered := forward.CurrentAreaCM2 / (1 - forward.PercentReduction/100)
			assert.InDelta(t, tt.initial, recovered, 1e-9)
		}
	})
}
