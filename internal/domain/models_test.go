package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEpisodeValidate(t *testing.T) {
	tests := []struct {
		name    string
		episode Episode
		wantErr string
	}{
		{
			name:    "Valid with diagnosis code only",
			episode: Episode{ID: "ep1", PrimaryDiagnosisCode: "E11.621"},
		},
		{
			name:    "Valid with wound type only",
			episode: Episode{ID: "ep1", WoundType: "venous leg ulcer"},
		},
		{
			name:    "Missing ID",
			episode: Episode{PrimaryDiagnosisCode: "E11.621"},
			wantErr: "ID is required",
		},
		{
			name:    "No classification inputs",
			episode: Episode{ID: "ep1"},
			wantErr: "wound type or primary diagnosis code is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.episode.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestWoundMeasurementValidate(t *testing.T) {
	depth := 0.5
	negDepth := -0.5
	area := 9.0
	zeroArea := 0.0

	tests := []struct {
		name    string
		m       WoundMeasurement
		wantErr error
	}{
		{
			name: "Normalized measurement passes",
			m:    WoundMeasurement{Length: 4.5, Width: 2, Unit: UnitCentimeters, Depth: &depth, Area: &area, Status: MeasurementValidated},
		},
		{
			name:    "Unit other than centimeters",
			m:       WoundMeasurement{Length: 45, Width: 20, Unit: UnitMillimeters},
			wantErr: ErrUnnormalizedMeasurement,
		},
		{
			name:    "Invalid status tag",
			m:       WoundMeasurement{Length: 4.5, Width: 2, Unit: UnitCentimeters, Status: MeasurementStatus("draft")},
			wantErr: ErrInvalidMeasurementStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("Non-positive dimensions", func(t *testing.T) {
		m := WoundMeasurement{Length: 0, Width: 2, Unit: UnitCentimeters}
		assert.ErrorContains(t, m.Validate(), "length and width must be positive")
	})

	t.Run("Negative depth", func(t *testing.T) {
		m := WoundMeasurement{Length: 4, Width: 2, Unit: UnitCentimeters, Depth: &negDepth}
		assert.ErrorContains(t, m.Validate(), "depth cannot be negative")
	})

	t.Run("Zero explicit area", func(t *testing.T) {
		m := WoundMeasurement{Length: 4, Width: 2, Unit: UnitCentimeters, Area: &zeroArea}
		assert.ErrorContains(t, m.Validate(), "explicit area must be positive")
	})
}
