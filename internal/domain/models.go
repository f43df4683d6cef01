package domain

import (
	"errors"
	"fmt"
	"time"
)

// Episode represents a wound-treatment episode as supplied by the
// persistence layer. Episodes are immutable read-only snapshots; the
// engine never writes them back.
type Episode struct {
	ID                   string    `json:"id" validate:"required"`
	WoundType            string    `json:"wound_type"`
	WoundLocation        string    `json:"wound_location"`
	PrimaryDiagnosisCode string    `json:"primary_diagnosis_code"`
	StartDate            time.Time `json:"start_date"`
	Status               string    `json:"status"`
}

// Validate ensures the episode carries the minimum data required to
// run any deterministic coverage check.
func (e *Episode) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("episode validation: %w", errors.New("ID is required"))
	}
	if e.WoundType == "" && e.PrimaryDiagnosisCode == "" {
		return fmt.Errorf("episode validation: %w", errors.New("wound type or primary diagnosis code is required"))
	}
	return nil
}

// Encounter is a single clinical visit within an episode. Encounters form
// an event log ordered (or orderable) by date; the engine treats the
// collection as immutable.
//
// Date is kept as the raw chart string because upstream extraction cannot
// guarantee a parseable value; the timeline validator owns parsing and
// reports a dated-validation failure rather than panicking.
type Encounter struct {
	ID               string                    `json:"id"`
	Date             string                    `json:"date"`
	Notes            string                    `json:"notes,omitempty"`
	DiabeticStatus   string                    `json:"diabetic_status,omitempty"`
	Wound            *WoundDetailSnapshot      `json:"wound,omitempty"`
	ConservativeCare *ConservativeCareSnapshot `json:"conservative_care,omitempty"`
	ProcedureCodes   []string                  `json:"procedure_codes,omitempty"`
}

// WoundDetailSnapshot is the wound documentation captured at one encounter.
// Measurement fields are deliberately untyped: upstream free-form extraction
// delivers numbers, numeric strings, or strings with unit suffixes, and the
// measurement parser is the single place that turns them into typed values.
type WoundDetailSnapshot struct {
	Length    any         `json:"length,omitempty"`
	Width     any         `json:"width,omitempty"`
	Depth     any         `json:"depth,omitempty"`
	Area      any         `json:"area,omitempty"`
	Unit      string      `json:"unit,omitempty"`
	Method    string      `json:"method,omitempty"`
	Vertices  []RawVertex `json:"vertices,omitempty"`
	Status    string      `json:"status,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// RawVertex is one unparsed polygon vertex from wound tracing.
type RawVertex struct {
	X any `json:"x"`
	Y any `json:"y"`
}

// ConservativeCareSnapshot records the standard-of-care interventions
// documented at an encounter. Informational for audit output; the SOC
// duration itself is derived from encounter dates.
type ConservativeCareSnapshot struct {
	Offloading       bool   `json:"offloading,omitempty"`
	Compression      bool   `json:"compression,omitempty"`
	Debridement      bool   `json:"debridement,omitempty"`
	MoistDressings   bool   `json:"moist_dressings,omitempty"`
	InfectionManaged bool   `json:"infection_managed,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

// Vertex is a parsed, unit-normalized polygon vertex in centimeters.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// WoundMeasurement is a fully parsed and unit-normalized measurement.
// Invariant: Length and Width, when set, are finite positive values in
// centimeters; normalization is idempotent and applied exactly once by
// the measurement parser.
type WoundMeasurement struct {
	Length    float64           `json:"length_cm"`
	Width     float64           `json:"width_cm"`
	Depth     *float64          `json:"depth_cm,omitempty"`
	Area      *float64          `json:"area_cm2,omitempty"`
	Unit      MeasurementUnit   `json:"unit"`
	Vertices  []Vertex          `json:"vertices,omitempty"`
	Method    MeasurementMethod `json:"method,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Status    MeasurementStatus `json:"status"`
}

// Validate ensures the measurement honors the normalized-value invariant.
func (m *WoundMeasurement) Validate() error {
	if m.Unit != UnitCentimeters {
		return fmt.Errorf("measurement validation: %w", ErrUnnormalizedMeasurement)
	}
	if m.Length <= 0 || m.Width <= 0 {
		return fmt.Errorf("measurement validation: %w", errors.New("length and width must be positive"))
	}
	if m.Depth != nil && *m.Depth < 0 {
		return fmt.Errorf("measurement validation: %w", errors.New("depth cannot be negative"))
	}
	if m.Area != nil && *m.Area <= 0 {
		return fmt.Errorf("measurement validation: %w", errors.New("explicit area must be positive"))
	}
	if m.Status != "" && !m.Status.IsValid() {
		return fmt.Errorf("measurement validation: %w", ErrInvalidMeasurementStatus)
	}
	return nil
}

// TimedArea pairs a computed wound area with its measurement date.
// This is the unit of input to the phase-compliance engine and the
// quality controller.
type TimedArea struct {
	EncounterID string            `json:"encounter_id,omitempty"`
	Date        time.Time         `json:"date"`
	AreaCM2     float64           `json:"area_cm2"`
	Method      MeasurementMethod `json:"method,omitempty"`
	Status      MeasurementStatus `json:"status,omitempty"`
	HasDepth    bool              `json:"has_depth,omitempty"`
	HasArea     bool              `json:"has_explicit_area,omitempty"`
}

// CTPEvent is one detected CTP-application event within an episode.
type CTPEvent struct {
	EncounterID string    `json:"encounter_id"`
	Date        time.Time `json:"date"`
	Source      string    `json:"source"` // "procedure_code" or "clinical_note"
	Match       string    `json:"match"`
}
