// Package domain contains core business entities and types for Medicare
// CTP (cellular/tissue-based product) wound-treatment eligibility checks
// under Local Coverage Determination (LCD) policy rules.
//
// Reference: CMS LCD L35041, Application of Bioengineered Skin Substitutes
// to Lower Extremity Chronic Non-Healing Wounds.
package domain

import (
	"time"
)

// WoundCategory represents the policy classification of a wound episode.
// Only diabetic foot ulcers and venous leg ulcers are covered categories;
// the remaining categories are explicit policy disqualifiers.
type WoundCategory string

const (
	CategoryDFU          WoundCategory = "DFU"
	CategoryVLU          WoundCategory = "VLU"
	CategoryTraumatic    WoundCategory = "TRAUMATIC"
	CategorySurgical     WoundCategory = "SURGICAL"
	CategoryPressure     WoundCategory = "PRESSURE"
	CategoryArterial     WoundCategory = "ARTERIAL"
	CategoryUnclassified WoundCategory = "UNCLASSIFIED"
)

// IsValid validates that the category is a known policy category.
func (wc WoundCategory) IsValid() bool {
	switch wc {
	case CategoryDFU, CategoryVLU, CategoryTraumatic, CategorySurgical,
		CategoryPressure, CategoryArterial, CategoryUnclassified:
		return true
	default:
		return false
	}
}

// Covered reports whether the category is reimbursable under the LCD.
func (wc WoundCategory) Covered() bool {
	return wc == CategoryDFU || wc == CategoryVLU
}

// String returns the string representation of the category.
// Required for audit trails and structured logging.
func (wc WoundCategory) String() string {
	return string(wc)
}

// LogFields returns structured logging fields for audit trails.
// Strongly typed to keep compliance logging consistent across services.
func (wc WoundCategory) LogFields() map[string]any {
	return map[string]any{
		"wound_category": string(wc),
		"covered":        wc.Covered(),
		"is_valid":       wc.IsValid(),
	}
}

// DiabeticStatus is the normalized three-way diabetic documentation tag.
// Arbitrary chart synonyms are folded into these values before any
// coverage rule consumes them.
type DiabeticStatus string

const (
	StatusDiabetic    DiabeticStatus = "diabetic"
	StatusNondiabetic DiabeticStatus = "nondiabetic"
	StatusUnknown     DiabeticStatus = "unknown"
)

// IsValid validates the diabetic status tag.
func (ds DiabeticStatus) IsValid() bool {
	switch ds {
	case StatusDiabetic, StatusNondiabetic, StatusUnknown:
		return true
	default:
		return false
	}
}

func (ds DiabeticStatus) String() string {
	return string(ds)
}

// MeasurementUnit represents the linear unit of a raw wound measurement.
type MeasurementUnit string

const (
	UnitMillimeters MeasurementUnit = "mm"
	UnitCentimeters MeasurementUnit = "cm"
	UnitInches      MeasurementUnit = "in"
	UnitMeters      MeasurementUnit = "m"
)

// IsValid validates the measurement unit.
func (mu MeasurementUnit) IsValid() bool {
	switch mu {
	case UnitMillimeters, UnitCentimeters, UnitInches, UnitMeters:
		return true
	default:
		return false
	}
}

func (mu MeasurementUnit) String() string {
	return string(mu)
}

// MeasurementMethod represents how a wound area was measured or derived.
type MeasurementMethod string

const (
	MethodRectangular MeasurementMethod = "rectangular"
	MethodElliptical  MeasurementMethod = "elliptical"
	MethodIrregular   MeasurementMethod = "irregular"
	MethodPlanimetry  MeasurementMethod = "planimetry"
)

// IsValid validates the measurement method tag.
func (mm MeasurementMethod) IsValid() bool {
	switch mm {
	case MethodRectangular, MethodElliptical, MethodIrregular, MethodPlanimetry:
		return true
	default:
		return false
	}
}

func (mm MeasurementMethod) String() string {
	return string(mm)
}

// MeasurementStatus is the validation state of a recorded measurement.
type MeasurementStatus string

const (
	MeasurementValidated   MeasurementStatus = "validated"
	MeasurementUnvalidated MeasurementStatus = "unvalidated"
	MeasurementFlagged     MeasurementStatus = "flagged"
)

// IsValid validates the measurement status.
func (ms MeasurementStatus) IsValid() bool {
	switch ms {
	case MeasurementValidated, MeasurementUnvalidated, MeasurementFlagged:
		return true
	default:
		return false
	}
}

func (ms MeasurementStatus) String() string {
	return string(ms)
}

// CompliancePhase selects which LCD threshold regime applies.
// The two phases have opposite-direction reduction requirements:
// pre-ctp requires conservative care to have been insufficient (<50%),
// post-ctp requires the therapy to be working (>=20% per 4-week period).
type CompliancePhase string

const (
	PhasePreCTP  CompliancePhase = "pre-ctp"
	PhasePostCTP CompliancePhase = "post-ctp"
)

// IsValid validates the compliance phase.
func (cp CompliancePhase) IsValid() bool {
	return cp == PhasePreCTP || cp == PhasePostCTP
}

func (cp CompliancePhase) String() string {
	return string(cp)
}

// ComplianceStatus is the tri-state outcome of an LCD compliance evaluation.
type ComplianceStatus string

const (
	StatusCompliant        ComplianceStatus = "compliant"
	StatusNonCompliant     ComplianceStatus = "non_compliant"
	StatusInsufficientData ComplianceStatus = "insufficient_data"
)

// IsValid validates the compliance status.
func (cs ComplianceStatus) IsValid() bool {
	switch cs {
	case StatusCompliant, StatusNonCompliant, StatusInsufficientData:
		return true
	default:
		return false
	}
}

func (cs ComplianceStatus) String() string {
	return string(cs)
}

// Definitive reports whether the status short-circuits downstream analysis.
// A non_compliant result must be returned to the caller verbatim; only an
// inconclusive state permits the AI-analysis service to proceed.
func (cs ComplianceStatus) Definitive() bool {
	return cs == StatusCompliant || cs == StatusNonCompliant
}

// LogFields returns structured logging fields for audit trails.
func (cs ComplianceStatus) LogFields() map[string]any {
	return map[string]any{
		"compliance_status": string(cs),
		"definitive":        cs.Definitive(),
		"is_valid":          cs.IsValid(),
	}
}

// HealingTrend classifies the direction of wound-area change over time.
type HealingTrend string

const (
	TrendImproving     HealingTrend = "improving"
	TrendStalled       HealingTrend = "stalled"
	TrendDeteriorating HealingTrend = "deteriorating"
)

func (ht HealingTrend) String() string {
	return string(ht)
}

// PolicyMetadata identifies the LCD policy a compliance result was
// evaluated against, so document layers can cite it without re-deriving.
type PolicyMetadata struct {
	PolicyID      string    `json:"policy_id"`
	Jurisdiction  string    `json:"jurisdiction"`
	EffectiveDate time.Time `json:"effective_date"`
}
