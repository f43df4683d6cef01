package domain

import (
	"time"
)

// ValidationResult is the universal sub-check output. Every deterministic
// check returns this shape so the orchestrator can fold results uniformly.
// PolicyViolation distinguishes genuine LCD violations from data that is
// merely incomplete or too early to judge.
type ValidationResult struct {
	IsValid         bool           `json:"is_valid"`
	Reason          string         `json:"reason"`
	PolicyViolation bool           `json:"policy_violation,omitempty"`
	Details         map[string]any `json:"details,omitempty"`
}

// ClassificationResult is the wound-type classifier output.
type ClassificationResult struct {
	ValidationResult
	Category       WoundCategory  `json:"category"`
	DiabeticStatus DiabeticStatus `json:"diabetic_status"`
	MatchedPattern string         `json:"matched_pattern,omitempty"`
	MatchedField   string         `json:"matched_field,omitempty"`
}

// ConservativeCareTimelineResult is the timeline validator output.
// Three terminal states exist: enough SOC elapsed with no CTP (valid),
// not enough SOC elapsed with no CTP (invalid, not a violation), and a
// CTP application before the minimum SOC (invalid policy violation).
type ConservativeCareTimelineResult struct {
	ValidationResult
	DaysOfCare         int        `json:"days_of_care"`
	FirstEncounterDate *time.Time `json:"first_encounter_date,omitempty"`
	FirstCTPDate       *time.Time `json:"first_ctp_date,omitempty"`
	CTPEvents          []CTPEvent `json:"ctp_events,omitempty"`
}

// AreaReductionResult reports percent area reduction between two points
// in the episode against the 50% conservative-care effectiveness threshold.
type AreaReductionResult struct {
	InitialAreaCM2    float64 `json:"initial_area_cm2"`
	CurrentAreaCM2    float64 `json:"current_area_cm2"`
	PercentReduction  float64 `json:"percent_reduction"`
	MeetsCTPThreshold bool    `json:"meets_ctp_threshold"`
	Detail            string  `json:"detail"`
}

// CompliancePeriod is one rolling 4-week window in a phase evaluation.
type CompliancePeriod struct {
	PeriodNumber     int       `json:"period_number"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	BaselineAreaCM2  float64   `json:"baseline_area_cm2"`
	PeriodAreaCM2    float64   `json:"period_area_cm2"`
	MeasurementDate  time.Time `json:"measurement_date"`
	ReductionPercent float64   `json:"reduction_percent"`
	Passed           bool      `json:"passed"`
}

// MedicareLCDComplianceResult is the phase-compliance engine output.
// The audit trail has already been passed through the PHI sanitizer and
// is safe to surface outside the PHI boundary.
type MedicareLCDComplianceResult struct {
	EpisodeID             string             `json:"episode_id"`
	Phase                 CompliancePhase    `json:"phase"`
	BaselineAreaCM2       float64            `json:"baseline_area_cm2"`
	BaselineDate          time.Time          `json:"baseline_date"`
	CurrentAreaCM2        float64            `json:"current_area_cm2"`
	CurrentReduction      float64            `json:"current_reduction_percent"`
	MeetsPhaseRequirement bool               `json:"meets_phase_requirement"`
	Periods               []CompliancePeriod `json:"periods"`
	OverallCompliance     ComplianceStatus   `json:"overall_compliance"`
	Policy                PolicyMetadata     `json:"policy"`
	AuditTrail            []string           `json:"audit_trail"`
	RegulatoryNotes       []string           `json:"regulatory_notes"`
	EvaluatedAt           time.Time          `json:"evaluated_at"`
}

// MeasurementValidationRecord is the per-measurement quality assessment.
type MeasurementValidationRecord struct {
	EncounterID         string    `json:"encounter_id,omitempty"`
	Date                time.Time `json:"date"`
	QualityScore        float64   `json:"quality_score"` // 0..1
	Outlier             bool      `json:"outlier"`
	TrendInconsistent   bool      `json:"trend_inconsistent"`
	GapBefore           bool      `json:"gap_before"`
	NeedsClinicalReview bool      `json:"needs_clinical_review"`
	Recommendations     []string  `json:"recommendations,omitempty"`
}

// HealingVelocityMetrics aggregates area-reduction rates across the
// measurement history. Rates are cm² per week; EfficiencyScore is 0..1.
type HealingVelocityMetrics struct {
	AverageWeeklyReduction float64      `json:"average_weekly_reduction_cm2"`
	PeakWeeklyReduction    float64      `json:"peak_weekly_reduction_cm2"`
	Trend                  HealingTrend `json:"trend"`
	ProjectedHealingWeeks  *float64     `json:"projected_healing_weeks,omitempty"`
	EfficiencyScore        float64      `json:"efficiency_score"`
}

// MeasurementQualityReport is the quality controller output.
type MeasurementQualityReport struct {
	Records      []MeasurementValidationRecord `json:"records"`
	Velocity     *HealingVelocityMetrics       `json:"velocity,omitempty"`
	QualityGrade string                        `json:"quality_grade"` // A..F
	Deduplicated []TimedArea                   `json:"deduplicated,omitempty"`
}

// PreEligibilityCheckResult bundles every deterministic sub-check into the
// single externally consumed verdict. OverallEligible false is definitive:
// the AI-analysis service must short-circuit and return this result with
// its citations verbatim. Only an inconclusive (true) result permits
// generative analysis to proceed.
type PreEligibilityCheckResult struct {
	EpisodeID        string                          `json:"episode_id"`
	WoundType        *ClassificationResult           `json:"wound_type"`
	ConservativeCare *ConservativeCareTimelineResult `json:"conservative_care"`
	Measurements     *ValidationResult               `json:"measurements"`
	AreaReduction    *AreaReductionResult            `json:"area_reduction,omitempty"`
	Quality          *MeasurementQualityReport       `json:"quality,omitempty"`
	OverallEligible  bool                            `json:"overall_eligible"`
	FailureReasons   []string                        `json:"failure_reasons"`
	PolicyViolations []string                        `json:"policy_violations"`
	AuditTrail       []string                        `json:"audit_trail"`
	Policy           PolicyMetadata                  `json:"policy"`
	CheckedAt        time.Time                       `json:"checked_at"`
	EngineVersion    string                          `json:"engine_version"`
}
