package domain

import (
	"context"
	"time"
)

// EligibilityEngine is the single externally consumed entry point for the
// deterministic pre-eligibility gate. A false OverallEligible result is
// definitive and must short-circuit any downstream generative analysis.
type EligibilityEngine interface {
	PerformPreEligibilityChecks(ctx context.Context, episode *Episode, encounters []Encounter) (*PreEligibilityCheckResult, error)
}

// WoundClassifier maps diagnosis codes and free text to covered or
// disqualifying wound categories.
type WoundClassifier interface {
	ClassifyWoundType(woundType, diagnosisCode string, notes []string, diabeticStatus string) *ClassificationResult
	NormalizeDiabeticStatus(raw string) DiabeticStatus
}

// TimelineValidator detects CTP-application events and computes the
// standard-of-care duration against the policy minimum.
type TimelineValidator interface {
	ValidateConservativeCareTimeline(encounters []Encounter, minDaysRequired int) *ConservativeCareTimelineResult
}

// ComplianceEvaluator evaluates a measurement history against one of the
// two LCD phase regimes. ctpStartDate is required for the post-ctp phase
// and must be nil for pre-ctp.
type ComplianceEvaluator interface {
	EvaluateCompliance(ctx context.Context, episodeID string, history []TimedArea, phase CompliancePhase, ctpStartDate *time.Time) (*MedicareLCDComplianceResult, error)
}

// QualityController scores measurement quality and healing velocity.
type QualityController interface {
	AssessMeasurements(history []TimedArea) *MeasurementQualityReport
}

// MeasurementParser turns free-form upstream measurement data into typed,
// unit-normalized measurements or a structured parse failure.
type MeasurementParser interface {
	ParseMeasurement(snapshot *WoundDetailSnapshot, encounterDate time.Time) (*WoundMeasurement, *ValidationResult)
}

// Sanitizer redacts PHI from audit-trail text before it crosses the
// module boundary. Sanitize must be idempotent.
type Sanitizer interface {
	Sanitize(text string) string
	SanitizeAll(lines []string) []string
}
