package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctp-wound-eligibility-server/internal/domain"
)

func woundArea(area float64) *domain.WoundDetailSnapshot {
	return &domain.WoundDetailSnapshot{Area: area, Status: "validated"}
}

func TestPreEligibility_EpisodeRequired(t *testing.T) {
	svc := NewPreEligibilityService(nil, testPolicy)
	ctx := context.Background()

	_, err := svc.PerformPreEligibilityChecks(ctx, nil, nil)
	assert.Error(t, err)

	_, err = svc.PerformPreEligibilityChecks(ctx, &domain.Episode{}, nil)
	assert.Error(t, err)
}

func TestPreEligibility_TraumaticWithEarlyCTP(t *testing.T) {
	svc := NewPreEligibilityService(nil, testPolicy)

	episode := &domain.Episode{ID: "ep-1", PrimaryDiagnosisCode: "S91.301A", WoundType: "open wound"}
	encounters := []domain.Encounter{
		{ID: "e1", Date: "2024-01-01", Wound: woundArea(12.0)},
		{ID: "e2", Date: "2024-01-07", Wound: woundArea(11.8), ProcedureCodes: []string{"15271"}},
	}

	result, err := svc.PerformPreEligibilityChecks(context.Background(), episode, encounters)
	require.NoError(t, err)

	assert.False(t, result.OverallEligible)
	assert.Equal(t, domain.CategoryTraumatic, result.WoundType.Category)
	assert.True(t, result.ConservativeCare.PolicyViolation)
	assert.Equal(t, 6, result.ConservativeCare.DaysOfCare)

	joined := strings.Join(result.FailureReasons, "\n")
	assert.Contains(t, joined, "wound type not covered by LCD policy")
	assert.Contains(t, joined, "conservative care timeline insufficient")
	assert.Len(t, result.PolicyViolations, 2)
	assert.NotEmpty(t, result.AuditTrail)
}

func TestPreEligibility_CoveredDFUPasses(t *testing.T) {
	svc := NewPreEligibilityService(nil, testPolicy)

	episode := &domain.Episode{ID: "ep-2", PrimaryDiagnosisCode: "E11.621", WoundType: "diabetic foot ulcer"}
	encounters := []domain.Encounter{
		{ID: "e1", Date: "2024-01-01", Wound: woundArea(15.0), DiabeticStatus: "T2DM"},
		{ID: "e2", Date: "2024-01-08", Wound: woundArea(13.5)},
		{ID: "e3", Date: "2024-01-15", Wound: woundArea(12.0)},
		{ID: "e4", Date: "2024-01-22", Wound: woundArea(11.5)},
		{ID: "e5", Date: "2024-01-29", Wound: woundArea(10.0), ProcedureCodes: []string{"15271"}},
	}

	result, err := svc.PerformPreEligibilityChecks(context.Background(), episode, encounters)
	require.NoError(t, err)

	assert.True(t, result.OverallEligible, "failures: %v", result.FailureReasons)
	assert.Empty(t, result.FailureReasons)
	assert.Empty(t, result.PolicyViolations)

	assert.Equal(t, domain.CategoryDFU, result.WoundType.Category)
	assert.Equal(t, domain.StatusDiabetic, result.WoundType.DiabeticStatus)
	assert.True(t, result.ConservativeCare.IsValid)
	assert.Equal(t, 28, result.ConservativeCare.DaysOfCare)

	// Reduction from 15.0 to the day-22 measurement (11.5), the last one
	// strictly before the CTP application.
	require.NotNil(t, result.AreaReduction)
	assert.InDelta(t, 23.33, result.AreaReduction.PercentReduction, 0.01)
	assert.True(t, result.AreaReduction.MeetsCTPThreshold)

	require.NotNil(t, result.Quality)
	assert.NotEmpty(t, result.Quality.Records)

	assert.Equal(t, EngineVersion, result.EngineVersion)
	assert.Equal(t, "L35041", result.Policy.PolicyID)
	assert.False(t, result.CheckedAt.IsZero())
}

func TestPreEligibility_ConservativeCareWorkedIsCriticalFailure(t *testing.T) {
	svc := NewPreEligibilityService(nil, testPolicy)
	svc.timeline.now = fixedClock("2024-02-10")

	episode := &domain.Episode{ID: "ep-3", PrimaryDiagnosisCode: "I83.019"}
	encounters := []domain.Encounter{
		{ID: "e1", Date: "2024-01-01", Wound: woundArea(16.0)},
		{ID: "e2", Date: "2024-01-15", Wound: woundArea(9.0)},
		{ID: "e3", Date: "2024-01-29", Wound: woundArea(4.0)},
	}

	result, err := svc.PerformPreEligibilityChecks(context.Background(), episode, encounters)
	require.NoError(t, err)

	// Classification and timeline both pass, but the wound responded to
	// standard of care: 75% reduction fails medical necessity outright.
	assert.True(t, result.WoundType.IsValid)
	assert.True(t, result.ConservativeCare.IsValid)
	assert.False(t, result.OverallEligible)

	joined := strings.Join(result.FailureReasons, "\n")
	assert.Contains(t, joined, "not medically necessary")
	require.NotEmpty(t, result.PolicyViolations)
	assert.Contains(t, result.PolicyViolations[0], "L35041")
}

func TestPreEligibility_NoMeasurements(t *testing.T) {
	svc := NewPreEligibilityService(nil, testPolicy)
	svc.timeline.now = fixedClock("2024-02-10")

	episode := &domain.Episode{ID: "ep-4", PrimaryDiagnosisCode: "I83.019"}
	encounters := []domain.Encounter{
		{ID: "e1", Date: "2024-01-01", Notes: "compression therapy started"},
		{ID: "e2", Date: "2024-01-29"},
	}

	result, err := svc.PerformPreEligibilityChecks(context.Background(), episode, encounters)
	require.NoError(t, err)

	assert.False(t, result.OverallEligible)
	assert.False(t, result.Measurements.IsValid)
	assert.Nil(t, result.AreaReduction)
	// Missing data is a failure, never a policy violation.
	assert.Empty(t, result.PolicyViolations)
}

func TestPreEligibility_AuditTrailSanitized(t *testing.T) {
	svc := NewPreEligibilityService(nil, testPolicy)

	episode := &domain.Episode{ID: "ep-5", PrimaryDiagnosisCode: "E11.621"}
	encounters := []domain.Encounter{
		{
			ID:    "e1",
			Date:  "2024-01-01",
			Notes: "Dr. Smith debrided the ulcer",
			Wound: &domain.WoundDetailSnapshot{Length: "bad-value", Width: 2},
		},
	}

	result, err := svc.PerformPreEligibilityChecks(context.Background(), episode, encounters)
	require.NoError(t, err)

	for _, line := range result.AuditTrail {
		assert.NotContains(t, line, "Smith")
	}
	for _, line := range result.FailureReasons {
		assert.NotContains(t, line, "Smith")
	}
}

func TestPreEligibility_ParseFailureIsNotFatal(t *testing.T) {
	svc := NewPreEligibilityService(nil, testPolicy)
	svc.timeline.now = fixedClock("2024-02-10")

	episode := &domain.Episode{ID: "ep-6", PrimaryDiagnosisCode: "I83.019"}
	encounters := []domain.Encounter{
		{ID: "e1", Date: "2024-01-01", Wound: woundArea(15.0)},
		{ID: "e2", Date: "2024-01-15", Wound: &domain.WoundDetailSnapshot{Length: "garbage"}},
		{ID: "e3", Date: "2024-01-29", Wound: woundArea(12.0)},
	}

	result, err := svc.PerformPreEligibilityChecks(context.Background(), episode, encounters)
	require.NoError(t, err)

	assert.True(t, result.Measurements.IsValid)
	require.NotNil(t, result.AreaReduction)
	assert.Equal(t, 15.0, result.AreaReduction.InitialAreaCM2)
	assert.Equal(t, 12.0, result.AreaReduction.CurrentAreaCM2)
}
