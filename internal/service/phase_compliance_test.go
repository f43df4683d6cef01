package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctp-wound-eligibility-server/internal/domain"
)

var testPolicy = domain.PolicyConfig{
	PolicyID:                  "L35041",
	Jurisdiction:              "MAC Jurisdiction N",
	EffectiveDate:             "2023-01-01",
	MinConservativeCareDays:   28,
	PreCTPReductionThreshold:  50.0,
	PostCTPReductionThreshold: 20.0,
}

func weeklyHistory(base time.Time, areas ...float64) []domain.TimedArea {
	history := make([]domain.TimedArea, 0, len(areas))
	for i, a := range areas {
		history = append(history, domain.TimedArea{
			EncounterID: "e" + string(rune('1'+i)),
			Date:        base.AddDate(0, 0, 7*i),
			AreaCM2:     a,
			Status:      domain.MeasurementValidated,
		})
	}
	return history
}

func TestPhaseCompliance_ContractViolations(t *testing.T) {
	svc := NewPhaseComplianceService(nil, testPolicy)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	history := weeklyHistory(base, 15, 10)

	t.Run("Invalid phase", func(t *testing.T) {
		_, err := svc.EvaluateCompliance(ctx, "ep1", history, domain.CompliancePhase("mid-ctp"), nil)
		assert.ErrorIs(t, err, domain.ErrInvalidPhase)
	})

	t.Run("Post-ctp without CTP start date", func(t *testing.T) {
		_, err := svc.EvaluateCompliance(ctx, "ep1", history, domain.PhasePostCTP, nil)
		assert.ErrorIs(t, err, domain.ErrMissingCTPStartDate)
	})

	t.Run("Empty history", func(t *testing.T) {
		_, err := svc.EvaluateCompliance(ctx, "ep1", nil, domain.PhasePreCTP, nil)
		assert.ErrorIs(t, err, domain.ErrNoMeasurements)
	})
}

func TestPhaseCompliance_PreCTPJustified(t *testing.T) {
	svc := NewPhaseComplianceService(nil, testPolicy)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base.AddDate(0, 0, 35) }

	// 15 → 10 cm² over four weeks is 33.3%: below 50%, conservative care
	// failed, CTP justified.
	history := weeklyHistory(base, 15.0, 13.5, 12.0, 11.5, 10.0)

	result, err := svc.EvaluateCompliance(context.Background(), "ep1", history, domain.PhasePreCTP, nil)
	require.NoError(t, err)

	assert.Equal(t, 15.0, result.BaselineAreaCM2)
	assert.Equal(t, base, result.BaselineDate)
	assert.Equal(t, 10.0, result.CurrentAreaCM2)
	assert.InDelta(t, 33.33, result.CurrentReduction, 0.01)
	assert.True(t, result.MeetsPhaseRequirement)
	assert.Equal(t, domain.StatusCompliant, result.OverallCompliance)

	require.Len(t, result.Periods, 1)
	period := result.Periods[0]
	assert.Equal(t, 1, period.PeriodNumber)
	assert.Equal(t, base.AddDate(0, 0, 28), period.MeasurementDate)
	assert.InDelta(t, 33.33, period.ReductionPercent, 0.01)
	assert.True(t, period.Passed)

	assert.Equal(t, "L35041", result.Policy.PolicyID)
	assert.NotEmpty(t, result.AuditTrail)
	assert.NotEmpty(t, result.RegulatoryNotes)
}

func TestPhaseCompliance_PreCTPNotJustified(t *testing.T) {
	svc := NewPhaseComplianceService(nil, testPolicy)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base.AddDate(0, 0, 35) }

	// 60% reduction: conservative care worked, CTP not medically necessary.
	history := weeklyHistory(base, 15.0, 12.0, 10.0, 8.0, 6.0)

	result, err := svc.EvaluateCompliance(context.Background(), "ep1", history, domain.PhasePreCTP, nil)
	require.NoError(t, err)
	assert.False(t, result.MeetsPhaseRequirement)
	assert.Equal(t, domain.StatusNonCompliant, result.OverallCompliance)
}

func TestPhaseCompliance_PostCTPSameHistory(t *testing.T) {
	svc := NewPhaseComplianceService(nil, testPolicy)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base.AddDate(0, 0, 35) }

	// The same 33.3% trajectory passes post-ctp too: at least 20% per
	// 4-week period means the grafts are working.
	history := weeklyHistory(base, 15.0, 13.5, 12.0, 11.5, 10.0)
	ctpStart := base

	result, err := svc.EvaluateCompliance(context.Background(), "ep1", history, domain.PhasePostCTP, &ctpStart)
	require.NoError(t, err)
	assert.Equal(t, 15.0, result.BaselineAreaCM2)
	assert.True(t, result.MeetsPhaseRequirement)
	assert.Equal(t, domain.StatusCompliant, result.OverallCompliance)
}

func TestPhaseCompliance_PostCTPStalledWound(t *testing.T) {
	svc := NewPhaseComplianceService(nil, testPolicy)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base.AddDate(0, 0, 35) }

	// 6.7% in four weeks: therapy is not producing measurable healing.
	history := weeklyHistory(base, 15.0, 15.0, 14.8, 14.5, 14.0)
	ctpStart := base

	result, err := svc.EvaluateCompliance(context.Background(), "ep1", history, domain.PhasePostCTP, &ctpStart)
	require.NoError(t, err)
	assert.False(t, result.MeetsPhaseRequirement)
	assert.Equal(t, domain.StatusNonCompliant, result.OverallCompliance)
	require.Len(t, result.Periods, 1)
	assert.False(t, result.Periods[0].Passed)
}

func TestPhaseCompliance_PostCTPBaselineNearestCTPStart(t *testing.T) {
	svc := NewPhaseComplianceService(nil, testPolicy)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base.AddDate(0, 0, 60) }

	history := weeklyHistory(base, 15.0, 12.0, 11.0, 10.0, 9.0, 8.0)

	// CTP on day 10: baseline is the day-7 measurement, the closest at or
	// before the application.
	ctpStart := base.AddDate(0, 0, 10)
	result, err := svc.EvaluateCompliance(context.Background(), "ep1", history, domain.PhasePostCTP, &ctpStart)
	require.NoError(t, err)
	assert.Equal(t, 12.0, result.BaselineAreaCM2)
	assert.Equal(t, base.AddDate(0, 0, 7), result.BaselineDate)
}

func TestPhaseCompliance_PostCTPBaselineFallback(t *testing.T) {
	svc := NewPhaseComplianceService(nil, testPolicy)
	base := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base.AddDate(0, 0, 60) }

	history := weeklyHistory(base, 15.0, 12.0, 10.0, 9.0, 8.0)

	// CTP predates every measurement: fall back to the earliest one.
	ctpStart := base.AddDate(0, 0, -5)
	result, err := svc.EvaluateCompliance(context.Background(), "ep1", history, domain.PhasePostCTP, &ctpStart)
	require.NoError(t, err)
	assert.Equal(t, 15.0, result.BaselineAreaCM2)
}

func TestPhaseCompliance_InsufficientData(t *testing.T) {
	svc := NewPhaseComplianceService(nil, testPolicy)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base.AddDate(0, 0, 20) }

	history := weeklyHistory(base, 15.0, 13.0, 12.0)

	result, err := svc.EvaluateCompliance(context.Background(), "ep1", history, domain.PhasePreCTP, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInsufficientData, result.OverallCompliance)
	assert.False(t, result.OverallCompliance.Definitive())
}

func TestPhaseCompliance_WindowSelectsClosestToTarget(t *testing.T) {
	svc := NewPhaseComplianceService(nil, testPolicy)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base.AddDate(0, 0, 45) }

	// Nothing lands on day 28; day 26 beats day 33 by distance.
	history := []domain.TimedArea{
		{Date: base, AreaCM2: 15.0},
		{Date: base.AddDate(0, 0, 26), AreaCM2: 11.0},
		{Date: base.AddDate(0, 0, 33), AreaCM2: 10.0},
	}

	result, err := svc.EvaluateCompliance(context.Background(), "ep1", history, domain.PhasePreCTP, nil)
	require.NoError(t, err)
	require.Len(t, result.Periods, 1)
	assert.Equal(t, base.AddDate(0, 0, 26), result.Periods[0].MeasurementDate)
}

func TestPhaseCompliance_MidWindowMeasurementIsNotAFourWeekReading(t *testing.T) {
	svc := NewPhaseComplianceService(nil, testPolicy)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base.AddDate(0, 0, 50) }

	// Nothing falls within ±7 days of the day-28 target: day 10 is a
	// mid-window reading and day 40 is past the extended boundary. The
	// window must be reported as missing, not filled with the day-10 area.
	history := []domain.TimedArea{
		{Date: base, AreaCM2: 15.0},
		{Date: base.AddDate(0, 0, 10), AreaCM2: 13.0},
		{Date: base.AddDate(0, 0, 40), AreaCM2: 9.0},
	}

	result, err := svc.EvaluateCompliance(context.Background(), "ep1", history, domain.PhasePreCTP, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Periods)
	assert.Contains(t, strings.Join(result.AuditTrail, "\n"), "no measurement within tolerance")
}

func TestPhaseCompliance_TimezoneCannotShiftTheBoundary(t *testing.T) {
	svc := NewPhaseComplianceService(nil, testPolicy)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base.AddDate(0, 0, 40) }

	offset := time.FixedZone("UTC-8", -8*3600)
	history := []domain.TimedArea{
		{Date: time.Date(2024, 1, 1, 22, 0, 0, 0, offset), AreaCM2: 15.0}, // Jan 2 in UTC
		{Date: time.Date(2024, 1, 30, 1, 0, 0, 0, offset), AreaCM2: 10.0}, // Jan 30 in UTC
	}

	result, err := svc.EvaluateCompliance(context.Background(), "ep1", history, domain.PhasePreCTP, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), result.BaselineDate)
	require.Len(t, result.Periods, 1)
}
