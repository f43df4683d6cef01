package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ctp-wound-eligibility-server/internal/domain"
)

// Rolling-window constants for the LCD phase evaluation. The window target
// is day 28 with a ±7-day measurement tolerance, extending to day 35 when
// nothing falls inside the tolerance.
const (
	complianceWindowDays    = 28
	windowToleranceDays     = 7
	defaultPreCTPThreshold  = 50.0
	defaultPostCTPThreshold = 20.0
)

// PhaseComplianceService evaluates a measurement history against one of
// the two mutually exclusive LCD threshold regimes:
//
//   - pre-ctp: baseline is the first measurement; the requirement is a
//     reduction below 50%, meaning conservative care was insufficient and
//     CTP therapy is justified. A reduction of 50% or more means standard
//     of care worked and CTP is not medically necessary.
//   - post-ctp: baseline is the measurement nearest the CTP start date;
//     the requirement is at least 20% reduction per rolling 4-week period,
//     otherwise the therapy is not working and should be discontinued.
//
// All date arithmetic is UTC day-granular so a timezone offset can never
// move a measurement across the day-28 boundary.
type PhaseComplianceService struct {
	logger    *logrus.Logger
	sanitizer *SanitizerService
	policy    domain.PolicyConfig
	now       func() time.Time
}

// NewPhaseComplianceService creates a new phase-compliance engine. Zero
// thresholds in the policy fall back to the LCD defaults.
func NewPhaseComplianceService(logger *logrus.Logger, policy domain.PolicyConfig) *PhaseComplianceService {
	if policy.PreCTPReductionThreshold <= 0 {
		policy.PreCTPReductionThreshold = defaultPreCTPThreshold
	}
	if policy.PostCTPReductionThreshold <= 0 {
		policy.PostCTPReductionThreshold = defaultPostCTPThreshold
	}
	return &PhaseComplianceService{
		logger:    logger,
		sanitizer: NewSanitizerService(),
		policy:    policy,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// EvaluateCompliance walks 28-day windows from the phase baseline and
// renders the tri-state compliance verdict.
//
// Contract violations are hard errors: an invalid phase, a post-ctp call
// without a CTP start date, or an empty history (the orchestrator verifies
// measurement availability before calling).
func (s *PhaseComplianceService) EvaluateCompliance(ctx context.Context, episodeID string, history []domain.TimedArea, phase domain.CompliancePhase, ctpStartDate *time.Time) (*domain.MedicareLCDComplianceResult, error) {
	if !phase.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPhase, phase)
	}
	if phase == domain.PhasePostCTP && ctpStartDate == nil {
		return nil, domain.ErrMissingCTPStartDate
	}
	if len(history) == 0 {
		return nil, domain.ErrNoMeasurements
	}

	measurements := make([]domain.TimedArea, len(history))
	copy(measurements, history)
	for i := range measurements {
		measurements[i].Date = utcDay(measurements[i].Date)
	}
	sort.SliceStable(measurements, func(i, j int) bool {
		return measurements[i].Date.Before(measurements[j].Date)
	})

	var trail []string
	var notes []string

	baseline := s.selectBaseline(measurements, phase, ctpStartDate, &trail)
	threshold := s.phaseThreshold(phase)
	current := measurements[len(measurements)-1]

	trail = append(trail, fmt.Sprintf("Baseline area %.2f cm² measured %s (%s phase)",
		baseline.AreaCM2, baseline.Date.Format("2006-01-02"), phase))

	periods := s.buildPeriods(measurements, baseline, phase, threshold, &trail)

	currentReduction := reductionPercent(baseline.AreaCM2, current.AreaCM2)
	meets := s.meetsPhaseRequirement(phase, currentReduction, threshold)

	trail = append(trail, fmt.Sprintf("Current area %.2f cm² measured %s: %.1f%% reduction from baseline",
		current.AreaCM2, current.Date.Format("2006-01-02"), currentReduction))

	elapsed := daysBetween(baseline.Date, s.now())
	overall := domain.StatusInsufficientData
	switch {
	case elapsed < complianceWindowDays:
		trail = append(trail, fmt.Sprintf("Only %d days elapsed since baseline; %d days required before a compliance determination", elapsed, complianceWindowDays))
	case meets:
		overall = domain.StatusCompliant
	default:
		overall = domain.StatusNonCompliant
	}

	switch phase {
	case domain.PhasePreCTP:
		if meets {
			trail = append(trail, fmt.Sprintf("Reduction %.1f%% is below the %.0f%% threshold: conservative care insufficient, CTP medically justified", currentReduction, threshold))
		} else {
			trail = append(trail, fmt.Sprintf("Reduction %.1f%% meets or exceeds the %.0f%% threshold: conservative care effective, CTP not medically necessary", currentReduction, threshold))
		}
		notes = append(notes, fmt.Sprintf("Policy %s requires documented failure of standard of care (<%.0f%% area reduction) before CTP application", s.policy.PolicyID, threshold))
	case domain.PhasePostCTP:
		if meets {
			trail = append(trail, fmt.Sprintf("Reduction %.1f%% meets the %.0f%% per-4-week requirement: CTP therapy is producing measurable healing", currentReduction, threshold))
		} else {
			trail = append(trail, fmt.Sprintf("Reduction %.1f%% falls short of the %.0f%% per-4-week requirement: continued CTP applications are not supported", currentReduction, threshold))
		}
		notes = append(notes, fmt.Sprintf("Policy %s requires at least %.0f%% area reduction per 4-week interval for continued CTP coverage", s.policy.PolicyID, threshold))
	}

	result := &domain.MedicareLCDComplianceResult{
		EpisodeID:             episodeID,
		Phase:                 phase,
		BaselineAreaCM2:       baseline.AreaCM2,
		BaselineDate:          baseline.Date,
		CurrentAreaCM2:        current.AreaCM2,
		CurrentReduction:      currentReduction,
		MeetsPhaseRequirement: meets,
		Periods:               periods,
		OverallCompliance:     overall,
		Policy:                s.policyMetadata(),
		AuditTrail:            s.sanitizer.SanitizeAll(trail),
		RegulatoryNotes:       s.sanitizer.SanitizeAll(notes),
		EvaluatedAt:           s.now(),
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"episode_id":         episodeID,
			"phase":              phase.String(),
			"overall_compliance": overall.String(),
			"current_reduction":  currentReduction,
			"periods":            len(periods),
		}).Info("LCD compliance evaluated")
	}

	return result, nil
}

// selectBaseline picks the phase baseline. Pre-ctp uses the first
// measurement (start of standard of care). Post-ctp uses the measurement
// nearest the CTP start date, searching only at-or-before that date and
// falling back to the earliest measurement when none precede it.
func (s *PhaseComplianceService) selectBaseline(measurements []domain.TimedArea, phase domain.CompliancePhase, ctpStartDate *time.Time, trail *[]string) domain.TimedArea {
	if phase == domain.PhasePreCTP {
		return measurements[0]
	}

	ctpDay := utcDay(*ctpStartDate)
	var best *domain.TimedArea
	for i := range measurements {
		m := &measurements[i]
		if m.Date.After(ctpDay) {
			break
		}
		best = m
	}
	if best == nil {
		*trail = append(*trail, fmt.Sprintf("No measurement at or before CTP start %s; falling back to earliest measurement", ctpDay.Format("2006-01-02")))
		return measurements[0]
	}
	return *best
}

// buildPeriods walks 28-day windows from the baseline. For each window the
// measurement closest to the window's day-28 target is selected from the
// ±7-day tolerance band (day 21 through day 35 for the first window);
// windows with no candidate inside the band are recorded in the audit
// trail and skipped.
func (s *PhaseComplianceService) buildPeriods(measurements []domain.TimedArea, baseline domain.TimedArea, phase domain.CompliancePhase, threshold float64, trail *[]string) []domain.CompliancePeriod {
	var periods []domain.CompliancePeriod

	last := measurements[len(measurements)-1].Date
	for i := 1; ; i++ {
		target := baseline.Date.AddDate(0, 0, complianceWindowDays*i)
		windowStart := baseline.Date.AddDate(0, 0, complianceWindowDays*(i-1))
		if target.After(last.AddDate(0, 0, windowToleranceDays)) {
			break
		}

		selected := selectWindowMeasurement(measurements, target)
		if selected == nil {
			*trail = append(*trail, fmt.Sprintf("Period %d (%s to %s): no measurement within tolerance of day %d",
				i, windowStart.Format("2006-01-02"), target.Format("2006-01-02"), complianceWindowDays*i))
			continue
		}

		reduction := reductionPercent(baseline.AreaCM2, selected.AreaCM2)
		passed := s.meetsPhaseRequirement(phase, reduction, threshold)

		periods = append(periods, domain.CompliancePeriod{
			PeriodNumber:     i,
			StartDate:        windowStart,
			EndDate:          target,
			BaselineAreaCM2:  baseline.AreaCM2,
			PeriodAreaCM2:    selected.AreaCM2,
			MeasurementDate:  selected.Date,
			ReductionPercent: reduction,
			Passed:           passed,
		})

		verdict := "FAIL"
		if passed {
			verdict = "PASS"
		}
		*trail = append(*trail, fmt.Sprintf("Period %d (%s to %s): area %.2f cm² on %s, %.1f%% reduction — %s",
			i, windowStart.Format("2006-01-02"), target.Format("2006-01-02"),
			selected.AreaCM2, selected.Date.Format("2006-01-02"), reduction, verdict))
	}

	return periods
}

// selectWindowMeasurement picks the measurement closest to the window
// target day. Candidates must fall within the ±7-day tolerance around the
// target; ties prefer the later measurement. An earlier measurement is a
// mid-window reading, not a 4-week reading, and never stands in for one.
func selectWindowMeasurement(measurements []domain.TimedArea, target time.Time) *domain.TimedArea {
	earliest := target.AddDate(0, 0, -windowToleranceDays)
	latest := target.AddDate(0, 0, windowToleranceDays)

	var best *domain.TimedArea
	var bestDistance float64
	for i := range measurements {
		m := &measurements[i]
		if m.Date.Before(earliest) || m.Date.After(latest) {
			continue
		}
		distance := math.Abs(m.Date.Sub(target).Hours())
		if best == nil || distance < bestDistance || (distance == bestDistance && m.Date.After(best.Date)) {
			best = m
			bestDistance = distance
		}
	}
	return best
}

func (s *PhaseComplianceService) meetsPhaseRequirement(phase domain.CompliancePhase, reduction, threshold float64) bool {
	if phase == domain.PhasePreCTP {
		return reduction < threshold
	}
	return reduction >= threshold
}

func (s *PhaseComplianceService) phaseThreshold(phase domain.CompliancePhase) float64 {
	if phase == domain.PhasePreCTP {
		return s.policy.PreCTPReductionThreshold
	}
	return s.policy.PostCTPReductionThreshold
}

func (s *PhaseComplianceService) policyMetadata() domain.PolicyMetadata {
	meta := domain.PolicyMetadata{
		PolicyID:     s.policy.PolicyID,
		Jurisdiction: s.policy.Jurisdiction,
	}
	if s.policy.EffectiveDate != "" {
		if d, err := parseClinicalDate(s.policy.EffectiveDate); err == nil {
			meta.EffectiveDate = d
		}
	}
	return meta
}

func reductionPercent(baseline, current float64) float64 {
	if baseline <= 0 {
		return 0
	}
	return (baseline - current) / baseline * 100
}
