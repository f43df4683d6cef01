package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ctp-wound-eligibility-server/internal/domain"
)

// EngineVersion identifies the deterministic rule set for audit purposes.
const EngineVersion = "1.0.0"

// PreEligibilityService is the deterministic gate run before any
// generative analysis. It folds the classifier, timeline validator,
// measurement checks, and the area-reduction cross-check into a single
// PreEligibilityCheckResult with a sanitized audit trail.
//
// The service holds no mutable state: every invocation is a pure function
// of its inputs plus the wall clock, so concurrent calls need no
// coordination.
type PreEligibilityService struct {
	logger     *logrus.Logger
	classifier *WoundClassifierService
	timeline   *TimelineValidatorService
	parser     *MeasurementParserService
	quality    *QualityControllerService
	sanitizer  *SanitizerService
	policy     domain.PolicyConfig
	now        func() time.Time
}

// NewPreEligibilityService wires the engine components together.
func NewPreEligibilityService(logger *logrus.Logger, policy domain.PolicyConfig) *PreEligibilityService {
	if policy.MinConservativeCareDays <= 0 {
		policy.MinConservativeCareDays = DefaultMinConservativeCareDays
	}
	if policy.PreCTPReductionThreshold <= 0 {
		policy.PreCTPReductionThreshold = defaultPreCTPThreshold
	}
	return &PreEligibilityService{
		logger:     logger,
		classifier: NewWoundClassifierService(logger),
		timeline:   NewTimelineValidatorService(logger),
		parser:     NewMeasurementParserService(logger),
		quality:    NewQualityControllerService(logger),
		sanitizer:  NewSanitizerService(),
		policy:     policy,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// PerformPreEligibilityChecks runs every deterministic sub-check in
// sequence and renders the aggregate verdict. OverallEligible is true only
// when zero critical failures exist; a false result is definitive and must
// short-circuit downstream generative analysis.
func (s *PreEligibilityService) PerformPreEligibilityChecks(ctx context.Context, episode *domain.Episode, encounters []domain.Encounter) (*domain.PreEligibilityCheckResult, error) {
	if episode == nil {
		return nil, fmt.Errorf("episode is required")
	}
	if err := episode.Validate(); err != nil {
		return nil, err
	}

	result := &domain.PreEligibilityCheckResult{
		EpisodeID:     episode.ID,
		Policy:        s.policyMetadata(),
		CheckedAt:     s.now(),
		EngineVersion: EngineVersion,
	}
	var trail []string
	trail = append(trail, fmt.Sprintf("Pre-eligibility check started for episode %s (%d encounters)", episode.ID, len(encounters)))

	// Step 1: wound-type classification.
	notes := make([]string, 0, len(encounters))
	diabeticStatus := ""
	for _, enc := range encounters {
		if enc.Notes != "" {
			notes = append(notes, enc.Notes)
		}
		if diabeticStatus == "" && enc.DiabeticStatus != "" {
			diabeticStatus = enc.DiabeticStatus
		}
	}
	result.WoundType = s.classifier.ClassifyWoundType(episode.WoundType, episode.PrimaryDiagnosisCode, notes, diabeticStatus)
	trail = append(trail, fmt.Sprintf("Wound classification: category=%s valid=%t — %s",
		result.WoundType.Category, result.WoundType.IsValid, result.WoundType.Reason))
	if !result.WoundType.IsValid {
		result.FailureReasons = append(result.FailureReasons, result.WoundType.Reason)
		if result.WoundType.PolicyViolation {
			result.PolicyViolations = append(result.PolicyViolations, s.coverageCitation())
		}
	}

	// Step 2: conservative-care timeline.
	result.ConservativeCare = s.timeline.ValidateConservativeCareTimeline(encounters, s.policy.MinConservativeCareDays)
	trail = append(trail, fmt.Sprintf("Conservative care timeline: valid=%t days=%d — %s",
		result.ConservativeCare.IsValid, result.ConservativeCare.DaysOfCare, result.ConservativeCare.Reason))
	if !result.ConservativeCare.IsValid {
		result.FailureReasons = append(result.FailureReasons, result.ConservativeCare.Reason)
		if result.ConservativeCare.PolicyViolation {
			result.PolicyViolations = append(result.PolicyViolations, s.timelineCitation())
		}
	}

	// Step 3: measurement extraction and availability.
	history, measurementResult := s.extractMeasurements(encounters)
	result.Measurements = measurementResult
	trail = append(trail, fmt.Sprintf("Measurements: %d usable across %d encounters — %s",
		len(history), len(encounters), measurementResult.Reason))
	if !measurementResult.IsValid {
		result.FailureReasons = append(result.FailureReasons, measurementResult.Reason)
	}

	// Step 4: area reduction between the initial encounter and the
	// encounter immediately preceding the first CTP event (latest
	// encounter when no CTP exists). This baseline deliberately differs
	// from the phase engine's pre-ctp baseline; the two reduction signals
	// are independent and both are reported.
	if len(history) >= 2 {
		initial := history[0]
		comparison := s.comparisonMeasurement(history, result.ConservativeCare.FirstCTPDate)
		reduction := ComputeAreaReduction(initial.AreaCM2, comparison.AreaCM2, s.policy.PreCTPReductionThreshold)
		result.AreaReduction = reduction
		trail = append(trail, fmt.Sprintf("Area reduction check: %s", reduction.Detail))

		// Cross-check: a wound that already responded to standard of care
		// fails medical necessity outright.
		if result.ConservativeCare.IsValid &&
			result.ConservativeCare.DaysOfCare >= s.policy.MinConservativeCareDays &&
			!reduction.MeetsCTPThreshold {
			reason := fmt.Sprintf("conservative care achieved %.1f%% area reduction (>= %.0f%%); CTP is not medically necessary",
				reduction.PercentReduction, s.policy.PreCTPReductionThreshold)
			result.FailureReasons = append(result.FailureReasons, reason)
			result.PolicyViolations = append(result.PolicyViolations, s.medicalNecessityCitation())
			trail = append(trail, "Critical failure: "+reason)
		}
	} else {
		trail = append(trail, "Area reduction check skipped: fewer than two usable measurements")
	}

	// Step 5: measurement quality, informational for the audit trail.
	if len(history) >= 2 {
		result.Quality = s.quality.AssessMeasurements(history)
		trail = append(trail, fmt.Sprintf("Measurement quality grade %s across %d deduplicated measurements",
			result.Quality.QualityGrade, len(result.Quality.Deduplicated)))
	}

	result.OverallEligible = len(result.FailureReasons) == 0
	if result.OverallEligible {
		trail = append(trail, "All deterministic checks passed; eligibility inconclusive, analysis may proceed")
	} else {
		trail = append(trail, fmt.Sprintf("Episode not eligible: %d failure reason(s), %d policy violation(s)",
			len(result.FailureReasons), len(result.PolicyViolations)))
	}

	// Nothing leaves the module boundary unredacted.
	result.AuditTrail = s.sanitizer.SanitizeAll(trail)
	result.FailureReasons = s.sanitizer.SanitizeAll(result.FailureReasons)

	s.logVerdict(result)
	return result, nil
}

// extractMeasurements parses each encounter's wound snapshot in date order
// and converts it to a timed area. Unparseable snapshots are recorded, not
// fatal: the availability check only needs one usable measurement.
func (s *PreEligibilityService) extractMeasurements(encounters []domain.Encounter) ([]domain.TimedArea, *domain.ValidationResult) {
	type datedEncounter struct {
		enc  domain.Encounter
		date time.Time
	}
	dated := make([]datedEncounter, 0, len(encounters))
	for _, enc := range encounters {
		d, err := parseClinicalDate(enc.Date)
		if err != nil {
			continue
		}
		dated = append(dated, datedEncounter{enc, utcDay(d)})
	}
	sort.SliceStable(dated, func(i, j int) bool {
		if !dated[i].date.Equal(dated[j].date) {
			return dated[i].date.Before(dated[j].date)
		}
		return dated[i].enc.ID < dated[j].enc.ID
	})

	var history []domain.TimedArea
	var parseFailures []string
	for _, de := range dated {
		if de.enc.Wound == nil {
			continue
		}
		m, vr := s.parser.ParseMeasurement(de.enc.Wound, de.date)
		if m == nil {
			parseFailures = append(parseFailures, fmt.Sprintf("encounter %s: %s", de.enc.ID, vr.Reason))
			continue
		}
		area, method, err := AreaFromMeasurement(m)
		if err != nil {
			parseFailures = append(parseFailures, fmt.Sprintf("encounter %s: %v", de.enc.ID, err))
			continue
		}
		history = append(history, domain.TimedArea{
			EncounterID: de.enc.ID,
			Date:        utcDay(m.Timestamp),
			AreaCM2:     area,
			Method:      method,
			Status:      m.Status,
			HasDepth:    m.Depth != nil,
			HasArea:     m.Area != nil,
		})
	}

	details := map[string]any{"usable": len(history), "parse_failures": parseFailures}
	if len(history) == 0 {
		return nil, &domain.ValidationResult{
			IsValid: false,
			Reason:  "no usable wound measurements documented across the episode",
			Details: details,
		}
	}
	return history, &domain.ValidationResult{
		IsValid: true,
		Reason:  fmt.Sprintf("%d usable wound measurement(s) available", len(history)),
		Details: details,
	}
}

// comparisonMeasurement picks the measurement for the area-reduction
// check: the last one strictly before the first CTP date, or the latest
// measurement when no CTP event exists.
func (s *PreEligibilityService) comparisonMeasurement(history []domain.TimedArea, firstCTP *time.Time) domain.TimedArea {
	if firstCTP == nil {
		return history[len(history)-1]
	}
	ctpDay := utcDay(*firstCTP)
	comparison := history[0]
	for _, m := range history {
		if !m.Date.Before(ctpDay) {
			break
		}
		comparison = m
	}
	return comparison
}

func (s *PreEligibilityService) policyMetadata() domain.PolicyMetadata {
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

func (s *PreEligibilityService) coverageCitation() string {
	return fmt.Sprintf("%s: covered indications are limited to diabetic foot ulcers and venous leg ulcers", s.policy.PolicyID)
}

func (s *PreEligibilityService) timelineCitation() string {
	return fmt.Sprintf("%s: a minimum of %d days of documented standard of care is required before CTP application", s.policy.PolicyID, s.policy.MinConservativeCareDays)
}

func (s *PreEligibilityService) medicalNecessityCitation() string {
	return fmt.Sprintf("%s: CTP therapy is not reasonable and necessary when conservative care achieves at least %.0f%% area reduction", s.policy.PolicyID, s.policy.PreCTPReductionThreshold)
}

func (s *PreEligibilityService) logVerdict(result *domain.PreEligibilityCheckResult) {
	if s.logger == nil {
		return
	}
	s.logger.WithFields(logrus.Fields{
		"episode_id":        result.EpisodeID,
		"overall_eligible":  result.OverallEligible,
		"failure_reasons":   len(result.FailureReasons),
		"policy_violations": len(result.PolicyViolations),
		"category":          result.WoundType.Category.String(),
	}).Info("Pre-eligibility verdict rendered")
}
