package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ctp-wound-eligibility-server/internal/domain"
)

// DefaultMinConservativeCareDays is the LCD standard-of-care minimum before
// a CTP application is reimbursable.
const DefaultMinConservativeCareDays = 28

// Skin application/graft CPT codes that indicate a CTP application.
var ctpProcedureCodes = map[string]bool{
	"15271": true, "15272": true, "15273": true, "15274": true,
	"15275": true, "15276": true, "15277": true, "15278": true,
}

// HCPCS Q-codes for skin substitute products (Q4100-Q4299 range).
var ctpHCPCSPattern = regexp.MustCompile(`(?i)^Q4[12]\d{2}$`)

// Free-text evidence of a CTP application: known product names, or the
// generic "graft/application #N" charting style.
var ctpNotePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(apligraf|dermagraft|epifix|grafix|epicord|oasis|integra|primatrix|affinity|nushield|kerecis|theraskin)\b`),
	regexp.MustCompile(`(?i)\b(skin substitute|ctp)\s+(applied|application|placed)\b`),
	regexp.MustCompile(`(?i)\b(graft|application)\s*#?\s*\d+\b`),
}

// TimelineValidatorService detects the first CTP-application event in an
// encounter log and validates the conservative-care duration against the
// policy minimum.
type TimelineValidatorService struct {
	logger *logrus.Logger

	// now is the single wall-clock read in the engine, overridable in tests.
	now func() time.Time
}

// NewTimelineValidatorService creates a new conservative-care timeline validator.
func NewTimelineValidatorService(logger *logrus.Logger) *TimelineValidatorService {
	return &TimelineValidatorService{
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ValidateConservativeCareTimeline computes the standard-of-care duration.
// Three terminal states:
//   - no CTP yet and enough SOC elapsed: valid
//   - no CTP yet and not enough SOC elapsed: invalid, not a violation
//   - CTP applied before the minimum SOC: invalid policy violation
//
// A minDaysRequired of zero or less falls back to the LCD default of 28.
func (v *TimelineValidatorService) ValidateConservativeCareTimeline(encounters []domain.Encounter, minDaysRequired int) *domain.ConservativeCareTimelineResult {
	if minDaysRequired <= 0 {
		minDaysRequired = DefaultMinConservativeCareDays
	}

	result := &domain.ConservativeCareTimelineResult{}

	if len(encounters) == 0 {
		result.Reason = "no encounters documented; conservative care timeline cannot be established"
		return result
	}

	type datedEncounter struct {
		enc  domain.Encounter
		date time.Time
	}
	dated := make([]datedEncounter, 0, len(encounters))
	for _, enc := range encounters {
		d, err := parseClinicalDate(enc.Date)
		if err != nil {
			result.Reason = fmt.Sprintf("encounter %s has an invalid date: %v", enc.ID, err)
			result.Details = map[string]any{"encounter_id": enc.ID, "raw_date": enc.Date}
			return result
		}
		dated = append(dated, datedEncounter{enc: enc, date: utcDay(d)})
	}

	sort.SliceStable(dated, func(i, j int) bool {
		if !dated[i].date.Equal(dated[j].date) {
			return dated[i].date.Before(dated[j].date)
		}
		return dated[i].enc.ID < dated[j].enc.ID
	})

	first := dated[0].date
	result.FirstEncounterDate = &first

	// Scan every encounter through both detection channels; the earliest
	// qualifying date wins.
	var events []domain.CTPEvent
	for _, de := range dated {
		events = append(events, detectCTPEvents(de.enc, de.date)...)
	}
	result.CTPEvents = events

	if len(events) == 0 {
		days := daysBetween(first, v.now())
		result.DaysOfCare = days
		if days >= minDaysRequired {
			result.IsValid = true
			result.Reason = fmt.Sprintf("conservative care ongoing for %d days with no CTP application (minimum %d days)", days, minDaysRequired)
		} else {
			result.Reason = fmt.Sprintf("conservative care timeline insufficient: only %d of the required %d days have elapsed and no CTP has been applied", days, minDaysRequired)
		}
		v.logResult(result, minDaysRequired)
		return result
	}

	firstCTP := events[0].Date
	for _, e := range events[1:] {
		if e.Date.Before(firstCTP) {
			firstCTP = e.Date
		}
	}
	result.FirstCTPDate = &firstCTP

	days := daysBetween(first, firstCTP)
	result.DaysOfCare = days
	if days >= minDaysRequired {
		result.IsValid = true
		result.Reason = fmt.Sprintf("CTP applied after %d days of conservative care (minimum %d days)", days, minDaysRequired)
	} else {
		result.PolicyViolation = true
		result.Reason = fmt.Sprintf("conservative care timeline insufficient: CTP applied after only %d days of standard of care, before the %d-day minimum", days, minDaysRequired)
	}
	v.logResult(result, minDaysRequired)
	return result
}

// detectCTPEvents scans a single encounter through the two independent
// channels: procedure-code membership and free-text product evidence.
func detectCTPEvents(enc domain.Encounter, date time.Time) []domain.CTPEvent {
	var events []domain.CTPEvent

	for _, code := range enc.ProcedureCodes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if ctpProcedureCodes[code] || ctpHCPCSPattern.MatchString(code) {
			events = append(events, domain.CTPEvent{
				EncounterID: enc.ID,
				Date:        date,
				Source:      "procedure_code",
				Match:       code,
			})
		}
	}

	for _, pattern := range ctpNotePatterns {
		if match := pattern.FindString(enc.Notes); match != "" {
			events = append(events, domain.CTPEvent{
				EncounterID: enc.ID,
				Date:        date,
				Source:      "clinical_note",
				Match:       match,
			})
			break
		}
	}

	return events
}

func (v *TimelineValidatorService) logResult(result *domain.ConservativeCareTimelineResult, minDays int) {
	if v.logger == nil {
		return
	}
	v.logger.WithFields(logrus.Fields{
		"is_valid":         result.IsValid,
		"policy_violation": result.PolicyViolation,
		"days_of_care":     result.DaysOfCare,
		"min_days":         minDays,
		"ctp_events":       len(result.CTPEvents),
	}).Debug("Conservative care timeline validated")
}
