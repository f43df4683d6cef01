package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ctp-wound-eligibility-server/internal/domain"
)

// WoundClassifierService maps diagnosis codes and chart text to LCD wound
// categories. Pattern tables are evaluated in a fixed documented order:
// disqualifying categories always win, and among covered categories VLU is
// tried before DFU so venous evidence takes priority over an ambiguous
// diabetic match. That ordering is a policy decision, not iteration order.
type WoundClassifierService struct {
	logger *logrus.Logger
}

// woundPattern is one typed pattern/category pair. First match wins within
// each ordered table.
type woundPattern struct {
	category domain.WoundCategory
	field    string // "diagnosis_code" or "clinical_text"
	pattern  *regexp.Regexp
	label    string
}

// Disqualifying categories, evaluated before any covered category.
var disqualifyingPatterns = []woundPattern{
	{domain.CategoryTraumatic, "diagnosis_code", regexp.MustCompile(`(?i)^S\d`), "ICD-10 S-chapter injury code"},
	{domain.CategoryTraumatic, "diagnosis_code", regexp.MustCompile(`(?i)^T(0\d|1[0-4])`), "ICD-10 injury code T00-T14"},
	{domain.CategoryTraumatic, "clinical_text", regexp.MustCompile(`(?i)\b(trauma(tic)?|laceration|abrasion|avulsion|crush(ing)? injury)\b`), "traumatic wound terminology"},
	{domain.CategorySurgical, "diagnosis_code", regexp.MustCompile(`(?i)^T81`), "ICD-10 procedural complication code"},
	{domain.CategorySurgical, "clinical_text", regexp.MustCompile(`(?i)\b(surgical wound|post-?op(erative)? wound|dehisce(d|nce)|incision(al)? (site|wound))\b`), "surgical wound terminology"},
	{domain.CategoryPressure, "diagnosis_code", regexp.MustCompile(`(?i)^L89`), "ICD-10 pressure ulcer code"},
	{domain.CategoryPressure, "clinical_text", regexp.MustCompile(`(?i)\b(pressure (ulcer|injury|sore|wound)|decubitus|bed ?sore)\b`), "pressure wound terminology"},
	{domain.CategoryArterial, "diagnosis_code", regexp.MustCompile(`(?i)^I70\.[23]`), "ICD-10 atherosclerosis with ulceration code"},
	{domain.CategoryArterial, "clinical_text", regexp.MustCompile(`(?i)\b(arterial (ulcer|insufficiency|wound)|isch(a)?emic (ulcer|wound))\b`), "arterial wound terminology"},
}

// Covered categories. VLU precedes DFU deliberately (see type comment).
var coveredPatterns = []woundPattern{
	{domain.CategoryVLU, "diagnosis_code", regexp.MustCompile(`(?i)^I83\.[02]`), "ICD-10 varicose veins with ulcer code"},
	{domain.CategoryVLU, "diagnosis_code", regexp.MustCompile(`(?i)^I87\.[02-3]`), "ICD-10 venous insufficiency code"},
	{domain.CategoryVLU, "clinical_text", regexp.MustCompile(`(?i)\b(venous (leg |stasis )?ulcer|vlu|venous insufficiency|stasis ulcer|varicose)\b`), "venous ulcer terminology"},
	{domain.CategoryDFU, "diagnosis_code", regexp.MustCompile(`(?i)^E(08|09|1[0-3])\.6`), "ICD-10 diabetes with skin complication code"},
	{domain.CategoryDFU, "clinical_text", regexp.MustCompile(`(?i)\b(diabetic (foot )?ulcer|dfu|neuropathic (foot )?ulcer)\b`), "diabetic foot ulcer terminology"},
}

// Diabetic-status synonym table. Negative synonyms are tested first so
// "non-diabetic" never matches the diabetic entries. Unrecognized input
// stays "unknown": incomplete documentation must not disqualify a DFU.
var diabeticStatusSynonyms = []struct {
	status  domain.DiabeticStatus
	pattern *regexp.Regexp
}{
	{domain.StatusNondiabetic, regexp.MustCompile(`(?i)^\s*(non-?\s?diabetic|no diabetes|denies diabetes|not diabetic|no|n|false)\s*$`)},
	{domain.StatusDiabetic, regexp.MustCompile(`(?i)^\s*(diabetic|diabetes( mellitus)?|dm2?|t[12]dm|type [12]( diabetes)?|iddm|niddm|yes|y|true)\s*$`)},
}

// NewWoundClassifierService creates a new wound-type classifier.
func NewWoundClassifierService(logger *logrus.Logger) *WoundClassifierService {
	return &WoundClassifierService{logger: logger}
}

// NormalizeDiabeticStatus folds an arbitrary chart synonym into the
// three-way diabetic tag.
func (c *WoundClassifierService) NormalizeDiabeticStatus(raw string) domain.DiabeticStatus {
	for _, syn := range diabeticStatusSynonyms {
		if syn.pattern.MatchString(raw) {
			return syn.status
		}
	}
	return domain.StatusUnknown
}

// ClassifyWoundType classifies an episode against the LCD's covered and
// disqualifying wound categories. Pure function of its inputs.
func (c *WoundClassifierService) ClassifyWoundType(woundType, diagnosisCode string, notes []string, diabeticStatus string) *domain.ClassificationResult {
	status := c.NormalizeDiabeticStatus(diabeticStatus)
	text := strings.ToLower(strings.TrimSpace(woundType + " " + strings.Join(notes, " ")))
	code := strings.ToUpper(strings.TrimSpace(diagnosisCode))

	if match := firstMatch(disqualifyingPatterns, code, text); match != nil {
		result := &domain.ClassificationResult{
			ValidationResult: domain.ValidationResult{
				IsValid:         false,
				PolicyViolation: true,
				Reason: fmt.Sprintf("wound type not covered by LCD policy: %s wound (%s)",
					strings.ToLower(match.category.String()), match.label),
				Details: map[string]any{"matched_field": match.field},
			},
			Category:       match.category,
			DiabeticStatus: status,
			MatchedPattern: match.label,
			MatchedField:   match.field,
		}
		c.logDecision(result)
		return result
	}

	if match := firstMatch(coveredPatterns, code, text); match != nil {
		// DFU coverage requires the patient not be documented nondiabetic.
		// An unknown tag does not disqualify: incomplete documentation must
		// not produce a false negative.
		if match.category == domain.CategoryDFU && status == domain.StatusNondiabetic {
			result := &domain.ClassificationResult{
				ValidationResult: domain.ValidationResult{
					IsValid:         false,
					PolicyViolation: true,
					Reason:          "diabetic foot ulcer pattern matched but patient is documented nondiabetic",
					Details:         map[string]any{"matched_field": match.field},
				},
				Category:       domain.CategoryDFU,
				DiabeticStatus: status,
				MatchedPattern: match.label,
				MatchedField:   match.field,
			}
			c.logDecision(result)
			return result
		}

		result := &domain.ClassificationResult{
			ValidationResult: domain.ValidationResult{
				IsValid: true,
				Reason: fmt.Sprintf("wound classified as %s (%s), a covered category",
					match.category, match.label),
				Details: map[string]any{"matched_field": match.field},
			},
			Category:       match.category,
			DiabeticStatus: status,
			MatchedPattern: match.label,
			MatchedField:   match.field,
		}
		c.logDecision(result)
		return result
	}

	result := &domain.ClassificationResult{
		ValidationResult: domain.ValidationResult{
			IsValid: false,
			Reason:  "wound type unclassifiable: no covered or disqualifying category matched",
		},
		Category:       domain.CategoryUnclassified,
		DiabeticStatus: status,
	}
	c.logDecision(result)
	return result
}

// firstMatch applies an ordered pattern table: diagnosis-code patterns see
// the code, text patterns see the concatenated chart text.
func firstMatch(patterns []woundPattern, code, text string) *woundPattern {
	for i := range patterns {
		p := &patterns[i]
		switch p.field {
		case "diagnosis_code":
			if code != "" && p.pattern.MatchString(code) {
				return p
			}
		case "clinical_text":
			if text != "" && p.pattern.MatchString(text) {
				return p
			}
		}
	}
	return nil
}

func (c *WoundClassifierService) logDecision(result *domain.ClassificationResult) {
	if c.logger == nil {
		return
	}
	c.logger.WithFields(logrus.Fields{
		"category":        result.Category.String(),
		"covered":         result.Category.Covered(),
		"is_valid":        result.IsValid,
		"diabetic_status": result.DiabeticStatus.String(),
	}).Debug("Wound type classified")
}
