package service

import (
	"regexp"
)

// SanitizerService redacts protected health information from audit-trail
// text before it crosses the module boundary. The sanitized trail is the
// only representation of internal reasoning allowed outside the PHI
// boundary, so redaction errs on the side of removing too much.
//
// Sanitize is idempotent: placeholder tokens never re-match any pattern.
type SanitizerService struct {
	patterns []redactionPattern
}

type redactionPattern struct {
	pattern     *regexp.Regexp
	replacement string
}

// NewSanitizerService creates a new PHI sanitizer. Pattern order matters:
// SSNs are removed before phone numbers so the more specific format is
// never half-consumed by the general one.
func NewSanitizerService() *SanitizerService {
	return &SanitizerService{
		patterns: []redactionPattern{
			// Provider names: title followed by one or two capitalized words.
			{regexp.MustCompile(`\b(?:Dr\.?|Doctor|Nurse|NP|PA)\s+[A-Z][a-zA-Z'-]+(?:\s+[A-Z][a-zA-Z'-]+)?`), "[PROVIDER]"},
			// Patient names: a "patient"/"pt" label followed by a capitalized
			// name. The name part stays case-sensitive so prose like
			// "patient presented" is left alone.
			{regexp.MustCompile(`\b((?:[Pp]atient|[Pp]t)\s*(?:[Nn]ame)?\s*[:\-]?\s+)([A-Z][a-z'-]+(?:\s+[A-Z][a-z'-]+)?)`), "${1}[PATIENT]"},
			// Social security numbers before phone numbers.
			{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN]"},
			{regexp.MustCompile(`\(?\d{3}\)?[-.\s]\d{3}[-.\s]?\d{4}\b`), "[PHONE]"},
			{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[EMAIL]"},
			// Medical record numbers: labeled alphanumeric tokens.
			{regexp.MustCompile(`(?i)\b((?:mrn|medical record (?:number|no\.?))\s*[#:]?\s*)([A-Za-z0-9-]{4,})`), "${1}[MRN]"},
		},
	}
}

// Sanitize removes PHI from a single audit-trail line.
func (s *SanitizerService) Sanitize(text string) string {
	for _, rp := range s.patterns {
		text = rp.pattern.ReplaceAllString(text, rp.replacement)
	}
	return text
}

// SanitizeAll redacts an ordered list of audit-trail lines, preserving order.
func (s *SanitizerService) SanitizeAll(lines []string) []string {
	if lines == nil {
		return nil
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = s.Sanitize(line)
	}
	return out
}
