package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizer_Redactions(t *testing.T) {
	s := NewSanitizerService()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "Provider with title",
			in:   "Wound debrided by Dr. Smith at bedside",
			want: "Wound debrided by [PROVIDER] at bedside",
		},
		{
			name: "Provider with two-word name",
			in:   "Seen by Nurse Jackie Chan for dressing change",
			want: "Seen by [PROVIDER] for dressing change",
		},
		{
			name: "Labeled patient name",
			in:   "Patient: John Doe presents with a venous ulcer",
			want: "Patient: [PATIENT] presents with a venous ulcer",
		},
		{
			name: "Pt shorthand",
			in:   "Pt Jane Smith tolerated the procedure",
			want: "Pt [PATIENT] tolerated the procedure",
		},
		{
			name: "Lowercase prose after patient is untouched",
			in:   "patient was seen for followup",
			want: "patient was seen for followup",
		},
		{
			name: "SSN",
			in:   "SSN 123-45-6789 on file",
			want: "SSN [SSN] on file",
		},
		{
			name: "Phone number",
			in:   "Callback at (555) 123-4567 after discharge",
			want: "Callback at [PHONE] after discharge",
		},
		{
			name: "Email address",
			in:   "Send records to jdoe@example.com today",
			want: "Send records to [EMAIL] today",
		},
		{
			name: "Labeled MRN",
			in:   "MRN: 88412345 confirmed at intake",
			want: "MRN: [MRN] confirmed at intake",
		},
		{
			name: "Medical record number spelled out",
			in:   "medical record number A-99812 matches",
			want: "medical record number [MRN] matches",
		},
		{
			name: "Multiple identifiers in one line",
			in:   "Dr. Lee documented patient Mary Jones, SSN 123-45-6789",
			want: "[PROVIDER] documented patient [PATIENT], SSN [SSN]",
		},
		{
			name: "Clean text passes through",
			in:   "Area reduced from 15.00 cm² to 10.00 cm² over 28 days",
			want: "Area reduced from 15.00 cm² to 10.00 cm² over 28 days",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Sanitize(tt.in))
		})
	}
}

func TestSanitizer_Idempotent(t *testing.T) {
	s := NewSanitizerService()

	inputs := []string{
		"Dr. Smith saw patient John Doe, MRN: 88412345, SSN 123-45-6789",
		"Call (555) 123-4567 or email jdoe@example.com",
		"Patient: Mary Jones improving",
	}

	for _, in := range inputs {
		once := s.Sanitize(in)
		twice := s.Sanitize(once)
		assert.Equal(t, once, twice, "sanitizing twice must not change output for %q", in)
	}
}

func TestSanitizer_SanitizeAll(t *testing.T) {
	s := NewSanitizerService()

	assert.Nil(t, s.SanitizeAll(nil))

	lines := []string{
		"Step 1: Dr. Smith reviewed the chart",
		"Step 2: area reduction 33.3%",
	}
	out := s.SanitizeAll(lines)
	assert.Equal(t, []string{
		"Step 1: [PROVIDER] reviewed the chart",
		"Step 2: area reduction 33.3%",
	}, out)

	// Input slice untouched.
	assert.Equal(t, "Step 1: Dr. Smith reviewed the chart", lines[0])
}
