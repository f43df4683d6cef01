package service

import (
	"fmt"
	"strings"
	"time"
)

// Accepted chart date layouts, tried in order. Upstream extraction is not
// consistent about timestamps, so both date-only and full timestamps appear.
var clinicalDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
}

// parseClinicalDate parses a chart date string into a UTC timestamp.
// All downstream day arithmetic is done in UTC so that timezone offsets
// cannot shift a day-27 measurement across the day-28 LCD boundary.
func parseClinicalDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range clinicalDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}

// ParseClinicalDate exposes chart date parsing to the API layer, which
// receives dates in the same loose formats the engine does.
func ParseClinicalDate(raw string) (time.Time, error) {
	return parseClinicalDate(raw)
}

// utcDay truncates a timestamp to midnight UTC.
func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween returns whole calendar days from a to b in UTC.
func daysBetween(a, b time.Time) int {
	return int(utcDay(b).Sub(utcDay(a)).Hours() / 24)
}
