package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ctp-wound-eligibility-server/internal/domain"
)

// MeasurementParserService turns free-form wound-detail snapshots into
// typed, unit-normalized measurements. Upstream extraction delivers
// numbers, numeric strings, and strings with unit suffixes; this is the
// single place raw values are parsed, so normalization happens exactly
// once per value.
type MeasurementParserService struct {
	logger *logrus.Logger
}

// NewMeasurementParserService creates a new measurement parser.
func NewMeasurementParserService(logger *logrus.Logger) *MeasurementParserService {
	return &MeasurementParserService{logger: logger}
}

// ParseMeasurement parses a wound-detail snapshot. A nil measurement plus
// a ValidationResult is returned for data-shape problems; the parser
// never panics on caller data.
func (p *MeasurementParserService) ParseMeasurement(snapshot *domain.WoundDetailSnapshot, encounterDate time.Time) (*domain.WoundMeasurement, *domain.ValidationResult) {
	if snapshot == nil {
		return nil, &domain.ValidationResult{
			IsValid: false,
			Reason:  "no wound measurements documented for encounter",
		}
	}

	unit := domain.UnitCentimeters
	if snapshot.Unit != "" {
		unit = domain.MeasurementUnit(strings.ToLower(strings.TrimSpace(snapshot.Unit)))
		if !unit.IsValid() {
			return nil, &domain.ValidationResult{
				IsValid: false,
				Reason:  fmt.Sprintf("unsupported measurement unit %q", snapshot.Unit),
				Details: map[string]any{"unit": snapshot.Unit},
			}
		}
	}

	length, lengthOK, err := parseFlexibleNumber(snapshot.Length)
	if err != nil {
		return nil, parseFailure("length", snapshot.Length, err)
	}
	width, widthOK, err := parseFlexibleNumber(snapshot.Width)
	if err != nil {
		return nil, parseFailure("width", snapshot.Width, err)
	}
	depth, depthOK, err := parseFlexibleNumber(snapshot.Depth)
	if err != nil {
		return nil, parseFailure("depth", snapshot.Depth, err)
	}
	area, areaOK, err := parseFlexibleNumber(snapshot.Area)
	if err != nil {
		return nil, parseFailure("area", snapshot.Area, err)
	}

	vertices, result := p.parseVertices(snapshot.Vertices, unit)
	if result != nil {
		return nil, result
	}

	hasDimensions := lengthOK && widthOK
	if !hasDimensions && !areaOK && len(vertices) < 3 {
		return nil, &domain.ValidationResult{
			IsValid: false,
			Reason:  "insufficient measurement data: need explicit area, a polygon tracing, or length and width",
		}
	}

	m := &domain.WoundMeasurement{
		Unit:      domain.UnitCentimeters,
		Timestamp: encounterDate,
		Status:    domain.MeasurementUnvalidated,
		Vertices:  vertices,
	}

	if lengthOK {
		if length <= 0 || math.IsInf(length, 0) {
			return nil, parseFailure("length", snapshot.Length, fmt.Errorf("must be a finite positive number"))
		}
		m.Length, _ = NormalizeToCentimeters(length, unit)
	}
	if widthOK {
		if width <= 0 || math.IsInf(width, 0) {
			return nil, parseFailure("width", snapshot.Width, fmt.Errorf("must be a finite positive number"))
		}
		m.Width, _ = NormalizeToCentimeters(width, unit)
	}
	if depthOK {
		if depth < 0 || math.IsInf(depth, 0) {
			return nil, parseFailure("depth", snapshot.Depth, fmt.Errorf("must be a finite non-negative number"))
		}
		d, _ := NormalizeToCentimeters(depth, unit)
		m.Depth = &d
	}
	if areaOK {
		if area <= 0 || math.IsInf(area, 0) {
			return nil, parseFailure("area", snapshot.Area, fmt.Errorf("must be a finite positive number"))
		}
		// Area scales by the square of the linear conversion factor.
		factor, _ := NormalizeToCentimeters(1, unit)
		a := area * factor * factor
		m.Area = &a
	}

	if snapshot.Method != "" {
		method := domain.MeasurementMethod(strings.ToLower(strings.TrimSpace(snapshot.Method)))
		if method.IsValid() {
			m.Method = method
		}
	}

	if snapshot.Status != "" {
		status := domain.MeasurementStatus(strings.ToLower(strings.TrimSpace(snapshot.Status)))
		if status.IsValid() {
			m.Status = status
		}
	}

	if snapshot.Timestamp != "" {
		if ts, err := parseClinicalDate(snapshot.Timestamp); err == nil {
			m.Timestamp = ts
		}
	}

	return m, &domain.ValidationResult{
		IsValid: true,
		Reason:  "measurement parsed and normalized to centimeters",
		Details: map[string]any{
			"has_dimensions":    hasDimensions,
			"has_explicit_area": areaOK,
			"vertex_count":      len(vertices),
		},
	}
}

// parseVertices parses and unit-normalizes a polygon tracing. A partial
// tracing (under 3 vertices) is dropped rather than failing the whole
// measurement; a malformed coordinate fails it.
func (p *MeasurementParserService) parseVertices(raw []domain.RawVertex, unit domain.MeasurementUnit) ([]domain.Vertex, *domain.ValidationResult) {
	if len(raw) == 0 {
		return nil, nil
	}

	vertices := make([]domain.Vertex, 0, len(raw))
	for i, rv := range raw {
		x, xOK, err := parseFlexibleNumber(rv.X)
		if err != nil || !xOK {
			return nil, parseFailure(fmt.Sprintf("vertices[%d].x", i), rv.X, fmt.Errorf("not a number"))
		}
		y, yOK, err := parseFlexibleNumber(rv.Y)
		if err != nil || !yOK {
			return nil, parseFailure(fmt.Sprintf("vertices[%d].y", i), rv.Y, fmt.Errorf("not a number"))
		}
		xCM, _ := NormalizeToCentimeters(x, unit)
		yCM, _ := NormalizeToCentimeters(y, unit)
		vertices = append(vertices, domain.Vertex{X: xCM, Y: yCM})
	}

	if len(vertices) < 3 {
		return nil, nil
	}
	return vertices, nil
}

// parseFlexibleNumber accepts the value shapes upstream extraction
// produces: Go numerics, json.Number, and strings such as "4.5" or
// "4.5 cm". The ok result distinguishes absent from present.
func parseFlexibleNumber(v any) (float64, bool, error) {
	switch n := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		if math.IsNaN(n) {
			return 0, false, fmt.Errorf("not a number")
		}
		return n, true, nil
	case float32:
		return float64(n), true, nil
	case int:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false, err
		}
		return f, true, nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false, nil
		}
		// Strip a trailing unit suffix ("4.5 cm", "45mm").
		s = strings.TrimRight(s, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ²^ ")
		s = strings.TrimSpace(s)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, fmt.Errorf("cannot parse %q as a number", n)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("unsupported value type %T", v)
	}
}

func parseFailure(field string, value any, err error) *domain.ValidationResult {
	return &domain.ValidationResult{
		IsValid: false,
		Reason:  fmt.Sprintf("invalid %s value: %v", field, err),
		Details: map[string]any{"field": field, "value": fmt.Sprintf("%v", value)},
	}
}
