package service

import (
	"fmt"
	"math"

	"github.com/ctp-wound-eligibility-server/internal/domain"
)

// Wound geometry calculations. Everything in this file is a pure function:
// linear inputs are normalized to centimeters exactly once (by the
// measurement parser) before any formula runs, and areas are cm².

// Plausibility bounds for a computed wound area. Values outside this range
// almost always indicate a tracing or unit-entry error.
const (
	MinPlausibleAreaCM2 = 0.1
	MaxPlausibleAreaCM2 = 1000.0
)

// NormalizeToCentimeters converts a linear value to centimeters.
// Normalizing a value already in centimeters returns it unchanged, so the
// conversion is idempotent. Unknown units are a hard error.
func NormalizeToCentimeters(value float64, unit domain.MeasurementUnit) (float64, error) {
	switch unit {
	case domain.UnitCentimeters:
		return value, nil
	case domain.UnitMillimeters:
		return value / 10.0, nil
	case domain.UnitInches:
		return value * 2.54, nil
	case domain.UnitMeters:
		return value * 100.0, nil
	default:
		return 0, fmt.Errorf("%w: %q", domain.ErrUnsupportedUnit, unit)
	}
}

// RectangularArea computes length × width.
func RectangularArea(lengthCM, widthCM float64) float64 {
	return lengthCM * widthCM
}

// EllipticalArea computes π·(length/2)·(width/2). Preferred over the
// rectangular estimate for typical wound shapes.
func EllipticalArea(lengthCM, widthCM float64) float64 {
	return math.Pi * (lengthCM / 2) * (widthCM / 2)
}

// IrregularArea computes the area of an ordered polygon using the shoelace
// (surveyor's) formula. Fewer than three vertices is a contract violation
// by the caller, not a data-quality finding.
func IrregularArea(vertices []domain.Vertex) (float64, error) {
	if len(vertices) < 3 {
		return 0, domain.ErrTooFewVertices
	}

	var sum float64
	n := len(vertices)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += vertices[i].X*vertices[j].Y - vertices[j].X*vertices[i].Y
	}
	return math.Abs(sum) / 2, nil
}

// ValidatePolygon checks vertex ordering and area plausibility for an
// irregular tracing. Self-intersecting outlines produce meaningless
// shoelace areas, so they invalidate the measurement.
func ValidatePolygon(vertices []domain.Vertex) *domain.ValidationResult {
	if len(vertices) < 3 {
		return &domain.ValidationResult{
			IsValid: false,
			Reason:  "polygon requires at least 3 vertices",
			Details: map[string]any{"vertex_count": len(vertices)},
		}
	}

	if selfIntersects(vertices) {
		return &domain.ValidationResult{
			IsValid: false,
			Reason:  "polygon vertices are out of order: outline self-intersects",
			Details: map[string]any{"vertex_count": len(vertices)},
		}
	}

	area, err := IrregularArea(vertices)
	if err != nil {
		return &domain.ValidationResult{IsValid: false, Reason: err.Error()}
	}
	if area < MinPlausibleAreaCM2 || area > MaxPlausibleAreaCM2 {
		return &domain.ValidationResult{
			IsValid: false,
			Reason: fmt.Sprintf("computed area %.2f cm² outside plausible range [%.1f, %.1f]",
				area, MinPlausibleAreaCM2, MaxPlausibleAreaCM2),
			Details: map[string]any{"area_cm2": area},
		}
	}

	return &domain.ValidationResult{
		IsValid: true,
		Reason:  "polygon ordering and area plausible",
		Details: map[string]any{"area_cm2": area, "vertex_count": len(vertices)},
	}
}

// selfIntersects tests every pair of non-adjacent edges for intersection.
// O(n²) in vertex count; clinical tracings carry tens of vertices at most.
func selfIntersects(vertices []domain.Vertex) bool {
	n := len(vertices)
	for i := 0; i < n; i++ {
		a1 := vertices[i]
		a2 := vertices[(i+1)%n]
		for j := i + 1; j < n; j++ {
			// Skip adjacent edges, including the closing edge pair.
			if j == i || (j+1)%n == i || (i+1)%n == j {
				continue
			}
			b1 := vertices[j]
			b2 := vertices[(j+1)%n]
			if segmentsIntersect(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

// segmentsIntersect reports whether segments a1a2 and b1b2 cross, using
// orientation tests with collinear-overlap handling.
func segmentsIntersect(a1, a2, b1, b2 domain.Vertex) bool {
	d1 := cross(b1, b2, a1)
	d2 := cross(b1, b2, a2)
	d3 := cross(a1, a2, b1)
	d4 := cross(a1, a2, b2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	if d1 == 0 && onSegment(b1, b2, a1) {
		return true
	}
	if d2 == 0 && onSegment(b1, b2, a2) {
		return true
	}
	if d3 == 0 && onSegment(a1, a2, b1) {
		return true
	}
	if d4 == 0 && onSegment(a1, a2, b2) {
		return true
	}
	return false
}

func cross(o, a, b domain.Vertex) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func onSegment(p, q, r domain.Vertex) bool {
	return math.Min(p.X, q.X) <= r.X && r.X <= math.Max(p.X, q.X) &&
		math.Min(p.Y, q.Y) <= r.Y && r.Y <= math.Max(p.Y, q.Y)
}

// EllipsoidVolume computes the half-ellipsoid wound volume (π/6)·l·w·d.
// Informational only: volume never enters a coverage decision.
func EllipsoidVolume(lengthCM, widthCM, depthCM float64) float64 {
	return (math.Pi / 6) * lengthCM * widthCM * depthCM
}

// TruncatedEllipsoidVolume computes the corrected truncated-ellipsoid
// volume 0.327·l·w·d used for shallow wounds. Informational only.
func TruncatedEllipsoidVolume(lengthCM, widthCM, depthCM float64) float64 {
	return 0.327 * lengthCM * widthCM * depthCM
}

// AreaFromMeasurement selects the area algorithm for a normalized
// measurement. Precedence: explicit area, then irregular polygon with
// at least 3 vertices, then elliptical, with rectangular only when the
// method tag asks for it.
func AreaFromMeasurement(m *domain.WoundMeasurement) (float64, domain.MeasurementMethod, error) {
	if m == nil {
		return 0, "", fmt.Errorf("measurement is nil")
	}

	if m.Area != nil && *m.Area > 0 {
		method := m.Method
		if method == "" {
			method = domain.MethodPlanimetry
		}
		return *m.Area, method, nil
	}

	if len(m.Vertices) >= 3 {
		area, err := IrregularArea(m.Vertices)
		if err != nil {
			return 0, "", err
		}
		return area, domain.MethodIrregular, nil
	}

	if m.Length <= 0 || m.Width <= 0 {
		return 0, "", fmt.Errorf("no usable measurement data: need explicit area, polygon, or length and width")
	}

	if m.Method == domain.MethodRectangular {
		return RectangularArea(m.Length, m.Width), domain.MethodRectangular, nil
	}
	return EllipticalArea(m.Length, m.Width), domain.MethodElliptical, nil
}

// ComputeAreaReduction builds the percent-reduction result between two
// areas. MeetsCTPThreshold is true when the reduction stayed below the
// conservative-care effectiveness threshold, i.e. standard of care did not
// work and CTP therapy is justified.
func ComputeAreaReduction(initialCM2, currentCM2, thresholdPercent float64) *domain.AreaReductionResult {
	var reduction float64
	if initialCM2 > 0 {
		reduction = (initialCM2 - currentCM2) / initialCM2 * 100
	}

	meets := reduction < thresholdPercent
	detail := fmt.Sprintf("area changed from %.2f cm² to %.2f cm² (%.1f%% reduction); ", initialCM2, currentCM2, reduction)
	if meets {
		detail += fmt.Sprintf("below the %.0f%% conservative-care effectiveness threshold, CTP threshold met", thresholdPercent)
	} else {
		detail += fmt.Sprintf("at or above the %.0f%% threshold, conservative care was effective", thresholdPercent)
	}

	return &domain.AreaReductionResult{
		InitialAreaCM2:    initialCM2,
		CurrentAreaCM2:    currentCM2,
		PercentReduction:  reduction,
		MeetsCTPThreshold: meets,
		Detail:            detail,
	}
}
