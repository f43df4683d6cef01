package service

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ctp-wound-eligibility-server/internal/domain"
)

// Quality-control constants. MAD is used for small samples because it is
// far more robust than the standard deviation when only a handful of
// measurements exist.
const (
	outlierThreshold     = 2.5
	madScaleFactor       = 1.4826 // consistency constant for normal data
	madSampleCutoff      = 5
	trendChangeThreshold = 0.50 // neighbor-to-neighbor relative change
	measurementGapDays   = 14
	referenceWeeklyRate  = 0.10 // 10% relative reduction/week, a well-responding wound
	healedAreaFloorCM2   = 0.25
)

// Same-day dedup weights. Selection must be deterministic and independent
// of input order: quality score first, then the later timestamp, then the
// encounter ID as the final invariant tie-break.
const (
	dedupValidatedBonus    = 0.5
	dedupFlaggedPenalty    = 0.25
	dedupDepthBonus        = 0.15
	dedupExplicitAreaBonus = 0.15
	dedupMethodBonus       = 0.2
)

// QualityControllerService scores measurement quality, flags anomalies,
// and derives healing-velocity metrics from a measurement history.
type QualityControllerService struct {
	logger *logrus.Logger
}

// NewQualityControllerService creates a new measurement quality controller.
func NewQualityControllerService(logger *logrus.Logger) *QualityControllerService {
	return &QualityControllerService{logger: logger}
}

// AssessMeasurements produces per-measurement validation records, healing
// velocity metrics, and an aggregate A-F data-quality grade.
func (q *QualityControllerService) AssessMeasurements(history []domain.TimedArea) *domain.MeasurementQualityReport {
	report := &domain.MeasurementQualityReport{QualityGrade: "F"}
	if len(history) == 0 {
		return report
	}

	deduped := DeduplicateSameDay(history)
	report.Deduplicated = deduped

	areas := make([]float64, len(deduped))
	for i, m := range deduped {
		areas[i] = m.AreaCM2
	}
	outliers := detectOutliers(areas)

	records := make([]domain.MeasurementValidationRecord, len(deduped))
	var scoreSum float64
	for i, m := range deduped {
		rec := domain.MeasurementValidationRecord{
			EncounterID: m.EncounterID,
			Date:        m.Date,
			Outlier:     outliers[i],
		}

		if i > 0 {
			prev := deduped[i-1]
			if prev.AreaCM2 > 0 {
				change := math.Abs(m.AreaCM2-prev.AreaCM2) / prev.AreaCM2
				rec.TrendInconsistent = change > trendChangeThreshold
			}
			rec.GapBefore = daysBetween(prev.Date, m.Date) > measurementGapDays
		}

		score := 1.0
		if rec.Outlier {
			score -= 0.4
			rec.Recommendations = append(rec.Recommendations, "measurement is a statistical outlier; re-measure to confirm")
		}
		if rec.TrendInconsistent {
			score -= 0.2
			rec.Recommendations = append(rec.Recommendations, "area changed more than 50% since the previous measurement; verify technique and units")
		}
		if rec.GapBefore {
			score -= 0.1
			rec.Recommendations = append(rec.Recommendations, fmt.Sprintf("more than %d days since the previous measurement; weekly measurement is recommended", measurementGapDays))
		}
		switch m.Status {
		case domain.MeasurementFlagged:
			score -= 0.2
			rec.Recommendations = append(rec.Recommendations, "measurement was flagged at capture; clinical confirmation needed")
		case domain.MeasurementUnvalidated, "":
			score -= 0.1
		}

		rec.QualityScore = clamp01(score)
		rec.NeedsClinicalReview = rec.Outlier || (rec.TrendInconsistent && rec.GapBefore) || rec.QualityScore < 0.5
		records[i] = rec
		scoreSum += rec.QualityScore
	}
	report.Records = records

	if len(deduped) >= 2 {
		report.Velocity = computeHealingVelocity(deduped)
	}

	report.QualityGrade = gradeFromScore(scoreSum / float64(len(records)))

	if q.logger != nil {
		q.logger.WithFields(logrus.Fields{
			"measurements": len(history),
			"deduplicated": len(deduped),
			"grade":        report.QualityGrade,
		}).Debug("Measurement quality assessed")
	}
	return report
}

// DeduplicateSameDay collapses measurements sharing a calendar day to the
// single best record per day. The winner is chosen by a weighted quality
// score (validated status, data richness, documented method); only a true
// score tie falls through to the most recent timestamp. Never random,
// never input-order dependent.
func DeduplicateSameDay(history []domain.TimedArea) []domain.TimedArea {
	byDay := make(map[int64][]domain.TimedArea)
	for _, m := range history {
		key := utcDay(m.Date).Unix()
		byDay[key] = append(byDay[key], m)
	}

	keys := make([]int64, 0, len(byDay))
	for k := range byDay {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]domain.TimedArea, 0, len(keys))
	for _, k := range keys {
		group := byDay[k]
		best := group[0]
		for _, candidate := range group[1:] {
			if dedupLess(best, candidate) {
				best = candidate
			}
		}
		out = append(out, best)
	}
	return out
}

// dedupLess reports whether candidate b should replace a as the day's best
// measurement.
func dedupLess(a, b domain.TimedArea) bool {
	sa, sb := dedupScore(a), dedupScore(b)
	if sa != sb {
		return sb > sa
	}
	if !a.Date.Equal(b.Date) {
		return b.Date.After(a.Date)
	}
	return b.EncounterID > a.EncounterID
}

func dedupScore(m domain.TimedArea) float64 {
	var score float64
	switch m.Status {
	case domain.MeasurementValidated:
		score += dedupValidatedBonus
	case domain.MeasurementFlagged:
		score -= dedupFlaggedPenalty
	}
	if m.HasDepth {
		score += dedupDepthBonus
	}
	if m.HasArea {
		score += dedupExplicitAreaBonus
	}
	if m.Method != "" {
		score += dedupMethodBonus
	}
	return score
}

// detectOutliers flags areas deviating more than 2.5 scale units from the
// center. Samples of 5 or fewer use median absolute deviation scaled by
// 1.4826; larger samples use the standard deviation.
func detectOutliers(areas []float64) []bool {
	flags := make([]bool, len(areas))
	if len(areas) < 3 {
		return flags
	}

	var center, scale float64
	if len(areas) <= madSampleCutoff {
		center = median(areas)
		deviations := make([]float64, len(areas))
		for i, a := range areas {
			deviations[i] = math.Abs(a - center)
		}
		scale = median(deviations) * madScaleFactor
	} else {
		center = mean(areas)
		scale = stddev(areas, center)
	}

	if scale == 0 {
		return flags
	}
	for i, a := range areas {
		if math.Abs(a-center) > outlierThreshold*scale {
			flags[i] = true
		}
	}
	return flags
}

// computeHealingVelocity derives weekly area-reduction rates between
// consecutive measurements.
func computeHealingVelocity(deduped []domain.TimedArea) *domain.HealingVelocityMetrics {
	var rates []float64         // cm² per week, positive = shrinking
	var relativeRates []float64 // fraction of the earlier area per week
	for i := 1; i < len(deduped); i++ {
		prev, cur := deduped[i-1], deduped[i]
		days := daysBetween(prev.Date, cur.Date)
		if days <= 0 {
			continue
		}
		weeks := float64(days) / 7.0
		rate := (prev.AreaCM2 - cur.AreaCM2) / weeks
		rates = append(rates, rate)
		if prev.AreaCM2 > 0 {
			relativeRates = append(relativeRates, rate/prev.AreaCM2)
		}
	}
	if len(rates) == 0 {
		return nil
	}

	metrics := &domain.HealingVelocityMetrics{
		AverageWeeklyReduction: mean(rates),
		PeakWeeklyReduction:    maxOf(rates),
	}

	avgRelative := mean(relativeRates)
	switch {
	case avgRelative > 0.02:
		metrics.Trend = domain.TrendImproving
	case avgRelative < -0.02:
		metrics.Trend = domain.TrendDeteriorating
	default:
		metrics.Trend = domain.TrendStalled
	}

	current := deduped[len(deduped)-1].AreaCM2
	if metrics.AverageWeeklyReduction > 0 && current > healedAreaFloorCM2 {
		weeks := (current - healedAreaFloorCM2) / metrics.AverageWeeklyReduction
		metrics.ProjectedHealingWeeks = &weeks
	}

	metrics.EfficiencyScore = clamp01(avgRelative / referenceWeeklyRate)
	return metrics
}

func gradeFromScore(avg float64) string {
	switch {
	case avg >= 0.9:
		return "A"
	case avg >= 0.8:
		return "B"
	case avg >= 0.65:
		return "C"
	case avg >= 0.5:
		return "D"
	default:
		return "F"
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func stddev(values []float64, center float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - center
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
