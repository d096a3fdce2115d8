package deviations

import (
	"math"

	"deviations-analyzer/internal/config"
	"deviations-analyzer/internal/core/domain/deviations"
)

type bucketMetricStat struct {
	id    string
	mean  float64
	stdev float64
	n     int
}

// EvaluateTemporal runs the three ordered sub-detectors (trend, shift,
// outliers) for one metric against the Normalizer's time buckets, per §4.3.
// It emits at most one finding per sub-detector; a firing trend absorbs a
// firing shift as supporting evidence rather than emitting both.
func EvaluateTemporal(
	records deviations.RecordSet,
	buckets []deviations.TimeBucket,
	metric deviations.MetricDescriptor,
	cfg config.AnalyzerConfig,
) ([]deviations.Finding, []deviations.SkippedEntity) {
	var stats []bucketMetricStat
	for _, b := range buckets {
		vals := valuesForIndices(records, b.Indices, metric.Name)
		if len(vals) == 0 {
			continue
		}
		stats = append(stats, bucketMetricStat{
			id:    b.ID,
			mean:  mean(vals),
			stdev: stdev(vals),
			n:     len(vals),
		})
	}

	if len(stats) < cfg.MinPeriods {
		return nil, []deviations.SkippedEntity{{
			Entity: metric.Name,
			Reason: "fewer than min_periods usable time buckets",
		}}
	}

	var findings []deviations.Finding

	trend, shiftZ, shiftPair := evaluateTrendAndShift(stats, metric, cfg)
	if trend != nil {
		if shiftZ != nil {
			trend.Trend.SupportingShiftZ = shiftZ
		}
		findings = append(findings, *trend)
	} else if shiftZ != nil {
		findings = append(findings, buildShiftFinding(metric.Name, stats[shiftPair-1], stats[shiftPair], *shiftZ, cfg))
	}

	if outliers := evaluateOutliers(records, metric, cfg); outliers != nil {
		findings = append(findings, *outliers)
	}

	return findings, nil
}

// evaluateTrendAndShift returns a trend Finding if the monotonic-trend
// sub-detector fires, and the largest-magnitude shift z-score (with its
// bucket-pair index) only when that z-score exceeds the deviation threshold,
// i.e. when the shift sub-detector fires; otherwise shiftZ is nil. The caller
// attaches a non-nil shiftZ to a firing trend as supporting evidence.
func evaluateTrendAndShift(
	stats []bucketMetricStat,
	metric deviations.MetricDescriptor,
	cfg config.AnalyzerConfig,
) (trend *deviations.Finding, shiftZ *float64, shiftPairIdx int) {
	increasing, decreasing := true, true
	for i := 1; i < len(stats); i++ {
		if stats[i].mean <= stats[i-1].mean {
			increasing = false
		}
		if stats[i].mean >= stats[i-1].mean {
			decreasing = false
		}
	}
	monotonic := increasing || decreasing

	var maxZ float64
	maxAbsZ := -1.0
	pairIdx := -1
	for i := 1; i < len(stats); i++ {
		if stats[i].n < 2 || stats[i-1].n < 2 {
			continue
		}
		z := zScore(stats[i].mean, stats[i-1].mean, metric.Stats.Stdev)
		if math.Abs(z) > maxAbsZ {
			maxAbsZ = math.Abs(z)
			maxZ = z
			pairIdx = i
		}
	}
	if pairIdx >= 0 && maxAbsZ > cfg.DeviationThresholdSigma {
		z := maxZ
		shiftZ = &z
		shiftPairIdx = pairIdx
	}

	if !monotonic {
		return nil, shiftZ, shiftPairIdx
	}

	meanFirst := stats[0].mean
	meanLast := stats[len(stats)-1].mean
	pc := percentChange(meanFirst, meanLast, metric.Stats.Mean)
	threshold := 0.5 * cfg.DeviationThresholdSigma * 0.10
	if math.Abs(pc) < threshold {
		return nil, shiftZ, shiftPairIdx
	}

	direction := "increasing"
	if meanLast < meanFirst {
		direction = "decreasing"
	}

	severity := math.Min(1.0, math.Abs(pc)/(cfg.DeviationThresholdSigma*0.5))

	f := deviations.Finding{
		Type:          deviations.FindingDeviation,
		DeviationKind: deviations.DeviationTrend,
		Metric:        metric.Name,
		Severity:      severity,
		Trend: &deviations.TrendEvidence{
			Direction:     direction,
			PercentChange: pc,
			MeanFirst:     meanFirst,
			MeanLast:      meanLast,
			BucketFirst:   stats[0].id,
			BucketLast:    stats[len(stats)-1].id,
		},
	}
	return &f, shiftZ, shiftPairIdx
}

func buildShiftFinding(metricName string, a, b bucketMetricStat, z float64, cfg config.AnalyzerConfig) deviations.Finding {
	magnitude := math.Abs(z) / cfg.DeviationThresholdSigma
	severity := math.Min(1.0, magnitude/(cfg.DeviationThresholdSigma*0.5))
	return deviations.Finding{
		Type:          deviations.FindingDeviation,
		DeviationKind: deviations.DeviationShift,
		Metric:        metricName,
		Severity:      severity,
		Shift: &deviations.ShiftEvidence{
			BucketA: a.id,
			BucketB: b.id,
			MeanA:   a.mean,
			MeanB:   b.mean,
			Z:       z,
		},
	}
}

func evaluateOutliers(records deviations.RecordSet, metric deviations.MetricDescriptor, cfg config.AnalyzerConfig) *deviations.Finding {
	vals := valuesForMetric(records, metric.Name)
	if len(vals) == 0 || metric.Stats.Stdev < epsilon {
		return nil
	}

	count := 0
	maxAbsZ := 0.0
	for _, v := range vals {
		z := math.Abs((v - metric.Stats.Mean) / metric.Stats.Stdev)
		if z > maxAbsZ {
			maxAbsZ = z
		}
		if z > cfg.DeviationThresholdSigma {
			count++
		}
	}
	fraction := float64(count) / float64(len(vals))
	if fraction < cfg.OutlierFractionFloor {
		return nil
	}

	severity := math.Min(1.0, fraction/(cfg.DeviationThresholdSigma*0.5))
	return &deviations.Finding{
		Type:          deviations.FindingDeviation,
		DeviationKind: deviations.DeviationOutliers,
		Metric:        metric.Name,
		Severity:      severity,
		Outliers: &deviations.OutliersEvidence{
			Count:    count,
			Total:    len(vals),
			Fraction: fraction,
			MaxAbsZ:  maxAbsZ,
		},
	}
}

func valuesForIndices(records deviations.RecordSet, indices []int, metricName string) []float64 {
	var vals []float64
	for _, idx := range indices {
		if v, ok := numericValue(records[idx].Attributes[metricName]); ok {
			vals = append(vals, v)
		}
	}
	return vals
}

func valuesForMetric(records deviations.RecordSet, metricName string) []float64 {
	var vals []float64
	for _, r := range records {
		if v, ok := numericValue(r.Attributes[metricName]); ok {
			vals = append(vals, v)
		}
	}
	return vals
}
