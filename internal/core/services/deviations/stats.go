package deviations

import (
	"math"
	"sort"
)

// Statistical primitives shared by the temporal and bias detectors. Adapted
// from the teacher's cost-analytics calculator (average/standardDeviation/
// z-score anomaly detection over a series of values), generalized from its
// original AIRequest-specific inputs to plain []float64, with percentile's
// sort replaced by sort.Float64s.

const epsilon = 1e-9

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdev returns the sample standard deviation (n-1 weighted). Returns 0 for
// fewer than 2 values.
func stdev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

func coefficientOfVariation(m, sd float64) float64 {
	if math.Abs(m) < epsilon {
		return 0
	}
	return math.Abs(sd / m)
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func median(values []float64) float64 {
	return percentile(values, 0.5)
}

// pooledStdev combines two groups' sample standard deviations using n-1
// weighting, the formulation cohensD uses. (The shift sub-detector instead
// divides by the whole metric's sample stdev; see zScore.)
func pooledStdev(n1 int, sd1 float64, n2 int, sd2 float64) float64 {
	if n1 < 2 || n2 < 2 {
		return math.Max(sd1, sd2)
	}
	num := float64(n1-1)*sd1*sd1 + float64(n2-1)*sd2*sd2
	den := float64(n1 + n2 - 2)
	if den <= 0 {
		return math.Max(sd1, sd2)
	}
	return math.Sqrt(num / den)
}

// cohensD computes the standardized mean-difference effect size between two
// groups using pooled stdev with an epsilon fallback for degenerate
// variance, returning (d, ok). ok is false only when both the pooled stdev
// and the epsilon fallback are zero (fully degenerate groups).
func cohensD(meanA float64, n1 int, sd1 float64, meanB float64, n2 int, sd2 float64) (float64, bool) {
	pooled := pooledStdev(n1, sd1, n2, sd2)
	if pooled < epsilon {
		pooled = math.Max(sd1, sd2) + epsilon
	}
	if pooled < epsilon {
		return 0, false
	}
	return (meanA - meanB) / pooled, true
}

// zScore computes the z-score of a difference between two bucket means
// using the full metric's pooled stdev (the denominator shared across all
// consecutive-pair comparisons for a metric, per §4.3).
func zScore(meanA, meanB, pooled float64) float64 {
	if pooled < epsilon {
		return 0
	}
	return (meanA - meanB) / pooled
}

// percentChange computes (last-first)/|first|, falling back to
// (last-first)/|globalMean| when first is within epsilon of zero, per the
// spec's zero-first-mean handling.
func percentChange(first, last, globalMean float64) float64 {
	if math.Abs(first) < epsilon {
		if math.Abs(globalMean) < epsilon {
			return 0
		}
		return (last - first) / math.Abs(globalMean)
	}
	return (last - first) / math.Abs(first)
}
