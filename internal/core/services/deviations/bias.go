package deviations

import (
	"fmt"
	"math"
	"sort"

	"deviations-analyzer/internal/config"
	"deviations-analyzer/internal/core/domain/deviations"
)

// EvaluateBias runs the single-parameter and intersectional bias detectors
// (§4.4) for every metric against every candidate grouping parameter.
// Intersectional pairs are evaluated once per unordered combination of two
// distinct parameters where at least one is protected — the Cartesian
// product of their bucket labels is symmetric, so considering (p1,p2) and
// (p2,p1) separately would only duplicate the same composite groups.
func EvaluateBias(
	records deviations.RecordSet,
	metrics []deviations.MetricDescriptor,
	parameters []deviations.ParameterDescriptor,
	cfg config.AnalyzerConfig,
) ([]deviations.Finding, []deviations.SkippedEntity) {
	var findings []deviations.Finding
	var skipped []deviations.SkippedEntity

	for _, metric := range metrics {
		for _, param := range parameters {
			if param.Name == metric.Name {
				continue
			}
			f, skip := evaluateSingleBias(records, metric, param, cfg)
			if f != nil {
				findings = append(findings, *f)
			}
			if skip != "" {
				skipped = append(skipped, deviations.SkippedEntity{Entity: metric.Name + "×" + param.Name, Reason: skip})
			}
		}

		for i := 0; i < len(parameters); i++ {
			for j := i + 1; j < len(parameters); j++ {
				p1, p2 := parameters[i], parameters[j]
				if !p1.Protected && !p2.Protected {
					continue
				}
				f, skip := evaluateIntersectionalBias(records, metric, p1, p2, cfg)
				if f != nil {
					findings = append(findings, *f)
				}
				if skip != "" {
					skipped = append(skipped, deviations.SkippedEntity{
						Entity: fmt.Sprintf("%s×(%s,%s)", metric.Name, p1.Name, p2.Name),
						Reason: skip,
					})
				}
			}
		}
	}

	return findings, skipped
}

func evaluateSingleBias(
	records deviations.RecordSet,
	metric deviations.MetricDescriptor,
	param deviations.ParameterDescriptor,
	cfg config.AnalyzerConfig,
) (*deviations.Finding, string) {
	groups := computeGroupsForParameter(records, metric.Name, param, cfg.MinGroupSize)
	if len(groups) < 2 {
		return nil, "fewer than two usable groups"
	}

	advLabel, disLabel, adv, dis := advantagedAndDisadvantaged(groups)
	d, ok := cohensD(adv.Mean, adv.N, adv.Stdev, dis.Mean, dis.N, dis.Stdev)
	if !ok {
		return nil, "degenerate group variance"
	}
	if math.Abs(d) < cfg.BiasThresholdD {
		return nil, ""
	}

	ratio := disparityRatio(adv.Mean, dis.Mean)
	protected := param.Protected
	severity := biasSeverity(d, ratio, protected, cfg)

	return &deviations.Finding{
		Type:         deviations.FindingBias,
		BiasKind:     deviations.BiasSingle,
		Metric:       metric.Name,
		Parameters:   []string{param.Name},
		Advantaged:   advLabel,
		Disadvantage: disLabel,
		Protected:    protected,
		Severity:     severity,
		Bias: &deviations.BiasEvidence{
			MeanAdv:        adv.Mean,
			MeanDis:        dis.Mean,
			NAdv:           adv.N,
			NDis:           dis.N,
			CohensD:        d,
			DisparityRatio: ratio,
		},
	}, ""
}

func evaluateIntersectionalBias(
	records deviations.RecordSet,
	metric deviations.MetricDescriptor,
	p1, p2 deviations.ParameterDescriptor,
	cfg config.AnalyzerConfig,
) (*deviations.Finding, string) {
	groups := computeGroupsForPair(records, metric.Name, p1, p2, cfg.MinGroupSize)
	if len(groups) < 2 {
		return nil, "fewer than two usable composite groups"
	}

	advLabel, disLabel, adv, dis := advantagedAndDisadvantaged(groups)
	d, ok := cohensD(adv.Mean, adv.N, adv.Stdev, dis.Mean, dis.N, dis.Stdev)
	if !ok {
		return nil, "degenerate group variance"
	}

	threshold := cfg.BiasThresholdD * cfg.IntersectionalMultiplier
	if math.Abs(d) < threshold {
		return nil, ""
	}

	ratio := disparityRatio(adv.Mean, dis.Mean)
	protected := p1.Protected || p2.Protected
	severity := biasSeverity(d, ratio, protected, cfg)

	return &deviations.Finding{
		Type:         deviations.FindingBias,
		BiasKind:     deviations.BiasIntersectional,
		Metric:       metric.Name,
		Parameters:   []string{p1.Name, p2.Name},
		Advantaged:   advLabel,
		Disadvantage: disLabel,
		Protected:    protected,
		Severity:     severity,
		Bias: &deviations.BiasEvidence{
			MeanAdv:        adv.Mean,
			MeanDis:        dis.Mean,
			NAdv:           adv.N,
			NDis:           dis.N,
			CohensD:        d,
			DisparityRatio: ratio,
		},
	}, ""
}

// biasSeverity implements §4.4's severity mapping: a base effect-size
// severity, raised to at least 0.85 on a severe disparity ratio, then
// boosted 1.5x (clamped to 1.0) once if any involved parameter is
// protected.
func biasSeverity(d float64, ratio *float64, protected bool, cfg config.AnalyzerConfig) float64 {
	s := math.Min(1.0, math.Abs(d)/2.0)
	if ratio != nil && math.Abs(*ratio) >= cfg.SevereDisparityRatio {
		s = math.Max(s, 0.85)
	}
	if protected {
		s = math.Min(1.0, s*1.5)
	}
	return s
}

// disparityRatio returns mean_adv/mean_dis when both means share a sign and
// mean_dis is non-zero; otherwise nil (absolute difference only).
func disparityRatio(meanAdv, meanDis float64) *float64 {
	if math.Abs(meanDis) < epsilon {
		return nil
	}
	if (meanAdv >= 0) != (meanDis >= 0) {
		return nil
	}
	r := meanAdv / meanDis
	return &r
}

func computeGroupsForParameter(
	records deviations.RecordSet,
	metricName string,
	param deviations.ParameterDescriptor,
	minGroupSize int,
) map[string]deviations.GroupStats {
	accum := map[string][]float64{}
	for _, r := range records {
		mv, ok := numericValue(r.Attributes[metricName])
		if !ok {
			continue
		}
		raw, present := r.Attributes[param.Name]
		if !present {
			continue
		}
		label, ok := param.Bucketer(raw)
		if !ok {
			continue
		}
		accum[label] = append(accum[label], mv)
	}
	return groupStatsFromAccum(accum, minGroupSize)
}

func computeGroupsForPair(
	records deviations.RecordSet,
	metricName string,
	p1, p2 deviations.ParameterDescriptor,
	minGroupSize int,
) map[string]deviations.GroupStats {
	accum := map[string][]float64{}
	for _, r := range records {
		mv, ok := numericValue(r.Attributes[metricName])
		if !ok {
			continue
		}
		raw1, present1 := r.Attributes[p1.Name]
		raw2, present2 := r.Attributes[p2.Name]
		if !present1 || !present2 {
			continue
		}
		label1, ok1 := p1.Bucketer(raw1)
		label2, ok2 := p2.Bucketer(raw2)
		if !ok1 || !ok2 {
			continue
		}
		composite := fmt.Sprintf("%s=%s,%s=%s", p1.Name, label1, p2.Name, label2)
		accum[composite] = append(accum[composite], mv)
	}
	return groupStatsFromAccum(accum, minGroupSize)
}

func groupStatsFromAccum(accum map[string][]float64, minGroupSize int) map[string]deviations.GroupStats {
	result := make(map[string]deviations.GroupStats)
	for label, vals := range accum {
		if len(vals) < minGroupSize {
			continue
		}
		result[label] = deviations.GroupStats{
			N:     len(vals),
			Mean:  mean(vals),
			Stdev: stdev(vals),
			Min:   minFloat(vals),
			Max:   maxFloat(vals),
		}
	}
	return result
}

// advantagedAndDisadvantaged picks the highest-mean and lowest-mean groups.
// Ties are broken by ascending label order for determinism.
func advantagedAndDisadvantaged(groups map[string]deviations.GroupStats) (advLabel, disLabel string, adv, dis deviations.GroupStats) {
	labels := make([]string, 0, len(groups))
	for l := range groups {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	advLabel, disLabel = labels[0], labels[0]
	adv, dis = groups[labels[0]], groups[labels[0]]
	for _, l := range labels[1:] {
		g := groups[l]
		if g.Mean > adv.Mean {
			adv, advLabel = g, l
		}
		if g.Mean < dis.Mean {
			dis, disLabel = g, l
		}
	}
	return advLabel, disLabel, adv, dis
}

func minFloat(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxFloat(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
