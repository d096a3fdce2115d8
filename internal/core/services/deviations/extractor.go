package deviations

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"deviations-analyzer/internal/config"
	"deviations-analyzer/internal/core/domain/deviations"
	"deviations-analyzer/pkg/pointers"
)

// ExtractionResult is the output of Extract: the candidate metrics and
// grouping parameters discovered over a RecordSet, plus the protected
// attribute names detected among them (§4.2).
type ExtractionResult struct {
	Metrics      []deviations.MetricDescriptor
	Parameters   []deviations.ParameterDescriptor
	Protected    []string
	Skipped      []deviations.SkippedEntity
}

type attributeSample struct {
	total         int
	numericValues []float64
	distinct      map[string]bool
}

// Extract classifies every attribute name observed in records into
// candidate metrics, candidate grouping parameters, and protected
// attributes, per the rules in §4.2. thresholdOverrides optionally supplies
// a caller-provided split point for a numeric grouping parameter's
// auto-bucketing (keyed by attribute name), in place of the automatic
// median/age-40 split (§3); pass nil, or omit entirely, to always use the
// automatic split.
func Extract(records deviations.RecordSet, purpose string, cfg config.AnalyzerConfig, thresholdOverrides ...map[string]*float64) ExtractionResult {
	samples := collectAttributeSamples(records)
	keywords := purposeKeywords(purpose)
	var overrides map[string]*float64
	if len(thresholdOverrides) > 0 {
		overrides = thresholdOverrides[0]
	}

	var metrics []deviations.MetricDescriptor
	var parameters []deviations.ParameterDescriptor
	var protected []string
	var skipped []deviations.SkippedEntity

	total := len(records)
	for name, sample := range samples {
		numericCoverage := float64(len(sample.numericValues)) / float64(total)
		isNumeric := numericCoverage >= cfg.MinNumericCoverage
		distinctCount := len(sample.distinct)
		isProtected := isProtectedAttribute(name)
		if isProtected {
			protected = append(protected, name)
		}

		// Age-like numeric attributes above the grouping cap are always
		// auto-bucketed (fixed 40 split) as grouping parameters and are
		// never classified as metrics.
		ageBucketed := isNumeric && isAgeLike(name) && distinctCount > cfg.MaxGroupCardinality

		isMetric := false
		if isNumeric && distinctCount >= 3 && !ageBucketed {
			m := mean(sample.numericValues)
			sd := stdev(sample.numericValues)
			cv := coefficientOfVariation(m, sd)

			floor := cfg.MinCV
			if sharesToken(name, keywords) {
				floor /= 2
			}

			if cv >= floor {
				isMetric = true
				metrics = append(metrics, deviations.MetricDescriptor{
					Name: name,
					Kind: classifyMetricKind(name),
					Stats: deviations.SampleStats{
						N:               len(sample.numericValues),
						Mean:            m,
						Stdev:           sd,
						CV:              cv,
						DistinctCount:   distinctCount,
						NumericCoverage: numericCoverage,
					},
				})
			} else {
				skipped = append(skipped, deviations.SkippedEntity{
					Entity: name,
					Reason: fmt.Sprintf("coefficient of variation %.4f below floor %.4f", cv, floor),
				})
			}
		}

		if isNumeric && !isMetric && distinctCount > cfg.MaxGroupCardinality {
			// Auto-bucketing: numeric attributes with cardinality beyond the
			// grouping cap may still become a grouping parameter via a
			// median split (or a fixed 40 split for age-like names), but
			// only if they didn't already qualify as a metric above — an
			// attribute is a candidate grouping parameter or a metric,
			// never both.
			parameters = append(parameters, autoBucketParameter(name, sample.numericValues, isProtected, overrides[name]))
			continue
		}

		if !isMetric && distinctCount >= 2 && distinctCount <= cfg.MaxGroupCardinality {
			parameters = append(parameters, categoricalParameter(name, isProtected, distinctCount))
			continue
		}

		if !isMetric {
			skipped = append(skipped, deviations.SkippedEntity{
				Entity: name,
				Reason: "does not meet metric or grouping parameter classification",
			})
		}
	}

	sort.SliceStable(metrics, func(i, j int) bool {
		iMatch, jMatch := sharesToken(metrics[i].Name, keywords), sharesToken(metrics[j].Name, keywords)
		if iMatch != jMatch {
			return iMatch
		}
		if metrics[i].Stats.CV != metrics[j].Stats.CV {
			return metrics[i].Stats.CV > metrics[j].Stats.CV
		}
		return metrics[i].Name < metrics[j].Name
	})

	sort.SliceStable(parameters, func(i, j int) bool {
		if parameters[i].Protected != parameters[j].Protected {
			return parameters[i].Protected
		}
		if parameters[i].Cardinality != parameters[j].Cardinality {
			return parameters[i].Cardinality < parameters[j].Cardinality
		}
		return parameters[i].Name < parameters[j].Name
	})

	sort.Strings(protected)
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Entity < skipped[j].Entity })

	return ExtractionResult{
		Metrics:    metrics,
		Parameters: parameters,
		Protected:  protected,
		Skipped:    skipped,
	}
}

func collectAttributeSamples(records deviations.RecordSet) map[string]*attributeSample {
	samples := make(map[string]*attributeSample)
	total := len(records)

	ensure := func(name string) *attributeSample {
		s, ok := samples[name]
		if !ok {
			s = &attributeSample{total: total, distinct: make(map[string]bool)}
			samples[name] = s
		}
		return s
	}

	for _, r := range records {
		for name, value := range r.Attributes {
			s := ensure(name)
			s.distinct[scalarKey(value)] = true
			if f, ok := numericValue(value); ok {
				s.numericValues = append(s.numericValues, f)
			}
		}
	}
	return samples
}

func numericValue(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case int64:
		return float64(val), true
	case float64:
		return val, true
	default:
		return 0, false
	}
}

func scalarKey(v interface{}) string {
	switch val := v.(type) {
	case int64:
		return "i:" + strconv.FormatInt(val, 10)
	case float64:
		return "f:" + strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return "b:" + strconv.FormatBool(val)
	case string:
		return "s:" + val
	default:
		return fmt.Sprintf("%v", val)
	}
}

func categoricalParameter(name string, protected bool, cardinality int) deviations.ParameterDescriptor {
	return deviations.ParameterDescriptor{
		Name:        name,
		Protected:   protected,
		Cardinality: cardinality,
		Bucketer: func(value interface{}) (string, bool) {
			switch v := value.(type) {
			case string:
				return v, true
			case bool:
				return strconv.FormatBool(v), true
			case int64:
				return strconv.FormatInt(v, 10), true
			case float64:
				return strconv.FormatFloat(v, 'g', -1, 64), true
			default:
				return "", false
			}
		},
	}
}

// autoBucketParameter splits a high-cardinality numeric attribute into two
// buckets at a threshold: a caller-supplied override if given, otherwise the
// automatic split named in §3 (fixed 40 for age-like attributes, median
// otherwise).
func autoBucketParameter(name string, values []float64, protected bool, override *float64) deviations.ParameterDescriptor {
	var defaultSplit float64
	var lowLabel, highLabel string
	if isAgeLike(name) {
		defaultSplit = 40
		lowLabel, highLabel = "<40", "40+"
	} else {
		defaultSplit = median(values)
		lowLabel = "<median"
		highLabel = "≥median"
	}
	split := pointers.CoalesceFloat64(override, &defaultSplit)

	return deviations.ParameterDescriptor{
		Name:        name,
		Protected:   protected,
		Cardinality: 2,
		Bucketer: func(value interface{}) (string, bool) {
			f, ok := numericValue(value)
			if !ok {
				return "", false
			}
			if f < split {
				return lowLabel, true
			}
			return highLabel, true
		},
	}
}

// classifyMetricKind assigns a coarse MetricKind from the attribute name,
// since the wire format carries no explicit unit/kind metadata. "rate" and
// "ratio" names are treated as rates, "count"/"total" names as counts, and
// everything else as a continuous measurement.
func classifyMetricKind(name string) deviations.MetricKind {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "rate") || strings.Contains(lower, "ratio"):
		return deviations.MetricRate
	case strings.Contains(lower, "count") || strings.Contains(lower, "total"):
		return deviations.MetricCount
	default:
		return deviations.MetricContinuous
	}
}
