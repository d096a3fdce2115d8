// Package deviations holds the value types, sentinel errors, and wire
// shapes shared by the deviations-and-bias analysis pipeline. It carries no
// behavior of its own; internal/core/services/deviations implements the
// pipeline over these types.
package deviations

import (
	"encoding/json"
	"time"
)

// AgentPurpose is the free-text description of what the analyzed agent is
// for. The Extractor uses its keywords to halve the CV floor for matching
// attribute names and to rank those metrics first; the Finding Synthesizer
// quotes it in concern narratives. The detectors never consult it.
type AgentPurpose string

// MaxPurposeBytes is the maximum length of AgentPurpose consulted by the
// pipeline; anything beyond this is truncated at the input boundary.
const MaxPurposeBytes = 4096

// Record is one normalized telemetry event. A nil Timestamp means the
// original value could not be parsed; such records are retained for
// cross-sectional (bias) analysis but excluded from temporal bucketing.
type Record struct {
	Timestamp  *time.Time
	Attributes map[string]interface{}
}

// RecordSet is an ordered, immutable-after-construction sequence of
// Records. Order is the order of normalization, which is deterministic
// given input order.
type RecordSet []Record

// MetricKind classifies a candidate business metric.
type MetricKind string

const (
	MetricContinuous MetricKind = "continuous"
	MetricRate       MetricKind = "rate"
	MetricCount      MetricKind = "count"
)

// SampleStats summarizes a metric's values across the whole RecordSet,
// independent of any time bucketing or grouping.
type SampleStats struct {
	N              int
	Mean           float64
	Stdev          float64
	CV             float64
	DistinctCount  int
	NumericCoverage float64
}

// MetricDescriptor is a candidate business metric discovered by the
// Extractor.
type MetricDescriptor struct {
	Name  string
	Kind  MetricKind
	Stats SampleStats
}

// ParameterDescriptor is a candidate grouping parameter discovered by the
// Extractor: a categorical attribute, or a numeric attribute reduced to
// buckets via auto-bucketing.
type ParameterDescriptor struct {
	Name        string
	Protected   bool
	Cardinality int
	// Bucketer maps a raw attribute value to its bucket label. For
	// already-categorical attributes this stringifies the scalar; for
	// auto-bucketed numeric attributes it applies the fixed split point.
	Bucketer func(value interface{}) (label string, ok bool)
}

// GroupKey identifies one group within a single grouping parameter
// (single-parameter bias) or an ordered composite of such pairs
// (intersectional bias).
type GroupKey struct {
	Parameter   string
	BucketLabel string
}

// GroupStats summarizes one metric restricted to one GroupKey (or composite
// of GroupKeys). Only meaningful when N >= the configured min_group_size.
type GroupStats struct {
	N     int
	Mean  float64
	Stdev float64
	Min   float64
	Max   float64
}

// TimeBucket is a contiguous half-open interval [Start, End) grouping
// Record indices for temporal analysis.
type TimeBucket struct {
	ID      string
	Start   time.Time
	End     time.Time
	Indices []int
}

// Granularity is the time-bucketing resolution chosen by the Normalizer.
type Granularity string

const (
	GranularityHour Granularity = "hour"
	GranularityDay  Granularity = "day"
	GranularityWeek Granularity = "week"
	GranularityNone Granularity = ""
)

// DeviationKind distinguishes the three temporal sub-detectors.
type DeviationKind string

const (
	DeviationTrend     DeviationKind = "trend"
	DeviationShift     DeviationKind = "shift"
	DeviationOutliers  DeviationKind = "outliers"
)

// BiasKind distinguishes single-parameter from intersectional bias findings.
type BiasKind string

const (
	BiasSingle         BiasKind = "single"
	BiasIntersectional BiasKind = "intersectional"
)

// TrendEvidence carries the fields behind a trend finding.
type TrendEvidence struct {
	Direction        string   `json:"direction"`
	PercentChange    float64  `json:"percent_change"`
	MeanFirst        float64  `json:"mean_first"`
	MeanLast         float64  `json:"mean_last"`
	BucketFirst      string   `json:"bucket_first"`
	BucketLast       string   `json:"bucket_last"`
	SupportingShiftZ *float64 `json:"supporting_shift_z,omitempty"`
}

// ShiftEvidence carries the fields behind a consecutive-period-shift
// finding.
type ShiftEvidence struct {
	BucketA string  `json:"bucket_a"`
	BucketB string  `json:"bucket_b"`
	MeanA   float64 `json:"mean_a"`
	MeanB   float64 `json:"mean_b"`
	Z       float64 `json:"z"`
}

// OutliersEvidence carries the fields behind an outlier-variability finding.
type OutliersEvidence struct {
	Count       int     `json:"count"`
	Total       int     `json:"total"`
	Fraction    float64 `json:"fraction"`
	MaxAbsZ     float64 `json:"max_abs_z"`
}

// BiasEvidence carries the fields behind a single or intersectional bias
// finding.
type BiasEvidence struct {
	MeanAdv        float64  `json:"mean_adv"`
	MeanDis        float64  `json:"mean_dis"`
	NAdv           int      `json:"n_adv"`
	NDis           int      `json:"n_dis"`
	CohensD        float64  `json:"cohens_d"`
	DisparityRatio *float64 `json:"disparity_ratio"`
}

// Finding is the tagged-union output of the pipeline: a Deviation or a
// Bias finding. Exactly one of the Trend/Shift/Outliers/Bias evidence
// pointers is non-nil, selected by Type and Kind.
type Finding struct {
	Type FindingType

	// Deviation fields.
	DeviationKind DeviationKind
	Trend         *TrendEvidence
	Shift         *ShiftEvidence
	Outliers      *OutliersEvidence

	// Bias fields.
	BiasKind     BiasKind
	Parameters   []string
	Advantaged   string
	Disadvantage string
	Bias         *BiasEvidence
	Protected    bool

	Metric      string
	Severity    float64
	Description string
	Concern     string
}

// FindingType discriminates the two Finding shapes on the wire.
type FindingType string

const (
	FindingDeviation FindingType = "deviation"
	FindingBias      FindingType = "bias"
)

// MarshalJSON renders Finding as the tagged-union shape defined by the
// external interface contract: a "deviation" object with a kind-specific
// evidence payload, or a "bias" object with group/evidence fields.
func (f Finding) MarshalJSON() ([]byte, error) {
	switch f.Type {
	case FindingDeviation:
		evidence := map[string]interface{}{}
		switch f.DeviationKind {
		case DeviationTrend:
			evidence = trendEvidenceMap(f.Trend)
		case DeviationShift:
			evidence = shiftEvidenceMap(f.Shift)
		case DeviationOutliers:
			evidence = outliersEvidenceMap(f.Outliers)
		}
		return json.Marshal(struct {
			Type        string                 `json:"type"`
			Kind        string                 `json:"kind"`
			Metric      string                 `json:"metric"`
			Evidence    map[string]interface{} `json:"evidence"`
			Severity    float64                `json:"severity"`
			Description string                 `json:"description"`
			Concern     string                 `json:"concern"`
		}{
			Type:        string(f.Type),
			Kind:        string(f.DeviationKind),
			Metric:      f.Metric,
			Evidence:    evidence,
			Severity:    f.Severity,
			Description: f.Description,
			Concern:     f.Concern,
		})
	default: // FindingBias
		return json.Marshal(struct {
			Type         string        `json:"type"`
			Kind         string        `json:"kind"`
			Metric       string        `json:"metric"`
			Parameters   []string      `json:"parameters"`
			Advantaged   string        `json:"advantaged"`
			Disadvantage string        `json:"disadvantaged"`
			Evidence     *BiasEvidence `json:"evidence"`
			Protected    bool          `json:"protected"`
			Severity     float64       `json:"severity"`
			Description  string        `json:"description"`
			Concern      string        `json:"concern"`
		}{
			Type:         string(f.Type),
			Kind:         string(f.BiasKind),
			Metric:       f.Metric,
			Parameters:   f.Parameters,
			Advantaged:   f.Advantaged,
			Disadvantage: f.Disadvantage,
			Evidence:     f.Bias,
			Protected:    f.Protected,
			Severity:     f.Severity,
			Description:  f.Description,
			Concern:      f.Concern,
		})
	}
}

func trendEvidenceMap(e *TrendEvidence) map[string]interface{} {
	if e == nil {
		return map[string]interface{}{}
	}
	m := map[string]interface{}{
		"direction":      e.Direction,
		"percent_change": e.PercentChange,
		"mean_first":     e.MeanFirst,
		"mean_last":      e.MeanLast,
		"bucket_first":   e.BucketFirst,
		"bucket_last":    e.BucketLast,
	}
	if e.SupportingShiftZ != nil {
		m["supporting_shift_z"] = *e.SupportingShiftZ
	}
	return m
}

func shiftEvidenceMap(e *ShiftEvidence) map[string]interface{} {
	if e == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}{
		"bucket_a": e.BucketA,
		"bucket_b": e.BucketB,
		"mean_a":   e.MeanA,
		"mean_b":   e.MeanB,
		"z":        e.Z,
	}
}

func outliersEvidenceMap(e *OutliersEvidence) map[string]interface{} {
	if e == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}{
		"count":      e.Count,
		"total":      e.Total,
		"fraction":   e.Fraction,
		"max_abs_z":  e.MaxAbsZ,
	}
}

// SkippedEntity records a non-fatal per-entity skip reason, surfaced in the
// run envelope rather than raised as an error.
type SkippedEntity struct {
	Entity string `json:"entity"`
	Reason string `json:"reason"`
}

// RunEnvelope carries the bookkeeping fields alongside the Finding list.
// GranularityUsed is nil when temporal bucketing could not produce at least
// two non-empty buckets at any granularity (§4.1's fallback chain).
type RunEnvelope struct {
	GranularityUsed      *Granularity    `json:"granularity_used"`
	MetricsConsidered    []string        `json:"metrics_considered"`
	ParametersConsidered []string        `json:"parameters_considered"`
	ProtectedDetected    []string        `json:"protected_detected"`
	Skipped              []SkippedEntity `json:"skipped"`
}

// AnalysisResult is the complete output of a single analysis run.
type AnalysisResult struct {
	Findings []Finding   `json:"findings"`
	Run      RunEnvelope `json:"run"`
}
