package deviations

import (
	"fmt"
	"sort"
	"strings"

	"deviations-analyzer/internal/core/domain/deviations"
)

// metricLexicon maps name tokens to a short business-framing phrase used in
// concern narratives (§4.5).
var metricLexicon = map[string]string{
	"amount":  "a monetary outcome",
	"rate":    "an operational rate",
	"score":   "an evaluative score",
	"time":    "a timing measurement",
	"cost":    "a cost outcome",
	"approval": "an approval outcome",
	"refund":  "a refund outcome",
}

// Synthesize attaches a machine-readable description and a concern
// narrative to every raw statistical finding, then ranks the combined set
// per §4.5: descending severity, protected bias findings breaking ties
// above non-protected, detector order preserved within an equal severity
// class.
func Synthesize(findings []deviations.Finding, purpose string) []deviations.Finding {
	out := make([]deviations.Finding, len(findings))
	for i, f := range findings {
		f.Description = describeFinding(f)
		f.Concern = concernNarrative(f, purpose)
		out[i] = f
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		iProtected := out[i].Type == deviations.FindingBias && out[i].Protected
		jProtected := out[j].Type == deviations.FindingBias && out[j].Protected
		if iProtected != jProtected {
			return iProtected
		}
		return false
	})

	return out
}

func describeFinding(f deviations.Finding) string {
	switch f.Type {
	case deviations.FindingDeviation:
		switch f.DeviationKind {
		case deviations.DeviationTrend:
			return fmt.Sprintf("%s trended %s by %.1f%% from bucket %s to %s.",
				f.Metric, f.Trend.Direction, f.Trend.PercentChange*100, f.Trend.BucketFirst, f.Trend.BucketLast)
		case deviations.DeviationShift:
			return fmt.Sprintf("%s shifted abruptly between %s and %s (z=%.2f).",
				f.Metric, f.Shift.BucketA, f.Shift.BucketB, f.Shift.Z)
		case deviations.DeviationOutliers:
			return fmt.Sprintf("%s has %d outlier records (%.1f%% of %d) beyond the configured deviation threshold.",
				f.Metric, f.Outliers.Count, f.Outliers.Fraction*100, f.Outliers.Total)
		}
	case deviations.FindingBias:
		kind := "single-parameter"
		if f.BiasKind == deviations.BiasIntersectional {
			kind = "intersectional"
		}
		return fmt.Sprintf("%s %s bias on %s: %s advantaged over %s (d=%.2f).",
			kind, f.Metric, strings.Join(f.Parameters, ", "), f.Advantaged, f.Disadvantage, f.Bias.CohensD)
	}
	return ""
}

func concernNarrative(f deviations.Finding, purpose string) string {
	var b strings.Builder

	switch f.Type {
	case deviations.FindingDeviation:
		framing := framingPhrase(f.Metric)
		switch f.DeviationKind {
		case deviations.DeviationTrend:
			fmt.Fprintf(&b, "Over the analyzed window, %s moved %s by roughly %.0f%%, which is notable for %s.",
				f.Metric, f.Trend.Direction, f.Trend.PercentChange*100, framing)
			if f.Trend.SupportingShiftZ != nil {
				fmt.Fprintf(&b, " A consecutive-period shift (z=%.2f) supports the same direction of change.", *f.Trend.SupportingShiftZ)
			}
		case deviations.DeviationShift:
			fmt.Fprintf(&b, "%s shifted sharply between consecutive periods (z=%.2f), an abrupt change worth investigating for %s.",
				f.Metric, f.Shift.Z, framing)
		case deviations.DeviationOutliers:
			fmt.Fprintf(&b, "%.1f%% of %s observations are statistical outliers, more than expected for %s.",
				f.Outliers.Fraction*100, f.Metric, framing)
		}
	case deviations.FindingBias:
		fmt.Fprintf(&b, "Comparing groups on %s, %s sees a disadvantaged outcome relative to %s on %s (effect size d=%.2f).",
			strings.Join(f.Parameters, " and "), f.Disadvantage, f.Advantaged, f.Metric, f.Bias.CohensD)
		if f.Bias.DisparityRatio != nil {
			ratio := *f.Bias.DisparityRatio
			if absFloat(ratio) > 1.25 {
				fmt.Fprintf(&b, " The disparity ratio of %.2f breaches the four-fifths rule threshold of 1.25.", ratio)
			}
			if absFloat(ratio) >= 4.0 {
				fmt.Fprintf(&b, " This exceeds the severe-disparity threshold.")
			}
		}
		if f.Protected {
			b.WriteString(" At least one compared attribute is a protected characteristic, raising a fairness concern.")
		}
	}

	purpose = strings.TrimSpace(purpose)
	if purpose != "" {
		fmt.Fprintf(&b, " This is evaluated against the agent's declared purpose: \"%s\".", purpose)
	}

	return b.String()
}

func framingPhrase(metricName string) string {
	lower := strings.ToLower(metricName)
	for _, sep := range []string{"_", ".", "-"} {
		lower = strings.ReplaceAll(lower, sep, " ")
	}
	for _, tok := range strings.Fields(lower) {
		if phrase, ok := metricLexicon[tok]; ok {
			return phrase
		}
	}
	return "a tracked business metric"
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
