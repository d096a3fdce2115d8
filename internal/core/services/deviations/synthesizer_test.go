package deviations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deviations-analyzer/internal/core/domain/deviations"
)

func trendFinding(severity float64) deviations.Finding {
	return deviations.Finding{
		Type:          deviations.FindingDeviation,
		DeviationKind: deviations.DeviationTrend,
		Metric:        "refund_amount",
		Severity:      severity,
		Trend: &deviations.TrendEvidence{
			Direction:     "increasing",
			PercentChange: 0.5,
			BucketFirst:   "2026-01-01",
			BucketLast:    "2026-01-04",
		},
	}
}

func biasFinding(severity float64, protected bool) deviations.Finding {
	ratio := 1.5
	return deviations.Finding{
		Type:         deviations.FindingBias,
		BiasKind:     deviations.BiasSingle,
		Metric:       "approval_score",
		Parameters:   []string{"gender"},
		Advantaged:   "a",
		Disadvantage: "b",
		Protected:    protected,
		Severity:     severity,
		Bias: &deviations.BiasEvidence{
			MeanAdv: 90, MeanDis: 60, NAdv: 20, NDis: 20, CohensD: 0.9, DisparityRatio: &ratio,
		},
	}
}

func TestSynthesize_FillsDescriptionAndConcern(t *testing.T) {
	out := Synthesize([]deviations.Finding{trendFinding(0.5)}, "processes refund requests")

	require.Len(t, out, 1)
	assert.NotEmpty(t, out[0].Description)
	assert.Contains(t, out[0].Concern, "refund_amount")
	assert.Contains(t, out[0].Concern, "processes refund requests")
}

func TestSynthesize_OmitsPurposeSentenceWhenEmpty(t *testing.T) {
	out := Synthesize([]deviations.Finding{trendFinding(0.5)}, "")
	assert.NotContains(t, out[0].Concern, "declared purpose")
}

func TestSynthesize_RanksBySeverityDescending(t *testing.T) {
	out := Synthesize([]deviations.Finding{
		trendFinding(0.2),
		biasFinding(0.9, false),
		trendFinding(0.5),
	}, "")

	require.Len(t, out, 3)
	assert.Equal(t, 0.9, out[0].Severity)
	assert.Equal(t, 0.5, out[1].Severity)
	assert.Equal(t, 0.2, out[2].Severity)
}

func TestSynthesize_ProtectedBiasBreaksTiesAboveNonProtected(t *testing.T) {
	out := Synthesize([]deviations.Finding{
		biasFinding(0.6, false),
		biasFinding(0.6, true),
	}, "")

	require.Len(t, out, 2)
	assert.True(t, out[0].Protected)
	assert.False(t, out[1].Protected)
}

func TestSynthesize_BiasConcernMentionsFourFifthsRuleWhenBreached(t *testing.T) {
	out := Synthesize([]deviations.Finding{biasFinding(0.8, true)}, "")
	assert.Contains(t, out[0].Concern, "four-fifths rule")
}
