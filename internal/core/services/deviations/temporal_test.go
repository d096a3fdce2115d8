package deviations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deviations-analyzer/internal/config"
	"deviations-analyzer/internal/core/domain/deviations"
)

// buildBucketedRecords lays out n values per bucket, one bucket per slice
// entry, and returns both the flat RecordSet and the matching TimeBuckets.
func buildBucketedRecords(metricName string, bucketValues [][]float64) (deviations.RecordSet, []deviations.TimeBucket) {
	var records deviations.RecordSet
	var buckets []deviations.TimeBucket
	idx := 0
	for bi, vals := range bucketValues {
		var indices []int
		for _, v := range vals {
			records = append(records, deviations.Record{Attributes: map[string]interface{}{metricName: v}})
			indices = append(indices, idx)
			idx++
		}
		buckets = append(buckets, deviations.TimeBucket{ID: fmtBucketID(bi), Indices: indices})
	}
	return records, buckets
}

func fmtBucketID(i int) string {
	return "bucket-" + string(rune('A'+i))
}

func metricDescriptorFor(name string, records deviations.RecordSet) deviations.MetricDescriptor {
	var vals []float64
	for _, r := range records {
		vals = append(vals, r.Attributes[name].(float64))
	}
	return deviations.MetricDescriptor{
		Name: name,
		Kind: deviations.MetricContinuous,
		Stats: deviations.SampleStats{
			N:     len(vals),
			Mean:  mean(vals),
			Stdev: stdev(vals),
			CV:    coefficientOfVariation(mean(vals), stdev(vals)),
		},
	}
}

func TestEvaluateTemporal_DetectsMonotonicIncreasingTrend(t *testing.T) {
	cfg := config.DefaultAnalyzerConfig()
	records, buckets := buildBucketedRecords("refund_amount", [][]float64{
		{100, 102, 98, 101},
		{108, 110, 107, 109},
		{140, 142, 139, 141},
		{200, 198, 202, 199},
	})
	metric := metricDescriptorFor("refund_amount", records)

	findings, skipped := EvaluateTemporal(records, buckets, metric, cfg)
	assert.Empty(t, skipped)

	var trend *deviations.Finding
	for i := range findings {
		if findings[i].DeviationKind == deviations.DeviationTrend {
			trend = &findings[i]
		}
	}
	require.NotNil(t, trend)
	assert.Equal(t, "increasing", trend.Trend.Direction)
	assert.Greater(t, trend.Severity, 0.0)
}

func TestEvaluateTemporal_NoFindingsWhenStable(t *testing.T) {
	cfg := config.DefaultAnalyzerConfig()
	records, buckets := buildBucketedRecords("refund_amount", [][]float64{
		{100, 101, 99, 100},
		{100, 99, 101, 100},
		{101, 100, 99, 100},
		{100, 100, 101, 99},
	})
	metric := metricDescriptorFor("refund_amount", records)

	findings, _ := EvaluateTemporal(records, buckets, metric, cfg)
	assert.Empty(t, findings)
}

func TestEvaluateTemporal_InsufficientBucketsIsSkipped(t *testing.T) {
	cfg := config.DefaultAnalyzerConfig()
	records, buckets := buildBucketedRecords("refund_amount", [][]float64{
		{100, 101},
	})
	metric := metricDescriptorFor("refund_amount", records)

	findings, skipped := EvaluateTemporal(records, buckets, metric, cfg)
	assert.Empty(t, findings)
	require.Len(t, skipped, 1)
	assert.Equal(t, "refund_amount", skipped[0].Entity)
}

func TestEvaluateTemporal_DetectsOutliers(t *testing.T) {
	cfg := config.DefaultAnalyzerConfig()
	var vals []float64
	for i := 0; i < 96; i++ {
		vals = append(vals, 100)
	}
	for i := 0; i < 10; i++ {
		vals = append(vals, 500)
	}
	records, buckets := buildBucketedRecords("refund_amount", [][]float64{vals[:53], vals[53:]})
	metric := metricDescriptorFor("refund_amount", records)

	findings, _ := EvaluateTemporal(records, buckets, metric, cfg)

	var outliers *deviations.Finding
	for i := range findings {
		if findings[i].DeviationKind == deviations.DeviationOutliers {
			outliers = &findings[i]
		}
	}
	require.NotNil(t, outliers)
	assert.Greater(t, outliers.Outliers.Count, 0)
}
