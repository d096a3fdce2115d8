package deviations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deviations-analyzer/internal/config"
	"deviations-analyzer/internal/core/domain/deviations"
)

func buildRecords(n int, attrFn func(i int) map[string]interface{}) deviations.RecordSet {
	records := make(deviations.RecordSet, n)
	for i := 0; i < n; i++ {
		records[i] = deviations.Record{Attributes: attrFn(i)}
	}
	return records
}

func TestExtract_ClassifiesNumericVaryingAttributeAsMetric(t *testing.T) {
	cfg := config.DefaultAnalyzerConfig()
	records := buildRecords(50, func(i int) map[string]interface{} {
		return map[string]interface{}{"refund_amount": float64(100 + i*5), "channel": []string{"web", "mobile", "phone"}[i%3]}
	})

	result := Extract(records, "", cfg)

	var names []string
	for _, m := range result.Metrics {
		names = append(names, m.Name)
	}
	assert.Contains(t, names, "refund_amount")
}

func TestExtract_ClassifiesLowCardinalityStringAsParameter(t *testing.T) {
	cfg := config.DefaultAnalyzerConfig()
	records := buildRecords(30, func(i int) map[string]interface{} {
		return map[string]interface{}{"amount": float64(100 + i), "channel": []string{"web", "mobile"}[i%2]}
	})

	result := Extract(records, "", cfg)

	var names []string
	for _, p := range result.Parameters {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, "channel")
}

func TestExtract_DetectsProtectedAttributeByName(t *testing.T) {
	cfg := config.DefaultAnalyzerConfig()
	records := buildRecords(30, func(i int) map[string]interface{} {
		return map[string]interface{}{"amount": float64(100 + i), "gender": []string{"a", "b"}[i%2]}
	})

	result := Extract(records, "", cfg)

	assert.Contains(t, result.Protected, "gender")
	var found bool
	for _, p := range result.Parameters {
		if p.Name == "gender" {
			found = true
			assert.True(t, p.Protected)
		}
	}
	assert.True(t, found)
}

func TestExtract_AutoBucketsHighCardinalityAge(t *testing.T) {
	cfg := config.DefaultAnalyzerConfig()
	records := buildRecords(60, func(i int) map[string]interface{} {
		return map[string]interface{}{"amount": float64(100 + i), "applicant_age": float64(18 + i)}
	})

	result := Extract(records, "", cfg)

	var param *deviations.ParameterDescriptor
	for i := range result.Parameters {
		if result.Parameters[i].Name == "applicant_age" {
			param = &result.Parameters[i]
		}
	}
	require.NotNil(t, param)
	assert.True(t, param.Protected)

	labelYoung, ok := param.Bucketer(float64(25))
	require.True(t, ok)
	assert.Equal(t, "<40", labelYoung)

	labelOld, ok := param.Bucketer(float64(55))
	require.True(t, ok)
	assert.Equal(t, "40+", labelOld)
}

func TestExtract_HonorsCallerSuppliedBucketThreshold(t *testing.T) {
	cfg := config.DefaultAnalyzerConfig()
	records := buildRecords(60, func(i int) map[string]interface{} {
		// loan_amount's CV (~0.017) stays under the default floor, so it is a
		// non-metric numeric attribute and gets auto-bucketed; its median is 10295.
		return map[string]interface{}{"amount": float64(100 + i), "loan_amount": float64(10000 + i*10)}
	})
	threshold := 10400.0

	result := Extract(records, "", cfg, map[string]*float64{"loan_amount": &threshold})

	var param *deviations.ParameterDescriptor
	for i := range result.Parameters {
		if result.Parameters[i].Name == "loan_amount" {
			param = &result.Parameters[i]
		}
	}
	require.NotNil(t, param)

	below, ok := param.Bucketer(float64(10350))
	require.True(t, ok)
	assert.Equal(t, "<median", below)

	above, ok := param.Bucketer(float64(10450))
	require.True(t, ok)
	assert.Equal(t, "≥median", above)
}

func TestExtract_MetricAndParameterClassificationAreMutuallyExclusive(t *testing.T) {
	cfg := config.DefaultAnalyzerConfig()
	records := buildRecords(60, func(i int) map[string]interface{} {
		return map[string]interface{}{"amount": float64(100 + i), "candidate_age": float64(20 + i)}
	})

	result := Extract(records, "", cfg)

	metricNames := map[string]bool{}
	for _, m := range result.Metrics {
		metricNames[m.Name] = true
	}
	paramNames := map[string]bool{}
	for _, p := range result.Parameters {
		paramNames[p.Name] = true
	}

	for name := range metricNames {
		assert.False(t, paramNames[name], "%q classified as both metric and parameter", name)
	}
}

func TestExtract_PurposeKeywordHalvesCVFloor(t *testing.T) {
	cfg := config.DefaultAnalyzerConfig()
	cfg.MinCV = 0.5 // deliberately high so only the purpose-boosted metric clears it

	records := buildRecords(40, func(i int) map[string]interface{} {
		v := [3]float64{80.0, 130.0, 180.0}[i%3]
		return map[string]interface{}{"refund_amount": v, "other_metric": v}
	})

	result := Extract(records, "processes customer refund requests", cfg)

	var names []string
	for _, m := range result.Metrics {
		names = append(names, m.Name)
	}
	assert.Contains(t, names, "refund_amount")
	assert.NotContains(t, names, "other_metric")
}
