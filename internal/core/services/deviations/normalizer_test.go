package deviations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deviations-analyzer/internal/core/domain/deviations"
)

func TestNormalize_CompactShape(t *testing.T) {
	payload := []byte(`{
		"traces": [
			{"trace_id": "t1", "timestamp": "2026-01-05T12:00:00Z", "span_name": "loan.approve", "attributes": {"amount": 100, "age": 45}},
			{"trace_id": "t2", "timestamp": "2026-01-05T13:00:00Z", "span_name": "loan.approve", "attributes": {"amount": 120.5, "age": 30}}
		]
	}`)

	records, err := Normalize(payload)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, int64(100), records[0].Attributes["amount"])
	assert.Equal(t, int64(45), records[0].Attributes["age"])
	assert.Equal(t, 120.5, records[1].Attributes["amount"])
	require.NotNil(t, records[0].Timestamp)
	assert.Equal(t, 2026, records[0].Timestamp.Year())
}

func TestNormalize_CompactShape_UnixNanoTimestamp(t *testing.T) {
	payload := []byte(`{"traces": [{"timestamp": 1767614400000000000, "attributes": {"amount": 1}}]}`)

	records, err := Normalize(payload)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].Timestamp)
	assert.True(t, records[0].Timestamp.Year() > 2020)
}

func TestNormalize_OTLPShape_MergesResourceAndSpanAttributes(t *testing.T) {
	payload := []byte(`{
		"resourceSpans": [{
			"resource": {"attributes": [{"key": "region", "value": {"stringValue": "us-east"}}]},
			"scopeSpans": [{
				"spans": [{
					"name": "loan.approve",
					"startTimeUnixNano": "1767614400000000000",
					"attributes": [
						{"key": "amount", "value": {"doubleValue": 150.25}},
						{"key": "region", "value": {"stringValue": "us-west"}}
					]
				}]
			}]
		}]
	}`)

	records, err := Normalize(payload)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "us-west", records[0].Attributes["region"], "span-level attribute should win over resource-level")
	assert.Equal(t, 150.25, records[0].Attributes["amount"])
}

func TestNormalize_MalformedInput(t *testing.T) {
	_, err := Normalize([]byte(`{"nonsense": true}`))
	assert.ErrorIs(t, err, deviations.ErrMalformedInput)

	_, err = Normalize([]byte(`not json`))
	assert.ErrorIs(t, err, deviations.ErrMalformedInput)
}

func TestNormalize_EmptyInput(t *testing.T) {
	_, err := Normalize([]byte(`{"traces": []}`))
	assert.ErrorIs(t, err, deviations.ErrEmptyInput)
}

func TestComputeBuckets_SelectsDayGranularityForMultiDaySpan(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var records deviations.RecordSet
	for d := 0; d < 5; d++ {
		ts := base.AddDate(0, 0, d)
		records = append(records, deviations.Record{Timestamp: &ts, Attributes: map[string]interface{}{"amount": float64(d)}})
	}

	granularity, buckets := ComputeBuckets(records)
	require.NotNil(t, granularity)
	assert.Equal(t, deviations.GranularityDay, *granularity)
	assert.GreaterOrEqual(t, len(buckets), 2)
}

func TestComputeBuckets_NilGranularityWhenNoTimestamps(t *testing.T) {
	records := deviations.RecordSet{
		{Attributes: map[string]interface{}{"amount": 1.0}},
		{Attributes: map[string]interface{}{"amount": 2.0}},
	}

	granularity, buckets := ComputeBuckets(records)
	assert.Nil(t, granularity)
	assert.Nil(t, buckets)
}

func TestComputeBuckets_FallsBackToHourForShortSpan(t *testing.T) {
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	var records deviations.RecordSet
	for h := 0; h < 3; h++ {
		ts := base.Add(time.Duration(h) * time.Hour)
		records = append(records, deviations.Record{Timestamp: &ts, Attributes: map[string]interface{}{"amount": float64(h)}})
	}

	granularity, buckets := ComputeBuckets(records)
	require.NotNil(t, granularity)
	assert.Equal(t, deviations.GranularityHour, *granularity)
	assert.GreaterOrEqual(t, len(buckets), 2)
}
