package deviations

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"deviations-analyzer/internal/core/domain/deviations"
	"deviations-analyzer/pkg/utils"
)

// Normalize converts a parsed OTEL payload into a RecordSet. It recognizes
// the compact ("traces") and OTLP ("resourceSpans") shapes, coercing typed
// attribute values to a single scalar per key and merging resource-level
// attributes into each span (span-level wins on key conflict). Grounded on
// the teacher's OTLP attribute-unwrapping pattern (otlp_helpers.go's
// attributeValueToString type switch), adapted from protobuf AnyValue
// unwrapping to this module's JSON KeyValue shape.
func Normalize(payload []byte) (deviations.RecordSet, error) {
	var shapeProbe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &shapeProbe); err != nil {
		return nil, deviations.ErrMalformedInput
	}

	var records deviations.RecordSet
	switch {
	case hasKey(shapeProbe, "resourceSpans"):
		otlp, err := decodeOTLP(payload)
		if err != nil {
			return nil, deviations.ErrMalformedInput
		}
		records = recordsFromOTLP(otlp)
	case hasKey(shapeProbe, "traces"):
		compact, err := decodeCompact(payload)
		if err != nil {
			return nil, deviations.ErrMalformedInput
		}
		records = recordsFromCompact(compact)
	default:
		return nil, deviations.ErrMalformedInput
	}

	if len(records) == 0 {
		return nil, deviations.ErrEmptyInput
	}
	return records, nil
}

func hasKey(m map[string]json.RawMessage, key string) bool {
	_, ok := m[key]
	return ok
}

func decodeOTLP(payload []byte) (deviations.OTLPPayload, error) {
	var out deviations.OTLPPayload
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	err := dec.Decode(&out)
	return out, err
}

func decodeCompact(payload []byte) (deviations.CompactPayload, error) {
	var out deviations.CompactPayload
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	err := dec.Decode(&out)
	return out, err
}

func recordsFromOTLP(payload deviations.OTLPPayload) deviations.RecordSet {
	var records deviations.RecordSet
	for _, rs := range payload.ResourceSpans {
		var resourceAttrs map[string]interface{}
		if rs.Resource != nil {
			resourceAttrs = attributesFromKeyValues(rs.Resource.Attributes)
		}
		for _, scopeSpan := range rs.ScopeSpans {
			for _, span := range scopeSpan.Spans {
				spanAttrs := attributesFromKeyValues(span.Attributes)
				merged := mergeAttributes(resourceAttrs, spanAttrs)
				records = append(records, deviations.Record{
					Timestamp:  parseTimestampValue(span.StartTimeUnixNano),
					Attributes: merged,
				})
			}
		}
	}
	return records
}

func recordsFromCompact(payload deviations.CompactPayload) deviations.RecordSet {
	var records deviations.RecordSet
	for _, tr := range payload.Traces {
		attrs := make(map[string]interface{}, len(tr.Attributes))
		for k, v := range tr.Attributes {
			if scalar, ok := coerceScalar(v); ok {
				attrs[k] = scalar
			}
		}
		records = append(records, deviations.Record{
			Timestamp:  parseTimestampValue(tr.Timestamp),
			Attributes: attrs,
		})
	}
	return records
}

func attributesFromKeyValues(kvs []deviations.KeyValue) map[string]interface{} {
	out := make(map[string]interface{}, len(kvs))
	for _, kv := range kvs {
		if v, ok := unwrapOTLPValue(kv.Value); ok {
			out[kv.Key] = v
		}
	}
	return out
}

// mergeAttributes merges resource-level attributes into span-level
// attributes, with span-level values winning on key conflict (§4.1).
func mergeAttributes(resource, span map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(resource)+len(span))
	for k, v := range resource {
		merged[k] = v
	}
	for k, v := range span {
		merged[k] = v
	}
	return merged
}

// unwrapOTLPValue unwraps a typed OTLP attribute value to a single scalar.
// Unknown value kinds (arrays, kvlists, bytes) are skipped, not fatal.
func unwrapOTLPValue(v interface{}) (interface{}, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return coerceScalar(v)
	}
	if sv, ok := m["stringValue"]; ok {
		return coerceScalar(sv)
	}
	if iv, ok := m["intValue"]; ok {
		return coerceScalar(iv)
	}
	if dv, ok := m["doubleValue"]; ok {
		return coerceScalar(dv)
	}
	if bv, ok := m["boolValue"]; ok {
		return coerceScalar(bv)
	}
	return nil, false
}

// coerceScalar narrows a decoded JSON value to one of the record scalar
// kinds (integer, real, boolean, string). Maps, arrays, and nil are
// rejected (skipped, not fatal).
func coerceScalar(v interface{}) (interface{}, bool) {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, true
		}
		if f, err := val.Float64(); err == nil {
			return f, true
		}
		return nil, false
	case string:
		return val, true
	case bool:
		return val, true
	case float64:
		return val, true
	default:
		return nil, false
	}
}

// parseTimestampValue parses a timestamp carried as either an ISO-8601
// string or a Unix timestamp of unknown resolution (seconds, milliseconds,
// or nanoseconds), returning nil when unparseable (retained with a null
// timestamp per §4.1).
func parseTimestampValue(raw interface{}) *time.Time {
	switch v := raw.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			t := utils.UnixFromMagnitude(i)
			return &t
		}
		if f, err := v.Float64(); err == nil {
			t := utils.UnixFromMagnitude(int64(f))
			return &t
		}
		return nil
	case string:
		if t, err := utils.ParseFlexible(v); err == nil {
			return &t
		}
		if t, err := utils.ParseUnixTimestamp(v); err == nil {
			return &t
		}
		return nil
	default:
		return nil
	}
}

// ComputeBuckets selects a time-bucketing granularity for the given
// RecordSet and returns its non-empty buckets, sorted by start time. It
// implements the granularity-selection and finer-granularity fallback
// rules in §4.1: week (span >= 21d), day (span >= 3d), else hour; if fewer
// than 2 non-empty buckets result, fall back to the next finer granularity
// down to hour; if still only one bucket, granularity is nil and temporal
// detection is skipped.
func ComputeBuckets(records deviations.RecordSet) (*deviations.Granularity, []deviations.TimeBucket) {
	var minT, maxT time.Time
	found := false
	for _, r := range records {
		if r.Timestamp == nil {
			continue
		}
		if !found {
			minT, maxT = *r.Timestamp, *r.Timestamp
			found = true
			continue
		}
		if r.Timestamp.Before(minT) {
			minT = *r.Timestamp
		}
		if r.Timestamp.After(maxT) {
			maxT = *r.Timestamp
		}
	}
	if !found {
		return nil, nil
	}

	span := maxT.Sub(minT)
	var chain []deviations.Granularity
	switch {
	case span >= 21*24*time.Hour:
		chain = []deviations.Granularity{deviations.GranularityWeek, deviations.GranularityDay, deviations.GranularityHour}
	case span >= 3*24*time.Hour:
		chain = []deviations.Granularity{deviations.GranularityDay, deviations.GranularityHour}
	default:
		chain = []deviations.Granularity{deviations.GranularityHour}
	}

	for _, g := range chain {
		buckets := bucketsForGranularity(records, g)
		if len(buckets) >= 2 {
			gCopy := g
			return &gCopy, buckets
		}
	}
	return nil, nil
}

func bucketsForGranularity(records deviations.RecordSet, g deviations.Granularity) []deviations.TimeBucket {
	type bucketAccum struct {
		start, end time.Time
		indices    []int
	}
	byID := make(map[string]*bucketAccum)

	for i, r := range records {
		if r.Timestamp == nil {
			continue
		}
		start, end, id := bucketBounds(*r.Timestamp, g)
		acc, ok := byID[id]
		if !ok {
			acc = &bucketAccum{start: start, end: end}
			byID[id] = acc
		}
		acc.indices = append(acc.indices, i)
	}

	buckets := make([]deviations.TimeBucket, 0, len(byID))
	for id, acc := range byID {
		buckets = append(buckets, deviations.TimeBucket{
			ID:      id,
			Start:   acc.start,
			End:     acc.end,
			Indices: acc.indices,
		})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Start.Before(buckets[j].Start) })
	return buckets
}

// bucketBounds computes the half-open [start, end) interval and a stable
// bucket ID for t at granularity g.
func bucketBounds(t time.Time, g deviations.Granularity) (start, end time.Time, id string) {
	switch g {
	case deviations.GranularityWeek:
		start = utils.StartOfWeek(t)
		end = utils.EndOfWeek(t)
		id = start.Format("2006-01-02") + "/W"
	case deviations.GranularityDay:
		start = utils.StartOfDay(t)
		end = start.AddDate(0, 0, 1)
		id = start.Format("2006-01-02")
	default: // hour
		t = t.UTC()
		start = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
		end = start.Add(time.Hour)
		id = start.Format("2006-01-02T15:00Z")
	}
	return start, end, id
}
