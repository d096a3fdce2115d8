package deviations

// JSON wire types for the two OTEL payload shapes the Normalizer accepts.
// Modeled on the teacher's OTLP wire structs (resourceSpans/scopeSpans/spans
// with dynamic `interface{}` fields for values whose JSON encoding varies by
// exporter), since here the wire format is plain JSON rather than protobuf.

// CompactPayload is the flat form: a bare array of trace objects each
// carrying its own attribute map.
type CompactPayload struct {
	Traces []CompactTrace `json:"traces"`
}

type CompactTrace struct {
	TraceID    string                 `json:"trace_id,omitempty"`
	Timestamp  interface{}            `json:"timestamp,omitempty"`
	SpanName   string                 `json:"span_name,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// OTLPPayload is the nested resource/scope/span form.
type OTLPPayload struct {
	ResourceSpans []ResourceSpan `json:"resourceSpans"`
}

type ResourceSpan struct {
	Resource   *Resource   `json:"resource,omitempty"`
	ScopeSpans []ScopeSpan `json:"scopeSpans"`
}

type Resource struct {
	Attributes []KeyValue `json:"attributes"`
	SchemaURL  string     `json:"schemaUrl,omitempty"`
}

type ScopeSpan struct {
	Scope *Scope     `json:"scope,omitempty"`
	Spans []OTLPSpan `json:"spans"`
}

type Scope struct {
	Name       string     `json:"name"`
	Version    string     `json:"version,omitempty"`
	Attributes []KeyValue `json:"attributes,omitempty"`
}

type OTLPSpan struct {
	TraceID           interface{} `json:"traceId"`
	SpanID            interface{} `json:"spanId"`
	ParentSpanID      interface{} `json:"parentSpanId,omitempty"`
	StartTimeUnixNano interface{} `json:"startTimeUnixNano"`
	EndTimeUnixNano   interface{} `json:"endTimeUnixNano,omitempty"`
	Name              string      `json:"name"`
	Attributes        []KeyValue  `json:"attributes,omitempty"`
}

// KeyValue mirrors OTLP's attribute wire shape: the value is one of
// {stringValue, intValue, doubleValue, boolValue}, unwrapped to a single Go
// scalar by the Normalizer. Unrecognized value shapes are skipped, not fatal.
type KeyValue struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}
