package tracing

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrOperation = "registry.operation"
	AttrCaller    = "registry.caller"
	AttrTalent    = "registry.talent"
	AttrProjectID = "registry.project_id"
	AttrEventSeq  = "registry.event_seq"
	AttrErrorCode = "error.code"
	AttrRequestID = "http.request_id"
)

// SpanPrefixRegistry prefixes spans opened by registry operations.
const SpanPrefixRegistry = "registry."

// RecordError marks span failed with err. A nil err leaves the span as is.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
