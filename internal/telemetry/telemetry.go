// Package telemetry holds span and metric helpers shared by domain services.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/reject"
)

// Outcome classifies err for the "result" metric attribute: "ok", the
// rejection code, or "error" for infrastructure failures.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if rej, ok := reject.As(err); ok {
		return rej.Code
	}
	return "error"
}

// ResultAttr returns the "result" attribute for err.
func ResultAttr(err error) attribute.KeyValue {
	return attribute.String("result", Outcome(err))
}

// Finish ends span. Rejections are recorded as an attribute only; other
// errors mark the span as failed.
func Finish(span trace.Span, err error) {
	defer span.End()
	if err == nil {
		return
	}
	if rej, ok := reject.As(err); ok {
		span.SetAttributes(attribute.String("reject.code", rej.Code))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
