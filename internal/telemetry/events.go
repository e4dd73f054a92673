package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RecordNewFindingEvent adds a span event for a new finding bucket.
func RecordNewFindingEvent(span trace.Span, account, severity, rule string, entities int) {
	if span == nil {
		return
	}

	span.AddEvent("compliance.finding.new", trace.WithAttributes(
		attribute.String("event.type", "compliance.finding.new"),
		attribute.String("account", account),
		attribute.String("severity", severity),
		attribute.String("rule", rule),
		attribute.Int("entities", entities),
	))
}

// RecordEmailEvent adds a span event for a report email delivery attempt.
func RecordEmailEvent(span trace.Span, recipients int, err error) {
	if span == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("event.type", "report.email"),
		attribute.Int("recipients", recipients),
		attribute.Bool("delivered", err == nil),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error", err.Error()))
	}
	span.AddEvent("report.email", trace.WithAttributes(attrs...))
}
