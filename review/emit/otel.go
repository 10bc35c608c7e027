package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by creating OpenTelemetry spans.
//
// Each event becomes a span with:
//   - Span name: event.Msg (e.g., "phase_start", "phase_complete")
//   - Attributes: jobID, runID, phase, role, and all event.Meta fields
//   - Status: Set to error if event.Meta["error"] exists
//
// Spans are ended immediately; events represent points in time, not
// durations. If the event carries "duration_ms" metadata the duration is
// recorded as an attribute rather than by holding the span open.
//
// Usage:
//
//	tracer := otel.Tracer("scijudge")
//	emitter := emit.NewOTelEmitter(tracer)
//
//	emitter.Emit(emit.Event{
//	    JobID: "job-001",
//	    RunID: "run-001",
//	    Phase: "evidence_review",
//	    Role:  "evidence_auditor",
//	    Msg:   "participant_complete",
//	})
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates a new OTelEmitter.
//
// The tracer typically comes from otel.Tracer("service-name") after the
// application has installed an SDK tracer provider with an exporter.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit creates an OpenTelemetry span for the event.
func (o *OTelEmitter) Emit(event Event) {
	ctx := context.Background()
	_, span := o.tracer.Start(ctx, event.Msg)
	defer span.End()

	o.addStandardAttributes(span, event)
	o.addMetadataAttributes(span, event.Meta)

	if err, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, err)
		span.RecordError(fmt.Errorf("%s", err))
	}
}

// EmitBatch creates spans for multiple events under one context.
//
// The span processor batches these for efficient export. All spans are
// ended immediately.
func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		_, span := o.tracer.Start(ctx, event.Msg)

		o.addStandardAttributes(span, event)
		o.addMetadataAttributes(span, event.Meta)

		if err, ok := event.Meta["error"].(string); ok {
			span.SetStatus(codes.Error, err)
			span.RecordError(fmt.Errorf("%s", err))
		}

		span.End()
	}

	return nil
}

// Flush forces export of all pending spans.
//
// Calls ForceFlush on the global tracer provider when it supports it
// (the SDK provider does; the noop provider does not). Call before
// shutdown so buffered spans reach the backend.
func (o *OTelEmitter) Flush(ctx context.Context) error {
	tp := otel.GetTracerProvider()

	type flusher interface {
		ForceFlush(context.Context) error
	}

	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(ctx)
	}

	return nil
}

// addStandardAttributes adds core event fields as span attributes.
func (o *OTelEmitter) addStandardAttributes(span trace.Span, event Event) {
	span.SetAttributes(
		attribute.String("scijudge.job_id", event.JobID),
		attribute.String("scijudge.run_id", event.RunID),
		attribute.String("scijudge.phase", event.Phase),
		attribute.String("scijudge.role", event.Role),
	)
}

// addMetadataAttributes converts event metadata to span attributes.
//
// Handles common types:
//   - string, int, int64, float64, bool: Direct conversion
//   - time.Duration: Convert to milliseconds
//   - Other types: Convert to string representation
//
// LLM usage attributes get namespaced keys:
//   - tokens_in, tokens_out: Token usage (integer attributes)
//   - duration_ms: Participant call latency in milliseconds
//   - model: Model identifier used for the call
func (o *OTelEmitter) addMetadataAttributes(span trace.Span, meta map[string]interface{}) {
	if meta == nil {
		return
	}

	for key, value := range meta {
		attrKey := key
		switch key {
		case "tokens_in":
			attrKey = "scijudge.llm.tokens_in"
		case "tokens_out":
			attrKey = "scijudge.llm.tokens_out"
		case "model":
			attrKey = "scijudge.llm.model"
		case "duration_ms":
			attrKey = "scijudge.participant.duration_ms"
		}

		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(attrKey, int64(v/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
		}
	}
}
