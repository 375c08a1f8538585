package repository

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gyaneshwarpardhi/argus/internal/event"
)

const tracerName = "github.com/gyaneshwarpardhi/argus/internal/repository"

// Traced wraps a Repository and records an OpenTelemetry span per call.
type Traced struct {
	next   Repository
	tracer trace.Tracer
}

// NewTraced decorates next. A nil provider selects the global one.
func NewTraced(next Repository, tp trace.TracerProvider) *Traced {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Traced{next: next, tracer: tp.Tracer(tracerName)}
}

func (t *Traced) Insert(ctx context.Context, ev event.Event) (string, error) {
	ctx, span := t.tracer.Start(ctx, "argus.repository.insert",
		trace.WithAttributes(attribute.String("argus.event_type", ev.Type)),
	)
	defer span.End()

	id, err := t.next.Insert(ctx, ev)
	if err != nil {
		recordErr(span, err)
		return "", err
	}
	span.SetAttributes(attribute.String("argus.event_id", id))
	return id, nil
}

func (t *Traced) Query(ctx context.Context, q event.Query) ([]event.Event, error) {
	attrs := make([]attribute.KeyValue, 0, 3)
	if q.Type != nil {
		attrs = append(attrs, attribute.String("argus.query.type", *q.Type))
	}
	if q.Start != nil {
		attrs = append(attrs, attribute.String("argus.query.start", q.Start.String()))
	}
	if q.End != nil {
		attrs = append(attrs, attribute.String("argus.query.end", q.End.String()))
	}
	ctx, span := t.tracer.Start(ctx, "argus.repository.query", trace.WithAttributes(attrs...))
	defer span.End()

	events, err := t.next.Query(ctx, q)
	if err != nil {
		recordErr(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("argus.result_count", len(events)))
	return events, nil
}

func (t *Traced) Count(ctx context.Context) (int, error) {
	ctx, span := t.tracer.Start(ctx, "argus.repository.count")
	defer span.End()

	n, err := t.next.Count(ctx)
	if err != nil {
		recordErr(span, err)
	}
	return n, err
}

func recordErr(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
