package sfapi

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("blastradius/sfapi")

// Trace wraps every collaborator in s with OpenTelemetry spans
func Trace(s Services) Services {
	return Services{
		Query:    &tracedQuery{next: s.Query},
		Describe: &tracedDescribe{next: s.Describe},
		Read:     &tracedRead{next: s.Read},
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type tracedQuery struct {
	next QueryService
}

func (t *tracedQuery) Query(ctx context.Context, q Query) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "QueryService.Query",
		trace.WithAttributes(
			attribute.String("query.object", q.Object),
			attribute.Bool("query.tooling", q.Tooling),
			attribute.Int("query.conditions", len(q.Filter)),
		),
	)
	records, err := t.next.Query(ctx, q)
	span.SetAttributes(attribute.Int("query.records", len(records)))
	endSpan(span, err)
	return records, err
}

type tracedDescribe struct {
	next DescribeService
}

func (t *tracedDescribe) ListObjects(ctx context.Context) ([]ObjectSummary, error) {
	ctx, span := tracer.Start(ctx, "DescribeService.ListObjects")
	objects, err := t.next.ListObjects(ctx)
	span.SetAttributes(attribute.Int("describe.objects", len(objects)))
	endSpan(span, err)
	return objects, err
}

func (t *tracedDescribe) DescribeObject(ctx context.Context, name string) (*ObjectDescribe, error) {
	ctx, span := tracer.Start(ctx, "DescribeService.DescribeObject",
		trace.WithAttributes(attribute.String("describe.object", name)),
	)
	desc, err := t.next.DescribeObject(ctx, name)
	endSpan(span, err)
	return desc, err
}

type tracedRead struct {
	next ReadService
}

func (t *tracedRead) Read(ctx context.Context, kind string, names []string) ([]MetadataBody, error) {
	ctx, span := tracer.Start(ctx, "ReadService.Read",
		trace.WithAttributes(
			attribute.String("read.kind", kind),
			attribute.Int("read.names", len(names)),
		),
	)
	bodies, err := t.next.Read(ctx, kind, names)
	span.SetAttributes(attribute.Int("read.bodies", len(bodies)))
	endSpan(span, err)
	return bodies, err
}
