package telemetry

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type queryStartKey struct{}

type queryStart struct {
	at   time.Time
	span trace.Span
	op   string
}

// QueryTracer implements pgx.QueryTracer, giving every statement a client
// span and a db.query.duration sample.
type QueryTracer struct {
	p *Provider
}

func (p *Provider) QueryTracer() *QueryTracer {
	return &QueryTracer{p: p}
}

var _ pgx.QueryTracer = (*QueryTracer)(nil)

func (t *QueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op := statementVerb(data.SQL)
	ctx, span := t.p.tracer.Start(ctx, "db "+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", op),
		))
	return context.WithValue(ctx, queryStartKey{}, queryStart{at: time.Now(), span: span, op: op})
}

func (t *QueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qs, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	if data.Err != nil && data.Err != pgx.ErrNoRows {
		qs.span.RecordError(data.Err)
		qs.span.SetStatus(codes.Error, "query failed")
	}
	qs.span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	qs.span.End()

	t.p.dbDuration.Record(ctx, float64(time.Since(qs.at).Microseconds())/1000,
		metric.WithAttributes(attribute.String("db.operation", qs.op)))
}

// statementVerb returns the upper-cased first keyword of a statement.
func statementVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	return strings.ToUpper(fields[0])
}
