package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestProvider(t *testing.T) (*Provider, *tracetest.SpanRecorder, *sdkmetric.ManualReader) {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	p, err := NewProvider(tp, mp)
	require.NoError(t, err)
	return p, spans, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestSetup_NoEndpointIsNoop(t *testing.T) {
	p, err := Setup(context.Background(), Config{}, zerolog.Nop())
	require.NoError(t, err)

	_, span := p.StartSpan(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestMiddleware_RecordsSpanAndMetrics(t *testing.T) {
	p, spans, reader := newTestProvider(t)

	e := echo.New()
	e.Use(p.Middleware())
	e.GET("/api/v1/hospital/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/hospital/abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "GET /api/v1/hospital/:id", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.Int("http.status_code", 200))

	metrics := collect(t, reader)
	count, ok := metrics["http.server.request.count"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, count.DataPoints, 1)
	assert.Equal(t, int64(1), count.DataPoints[0].Value)
	_, ok = metrics["http.server.request.duration"].Data.(metricdata.Histogram[float64])
	assert.True(t, ok)
}

func TestMiddleware_MarksServerErrors(t *testing.T) {
	p, spans, _ := newTestProvider(t)

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/v1/emergency/call", nil), httptest.NewRecorder())
	err := p.Middleware()(func(echo.Context) error {
		return echo.NewHTTPError(http.StatusInternalServerError, "boom")
	})(c)
	require.Error(t, err)

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
}

func TestMiddleware_RawErrorMarksSpan(t *testing.T) {
	p, spans, _ := newTestProvider(t)

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/api/v1/user/delete/x", nil), httptest.NewRecorder())
	_ = p.Middleware()(func(echo.Context) error {
		return errors.New("connection refused")
	})(c)

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), attribute.Int("http.status_code", http.StatusInternalServerError))
}

func TestQueryTracer(t *testing.T) {
	p, spans, reader := newTestProvider(t)
	qt := p.QueryTracer()

	ctx := qt.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "  select id from hospitals"})
	qt.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 3")})

	ctx = qt.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "UPDATE beds SET status = $1"})
	qt.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("deadlock detected")})

	ended := spans.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "db SELECT", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.Int64("db.rows_affected", 3))
	assert.Equal(t, "db UPDATE", ended[1].Name())
	assert.Equal(t, codes.Error, ended[1].Status().Code)

	hist, ok := collect(t, reader)["db.query.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 2)
}

func TestStatementVerb(t *testing.T) {
	assert.Equal(t, "INSERT", statementVerb("insert into x values (1)"))
	assert.Equal(t, "UNKNOWN", statementVerb("   "))
}
