// Copyright (c) 2021-2026 Rustam Gilyazov and Contributors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.
package observe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumOf(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, m)
	data, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "type = %T, want Sum[int64]", m.Data)
	var total int64
	for _, dp := range data.DataPoints {
		total += dp.Value
	}
	return total
}

func TestObserver_Start(t *testing.T) {
	reader, mp := newTestMeter()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	o, err := New(mp.Meter("test"), tp.Tracer("test"))
	require.NoError(t, err)

	_, done := o.Start(context.Background(), "slack_get_users", "req-1")
	done(nil)
	_, done = o.Start(context.Background(), "slack_get_users", "req-2")
	done(errors.New("missing_scope"))

	rm := collectMetrics(t, reader)
	assert.EqualValues(t, 2, sumOf(t, findMetric(rm, MetricInvocations)))
	assert.EqualValues(t, 1, sumOf(t, findMetric(rm, MetricFailures)))

	latency := findMetric(rm, MetricLatency)
	require.NotNil(t, latency)
	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "type = %T, want Histogram[float64]", latency.Data)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.EqualValues(t, 2, count)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, SpanName, spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "missing_scope", spans[1].Status().Description)
}

func TestObserver_nil(t *testing.T) {
	var o *Observer
	ctx := context.Background()
	got, done := o.Start(ctx, "tool", "id")
	assert.Equal(t, ctx, got)
	assert.NotPanics(t, func() { done(errors.New("x")) })
}

func TestObserver_noTracer(t *testing.T) {
	reader, mp := newTestMeter()
	o, err := New(mp.Meter("test"), nil)
	require.NoError(t, err)
	_, done := o.Start(context.Background(), "tool", "id")
	done(nil)
	assert.EqualValues(t, 1, sumOf(t, findMetric(collectMetrics(t, reader), MetricInvocations)))
}

// promName returns the Prometheus name of the instrument.
func promName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

func TestTelemetry(t *testing.T) {
	ctx := context.Background()
	tm, err := Setup(ctx, Config{ServiceName: "slackmcp", ServiceVersion: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tm.Shutdown(context.Background()) })

	o, err := tm.Observer()
	require.NoError(t, err)
	_, done := o.Start(ctx, "slack_send_message", "req")
	done(nil)

	rec := httptest.NewRecorder()
	tm.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	body := rec.Body.String()
	assert.Regexp(t, promName(MetricInvocations)+`(_total)?\{[^}]*tool_name="slack_send_message"[^}]*\} 1\b`, body)
	assert.Regexp(t, promName(MetricLatency)+`(_seconds)?_count\{[^}]*tool_name="slack_send_message"[^}]*\} 1\b`, body)
	assert.NotContains(t, body, promName(MetricFailures), "no failures yet")
}

func TestTelemetry_separateRegistries(t *testing.T) {
	ctx := context.Background()
	first, err := Setup(ctx, Config{ServiceName: "one"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })
	second, err := Setup(ctx, Config{ServiceName: "two"})
	require.NoError(t, err, "each Setup must use its own registry")
	t.Cleanup(func() { _ = second.Shutdown(context.Background()) })

	o, err := first.Observer()
	require.NoError(t, err)
	_, done := o.Start(ctx, "slack_get_users", "req")
	done(errors.New("boom"))

	rec := httptest.NewRecorder()
	second.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.NotContains(t, rec.Body.String(), "slack_get_users")
}
