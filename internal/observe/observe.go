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

// Package observe records tool invocations with OpenTelemetry: an invocation
// counter, a failure counter, a latency histogram and a span per call.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Instrument names.
const (
	MetricInvocations = "slackmcp.tool.invocations"
	MetricFailures    = "slackmcp.tool.failures"
	MetricLatency     = "slackmcp.tool.latency"
)

// SpanName is the name of the span started for each invocation.
const SpanName = "tool.invoke"

// Observer records tool invocations.  A nil *Observer is valid and records
// nothing.
type Observer struct {
	tracer trace.Tracer

	invocations metric.Int64Counter
	failures    metric.Int64Counter
	latency     metric.Float64Histogram
}

// New creates an observer bound to the provided meter and tracer.  tracer
// may be nil, in which case no spans are created.
func New(meter metric.Meter, tracer trace.Tracer) (*Observer, error) {
	invocations, err := meter.Int64Counter(
		MetricInvocations,
		metric.WithDescription("Number of tool invocations"),
	)
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter(
		MetricFailures,
		metric.WithDescription("Number of failed tool invocations"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		MetricLatency,
		metric.WithDescription("Tool latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return &Observer{
		tracer:      tracer,
		invocations: invocations,
		failures:    failures,
		latency:     latency,
	}, nil
}

// Start records the start of the invocation of the tool.  It returns the
// context carrying the invocation span and the function that must be called
// with the invocation error, or nil, once the invocation completes.
func (o *Observer) Start(ctx context.Context, tool string, requestID string) (context.Context, func(err error)) {
	if o == nil {
		return ctx, func(error) {}
	}
	start := time.Now()

	var span trace.Span
	if o.tracer != nil {
		ctx, span = o.tracer.Start(ctx, SpanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("tool_name", tool),
				attribute.String("request_id", requestID),
			),
		)
	}

	return ctx, func(err error) {
		attrs := metric.WithAttributes(
			attribute.String("tool_name", tool),
			attribute.Bool("success", err == nil),
		)
		o.invocations.Add(ctx, 1, attrs)
		o.latency.Record(ctx, time.Since(start).Seconds(), attrs)
		if err != nil {
			o.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("tool_name", tool)))
		}

		if span == nil {
			return
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}
