package jobstatus

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName is the scope name for traces and metrics.
const instrumentationName = "github.com/mohans/jobstatus"

// Tracing wraps each execution in a span from the global TracerProvider.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(instrumentationName))
}

// TracingWithTracer wraps each execution in a span from tracer. A kill ends
// the span with status Ok and a jobstatus.killed attribute.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, info Info, next Handler) error {
		ctx, span := tracer.Start(ctx, "jobstatus.job.perform",
			trace.WithAttributes(
				attribute.String("jobstatus.uuid", info.UUID),
				attribute.String("jobstatus.job.name", info.Name),
				attribute.String("jobstatus.queue", info.Queue),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		switch {
		case IsKilled(err):
			span.SetAttributes(attribute.Bool("jobstatus.killed", true))
			span.SetStatus(codes.Ok, "")
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		default:
			span.SetStatus(codes.Ok, "")
		}
		return err
	}
}

// Metrics records execution duration and counts on the global
// MeterProvider.
//
// Instruments:
//   - jobstatus.job.duration (Float64Histogram, seconds)
//   - jobstatus.job.executions (Int64Counter)
//
// Both carry job_name, queue and outcome ("completed", "failed", "killed").
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(instrumentationName))
}

// MetricsWithMeter records execution metrics on meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// The API returns noop instruments on error.
	duration, _ := meter.Float64Histogram(
		"jobstatus.job.duration",
		metric.WithDescription("Duration of job execution in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"jobstatus.job.executions",
		metric.WithDescription("Total number of job executions"),
		metric.WithUnit("{execution}"),
	)

	return func(ctx context.Context, info Info, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		outcome := string(StatusCompleted)
		switch {
		case IsKilled(err):
			outcome = string(StatusKilled)
		case err != nil:
			outcome = string(StatusFailed)
		}
		attrs := metric.WithAttributes(
			attribute.String("job_name", info.Name),
			attribute.String("queue", info.Queue),
			attribute.String("outcome", outcome),
		)
		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)
		return err
	}
}
