package observability

import (
	"context"
	"time"

	"coaching-notifier/internal/common/config"
	"coaching-notifier/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	jobCounter     otelmetric.Int64Counter
	jobDuration    otelmetric.Float64Histogram
}

// New wires the otel meter provider to the prometheus registry served on
// /metrics and, when an OTLP endpoint is configured, a batching trace exporter.
// Exporter failures degrade to no-op instruments instead of failing startup.
func New(ctx context.Context, cfg config.ObservabilityConfig, log logger.Logger) *Observability {
	o := &Observability{tracer: noop.NewTracerProvider().Tracer(cfg.ServiceName)}
	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("prometheus exporter unavailable", map[string]interface{}{"error": err.Error()})
	} else {
		o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
		otel.SetMeterProvider(o.meterProvider)

		meter := o.meterProvider.Meter(cfg.ServiceName)
		o.jobCounter, _ = meter.Int64Counter(
			"jobs.processed",
			otelmetric.WithDescription("Number of scheduled job runs"),
		)
		o.jobDuration, _ = meter.Float64Histogram(
			"jobs.duration",
			otelmetric.WithDescription("Scheduled job run duration"),
			otelmetric.WithUnit("ms"),
		)
	}

	if cfg.OTLPEndpoint == "" {
		return o
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	traceExporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		log.Warn("otlp trace exporter unavailable", map[string]interface{}{
			"endpoint": cfg.OTLPEndpoint,
			"error":    err.Error(),
		})
		return o
	}

	o.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(o.tracerProvider)
	o.tracer = o.tracerProvider.Tracer(cfg.ServiceName)
	return o
}

// Tracer is the service tracer, a no-op one when no exporter is configured.
func (o *Observability) Tracer() trace.Tracer { return o.tracer }

// StartSpan starts a span on the service tracer.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordJobProcessed(ctx context.Context, job, status string) {
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("job", job),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, job string, duration time.Duration, status string) {
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("job", job),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}
