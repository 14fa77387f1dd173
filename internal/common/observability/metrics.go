package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Observability owns the process meter and tracer providers.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	jobCounter     otelmetric.Int64Counter
	jobDuration    otelmetric.Float64Histogram
	modelNDCG      otelmetric.Float64Gauge
	modelMSE       otelmetric.Float64Gauge
	modelMAE       otelmetric.Float64Gauge
	improvement    otelmetric.Float64Gauge
}

// Options configure New. An empty JaegerEndpoint keeps spans in-process.
type Options struct {
	ServiceName    string
	JaegerEndpoint string
}

// New wires the Prometheus metric exporter and, when configured, a Jaeger span exporter.
func New(opts Options) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	res := resource.NewSchemaless(semconv.ServiceName(opts.ServiceName))

	provider := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(provider)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if opts.JaegerEndpoint != "" {
		je, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(opts.JaegerEndpoint)))
		if err != nil {
			return nil, fmt.Errorf("create jaeger exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(je))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)

	o := &Observability{
		meterProvider:  provider,
		tracerProvider: tp,
		meter:          provider.Meter(opts.ServiceName),
		tracer:         tp.Tracer(opts.ServiceName),
	}
	o.initInstruments()
	return o, nil
}

// NewNoop returns an Observability whose spans and instruments go nowhere.
func NewNoop() *Observability {
	return &Observability{tracer: noop.NewTracerProvider().Tracer("noop")}
}

func (o *Observability) initInstruments() {
	o.jobCounter, _ = o.meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)
	o.jobDuration, _ = o.meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)
	o.modelNDCG, _ = o.meter.Float64Gauge("model.ndcg_at_10",
		otelmetric.WithDescription("Validation NDCG@10 of the last evaluated model"))
	o.modelMSE, _ = o.meter.Float64Gauge("model.mse",
		otelmetric.WithDescription("Validation MSE of the last evaluated model"))
	o.modelMAE, _ = o.meter.Float64Gauge("model.mae",
		otelmetric.WithDescription("Validation MAE of the last evaluated model"))
	o.improvement, _ = o.meter.Float64Gauge("model.ndcg_improvement",
		otelmetric.WithDescription("NDCG@10 delta of the candidate over the active model"))
}

// StartSpan starts a span named name under ctx.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordJobProcessed(ctx context.Context, status string) {
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, duration time.Duration, status string) {
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

// RecordModelQuality publishes evaluation metrics for a model version.
func (o *Observability) RecordModelQuality(ctx context.Context, version string, ndcg, mse, mae, improvement float64, deployed bool) {
	if o.modelNDCG == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("model_version", version),
		attribute.Bool("deployed", deployed),
	)
	o.modelNDCG.Record(ctx, ndcg, attrs)
	o.modelMSE.Record(ctx, mse, attrs)
	o.modelMAE.Record(ctx, mae, attrs)
	o.improvement.Record(ctx, improvement, attrs)
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
