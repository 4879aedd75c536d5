package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/zatekoja/hospitalqueue"

// Metrics holds all application metrics
type Metrics struct {
	RequestCount       metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	TicketsIssued      metric.Int64Counter
	DispatchOutcomes   metric.Int64Counter
	LabDecisions       metric.Int64Counter
	NotificationsSent  metric.Int64Counter
	EventsDropped      metric.Int64Counter
	ServiceWaitMinutes metric.Int64Histogram
}

// Setup initializes OpenTelemetry tracing, metrics and runtime instrumentation
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
		_ = tracerProvider.Shutdown(ctx)
		_ = meterProvider.Shutdown(ctx)
		return nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(tracerProvider.Shutdown(ctx), meterProvider.Shutdown(ctx))
	}

	return shutdown, nil
}

// InitMetrics initializes application metrics against the global meter provider
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)
	m := &Metrics{}
	var err error

	if m.RequestCount, err = meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Number of HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.RequestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.TicketsIssued, err = meter.Int64Counter(
		"queue.tickets.issued",
		metric.WithDescription("Queue tickets issued by department"),
	); err != nil {
		return nil, err
	}

	if m.DispatchOutcomes, err = meter.Int64Counter(
		"queue.dispatch.outcomes",
		metric.WithDescription("Call-next outcomes (called, empty, busy, race_lost)"),
	); err != nil {
		return nil, err
	}

	if m.LabDecisions, err = meter.Int64Counter(
		"queue.lab.decisions",
		metric.WithDescription("Lab pre-approval decisions"),
	); err != nil {
		return nil, err
	}

	if m.NotificationsSent, err = meter.Int64Counter(
		"queue.notifications",
		metric.WithDescription("Outbound SMS attempts by status"),
	); err != nil {
		return nil, err
	}

	if m.EventsDropped, err = meter.Int64Counter(
		"queue.events.dropped",
		metric.WithDescription("Events dropped because the dispatcher buffer was full"),
	); err != nil {
		return nil, err
	}

	if m.ServiceWaitMinutes, err = meter.Int64Histogram(
		"queue.service.minutes",
		metric.WithDescription("Minutes from service start to end"),
		metric.WithUnit("min"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// SetSpanAttributes sets attributes on a span
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// RecordRequestMetric records an HTTP request
func RecordRequestMetric(ctx context.Context, metrics *Metrics, method, path string, statusCode int, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	)
	metrics.RequestCount.Add(ctx, 1, attrs)
	metrics.RequestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordTicketIssued counts a created queue entry
func (m *Metrics) RecordTicketIssued(ctx context.Context, department string, gated bool) {
	if m == nil {
		return
	}
	m.TicketsIssued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("department", department),
		attribute.Bool("lab_gated", gated),
	))
}

// RecordDispatch counts a call-next outcome
func (m *Metrics) RecordDispatch(ctx context.Context, department, outcome string) {
	if m == nil {
		return
	}
	m.DispatchOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("department", department),
		attribute.String("outcome", outcome),
	))
}

// RecordLabDecision counts an approve or reject at the lab gate
func (m *Metrics) RecordLabDecision(ctx context.Context, decision string) {
	if m == nil {
		return
	}
	m.LabDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", decision)))
}

// RecordNotification counts an SMS attempt outcome
func (m *Metrics) RecordNotification(ctx context.Context, eventType, status string) {
	if m == nil {
		return
	}
	m.NotificationsSent.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("status", status),
	))
}

// RecordEventDropped counts an event the dispatcher could not buffer
func (m *Metrics) RecordEventDropped(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.EventsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

// RecordServiceMinutes records how long a patient was with a server
func (m *Metrics) RecordServiceMinutes(ctx context.Context, department string, minutes int) {
	if m == nil {
		return
	}
	m.ServiceWaitMinutes.Record(ctx, int64(minutes), metric.WithAttributes(attribute.String("department", department)))
}
