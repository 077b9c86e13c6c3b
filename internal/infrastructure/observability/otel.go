package observability

import (
	"context"
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

// Metrics holds all application metrics
type Metrics struct {
	RequestCount       metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	MeetingCreateCount metric.Int64Counter
	MeetingDeleteCount metric.Int64Counter
	TokenRefreshCount  metric.Int64Counter
}

// Setup initializes OpenTelemetry
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
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
		return nil, err
	}

	shutdown := func(ctx context.Context) error {
		traceErr := tracerProvider.Shutdown(ctx)
		if metricErr := meterProvider.Shutdown(ctx); metricErr != nil {
			return metricErr
		}
		return traceErr
	}

	return shutdown, nil
}

// InitMetrics initializes application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("github.com/bookline/videomeet")

	requestCount, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	meetingCreateCount, err := meter.Int64Counter(
		"meeting.create.count",
		metric.WithDescription("Number of meeting provisioning outcomes"),
	)
	if err != nil {
		return nil, err
	}

	meetingDeleteCount, err := meter.Int64Counter(
		"meeting.delete.count",
		metric.WithDescription("Number of meeting teardown outcomes"),
	)
	if err != nil {
		return nil, err
	}

	tokenRefreshCount, err := meter.Int64Counter(
		"oauth.token.refresh.count",
		metric.WithDescription("Number of OAuth token refresh exchanges"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCount:       requestCount,
		RequestDuration:    requestDuration,
		MeetingCreateCount: meetingCreateCount,
		MeetingDeleteCount: meetingDeleteCount,
		TokenRefreshCount:  tokenRefreshCount,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracer := otel.Tracer("github.com/bookline/videomeet")
	return tracer.Start(ctx, spanName)
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

// RecordRequestMetric records one HTTP request's count and duration
func RecordRequestMetric(ctx context.Context, metrics *Metrics, method, path string, statusCode int, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	}

	metrics.RequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.RequestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordMeetingCreate records a provisioning attempt and its outcome
func RecordMeetingCreate(ctx context.Context, metrics *Metrics, provider string, success bool) {
	if metrics == nil {
		return
	}
	metrics.MeetingCreateCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("meeting.provider", provider),
		attribute.Bool("meeting.success", success),
	))
}

// RecordMeetingDelete records a teardown attempt and its outcome
func RecordMeetingDelete(ctx context.Context, metrics *Metrics, provider string, success bool) {
	if metrics == nil {
		return
	}
	metrics.MeetingDeleteCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("meeting.provider", provider),
		attribute.Bool("meeting.success", success),
	))
}

// RecordTokenRefresh records one token refresh exchange
func RecordTokenRefresh(ctx context.Context, metrics *Metrics, provider string, success bool) {
	if metrics == nil {
		return
	}
	metrics.TokenRefreshCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("oauth.provider", provider),
		attribute.Bool("oauth.success", success),
	))
}
