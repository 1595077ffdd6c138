package telemetry

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sammcj/mcp-base64/internal/converter"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	instrumentationName = "github.com/sammcj/mcp-base64"

	exporterTimeout = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

var (
	globalMutex    sync.RWMutex
	globalProvider trace.TracerProvider = noop.NewTracerProvider()
	globalTracer   trace.Tracer         = globalProvider.Tracer(instrumentationName)
	tracingEnabled bool
)

// otelErrorHandler routes SDK errors to the application logger.
// In stdio mode anything written to stderr would corrupt the MCP stream.
type otelErrorHandler struct {
	logger *logrus.Logger
}

func (h *otelErrorHandler) Handle(err error) {
	if err == nil {
		return
	}
	h.logger.WithError(err).Debug("OTEL: SDK error occurred")
}

// InitTracer configures tracing and returns a shutdown function that flushes
// pending spans. A non-nil provider is used as is. Otherwise an OTLP exporter
// is created when OTEL_EXPORTER_OTLP_ENDPOINT is set, and tracing stays a noop
// when it is not. OTEL_SDK_DISABLED=true always forces a noop tracer.
// On error the noop tracer is installed and the application can carry on.
func InitTracer(logger *logrus.Logger, provider trace.TracerProvider) (func() error, error) {
	globalMutex.Lock()
	defer globalMutex.Unlock()

	noShutdown := func() error { return nil }

	if strings.EqualFold(os.Getenv("OTEL_SDK_DISABLED"), "true") {
		logger.Debug("OTEL: Explicitly disabled via OTEL_SDK_DISABLED")
		setNoopLocked()
		return noShutdown, nil
	}

	otel.SetErrorHandler(&otelErrorHandler{logger: logger})
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if provider != nil {
		setProviderLocked(provider)
		logger.Debug("OTEL: Tracer initialised with supplied provider")
		return noShutdown, nil
	}

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		logger.Debug("OTEL: Not configured (OTEL_EXPORTER_OTLP_ENDPOINT not set), using noop tracer")
		setNoopLocked()
		return noShutdown, nil
	}
	logger.WithField("endpoint", endpoint).Info("OTEL: Initialising tracer")

	ctx, cancel := context.WithTimeout(context.Background(), exporterTimeout)
	defer cancel()

	protocol := getOTLPProtocol()
	logger.WithField("protocol", protocol).Debug("OTEL: Using protocol")

	var exporter *otlptrace.Exporter
	var err error
	switch protocol {
	case "grpc":
		exporter, err = otlptracegrpc.New(ctx)
	case "http/protobuf", "http":
		exporter, err = otlptracehttp.New(ctx)
	default:
		logger.WithField("protocol", protocol).Warn("OTEL: Unknown protocol, defaulting to http")
		exporter, err = otlptracehttp.New(ctx)
	}
	if err != nil {
		logger.WithError(err).Warn("OTEL: Failed to create exporter, falling back to noop tracer")
		setNoopLocked()
		return noShutdown, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(getServiceName()),
			semconv.ServiceVersionKey.String(getServiceVersion()),
			attribute.String("deployment.environment", getDeploymentEnvironment()),
		),
		resource.WithFromEnv(),
	)
	if err != nil {
		logger.WithError(err).Warn("OTEL: Failed to create resource, using default")
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(createSampler(logger)),
	)
	otel.SetTracerProvider(tp)
	setProviderLocked(tp)
	logger.Info("OTEL: Tracer initialised successfully")

	return func() error {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("OTEL: Failed to shutdown tracer provider")
			return fmt.Errorf("failed to shutdown tracer provider: %w", err)
		}
		logger.Debug("OTEL: Tracer provider shutdown successfully")
		return nil
	}, nil
}

func setNoopLocked() {
	globalProvider = noop.NewTracerProvider()
	globalTracer = globalProvider.Tracer(instrumentationName)
	tracingEnabled = false
}

func setProviderLocked(provider trace.TracerProvider) {
	globalProvider = provider
	globalTracer = provider.Tracer(instrumentationName)
	tracingEnabled = true
}

// getOTLPProtocol reads OTEL_EXPORTER_OTLP_PROTOCOL, guessing grpc from the
// conventional 4317 port when it is unset
func getOTLPProtocol() string {
	if protocol := os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"); protocol != "" {
		return protocol
	}
	if strings.Contains(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), ":4317") {
		return "grpc"
	}
	return "http/protobuf"
}

func getServiceName() string {
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		return name
	}
	return "mcp-base64"
}

func getServiceVersion() string {
	if version := os.Getenv("MCP_VERSION"); version != "" {
		return version
	}
	return "dev"
}

func getDeploymentEnvironment() string {
	for _, envVar := range []string{"ENVIRONMENT", "ENV", "DEPLOYMENT_ENV"} {
		if env := os.Getenv(envVar); env != "" {
			return env
		}
	}

	if attrs := os.Getenv("OTEL_RESOURCE_ATTRIBUTES"); attrs != "" {
		for pair := range strings.SplitSeq(attrs, ",") {
			key, value, ok := strings.Cut(pair, "=")
			if ok && key == "deployment.environment" {
				return value
			}
		}
	}
	return "development"
}

// createSampler builds the sampler named by OTEL_TRACES_SAMPLER, defaulting
// to always on
func createSampler(logger *logrus.Logger) sdktrace.Sampler {
	samplerArg := os.Getenv("OTEL_TRACES_SAMPLER_ARG")

	switch samplerType := os.Getenv("OTEL_TRACES_SAMPLER"); samplerType {
	case "", "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(parseRatio(samplerArg))
	case "parentbased_always_on":
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case "parentbased_always_off":
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(parseRatio(samplerArg)))
	default:
		logger.WithField("sampler", samplerType).Warn("OTEL: Unknown sampler type, using always_on")
		return sdktrace.AlwaysSample()
	}
}

// parseRatio parses a sampling ratio in [0, 1], defaulting to 1
func parseRatio(s string) float64 {
	ratio, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return 1.0
	}
	return ratio
}

// GetTracer returns the configured tracer
func GetTracer() trace.Tracer {
	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return globalTracer
}

// GetTracerProvider returns the provider the tracer was created from
func GetTracerProvider() trace.TracerProvider {
	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return globalProvider
}

// IsEnabled reports whether spans are being recorded
func IsEnabled() bool {
	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return tracingEnabled
}

// NewRequestID returns a random identifier for correlating log lines
func NewRequestID() string {
	return uuid.New().String()
}

type contextKey string

const requestIDKey contextKey = "request.id"

// ContextWithRequestID adds a request id to the context
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id in ctx, or "" when there is none
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// StartConversionSpan opens a span around a single conversion. The input
// itself is never recorded, only its length.
func StartConversionSpan(ctx context.Context, source string, req converter.Request) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrConversionSource, source),
		attribute.String(AttrConversionMode, string(req.Mode)),
		attribute.Int(AttrConversionInputLen, len(req.Text)),
	}
	if id := RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, attribute.String(AttrRequestID, id))
	}
	return GetTracer().Start(ctx, SpanNameConvert,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// EndConversionSpan records the result and ends the span
func EndConversionSpan(span trace.Span, result converter.Result) {
	span.SetAttributes(attribute.String(AttrConversionOutcome, string(result.Outcome)))
	if result.Failed() {
		span.SetAttributes(attribute.String(AttrConversionCategory, string(result.Category)))
		span.SetStatus(codes.Error, result.Message)
	} else {
		if result.Advisory != converter.NoAdvisory {
			span.SetAttributes(attribute.String(AttrConversionAdvisory, string(result.Advisory)))
		}
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// TraceConvert runs a conversion inside a span
func TraceConvert(ctx context.Context, source string, req converter.Request) converter.Result {
	_, span := StartConversionSpan(ctx, source, req)
	result := converter.Convert(req)
	EndConversionSpan(span, result)
	return result
}

// StartToolSpan opens a span for an MCP tool call
func StartToolSpan(ctx context.Context, toolName, transport string) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, SpanNameToolExecute,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String(AttrMCPToolName, toolName),
			attribute.String(AttrMCPTransport, transport),
		),
	)
}

// EndToolSpan records a tool error, if any, and ends the span
func EndToolSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
