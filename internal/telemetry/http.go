package telemetry

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// WrapHandler wraps an HTTP handler with OTEL server instrumentation.
// The handler is returned unchanged when tracing is disabled.
func WrapHandler(handler http.Handler, operation string) http.Handler {
	if !IsEnabled() {
		return handler
	}
	return otelhttp.NewHandler(handler, operation, otelhttp.WithTracerProvider(GetTracerProvider()))
}
