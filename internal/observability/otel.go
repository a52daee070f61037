// Package observability owns tracing setup. Tracing is opt-in via
// OTEL_ENABLED; with no OTLP endpoint configured spans go to a
// pretty-printed stdout exporter.
package observability

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/utils"
)

type OtelConfig struct {
	ServiceName string
	Environment string
	Version     string
}

var (
	otelOnce     sync.Once
	otelShutdown func(context.Context) error
)

// InitOTel installs the global tracer provider and propagator. It
// returns a shutdown func (nil when tracing is disabled) and never
// fails hard: exporter problems log a warning and tracing degrades to
// sampling without export.
func InitOTel(ctx context.Context, log *logger.Logger, cfg OtelConfig) func(context.Context) error {
	otelOnce.Do(func() {
		if !otelEnabled() {
			return
		}
		serviceName := strings.TrimSpace(cfg.ServiceName)
		if serviceName == "" {
			serviceName = "coursebuilder"
		}
		res, err := resource.New(
			ctx,
			resource.WithAttributes(
				semconv.ServiceNameKey.String(serviceName),
				attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
				semconv.ServiceVersionKey.String(strings.TrimSpace(cfg.Version)),
			),
		)
		if err != nil && log != nil {
			log.Warn("Otel resource init failed, continuing", "error", err)
		}

		exporter, expErr := buildTraceExporter(ctx, log)
		if expErr != nil && log != nil {
			log.Warn("Otel exporter init failed, continuing", "error", expErr)
		}
		opts := []sdktrace.TracerProviderOption{
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(otelSampleRatio()))),
			sdktrace.WithResource(res),
		}
		if exporter != nil {
			opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
		}
		tp := sdktrace.NewTracerProvider(opts...)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		otelShutdown = tp.Shutdown
		if log != nil {
			log.Info("Otel tracing initialized", "service", serviceName, "endpoint", otelEndpoint())
		}
	})
	return otelShutdown
}

func otelEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(utils.GetEnv("OTEL_ENABLED", "", nil))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func otelSampleRatio() float64 {
	raw := strings.TrimSpace(utils.GetEnv("OTEL_SAMPLER_RATIO", "", nil))
	if raw == "" {
		return 0.1
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0.1
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func otelEndpoint() string {
	return strings.TrimSpace(utils.GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "", nil))
}

func otelInsecure() bool {
	switch strings.ToLower(strings.TrimSpace(utils.GetEnv("OTEL_EXPORTER_OTLP_INSECURE", "", nil))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func otelHeaders() map[string]string {
	raw := strings.TrimSpace(utils.GetEnv("OTEL_EXPORTER_OTLP_HEADERS", "", nil))
	if raw == "" {
		return nil
	}
	headers := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, val := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		if key == "" || val == "" {
			continue
		}
		headers[key] = val
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

func buildTraceExporter(ctx context.Context, log *logger.Logger) (sdktrace.SpanExporter, error) {
	if endpoint := otelEndpoint(); endpoint != "" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if otelInsecure() {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if headers := otelHeaders(); headers != nil {
			opts = append(opts, otlptracehttp.WithHeaders(headers))
		}
		return otlptracehttp.New(ctx, opts...)
	}
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	if log != nil {
		log.Warn("Otel using stdout exporter, no OTLP endpoint configured")
	}
	return exp, nil
}
