package tracing

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/encoding/gzip"

	fondlog "github.com/gxo-labs/fondsolve/pkg/fond/v1/log"
	fondtracing "github.com/gxo-labs/fondsolve/pkg/fond/v1/tracing"
)

const (
	defaultGRPCEndpoint = "localhost:4317"
	defaultHTTPEndpoint = "localhost:4318"
	defaultHTTPPath     = "/v1/traces"
	defaultTimeout      = 10 * time.Second
	defaultServiceName  = "fondsolve"
)

// ExporterConfig is the OTLP exporter configuration read from the standard
// OTEL_* environment variables.
type ExporterConfig struct {
	Disabled    bool
	Protocol    string // "grpc" or "http"
	Endpoint    string
	URLPath     string
	Headers     map[string]string
	Timeout     time.Duration
	Insecure    bool
	Compression string
	ServiceName string
}

// ExporterConfigFromEnv reads an ExporterConfig through getenv. Tracing is
// disabled when OTEL_SDK_DISABLED is true or when no endpoint and no protocol
// are configured at all.
func ExporterConfigFromEnv(getenv func(string) string) (ExporterConfig, error) {
	cfg := ExporterConfig{
		Disabled:    strings.EqualFold(getenv("OTEL_SDK_DISABLED"), "true"),
		Protocol:    strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL")),
		Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		URLPath:     getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"),
		Headers:     parseHeaders(getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Timeout:     parseTimeout(getenv("OTEL_EXPORTER_OTLP_TIMEOUT"), defaultTimeout),
		Insecure:    isInsecure(getenv("OTEL_EXPORTER_OTLP_INSECURE"), getenv("OTEL_EXPORTER_OTLP_TRACES_INSECURE")),
		Compression: strings.ToLower(getenv("OTEL_EXPORTER_OTLP_COMPRESSION")),
		ServiceName: getenv("OTEL_SERVICE_NAME"),
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}
	if cfg.Endpoint == "" && cfg.Protocol == "" {
		cfg.Disabled = true
	}
	switch cfg.Protocol {
	case "", "grpc":
		cfg.Protocol = "grpc"
		if cfg.Endpoint == "" {
			cfg.Endpoint = defaultGRPCEndpoint
		}
	case "http", "http/protobuf":
		cfg.Protocol = "http"
		if cfg.Endpoint == "" {
			cfg.Endpoint = defaultHTTPEndpoint
		}
		if cfg.URLPath == "" {
			cfg.URLPath = defaultHTTPPath
		}
	default:
		return cfg, fmt.Errorf("unsupported OTLP protocol: %s", cfg.Protocol)
	}
	return cfg, nil
}

// OtelTracerProvider implements fondtracing.TracerProvider with either the
// OpenTelemetry SDK or the NoOp provider.
type OtelTracerProvider struct {
	provider    trace.TracerProvider
	sdkProvider *sdktrace.TracerProvider
}

var _ fondtracing.TracerProvider = (*OtelTracerProvider)(nil)

// NewNoOpProvider creates a TracerProvider that discards all spans.
func NewNoOpProvider() (*OtelTracerProvider, error) {
	return &OtelTracerProvider{provider: noop.NewTracerProvider()}, nil
}

// NewProviderFromEnv builds an OTLP-exporting provider from the environment,
// falling back to NoOp when tracing is disabled or misconfigured. It does not
// install a global provider.
func NewProviderFromEnv(ctx context.Context, log fondlog.Logger) (*OtelTracerProvider, error) {
	cfg, err := ExporterConfigFromEnv(os.Getenv)
	if err != nil {
		log.Warnf("Invalid OTLP configuration, tracing disabled: %v", err)
		return NewNoOpProvider()
	}
	if cfg.Disabled {
		log.Debugf("OpenTelemetry tracing disabled.")
		return NewNoOpProvider()
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		log.Warnf("Failed to create OTLP %s exporter for %s, tracing disabled: %v", cfg.Protocol, cfg.Endpoint, err)
		return NewNoOpProvider()
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(semconv.ServiceNameKey.String(cfg.ServiceName)),
		resource.WithProcess(), resource.WithOS(), resource.WithHost(),
	)
	if err != nil {
		log.Warnf("Failed to detect OTel resource, using default: %v", err)
		res = resource.Default()
	}

	sdkTP := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	log.Infof("OpenTelemetry tracing enabled (OTLP %s, endpoint %s).", cfg.Protocol, cfg.Endpoint)
	return &OtelTracerProvider{provider: sdkTP, sdkProvider: sdkTP}, nil
}

func newExporter(ctx context.Context, cfg ExporterConfig) (sdktrace.SpanExporter, error) {
	if cfg.Protocol == "http" {
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithURLPath(cfg.URLPath),
			otlptracehttp.WithHeaders(cfg.Headers),
			otlptracehttp.WithTimeout(cfg.Timeout),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if cfg.Compression == "gzip" {
			opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
		}
		return otlptracehttp.New(ctx, opts...)
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithHeaders(cfg.Headers),
		otlptracegrpc.WithTimeout(cfg.Timeout),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	if cfg.Compression == "gzip" {
		opts = append(opts, otlptracegrpc.WithCompressor(gzip.Name))
	}
	return otlptracegrpc.New(ctx, opts...)
}

// GetTracer returns a named tracer from the wrapped provider.
func (p *OtelTracerProvider) GetTracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if p.provider == nil {
		return noop.NewTracerProvider().Tracer(name, opts...)
	}
	return p.provider.Tracer(name, opts...)
}

// Shutdown flushes buffered spans and stops the exporter. It is a no-op for
// the NoOp provider.
func (p *OtelTracerProvider) Shutdown(ctx context.Context) error {
	if p.sdkProvider == nil {
		return nil
	}
	return p.sdkProvider.Shutdown(ctx)
}

// IsEffectivelyNoOp reports whether spans are discarded.
func (p *OtelTracerProvider) IsEffectivelyNoOp() bool {
	return p.sdkProvider == nil
}

// parseHeaders converts a comma-separated key=value list into a map.
func parseHeaders(headerStr string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(headerStr, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		key = strings.TrimSpace(key)
		if ok && key != "" {
			headers[key] = strings.TrimSpace(value)
		}
	}
	return headers
}

// parseTimeout accepts integer milliseconds (the OTLP convention) or a Go
// duration string.
func parseTimeout(timeoutStr string, fallback time.Duration) time.Duration {
	if timeoutStr == "" {
		return fallback
	}
	if ms, err := strconv.ParseInt(timeoutStr, 10, 64); err == nil {
		if ms < 0 {
			return fallback
		}
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := time.ParseDuration(timeoutStr); err == nil && d >= 0 {
		return d
	}
	return fallback
}

func isInsecure(flags ...string) bool {
	for _, flag := range flags {
		if strings.EqualFold(strings.TrimSpace(flag), "true") {
			return true
		}
	}
	return false
}
