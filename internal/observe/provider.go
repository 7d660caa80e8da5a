package observe

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Resource attribute keys describing how this hearscribe instance is wired.
const (
	AttrBuild       = attribute.Key("hearscribe.build")
	AttrLLMGateway  = attribute.Key("hearscribe.gateway.llm")
	AttrTextGateway = attribute.Key("hearscribe.gateway.text")
	AttrLanguage    = attribute.Key("hearscribe.language")
)

const defaultService = "hearscribe"

// ProviderConfig describes the running service for telemetry.
type ProviderConfig struct {
	// ServiceName defaults to "hearscribe".
	ServiceName    string
	ServiceVersion string

	// Build is the one-line build description (version, commit, date).
	Build string

	// LLMProvider names the gateway that reads the minutes and the videos.
	// TextProvider names the gateway used for anonymization and correction;
	// when empty the LLM gateway serves both.
	LLMProvider  string
	TextProvider string

	// Language is the configured transcript language at startup.
	Language string

	// TraceExporter receives finished spans. When nil spans are recorded
	// but never exported.
	TraceExporter sdktrace.SpanExporter
}

// Resource returns the telemetry resource for cfg, merged over the SDK
// defaults (host, process and SDK attributes).
func Resource(cfg ProviderConfig) (*resource.Resource, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultService
	}
	if cfg.TextProvider == "" {
		cfg.TextProvider = cfg.LLMProvider
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	for _, kv := range []attribute.KeyValue{
		AttrBuild.String(cfg.Build),
		AttrLLMGateway.String(cfg.LLMProvider),
		AttrTextGateway.String(cfg.TextProvider),
		AttrLanguage.String(cfg.Language),
	} {
		if kv.Value.AsString() != "" {
			attrs = append(attrs, kv)
		}
	}

	// Schemaless: the default resource carries the SDK's own schema URL and
	// two different schema URLs do not merge.
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("observe: build resource: %w", err)
	}
	return res, nil
}

// InitProvider installs the global meter and tracer providers for cfg.
// Metrics go to a Prometheus exporter so the /metrics handler can serve
// them; spans go to cfg.TraceExporter when set.
//
// The returned function flushes pending spans first, then stops metrics.
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	res, err := Resource(cfg)
	if err != nil {
		return nil, err
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
