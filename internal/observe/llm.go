package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/hearscribe/pkg/provider/llm"
)

// InstrumentedLLM wraps an [llm.Provider] and records a span, request and
// error counters, and call duration for every gateway call. It adds no
// retries and does not alter requests or results.
type InstrumentedLLM struct {
	inner   llm.Provider
	name    string
	metrics *Metrics
}

// Compile-time interface assertion.
var _ llm.Provider = (*InstrumentedLLM)(nil)

// InstrumentLLM returns p wrapped with telemetry under the given provider name.
func InstrumentLLM(p llm.Provider, name string, m *Metrics) *InstrumentedLLM {
	return &InstrumentedLLM{inner: p, name: name, metrics: m}
}

// Unwrap returns the wrapped provider.
func (l *InstrumentedLLM) Unwrap() llm.Provider { return l.inner }

// Complete implements [llm.Provider].
func (l *InstrumentedLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	ctx, span := StartSpan(ctx, "llm.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("llm.provider", l.name)),
	)
	defer span.End()

	start := time.Now()
	resp, err := l.inner.Complete(ctx, req)
	l.finish(ctx, span, "complete", start, err)
	if err == nil && resp != nil {
		span.SetAttributes(
			attribute.Int("llm.usage.prompt_tokens", resp.Usage.PromptTokens),
			attribute.Int("llm.usage.completion_tokens", resp.Usage.CompletionTokens),
		)
	}
	return resp, err
}

// StreamCompletion implements [llm.Provider]. The returned channel forwards
// every chunk of the wrapped stream; the call is measured until the wrapped
// stream closes.
func (l *InstrumentedLLM) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	ctx, span := StartSpan(ctx, "llm.stream",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("llm.provider", l.name)),
	)

	start := time.Now()
	in, err := l.inner.StreamCompletion(ctx, req)
	if err != nil {
		l.finish(ctx, span, "stream", start, err)
		span.End()
		return nil, err
	}

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		defer span.End()

		var (
			streamErr error
			fragments int
		)
		for c := range in {
			if c.FinishReason == llm.FinishReasonError && streamErr == nil {
				streamErr = c.Err
			}
			if c.Text != "" {
				fragments++
			}
			out <- c
		}
		span.SetAttributes(attribute.Int("llm.stream.fragments", fragments))
		l.finish(ctx, span, "stream", start, streamErr)
	}()
	return out, nil
}

// Capabilities implements [llm.Provider].
func (l *InstrumentedLLM) Capabilities() llm.ModelCapabilities {
	return l.inner.Capabilities()
}

func (l *InstrumentedLLM) finish(ctx context.Context, span trace.Span, kind string, start time.Time, err error) {
	l.metrics.GatewayDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(
			attribute.String("provider", l.name),
			attribute.String("kind", kind),
		),
	)
	status := "ok"
	if err != nil {
		status = "error"
		l.metrics.RecordProviderError(ctx, l.name, kind)
		Fail(span, err)
	}
	l.metrics.RecordProviderRequest(ctx, l.name, kind, status)
}
