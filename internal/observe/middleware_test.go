package observe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type middlewareFixture struct {
	handler http.Handler
	reader  *sdkmetric.ManualReader
	spans   *tracetest.InMemoryExporter
}

// newMiddlewareFixture wraps h with [Middleware] backed by a manual metric
// reader and an in-memory span exporter.
func newMiddlewareFixture(t *testing.T, h http.Handler) *middlewareFixture {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	return &middlewareFixture{handler: Middleware(m)(h), reader: reader, spans: exp}
}

func (f *middlewareFixture) statusAttr(t *testing.T) int64 {
	t.Helper()
	spans := f.spans.GetSpans()
	if len(spans) == 0 {
		t.Fatal("no spans recorded")
	}
	for _, a := range spans[len(spans)-1].Attributes {
		if string(a.Key) == "http.response.status_code" {
			return a.Value.AsInt64()
		}
	}
	t.Fatal("span missing http.response.status_code")
	return 0
}

// ── Routes ────────────────────────────────────────────────────────────────────

func TestMiddleware_Routes(t *testing.T) {
	tests := []struct {
		method string
		path   string
		status int
	}{
		{"GET", "/api/session", http.StatusOK},
		{"POST", "/api/transcribe", http.StatusAccepted},
		{"POST", "/api/anonymize", http.StatusNoContent},
		{"GET", "/api/transcript.docx", http.StatusNotFound},
		{"POST", "/api/correct", http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			f := newMiddlewareFixture(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))

			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			spans := f.spans.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("recorded %d spans, want 1", len(spans))
			}
			if want := "HTTP " + tt.method + " " + tt.path; spans[0].Name != want {
				t.Errorf("span name = %q, want %q", spans[0].Name, want)
			}
			if got := f.statusAttr(t); got != int64(tt.status) {
				t.Errorf("span status attribute = %d, want %d", got, tt.status)
			}

			var rm metricdata.ResourceMetrics
			if err := f.reader.Collect(context.Background(), &rm); err != nil {
				t.Fatalf("Collect: %v", err)
			}
			met := findMetric(rm, "hearscribe.http.request.duration")
			if met == nil {
				t.Fatal("hearscribe.http.request.duration not recorded")
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok || len(hist.DataPoints) != 1 {
				t.Fatalf("want one histogram data point, got %+v", met.Data)
			}
			var method, path string
			for _, kv := range hist.DataPoints[0].Attributes.ToSlice() {
				switch kv.Key {
				case "method":
					method = kv.Value.AsString()
				case "path":
					path = kv.Value.AsString()
				}
			}
			if method != tt.method || path != tt.path {
				t.Errorf("attributes method=%q path=%q, want %q %q", method, path, tt.method, tt.path)
			}
		})
	}
}

// ── Correlation ───────────────────────────────────────────────────────────────

func TestMiddleware_CorrelationID(t *testing.T) {
	const incoming = "4bf92f3577b34da6a3ce929d0e0e4736"

	tests := []struct {
		name        string
		traceparent string
	}{
		{"new trace", ""},
		{"w3c traceparent", "00-" + incoming + "-00f067aa0ba902b7-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			f := newMiddlewareFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = CorrelationID(r.Context())
			}))

			req := httptest.NewRequest("GET", "/api/session", nil)
			if tt.traceparent != "" {
				req.Header.Set("traceparent", tt.traceparent)
			}
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)

			if len(seen) != 32 {
				t.Fatalf("correlation id %q, want 32 hex digits", seen)
			}
			if tt.traceparent != "" && seen != incoming {
				t.Errorf("correlation id = %q, want incoming trace id %q", seen, incoming)
			}
			if got := rec.Header().Get("X-Correlation-ID"); got != seen {
				t.Errorf("X-Correlation-ID = %q, want %q", got, seen)
			}
		})
	}
}

// ── Hijack ────────────────────────────────────────────────────────────────────

func TestMiddleware_HijackUnsupported(t *testing.T) {
	var hijackErr, flushErr error
	f := newMiddlewareFixture(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		rc := http.NewResponseController(w)
		_, _, hijackErr = rc.Hijack()
		flushErr = rc.Flush()
	}))

	f.handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/events", nil))

	if hijackErr == nil {
		t.Error("Hijack on a recorder returned nil error")
	}
	if flushErr != nil {
		t.Errorf("Flush through recorder: %v", flushErr)
	}
}

func TestMiddleware_HijackRecordedAsSwitchingProtocols(t *testing.T) {
	f := newMiddlewareFixture(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		conn, rw, err := http.NewResponseController(w).Hijack()
		if err != nil {
			t.Errorf("Hijack: %v", err)
			return
		}
		defer conn.Close()
		_, _ = rw.WriteString("HTTP/1.1 200 OK\r\nContent-Length: 2\r\nConnection: close\r\n\r\nok")
		_ = rw.Flush()
	}))

	served := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(served)
		f.handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/events")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q, want %q", body, "ok")
	}
	<-served

	if got := f.statusAttr(t); got != http.StatusSwitchingProtocols {
		t.Errorf("span status attribute = %d, want %d", got, http.StatusSwitchingProtocols)
	}
}
