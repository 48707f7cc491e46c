package observe

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// withTracer installs an in-memory tracer as the global provider.
func withTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// withLogBuffer redirects the default logger at info level.
func withLogBuffer(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func TestMiddleware(t *testing.T) {
	const parent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

	tests := []struct {
		name        string
		path        string
		status      int
		traceparent string
		wantTraceID string
		wantLogged  bool
	}{
		{name: "probe ok is quiet", path: "/healthz", status: http.StatusOK},
		{name: "scrape is quiet", path: "/metrics", status: http.StatusOK},
		{name: "failing probe is logged", path: "/readyz", status: http.StatusServiceUnavailable, wantLogged: true},
		{name: "other paths are logged", path: "/debug", status: http.StatusNotFound, wantLogged: true},
		{
			name:        "continues incoming trace",
			path:        "/readyz",
			status:      http.StatusOK,
			traceparent: parent,
			wantTraceID: "4bf92f3577b34da6a3ce929d0e0e4736",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := withTracer(t)
			logs := withLogBuffer(t)
			m, reader := newTestMetrics(t)

			var seen string
			h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = CorrelationID(r.Context())
				w.WriteHeader(tt.status)
			}))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.traceparent != "" {
				req.Header.Set("traceparent", tt.traceparent)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if len(seen) != 32 {
				t.Errorf("handler correlation ID = %q, want 32 hex chars", seen)
			}
			if tt.wantTraceID != "" && seen != tt.wantTraceID {
				t.Errorf("correlation ID = %q, want %q", seen, tt.wantTraceID)
			}
			if got := rec.Header().Get("X-Correlation-ID"); got != seen {
				t.Errorf("X-Correlation-ID = %q, want %q", got, seen)
			}
			if got := logs.Len() > 0; got != tt.wantLogged {
				t.Errorf("logged at info = %v, want %v (%q)", got, tt.wantLogged, logs.String())
			}

			spans := exp.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("spans = %d, want 1", len(spans))
			}
			if want := "HTTP GET " + tt.path; spans[0].Name != want {
				t.Errorf("span name = %q, want %q", spans[0].Name, want)
			}
			var code int64
			for _, a := range spans[0].Attributes {
				if a.Key == "http.response.status_code" {
					code = a.Value.AsInt64()
				}
			}
			if code != int64(tt.status) {
				t.Errorf("span status attribute = %d, want %d", code, tt.status)
			}

			met := findMetric(collect(t, reader), "jobgenie.http.request.duration")
			if met == nil {
				t.Fatal("duration histogram not recorded")
			}
			hist := met.Data.(metricdata.Histogram[float64])
			if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
				t.Fatalf("data points = %+v, want one sample", hist.DataPoints)
			}
			path, _ := hist.DataPoints[0].Attributes.Value("path")
			if path.AsString() != tt.path {
				t.Errorf("path attribute = %q, want %q", path.AsString(), tt.path)
			}
			if c, _ := hist.DataPoints[0].Attributes.Value("code"); c.AsString() != strconv.Itoa(tt.status) {
				t.Errorf("code attribute = %q, want %d", c.AsString(), tt.status)
			}
		})
	}
}

func TestMiddleware_LogLineCarriesTraceID(t *testing.T) {
	withTracer(t)
	logs := withLogBuffer(t)
	m, _ := newTestMetrics(t)

	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/toggle", nil))

	out := logs.String()
	for _, want := range []string{
		"trace_id=" + rec.Header().Get("X-Correlation-ID"),
		"method=POST",
		"status=418",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}
}
