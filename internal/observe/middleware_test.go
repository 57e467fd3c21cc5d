package observe

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// statusMux mirrors the routes of the status server.
func statusMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("GET /api/session", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Correlation", CorrelationID(r.Context()))
		_, _ = w.Write([]byte(`{"state":"idle"}`))
	})
	return mux
}

func serve(h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func spanAttr(s tracetest.SpanStub, key string) (string, bool) {
	for _, kv := range s.Attributes {
		if string(kv.Key) == key {
			return kv.Value.Emit(), true
		}
	}
	return "", false
}

func TestMiddleware_SpanPerRoute(t *testing.T) {
	exp := useTestTracer(t)
	m, _ := newTestMetrics(t)
	h := Middleware(m)(statusMux())

	rec := serve(h, "GET", "/api/session", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "HTTP GET /api/session" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	if route, _ := spanAttr(spans[0], "http.route"); route != "GET /api/session" {
		t.Errorf("http.route = %q", route)
	}
	if code, _ := spanAttr(spans[0], "http.response.status_code"); code != "200" {
		t.Errorf("http.response.status_code = %q", code)
	}
}

func TestMiddleware_CorrelationID(t *testing.T) {
	useTestTracer(t)
	m, _ := newTestMetrics(t)
	h := Middleware(m)(statusMux())

	t.Run("generated", func(t *testing.T) {
		rec := serve(h, "GET", "/api/session", nil)
		cid := rec.Header().Get("X-Correlation-ID")
		if len(cid) != 32 {
			t.Errorf("X-Correlation-ID = %q, want a 32 char trace id", cid)
		}
		if seen := rec.Header().Get("X-Seen-Correlation"); seen != cid {
			t.Errorf("handler saw %q, header says %q", seen, cid)
		}
	})

	t.Run("joins the caller trace", func(t *testing.T) {
		const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
		rec := serve(h, "GET", "/api/session", http.Header{
			"Traceparent": {"00-" + traceID + "-00f067aa0ba902b7-01"},
		})
		if got := rec.Header().Get("X-Correlation-ID"); got != traceID {
			t.Errorf("X-Correlation-ID = %q, want %q", got, traceID)
		}
		if tp := rec.Header().Get("Traceparent"); !strings.Contains(tp, traceID) {
			t.Errorf("traceparent not propagated: %q", tp)
		}
	})
}

func TestMiddleware_ServerErrorMarksSpan(t *testing.T) {
	exp := useTestTracer(t)
	m, _ := newTestMetrics(t)
	h := Middleware(m)(statusMux())

	if rec := serve(h, "GET", "/readyz", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Description != http.StatusText(http.StatusServiceUnavailable) {
		t.Errorf("span status = %+v, want an error status", spans[0].Status)
	}
}

func TestMiddleware_RecordsDurationByRoute(t *testing.T) {
	useTestTracer(t)
	m, reader := newTestMetrics(t)
	h := Middleware(m)(statusMux())

	serve(h, "GET", "/api/session", nil)
	serve(h, "GET", "/api/session", nil)
	serve(h, "GET", "/no/such/page", nil)

	met := findMetric(collect(t, reader), "livescribe.http.request.duration")
	if met == nil {
		t.Fatal("livescribe.http.request.duration not recorded")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("metric data is %T, want a float64 histogram", met.Data)
	}

	counts := map[string]uint64{}
	for _, dp := range hist.DataPoints {
		route, _ := dp.Attributes.Value("route")
		class, _ := dp.Attributes.Value("status_class")
		counts[route.AsString()+" "+class.AsString()] += dp.Count
	}
	if counts["GET /api/session 2xx"] != 2 {
		t.Errorf("session route count = %d, want 2 (all: %v)", counts["GET /api/session 2xx"], counts)
	}
	if counts["unmatched 4xx"] != 1 {
		t.Errorf("unmatched count = %d, want 1 (all: %v)", counts["unmatched 4xx"], counts)
	}
}

func TestMiddleware_QuietRoutesLogAtDebug(t *testing.T) {
	useTestTracer(t)
	buf := captureLogs(t)
	m, _ := newTestMetrics(t)
	h := Middleware(m)(statusMux())

	serve(h, "GET", "/api/session", nil)
	serve(h, "GET", "/no/such/page", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "level=DEBUG") || !strings.Contains(lines[0], `route="GET /api/session"`) {
		t.Errorf("polled route not logged at debug: %s", lines[0])
	}
	if !strings.Contains(lines[1], "level=INFO") || !strings.Contains(lines[1], "status=404") {
		t.Errorf("unmatched request not logged at info: %s", lines[1])
	}
}

func TestStatusClass(t *testing.T) {
	t.Parallel()
	for code, want := range map[int]string{200: "2xx", 204: "2xx", 404: "4xx", 503: "5xx"} {
		if got := statusClass(code); got != want {
			t.Errorf("statusClass(%d) = %q, want %q", code, got, want)
		}
	}
}
