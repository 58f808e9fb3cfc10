package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"

	"github.com/kjstillabower/climate-api/internal/observability"
	"github.com/kjstillabower/climate-api/internal/testhelpers"
)

func requestsTotal(t *testing.T, route, statusCode string) float64 {
	t.Helper()
	var m dto.Metric
	if err := observability.HTTPRequestsTotal.WithLabelValues(http.MethodGet, route, statusCode).Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestMiddleware_CorrelationIDGenerated(t *testing.T) {
	router, _ := newTestRouter(t, testhelpers.NewHawaiiDatabase(t))

	w := get(router, "/api/v1.0/stations")

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("X-Correlation-ID header missing")
	}
}

func TestMiddleware_CorrelationIDPropagated(t *testing.T) {
	var seen string
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		seen = observability.CorrelationIDFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "trace-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "trace-42" {
		t.Errorf("response X-Correlation-ID = %q, want trace-42", got)
	}
	if seen != "trace-42" {
		t.Errorf("context correlation ID = %q, want trace-42", seen)
	}
}

// TestMiddleware_MetricsUseRouteTemplate verifies that path parameters are collapsed
// into the registered template for the route label.
func TestMiddleware_MetricsUseRouteTemplate(t *testing.T) {
	router, _ := newTestRouter(t, testhelpers.NewHawaiiDatabase(t))
	const route = "/api/v1.0/temp_stats_start_end/{start_date}/{end_date}"
	before := requestsTotal(t, route, "2xx")

	get(router, "/api/v1.0/temp_stats_start_end/2016-08-18/2016-08-23")
	get(router, "/api/v1.0/temp_stats_start_end/2017-01-01/2017-12-31")

	if got := requestsTotal(t, route, "2xx") - before; got != 2 {
		t.Errorf("httpRequestsTotal delta for %s = %v, want 2", route, got)
	}
}

func TestMiddleware_MetricsRecordsServerError(t *testing.T) {
	router, st := newTestRouter(t, testhelpers.NewHawaiiDatabase(t))
	_ = st.Close()
	before := requestsTotal(t, "/api/v1.0/tobs", "5xx")

	get(router, "/api/v1.0/tobs")

	if got := requestsTotal(t, "/api/v1.0/tobs", "5xx") - before; got != 1 {
		t.Errorf("5xx delta = %v, want 1", got)
	}
}

func TestMiddleware_InFlightDuringRequest(t *testing.T) {
	var during int64
	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		during = InFlightCount()
	})

	get(router, "/slow")

	if during != 1 {
		t.Errorf("InFlightCount() during request = %d, want 1", during)
	}
	if n := InFlightCount(); n != 0 {
		t.Errorf("InFlightCount() after request = %d, want 0", n)
	}
}

func TestGetRoute_Unmatched(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	if got := getRoute(req); got != "unmatched" {
		t.Errorf("getRoute() = %q, want unmatched", got)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, testhelpers.NewHawaiiDatabase(t))
	get(router, "/api/v1.0/stations")

	w := get(router, "/metrics")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := w.Body.String(); !containsAll(body, "httpRequestsTotal", "dbQueriesTotal", "dbSessionsOpen") {
		t.Errorf("metrics body missing expected series:\n%s", body)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	router, _ := newTestRouter(t, testhelpers.NewHawaiiDatabase(t))

	if w := get(router, "/api/v1.0/unknown"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if w := get(router, "/api/v1.0/stations"); w.Code != http.StatusOK {
		t.Errorf("stations status = %d, want 200", w.Code)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router, _ := newTestRouter(t, testhelpers.NewHawaiiDatabase(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1.0/stations", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
