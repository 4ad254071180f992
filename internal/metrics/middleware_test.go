package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_CountsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/search", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[]"))
	})
	r.Post("/backfill", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	for _, path := range []string{"/search", "/backfill"} {
		req := httptest.NewRequest(http.MethodPost, path, http.NoBody)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
	}

	searchOK := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/search", "200"))
	if searchOK < 1 {
		t.Errorf("expected http_requests_total for /search 200 >= 1, got %f", searchOK)
	}
	backfillErr := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/backfill", "500"))
	if backfillErr < 1 {
		t.Errorf("expected http_requests_total for /backfill 500 >= 1, got %f", backfillErr)
	}

	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected duration histogram observations")
	}
}

func TestNormalizePath(t *testing.T) {
	if got := normalizePath(""); got != "unknown" {
		t.Errorf("normalizePath(\"\") = %q, want unknown", got)
	}
	if got := normalizePath("/search"); got != "/search" {
		t.Errorf("normalizePath(/search) = %q", got)
	}
}
