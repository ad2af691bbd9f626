package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestReadinessFollowsCheck(t *testing.T) {
	var down error
	s := NewServer(nil, []Handler{ReadinessHandler(func(context.Context) error { return down }, time.Second)}, WithMetricsPath(""))

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ready"`) {
		t.Fatalf("ready: %d %s", rec.Code, rec.Body.String())
	}

	down = errors.New("clickhouse: connection refused")
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "not_ready") {
		t.Fatalf("not ready: %d %s", rec.Code, rec.Body.String())
	}
}

func TestServerExposesExportHeaders(t *testing.T) {
	s := NewServer(nil, nil, WithCORSOrigins([]string{"*"}), WithMetricsPath(""))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://ui.local")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Expose-Headers"); got != "Content-Disposition" {
		t.Fatalf("expose headers=%q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://ui.local" {
		t.Fatalf("allow origin=%q", got)
	}
}
