package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func TestResponseWriterCapturesStatus(t *testing.T) {
	rw := wrapResponseWriter(httptest.NewRecorder())

	if rw.status != http.StatusOK {
		t.Errorf("expected default status 200, got %d", rw.status)
	}

	rw.WriteHeader(http.StatusUnprocessableEntity)
	if rw.status != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rw.status)
	}

	// A second WriteHeader must not overwrite the recorded status.
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.status != http.StatusUnprocessableEntity {
		t.Errorf("status changed on second WriteHeader: %d", rw.status)
	}
}

func TestResponseWriterImplicitHeader(t *testing.T) {
	rw := wrapResponseWriter(httptest.NewRecorder())

	if _, err := rw.Write([]byte(`{"status":"ok"}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if rw.status != http.StatusOK {
		t.Errorf("expected implicit 200, got %d", rw.status)
	}
}

func TestHTTPMiddlewareCountsRequests(t *testing.T) {
	m := New()
	SetGlobal(m)
	defer SetGlobal(nil)

	wrapped := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/campaigns", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	counter, err := m.APIRequestsTotal.GetMetricWithLabelValues("GET", "/api/v1/campaigns", "200")
	if err != nil {
		t.Fatalf("failed to get counter: %v", err)
	}
	var mf dto.Metric
	if err := counter.Write(&mf); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	if got := mf.GetCounter().GetValue(); got != 1 {
		t.Errorf("expected 1 recorded request, got %v", got)
	}
}

func TestHTTPMiddlewareCountsErrors(t *testing.T) {
	m := New()
	SetGlobal(m)
	defer SetGlobal(nil)

	wrapped := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/campaigns", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	counter, err := m.APIErrorsTotal.GetMetricWithLabelValues("not_found")
	if err != nil {
		t.Fatalf("failed to get counter: %v", err)
	}
	var mf dto.Metric
	if err := counter.Write(&mf); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	if got := mf.GetCounter().GetValue(); got != 1 {
		t.Errorf("expected 1 recorded error, got %v", got)
	}
}

func TestHTTPMiddlewareWithoutGlobal(t *testing.T) {
	SetGlobal(nil)

	wrapped := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/templates", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected passthrough 200, got %d", rec.Code)
	}
}

func TestNormalizePathCollapsesIDs(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/campaigns", "/api/v1/campaigns"},
		{"/api/v1/campaigns/8c5f2a90-1f43-4f6e-9a7d-0b2e6f1c3d4e", "/api/v1/campaigns/{id}"},
		{"/api/v1/campaigns/8c5f2a90-1f43-4f6e-9a7d-0b2e6f1c3d4e/log", "/api/v1/campaigns/{id}/log"},
		{"/api/v1/campaigns/not-a-uuid", "/api/v1/campaigns/not-a-uuid"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if got := normalizePath(req); got != tt.want {
			t.Errorf("normalizePath(%s) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestIsUUID(t *testing.T) {
	valid := []string{
		"8c5f2a90-1f43-4f6e-9a7d-0b2e6f1c3d4e",
		"8C5F2A90-1F43-4F6E-9A7D-0B2E6F1C3D4E",
	}
	for _, s := range valid {
		if !isUUID(s) {
			t.Errorf("isUUID(%q) = false, want true", s)
		}
	}

	invalid := []string{
		"",
		"campaigns",
		"8c5f2a901f434f6e9a7d0b2e6f1c3d4e",
		"8c5f2a90-1f43-4f6e-9a7d-0b2e6f1c3d4",
		"8c5f2a90-1f43-4f6e-9a7d-0b2e6f1c3d4ez",
	}
	for _, s := range invalid {
		if isUUID(s) {
			t.Errorf("isUUID(%q) = true, want false", s)
		}
	}
}

func TestCategorizeStatus(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusInternalServerError, "server_error"},
		{http.StatusBadGateway, "server_error"},
		{http.StatusTooManyRequests, "rate_limited"},
		{http.StatusUnauthorized, "auth_error"},
		{http.StatusForbidden, "auth_error"},
		{http.StatusNotFound, "not_found"},
		{http.StatusBadRequest, "bad_request"},
		{http.StatusUnprocessableEntity, "client_error"},
		{http.StatusRequestEntityTooLarge, "client_error"},
		{http.StatusOK, "unknown"},
	}

	for _, tt := range tests {
		if got := categorizeStatus(tt.status); got != tt.want {
			t.Errorf("categorizeStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}
