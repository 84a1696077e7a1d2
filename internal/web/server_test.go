package web

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jobtrail/jobtrail/internal/config"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "applications.csv")
	csv := "Job ID,Title,Company,Work Location,Status,Date Applied\n" +
		"J1,Engineer,Acme,Remote,Applied,2025-01-10\n" +
		"J2,Analyst,Globex,Austin,Rejected,2025-01-12\n"
	if err := os.WriteFile(path, []byte(csv), 0600); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{}
	cfg.Store.CSVPath = path
	return NewServer(0, cfg, nil, nil)
}

func TestHandleHealth(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.setupRouter().ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandleApplicationsFilter(t *testing.T) {
	s := testServer(t)
	router := s.setupRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/applications?status=Rejected", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Globex") || strings.Contains(body, "Acme") {
		t.Errorf("status filter not applied: %s", body)
	}
}

func TestHandleStats(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.setupRouter().ServeHTTP(rec, httptest.NewRequest("GET", "/api/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"total":2`) {
		t.Errorf("unexpected stats: %s", rec.Body.String())
	}
}

func TestHandleScanWithoutScanner(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.setupRouter().ServeHTTP(rec, httptest.NewRequest("POST", "/api/scan", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a scanner, got %d", rec.Code)
	}
}
