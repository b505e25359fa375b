package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"imgdb/internal/database"
	"imgdb/internal/indexer"
	"imgdb/internal/startup"
)

type mockPipeline struct {
	status     indexer.HealthStatus
	stats      database.Stats
	statsErr   error
	triggerErr error
	triggered  int
}

func (m *mockPipeline) IsReady() bool { return m.status.Ready }

func (m *mockPipeline) GetHealthStatus() indexer.HealthStatus { return m.status }

func (m *mockPipeline) Stats(context.Context) (database.Stats, error) {
	return m.stats, m.statsErr
}

func (m *mockPipeline) TriggerRun() error {
	if m.triggerErr != nil {
		return m.triggerErr
	}
	m.triggered++
	return nil
}

func serve(t *testing.T, p *mockPipeline, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	router := NewRouter(New(p))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, http.NoBody))
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return v
}

func TestHealthCheck(t *testing.T) {
	lastRun := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name       string
		status     indexer.HealthStatus
		wantCode   int
		wantStatus string
	}{
		{
			name:       "starting",
			status:     indexer.HealthStatus{Running: true, CurrentStage: indexer.StageHash},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: statusStarting,
		},
		{
			name:       "healthy",
			status:     indexer.HealthStatus{Ready: true, LastRun: lastRun},
			wantCode:   http.StatusOK,
			wantStatus: statusHealthy,
		},
		{
			name:       "degraded after failed run",
			status:     indexer.HealthStatus{Ready: true, LastRun: lastRun, LastError: "hash: disk on fire"},
			wantCode:   http.StatusOK,
			wantStatus: statusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, &mockPipeline{status: tt.status}, http.MethodGet, "/healthz")

			if w.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected Content-Type application/json, got %q", ct)
			}

			resp := decode[HealthResponse](t, w)
			if resp.Status != tt.wantStatus {
				t.Errorf("Expected status %q, got %q", tt.wantStatus, resp.Status)
			}
			if resp.Version != startup.Version {
				t.Errorf("Expected version %q, got %q", startup.Version, resp.Version)
			}
			if resp.CurrentStage != string(tt.status.CurrentStage) {
				t.Errorf("Expected stage %q, got %q", tt.status.CurrentStage, resp.CurrentStage)
			}
			if !tt.status.LastRun.IsZero() && resp.LastRun != "2024-01-02T03:04:05Z" {
				t.Errorf("Expected lastRun 2024-01-02T03:04:05Z, got %q", resp.LastRun)
			}
		})
	}
}

func TestLivenessCheck(t *testing.T) {
	w := serve(t, &mockPipeline{}, http.MethodGet, "/livez")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if resp := decode[map[string]string](t, w); resp["status"] != "alive" {
		t.Errorf("Expected status alive, got %q", resp["status"])
	}

	head := serve(t, &mockPipeline{}, http.MethodHead, "/livez")
	if head.Code != http.StatusOK {
		t.Errorf("Expected HEAD status 200, got %d", head.Code)
	}
	if head.Body.Len() != 0 {
		t.Errorf("Expected empty HEAD body, got %q", head.Body.String())
	}
}

func TestReadinessCheck(t *testing.T) {
	tests := []struct {
		ready    bool
		wantCode int
		want     string
	}{
		{false, http.StatusServiceUnavailable, "not_ready"},
		{true, http.StatusOK, "ready"},
	}

	for _, tt := range tests {
		w := serve(t, &mockPipeline{status: indexer.HealthStatus{Ready: tt.ready}}, http.MethodGet, "/readyz")
		if w.Code != tt.wantCode {
			t.Errorf("ready=%v: expected status %d, got %d", tt.ready, tt.wantCode, w.Code)
		}
		if resp := decode[map[string]string](t, w); resp["status"] != tt.want {
			t.Errorf("ready=%v: expected %q, got %q", tt.ready, tt.want, resp["status"])
		}
	}
}

func TestGetVersion(t *testing.T) {
	w := serve(t, &mockPipeline{}, http.MethodGet, "/version")

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Expected Cache-Control no-cache, got %q", cc)
	}
	info := decode[startup.BuildInfo](t, w)
	if info.GoVersion != startup.GoVersion {
		t.Errorf("Expected GoVersion %q, got %q", startup.GoVersion, info.GoVersion)
	}
}

func TestGetStats(t *testing.T) {
	p := &mockPipeline{
		stats:  database.Stats{Files: 10, Unhashed: 2, DHashes: 7, Palettes: 6, Ocr: 5},
		status: indexer.HealthStatus{Running: true, CurrentStage: indexer.StageOcr},
	}

	w := serve(t, p, http.MethodGet, "/api/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	resp := decode[map[string]any](t, w)
	want := map[string]any{
		"files": 10.0, "unhashed": 2.0, "dhashes": 7.0, "palettes": 6.0, "ocr": 5.0,
		"running": true, "currentStage": "ocr",
	}
	for k, v := range want {
		if resp[k] != v {
			t.Errorf("%s = %v, want %v", k, resp[k], v)
		}
	}
}

func TestGetStatsError(t *testing.T) {
	w := serve(t, &mockPipeline{statsErr: errors.New("database is locked")}, http.MethodGet, "/api/stats")

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "locked") {
		t.Errorf("Internal error leaked to client: %s", w.Body.String())
	}
}

func TestTriggerRun(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantState string
	}{
		{"started", nil, http.StatusAccepted, "started"},
		{"busy", indexer.ErrBusy, http.StatusConflict, "already_running"},
		{"failed", errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockPipeline{triggerErr: tt.err}
			w := serve(t, p, http.MethodPost, "/api/run")

			if w.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, w.Code)
			}
			resp := decode[map[string]string](t, w)
			if tt.wantState != "" && resp["status"] != tt.wantState {
				t.Errorf("Expected status %q, got %q", tt.wantState, resp["status"])
			}
			if tt.err == nil && p.triggered != 1 {
				t.Errorf("Expected one triggered run, got %d", p.triggered)
			}
		})
	}
}

func TestRouterRejectsWrongMethod(t *testing.T) {
	w := serve(t, &mockPipeline{}, http.MethodGet, "/api/run")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	w := serve(t, &mockPipeline{}, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "imgdb_") {
		t.Error("Expected imgdb metrics in /metrics output")
	}
}
