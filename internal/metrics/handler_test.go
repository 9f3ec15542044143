package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestSetupMetricsRoute_ReturnsHandler はメトリクスルートのハンドラーが正常に返ることを検証する。
func TestSetupMetricsRoute_ReturnsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)

	handler := SetupMetricsRoute(reg)
	if handler == nil {
		t.Fatal("expected non-nil handler")
	}
}

// TestSetupMetricsRoute_ServesMetrics は/metricsパスでメトリクスが返ることを検証する。
func TestSetupMetricsRoute_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordAutoFill(1, 0, 10*time.Millisecond)

	handler := SetupMetricsRoute(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	if !strings.Contains(bodyStr, "postflow_autofill_runs_total") {
		t.Error("response should contain postflow_autofill_runs_total metric")
	}
}

// TestHandler_ExposesRecordedValues は本体ルーター用のハンドラーが記録値を返すことを検証する。
func TestHandler_ExposesRecordedValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordImport(3, 1)
	c.RecordSessionsCleaned(2)

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := w.Body.String()
	for _, name := range []string{"postflow_items_imported_total", "postflow_sessions_cleaned_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("response should contain %s", name)
		}
	}
}

// TestSetupMetricsRoute_UnknownPath は/metrics以外のパスが404になることを検証する。
func TestSetupMetricsRoute_UnknownPath(t *testing.T) {
	w := httptest.NewRecorder()
	SetupMetricsRoute(prometheus.NewRegistry()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
