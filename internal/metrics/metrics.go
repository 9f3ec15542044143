// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ワーカー・ミドルウェアから利用する。
type MetricsCollector interface {
	RecordAutoFill(scheduled, failed int, duration time.Duration)
	RecordAutoFillError(code string)
	RecordImport(imported, skipped int)
	RecordImportFailure(reason string)
	RecordSessionsCleaned(count int64)
	RecordHTTPStatus(statusCode int)
}

// 自動予約の実行結果ラベル
const (
	runResultOK      = "ok"
	runResultPartial = "partial"
	runResultError   = "error"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	autofillRuns    *prometheus.CounterVec
	autofillErrors  *prometheus.CounterVec
	itemsScheduled  prometheus.Counter
	persistFailures prometheus.Counter
	autofillLatency prometheus.Histogram
	itemsImported   prometheus.Counter
	itemsSkipped    prometheus.Counter
	importFailures  *prometheus.CounterVec
	sessionsCleaned prometheus.Counter
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		autofillRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postflow_autofill_runs_total",
			Help: "自動予約の実行回数（結果別）",
		}, []string{"result"}),
		autofillErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postflow_autofill_errors_total",
			Help: "割り当て前に中断した自動予約の回数（エラーコード別）",
		}, []string{"code"}),
		itemsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postflow_items_scheduled_total",
			Help: "自動予約で予約日時が確定したコンテンツの合計数",
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postflow_schedule_persist_failures_total",
			Help: "予約日時の保存に失敗したコンテンツの合計数",
		}),
		autofillLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "postflow_autofill_duration_seconds",
			Help:    "自動予約1回の所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		itemsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postflow_items_imported_total",
			Help: "ブログフィードからインポートしたコンテンツの合計数",
		}),
		itemsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postflow_items_import_skipped_total",
			Help: "インポート済みのためスキップした記事の合計数",
		}),
		importFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postflow_import_failures_total",
			Help: "ブログフィードのインポート失敗数（理由別）",
		}, []string{"reason"}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postflow_sessions_cleaned_total",
			Help: "削除した期限切れセッションの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postflow_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.autofillRuns,
		c.autofillErrors,
		c.itemsScheduled,
		c.persistFailures,
		c.autofillLatency,
		c.itemsImported,
		c.itemsSkipped,
		c.importFailures,
		c.sessionsCleaned,
		c.httpStatus,
	)

	return c
}

// RecordAutoFill は自動予約1回分の結果を記録する。
// 1件でも保存に失敗した場合はpartialとして数える。
func (c *Collector) RecordAutoFill(scheduled, failed int, duration time.Duration) {
	result := runResultOK
	if failed > 0 {
		result = runResultPartial
	}
	c.autofillRuns.WithLabelValues(result).Inc()
	c.itemsScheduled.Add(float64(scheduled))
	c.persistFailures.Add(float64(failed))
	c.autofillLatency.Observe(duration.Seconds())
}

// RecordAutoFillError は割り当て前に中断した自動予約を記録する。
func (c *Collector) RecordAutoFillError(code string) {
	c.autofillRuns.WithLabelValues(runResultError).Inc()
	c.autofillErrors.WithLabelValues(code).Inc()
}

// RecordImport はインポート結果を記録する。
func (c *Collector) RecordImport(imported, skipped int) {
	c.itemsImported.Add(float64(imported))
	c.itemsSkipped.Add(float64(skipped))
}

// RecordImportFailure はインポート失敗を記録する。
func (c *Collector) RecordImportFailure(reason string) {
	c.importFailures.WithLabelValues(reason).Inc()
}

// RecordSessionsCleaned は削除した期限切れセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// workerプロセスのように本体のルーターを持たないプロセスで使う。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
