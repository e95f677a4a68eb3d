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
// データストア、サービス層、ワーカー、ミドルウェアから利用する。
type MetricsCollector interface {
	RecordStoreOperation(backend, operation string, err error)
	RecordStoreFallback(operation string)
	RecordStoreLatency(backend string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordSubscriptionEvent(event string)
	RecordPostsImported(count int)
	RecordImportFailure(reason string)
	RecordBackup(err error, pruned int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	storeOps      *prometheus.CounterVec
	storeFallback *prometheus.CounterVec
	storeLatency  *prometheus.HistogramVec
	httpStatus    *prometheus.CounterVec
	subscriptions *prometheus.CounterVec
	postsImported prometheus.Counter
	importFail    *prometheus.CounterVec
	backups       *prometheus.CounterVec
	backupsPruned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brandhub_store_operations_total",
			Help: "バックエンド・操作・結果別のデータストア操作数",
		}, []string{"backend", "operation", "result"}),
		storeFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brandhub_store_fallback_total",
			Help: "リレーショナルバックエンドからJSONへフォールバックした操作数",
		}, []string{"operation"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brandhub_store_latency_seconds",
			Help:    "データストア操作のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brandhub_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		subscriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brandhub_subscription_events_total",
			Help: "購読・購読解除・再購読のイベント数",
		}, []string{"event"}),
		postsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brandhub_posts_imported_total",
			Help: "フィードからインポートされた記事の合計数",
		}),
		importFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brandhub_import_fail_total",
			Help: "フィードインポート失敗の合計数",
		}, []string{"reason"}),
		backups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brandhub_backups_total",
			Help: "スナップショット作成の実行数",
		}, []string{"result"}),
		backupsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brandhub_backups_pruned_total",
			Help: "保持期間切れで削除されたスナップショット数",
		}),
	}

	reg.MustRegister(
		c.storeOps,
		c.storeFallback,
		c.storeLatency,
		c.httpStatus,
		c.subscriptions,
		c.postsImported,
		c.importFail,
		c.backups,
		c.backupsPruned,
	)

	return c
}

// RecordStoreOperation はデータストア操作の結果を記録する。
func (c *Collector) RecordStoreOperation(backend, operation string, err error) {
	c.storeOps.WithLabelValues(backend, operation, resultLabel(err)).Inc()
}

// RecordStoreFallback はJSONバックエンドへのフォールバックを記録する。
func (c *Collector) RecordStoreFallback(operation string) {
	c.storeFallback.WithLabelValues(operation).Inc()
}

// RecordStoreLatency はデータストア操作のレイテンシを記録する。
func (c *Collector) RecordStoreLatency(backend string, duration time.Duration) {
	c.storeLatency.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSubscriptionEvent は購読関連のイベントを記録する。
func (c *Collector) RecordSubscriptionEvent(event string) {
	c.subscriptions.WithLabelValues(event).Inc()
}

// RecordPostsImported はインポートされた記事数を記録する。
func (c *Collector) RecordPostsImported(count int) {
	c.postsImported.Add(float64(count))
}

// RecordImportFailure はインポート失敗を記録する。
func (c *Collector) RecordImportFailure(reason string) {
	c.importFail.WithLabelValues(reason).Inc()
}

// RecordBackup はスナップショットの作成結果と削除件数を記録する。
func (c *Collector) RecordBackup(err error, pruned int) {
	c.backups.WithLabelValues(resultLabel(err)).Inc()
	c.backupsPruned.Add(float64(pruned))
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
