// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 取り込み元ラベル
const (
	SourceFeed   = "feed"
	SourceUpload = "upload"
)

// MetricsCollector はメトリクス収集のインターフェース。
// フィードクライアントと取り込みサービスから利用する。
type MetricsCollector interface {
	RecordFeedFetchSuccess()
	RecordFeedFetchFailure(reason string)
	RecordFeedHTTPStatus(statusCode int)
	RecordFeedFetchLatency(duration time.Duration)
	RecordIngest(source string, stats IngestStats)
	RecordIngestFailure(source string)
	RecordLookupsInserted(kind string, count int)
}

// IngestStats は取り込み1回分のレコード件数の内訳。
type IngestStats struct {
	Received int
	Invalid  int
	Skipped  int
	Inserted int
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	feedFetchSuccess prometheus.Counter
	feedFetchFail    *prometheus.CounterVec
	feedHTTPStatus   *prometheus.CounterVec
	feedLatency      prometheus.Histogram
	ingestRecords    *prometheus.CounterVec
	ingestRuns       *prometheus.CounterVec
	lookupsInserted  *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		feedFetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "writeuptracker_feed_fetch_success_total",
			Help: "writeupフィード取得成功の合計数",
		}),
		feedFetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "writeuptracker_feed_fetch_fail_total",
			Help: "writeupフィード取得失敗の合計数（理由別）",
		}, []string{"reason"}),
		feedHTTPStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "writeuptracker_feed_http_status_total",
			Help: "writeupフィードのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		feedLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "writeuptracker_feed_fetch_latency_seconds",
			Help:    "writeupフィード取得のレイテンシ（秒）",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ingestRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "writeuptracker_ingest_records_total",
			Help: "取り込み対象レコード数（取り込み元・結果別）",
		}, []string{"source", "outcome"}),
		ingestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "writeuptracker_ingest_runs_total",
			Help: "取り込み実行回数（取り込み元・結果別）",
		}, []string{"source", "result"}),
		lookupsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "writeuptracker_lookups_inserted_total",
			Help: "新規作成されたルックアップ行数（種別別）",
		}, []string{"kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "writeuptracker_http_requests_total",
			Help: "HTTPリクエスト数（メソッド・ルート・ステータス別）",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "writeuptracker_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.feedFetchSuccess,
		c.feedFetchFail,
		c.feedHTTPStatus,
		c.feedLatency,
		c.ingestRecords,
		c.ingestRuns,
		c.lookupsInserted,
		c.httpRequests,
		c.httpDuration,
	)

	return c
}

// RecordFeedFetchSuccess はフィード取得成功を記録する。
func (c *Collector) RecordFeedFetchSuccess() {
	c.feedFetchSuccess.Inc()
}

// RecordFeedFetchFailure はフィード取得失敗を記録する。
func (c *Collector) RecordFeedFetchFailure(reason string) {
	c.feedFetchFail.WithLabelValues(reason).Inc()
}

// RecordFeedHTTPStatus はフィードのHTTPステータスコードを記録する。
func (c *Collector) RecordFeedHTTPStatus(statusCode int) {
	c.feedHTTPStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFeedFetchLatency はフィード取得のレイテンシを記録する。
func (c *Collector) RecordFeedFetchLatency(duration time.Duration) {
	c.feedLatency.Observe(duration.Seconds())
}

// RecordIngest は成功した取り込み1回分の内訳を記録する。
func (c *Collector) RecordIngest(source string, stats IngestStats) {
	c.ingestRuns.WithLabelValues(source, "success").Inc()
	c.ingestRecords.WithLabelValues(source, "received").Add(float64(stats.Received))
	c.ingestRecords.WithLabelValues(source, "invalid").Add(float64(stats.Invalid))
	c.ingestRecords.WithLabelValues(source, "skipped").Add(float64(stats.Skipped))
	c.ingestRecords.WithLabelValues(source, "inserted").Add(float64(stats.Inserted))
}

// RecordIngestFailure は失敗（ロールバック）した取り込みを記録する。
func (c *Collector) RecordIngestFailure(source string) {
	c.ingestRuns.WithLabelValues(source, "failure").Inc()
}

// RecordLookupsInserted は新規作成されたルックアップ行数を記録する。
func (c *Collector) RecordLookupsInserted(kind string, count int) {
	c.lookupsInserted.WithLabelValues(kind).Add(float64(count))
}

// RecordHTTPRequest はHTTPリクエスト1件を記録する。
// routeにはURLパスではなくルートパターンを渡すこと（ラベルの爆発を防ぐ）。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// NopCollector は何も記録しないMetricsCollector。テストやCLIで使用する。
type NopCollector struct{}

func (NopCollector) RecordFeedFetchSuccess()              {}
func (NopCollector) RecordFeedFetchFailure(string)        {}
func (NopCollector) RecordFeedHTTPStatus(int)             {}
func (NopCollector) RecordFeedFetchLatency(time.Duration) {}
func (NopCollector) RecordIngest(string, IngestStats)     {}
func (NopCollector) RecordIngestFailure(string)           {}
func (NopCollector) RecordLookupsInserted(string, int)    {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// 収集中のエラーはスクレイプを失敗させず、取得できたメトリクスだけを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
