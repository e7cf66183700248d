// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 日報生成の結果ラベル。
const (
	ReportOutcomeReady  = "ready"
	ReportOutcomeEmpty  = "empty"
	ReportOutcomeFailed = "failed"
	ReportOutcomeStale  = "stale"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ストア・ワークスペース・ミドルウェアから利用する。
type MetricsCollector interface {
	RecordEntryCreated(category string)
	RecordEntryDeleted()
	RecordWriteFailure(op string)
	RecordAuthFailure()
	RecordReportOutcome(outcome string)
	RecordReportLatency(duration time.Duration)
	SubscriptionOpened()
	SubscriptionClosed()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	entriesCreated      *prometheus.CounterVec
	entriesDeleted      prometheus.Counter
	writeFail           *prometheus.CounterVec
	authFail            prometheus.Counter
	reportOutcome       *prometheus.CounterVec
	reportLatency       prometheus.Histogram
	activeSubscriptions prometheus.Gauge
	httpStatus          *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		entriesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifelog_entries_created_total",
			Help: "カテゴリ別の記録作成数",
		}, []string{"category"}),
		entriesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lifelog_entries_deleted_total",
			Help: "記録削除の合計数",
		}),
		writeFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifelog_write_fail_total",
			Help: "操作別の書き込み失敗数",
		}, []string{"op"}),
		authFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lifelog_auth_fail_total",
			Help: "匿名サインイン失敗の合計数",
		}),
		reportOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifelog_report_total",
			Help: "結果別の日報生成数",
		}, []string{"outcome"}),
		reportLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lifelog_report_latency_seconds",
			Help:    "日報生成のレイテンシ（秒）",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		activeSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lifelog_active_subscriptions",
			Help: "購読中のスナップショットストリーム数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifelog_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.entriesCreated,
		c.entriesDeleted,
		c.writeFail,
		c.authFail,
		c.reportOutcome,
		c.reportLatency,
		c.activeSubscriptions,
		c.httpStatus,
	)

	return c
}

// RecordEntryCreated は記録作成を記録する。
func (c *Collector) RecordEntryCreated(category string) {
	c.entriesCreated.WithLabelValues(category).Inc()
}

// RecordEntryDeleted は記録削除を記録する。
func (c *Collector) RecordEntryDeleted() {
	c.entriesDeleted.Inc()
}

// RecordWriteFailure は書き込み失敗を記録する。opはcreateまたはdelete。
func (c *Collector) RecordWriteFailure(op string) {
	c.writeFail.WithLabelValues(op).Inc()
}

// RecordAuthFailure はサインイン失敗を記録する。
func (c *Collector) RecordAuthFailure() {
	c.authFail.Inc()
}

// RecordReportOutcome は日報生成の結果を記録する。
func (c *Collector) RecordReportOutcome(outcome string) {
	c.reportOutcome.WithLabelValues(outcome).Inc()
}

// RecordReportLatency は日報生成のレイテンシを記録する。
func (c *Collector) RecordReportLatency(duration time.Duration) {
	c.reportLatency.Observe(duration.Seconds())
}

// SubscriptionOpened は購読開始を記録する。
func (c *Collector) SubscriptionOpened() {
	c.activeSubscriptions.Inc()
}

// SubscriptionClosed は購読終了を記録する。
func (c *Collector) SubscriptionClosed() {
	c.activeSubscriptions.Dec()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordEntryCreated(string)         {}
func (Nop) RecordEntryDeleted()               {}
func (Nop) RecordWriteFailure(string)         {}
func (Nop) RecordAuthFailure()                {}
func (Nop) RecordReportOutcome(string)        {}
func (Nop) RecordReportLatency(time.Duration) {}
func (Nop) SubscriptionOpened()               {}
func (Nop) SubscriptionClosed()               {}
func (Nop) RecordHTTPStatus(int)              {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
