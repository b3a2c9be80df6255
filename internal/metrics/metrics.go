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
// 会話処理やゲートウェイクライアントから利用する。
type MetricsCollector interface {
	RecordUpdate(eventType string)
	RecordTransition(from, to string)
	RecordOrderCreated()
	RecordFinalizeFailure(code string)
	RecordNotifyFailure(channel string)
	RecordGatewayStatus(statusCode int)
	RecordGatewayLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	updates        *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	ordersCreated  prometheus.Counter
	finalizeFail   *prometheus.CounterVec
	notifyFail     *prometheus.CounterVec
	gatewayStatus  *prometheus.CounterVec
	gatewayLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shoppybot_updates_total",
			Help: "受信イベントの種類別の合計数",
		}, []string{"event"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shoppybot_checkout_transitions_total",
			Help: "チェックアウトの状態遷移の合計数",
		}, []string{"from", "to"}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shoppybot_orders_created_total",
			Help: "作成された注文の合計数",
		}),
		finalizeFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shoppybot_finalize_fail_total",
			Help: "注文確定失敗のエラーコード別の合計数",
		}, []string{"code"}),
		notifyFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shoppybot_notify_fail_total",
			Help: "チャンネル通知失敗の合計数",
		}, []string{"channel"}),
		gatewayStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shoppybot_gateway_status_total",
			Help: "チャットゲートウェイのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		gatewayLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shoppybot_gateway_latency_seconds",
			Help:    "チャットゲートウェイ呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.updates,
		c.transitions,
		c.ordersCreated,
		c.finalizeFail,
		c.notifyFail,
		c.gatewayStatus,
		c.gatewayLatency,
	)

	return c
}

// RecordUpdate は受信イベントを記録する。
func (c *Collector) RecordUpdate(eventType string) {
	c.updates.WithLabelValues(eventType).Inc()
}

// RecordTransition はチェックアウトの状態遷移を記録する。
func (c *Collector) RecordTransition(from, to string) {
	c.transitions.WithLabelValues(from, to).Inc()
}

// RecordOrderCreated は注文の作成を記録する。
func (c *Collector) RecordOrderCreated() {
	c.ordersCreated.Inc()
}

// RecordFinalizeFailure は注文確定の失敗を記録する。
func (c *Collector) RecordFinalizeFailure(code string) {
	if code == "" {
		code = "unknown"
	}
	c.finalizeFail.WithLabelValues(code).Inc()
}

// RecordNotifyFailure はチャンネル通知の失敗を記録する。
func (c *Collector) RecordNotifyFailure(channel string) {
	c.notifyFail.WithLabelValues(channel).Inc()
}

// RecordGatewayStatus はゲートウェイのHTTPステータスコードを記録する。
func (c *Collector) RecordGatewayStatus(statusCode int) {
	c.gatewayStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordGatewayLatency はゲートウェイ呼び出しのレイテンシを記録する。
func (c *Collector) RecordGatewayLatency(duration time.Duration) {
	c.gatewayLatency.Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordUpdate(string)                {}
func (Nop) RecordTransition(string, string)    {}
func (Nop) RecordOrderCreated()                {}
func (Nop) RecordFinalizeFailure(string)       {}
func (Nop) RecordNotifyFailure(string)         {}
func (Nop) RecordGatewayStatus(int)            {}
func (Nop) RecordGatewayLatency(time.Duration) {}

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
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
