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
// サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordProductCreated()
	RecordProductFinished(outcome string)
	RecordShoppingItemAutoAdded()
	RecordAIRequest(operation string, success bool, duration time.Duration)
	RecordEventPublishFailure(eventType string)
	RecordHTTPStatus(statusCode int)
	RecordBoughtItemsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	productsCreated  prometheus.Counter
	productsFinished *prometheus.CounterVec
	itemsAutoAdded   prometheus.Counter
	aiRequests       *prometheus.CounterVec
	aiLatency        *prometheus.HistogramVec
	publishFail      *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	itemsPurged      prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		productsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kitchenstock_products_created_total",
			Help: "登録された商品の合計数",
		}),
		productsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitchenstock_products_finished_total",
			Help: "使い切りになった商品の合計数（結果別）",
		}, []string{"outcome"}),
		itemsAutoAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kitchenstock_shopping_items_auto_added_total",
			Help: "使い切りに伴い自動追加された買い物アイテムの合計数",
		}),
		aiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitchenstock_ai_requests_total",
			Help: "AI呼び出しの合計数（操作・結果別）",
		}, []string{"operation", "result"}),
		aiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kitchenstock_ai_latency_seconds",
			Help:    "AI呼び出しのレイテンシ（秒）",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"operation"}),
		publishFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitchenstock_event_publish_fail_total",
			Help: "イベント配信失敗の合計数",
		}, []string{"event_type"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitchenstock_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		itemsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kitchenstock_bought_items_purged_total",
			Help: "保持期間を過ぎて削除された購入済みアイテムの合計数",
		}),
	}

	reg.MustRegister(
		c.productsCreated,
		c.productsFinished,
		c.itemsAutoAdded,
		c.aiRequests,
		c.aiLatency,
		c.publishFail,
		c.httpStatus,
		c.itemsPurged,
	)

	return c
}

// RecordProductCreated は商品登録を記録する。
func (c *Collector) RecordProductCreated() {
	c.productsCreated.Inc()
}

// RecordProductFinished は商品の使い切りを記録する。結果が未指定の場合は"unknown"。
func (c *Collector) RecordProductFinished(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	c.productsFinished.WithLabelValues(outcome).Inc()
}

// RecordShoppingItemAutoAdded は買い物アイテムの自動追加を記録する。
func (c *Collector) RecordShoppingItemAutoAdded() {
	c.itemsAutoAdded.Inc()
}

// RecordAIRequest はAI呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordAIRequest(operation string, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.aiRequests.WithLabelValues(operation, result).Inc()
	c.aiLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordEventPublishFailure はイベント配信失敗を記録する。
func (c *Collector) RecordEventPublishFailure(eventType string) {
	c.publishFail.WithLabelValues(eventType).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordBoughtItemsPurged は削除した購入済みアイテム数を記録する。
func (c *Collector) RecordBoughtItemsPurged(count int64) {
	c.itemsPurged.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordProductCreated() {}
func (Nop) RecordProductFinished(string) {}
func (Nop) RecordShoppingItemAutoAdded() {}
func (Nop) RecordAIRequest(string, bool, time.Duration) {}
func (Nop) RecordEventPublishFailure(string) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordBoughtItemsPurged(int64) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
