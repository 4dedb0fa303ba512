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
// サービス層とHTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordBlogCreated()
	RecordBlogPublished()
	RecordBlogView()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	blogsCreated   prometheus.Counter
	blogsPublished prometheus.Counter
	blogViews      prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quill_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quill_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		blogsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quill_blogs_created_total",
			Help: "作成されたブログの合計数",
		}),
		blogsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quill_blogs_published_total",
			Help: "公開状態に遷移したブログの合計数",
		}),
		blogViews: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quill_blog_views_total",
			Help: "記録された閲覧数の合計",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.blogsCreated,
		c.blogsPublished,
		c.blogViews,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordBlogCreated はブログ作成を記録する。
func (c *Collector) RecordBlogCreated() {
	c.blogsCreated.Inc()
}

// RecordBlogPublished はブログの公開遷移を記録する。
func (c *Collector) RecordBlogPublished() {
	c.blogsPublished.Inc()
}

// RecordBlogView は閲覧数の加算を記録する。
func (c *Collector) RecordBlogView() {
	c.blogViews.Inc()
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
