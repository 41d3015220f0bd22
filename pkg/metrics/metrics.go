package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Request duration buckets in milliseconds, skewed towards webhook-sized
// latencies plus a long tail for the PayPal re-query path.
var durationBuckets = []float64{
	25, 50, 75, 100, 150, 200, 300, 400, 500,
	750, 1000, 1500, 2000, 3000, 5000, 7500, 10000, 15000, 30000,
}

// Metrics owns the Prometheus collectors for the billing service and an
// optional standalone metrics listener.
type Metrics struct {
	reqCnt     *prometheus.CounterVec
	reqDur     *prometheus.HistogramVec
	webhookCnt *prometheus.CounterVec

	registry *prometheus.Registry
	log      *zap.SugaredLogger

	// URLLabelFn controls cardinality of the "url" label; defaults to the
	// route template so path params do not explode the series count.
	URLLabelFn func(c *gin.Context) string
}

type Options struct {
	Subsystem  string
	Logger     *zap.SugaredLogger
	URLLabelFn func(c *gin.Context) string
}

func New(opts Options) *Metrics {
	subsystem := opts.Subsystem
	if subsystem == "" {
		subsystem = "billing"
	}

	m := &Metrics{
		registry:   prometheus.NewRegistry(),
		log:        opts.Logger,
		URLLabelFn: opts.URLLabelFn,
	}
	if m.URLLabelFn == nil {
		m.URLLabelFn = func(c *gin.Context) string {
			if fp := c.FullPath(); fp != "" {
				return fp
			}
			return c.Request.URL.Path
		}
	}

	m.reqCnt = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "requests_total",
		Help:      "How many HTTP requests processed, partitioned by status code, method and URL.",
	}, []string{"code", "method", "url"})
	m.reqDur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: subsystem,
		Name:      "request_duration_ms",
		Help:      "The HTTP request latencies in milliseconds.",
		Buckets:   durationBuckets,
	}, []string{"code", "method", "url"})
	m.webhookCnt = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "payment_webhooks_total",
		Help:      "Payment webhook deliveries, partitioned by provider and outcome.",
	}, []string{"provider", "outcome"})

	m.registry.MustRegister(m.reqCnt, m.reqDur, m.webhookCnt)
	return m
}

// ObserveWebhook records one webhook delivery outcome
// (completed, failed, replay, rejected, error).
func (m *Metrics) ObserveWebhook(provider, outcome string) {
	m.webhookCnt.WithLabelValues(provider, outcome).Inc()
}

// Middleware instruments request count and latency on the wrapped engine.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		code := strconv.Itoa(c.Writer.Status())
		url := m.URLLabelFn(c)
		m.reqCnt.WithLabelValues(code, c.Request.Method, url).Inc()
		m.reqDur.WithLabelValues(code, c.Request.Method, url).
			Observe(float64(time.Since(start).Milliseconds()))
	}
}

// Serve exposes /metrics on its own listener so scrapes stay out of the API
// access log. Runs until the listener fails.
func (m *Metrics) Serve(addr string) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
		if err := http.ListenAndServe(addr, mux); err != nil {
			if m.log != nil {
				m.log.Errorw("metrics listener stopped", "addr", addr, "err", err)
			}
		}
	}()
}
