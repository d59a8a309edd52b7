package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TradesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lotwise_trades_processed_total",
		Help: "Total number of trades processed by the lot engine",
	}, []string{"side", "status"})

	TradesProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lotwise_trade_processing_duration_seconds",
		Help:    "Duration of trade processing inside the lot engine",
		Buckets: prometheus.DefBuckets,
	}, []string{"side"})

	LotsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lotwise_lots_closed_total",
		Help: "Total number of lot closings produced by sell matching",
	}, []string{"kind"})

	SharesMatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lotwise_shares_matched_total",
		Help: "Total quantity matched against open lots",
	})

	RealizedPnL = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lotwise_realized_pnl",
		Help:    "Realized P&L per matched sell",
		Buckets: []float64{-100000, -10000, -1000, -100, 0, 100, 1000, 10000, 100000},
	})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lotwise_cache_hits_total",
		Help: "Total number of cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lotwise_cache_misses_total",
		Help: "Total number of cache misses",
	})

	CacheInvalidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lotwise_cache_invalidation_failures_total",
		Help: "Total number of failed cache invalidations by step",
	}, []string{"step"})

	DatabaseQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lotwise_database_queries_total",
		Help: "Total number of database queries",
	}, []string{"query_type", "status"})

	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lotwise_database_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query_type"})

	StreamMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lotwise_stream_messages_total",
		Help: "Total number of trade stream messages by outcome",
	}, []string{"outcome"})

	StreamPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lotwise_stream_published_total",
		Help: "Total number of trade events published",
	}, []string{"status"})
)

func RecordCacheHit() {
	CacheHits.Inc()
}

func RecordCacheMiss() {
	CacheMisses.Inc()
}

func RecordCacheInvalidationFailure(step string) {
	CacheInvalidationFailures.WithLabelValues(step).Inc()
}

func RecordTradeProcessed(side, status string) {
	TradesProcessed.WithLabelValues(side, status).Inc()
}

func RecordLotClosed(fully bool, quantity int64) {
	kind := "partial"
	if fully {
		kind = "full"
	}
	LotsClosed.WithLabelValues(kind).Inc()
	SharesMatched.Add(float64(quantity))
}

func RecordRealizedPnL(value float64) {
	RealizedPnL.Observe(value)
}

func RecordStreamMessage(outcome string) {
	StreamMessages.WithLabelValues(outcome).Inc()
}

func RecordPublish(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StreamPublished.WithLabelValues(status).Inc()
}

type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{
		start: time.Now(),
	}
}

func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(time.Since(t.start).Seconds())
}

func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
