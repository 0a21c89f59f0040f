// Package metrics provides Prometheus instrumentation for the escrow ledger.
package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "escrow_ledger"

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// EscrowTransitionsTotal counts committed escrow transitions by target status.
	EscrowTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escrow_transitions_total",
			Help:      "Committed escrow transitions by target status.",
		},
		[]string{"to"},
	)

	// MovementsAppliedTotal counts wallet movements by reason code.
	MovementsAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_movements_total",
			Help:      "Wallet movements written by reason code.",
		},
		[]string{"reason"},
	)

	// MovementBatchDuration observes how long a batch holds its account locks.
	MovementBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "movement_batch_duration_seconds",
			Help:      "Time spent applying one movement batch.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
	)

	// ConflictRetriesTotal counts transactions retried after a concurrency conflict.
	ConflictRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_retries_total",
			Help:      "Transactions retried after a serialization or version conflict.",
		},
		[]string{"operation"},
	)

	// WebhookOutcomesTotal counts payment confirmation deliveries by outcome and transport.
	WebhookOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_confirmations_total",
			Help:      "Payment confirmation deliveries by outcome and source.",
		},
		[]string{"outcome", "source"},
	)

	// SweepResultsTotal counts per-item sweep results.
	SweepResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_items_total",
			Help:      "Items handled by background sweeps by sweep and result.",
		},
		[]string{"sweep", "result"},
	)

	// OutboxPublishedTotal counts outbox publish attempts by result.
	OutboxPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_publish_total",
			Help:      "Outbox publish attempts by result.",
		},
		[]string{"result"},
	)

	// PanicsRecoveredTotal counts handler panics turned into 500 responses, by route.
	PanicsRecoveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_panics_recovered_total",
			Help:      "Handler panics recovered by the gateway, by route pattern.",
		},
		[]string{"path"},
	)

	// DBTotalConns tracks connections held by the pool.
	DBTotalConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "db_total_connections",
		Help: "Number of connections in the PostgreSQL pool.",
	})
	// DBIdleConns tracks idle pool connections.
	DBIdleConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "db_idle_connections",
		Help: "Number of idle connections in the PostgreSQL pool.",
	})
	// DBAcquiredConns tracks connections currently in use.
	DBAcquiredConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "db_acquired_connections",
		Help: "Number of connections currently acquired from the PostgreSQL pool.",
	})
	// DBEmptyAcquireCount tracks acquires that had to wait for a connection.
	DBEmptyAcquireCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "db_empty_acquire_total",
		Help: "Cumulative acquires that waited because the pool was empty.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		EscrowTransitionsTotal,
		MovementsAppliedTotal,
		MovementBatchDuration,
		ConflictRetriesTotal,
		WebhookOutcomesTotal,
		SweepResultsTotal,
		OutboxPublishedTotal,
		PanicsRecoveredTotal,
		DBTotalConns,
		DBIdleConns,
		DBAcquiredConns,
		DBEmptyAcquireCount,
		GoroutineCount,
	)
}

// StartPoolStatsCollector samples pool statistics until ctx is cancelled
func StartPoolStatsCollector(ctx context.Context, pool *pgxpool.Pool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := pool.Stat()
			DBTotalConns.Set(float64(stats.TotalConns()))
			DBIdleConns.Set(float64(stats.IdleConns()))
			DBAcquiredConns.Set(float64(stats.AcquiredConns()))
			DBEmptyAcquireCount.Set(float64(stats.EmptyAcquireCount()))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
