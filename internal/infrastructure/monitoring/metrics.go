package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/turtacn/tenantjwt/internal/domain/service"
)

const metricsNamespace = "tenantjwt"

var _ service.Metrics = (*Metrics)(nil)

// Metrics manages the Prometheus metrics and implements service.Metrics.
type Metrics struct {
	TokenIssueRequests   *prometheus.CounterVec
	TokenIssueLatency    *prometheus.HistogramVec
	TokenVerifyRequests  *prometheus.CounterVec
	TokenVerifyLatency   *prometheus.HistogramVec
	TokenRefreshRequests *prometheus.CounterVec
	CacheAccess          *prometheus.CounterVec
	StoreReads           *prometheus.CounterVec
	StoreReadLatency     *prometheus.HistogramVec
	BlacklistChanges     *prometheus.CounterVec
	HTTPRequests         *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them through promhttp.Handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		TokenIssueRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "token_issue_requests_total",
				Help:      "Total number of token issue requests.",
			},
			[]string{"client_id", "result", "error_kind"},
		),
		TokenIssueLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "token_issue_latency_seconds",
				Help:      "Latency of token issue requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"client_id"},
		),
		TokenVerifyRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "token_verify_requests_total",
				Help:      "Total number of token verifications by outcome.",
			},
			[]string{"client_id", "outcome"},
		),
		TokenVerifyLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "token_verify_latency_seconds",
				Help:      "Latency of token verifications.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"client_id"},
		),
		TokenRefreshRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "token_refresh_requests_total",
				Help:      "Total number of refresh requests.",
			},
			[]string{"client_id", "result", "error_kind"},
		),
		CacheAccess: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cache_access_total",
				Help:      "Cache lookups by cache and result.",
			},
			[]string{"cache", "result"},
		),
		StoreReads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "store_reads_total",
				Help:      "Reads against backing stores caused by cache misses.",
			},
			[]string{"store", "result"},
		),
		StoreReadLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "store_read_latency_seconds",
				Help:      "Latency of backing store reads.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"store"},
		),
		BlacklistChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "blacklist_changes_total",
				Help:      "Blacklist mutations.",
			},
			[]string{"client_id", "action"},
		),
	}
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordTokenIssue records metrics for a token issue event.
func (m *Metrics) RecordTokenIssue(clientID string, success bool, duration time.Duration, errorKind string) {
	m.TokenIssueRequests.WithLabelValues(clientID, result(success), errorKind).Inc()
	m.TokenIssueLatency.WithLabelValues(clientID).Observe(duration.Seconds())
}

// RecordTokenVerify records a verification outcome.
func (m *Metrics) RecordTokenVerify(clientID, outcome string, duration time.Duration) {
	m.TokenVerifyRequests.WithLabelValues(clientID, outcome).Inc()
	m.TokenVerifyLatency.WithLabelValues(clientID).Observe(duration.Seconds())
}

// RecordTokenRefresh records a refresh attempt.
func (m *Metrics) RecordTokenRefresh(clientID string, success bool, errorKind string) {
	m.TokenRefreshRequests.WithLabelValues(clientID, result(success), errorKind).Inc()
}

// RecordCacheAccess records a cache hit or miss.
func (m *Metrics) RecordCacheAccess(cacheType string, hit bool) {
	r := "miss"
	if hit {
		r = "hit"
	}
	m.CacheAccess.WithLabelValues(cacheType, r).Inc()
}

// RecordStoreRead records a backing store read.
func (m *Metrics) RecordStoreRead(store string, duration time.Duration, err error) {
	m.StoreReads.WithLabelValues(store, result(err == nil)).Inc()
	m.StoreReadLatency.WithLabelValues(store).Observe(duration.Seconds())
}

// RecordBlacklistChange records a block or unblock.
func (m *Metrics) RecordBlacklistChange(clientID string, blocked bool) {
	action := "unblock"
	if blocked {
		action = "block"
	}
	m.BlacklistChanges.WithLabelValues(clientID, action).Inc()
}
