package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	vaultMetricsOnce sync.Once
	vaultRegistry    *VaultMetrics

	oracleMetricsOnce sync.Once
	oracleRegistry    *OracleFeedMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record HTTP
// API activity per module.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "riftvault",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "riftvault",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total API errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "riftvault",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "riftvault",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a request. The status code should be the
// HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// VaultMetrics tracks executed vault operations and vault health.
type VaultMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	conflicts  *prometheus.CounterVec
	fees       *prometheus.CounterVec
	backing    *prometheus.GaugeVec
	rebalances *prometheus.CounterVec
}

// Vault returns the singleton vault metrics registry.
func Vault() *VaultMetrics {
	vaultMetricsOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "riftvault",
				Subsystem: "vault",
				Name:      "operations_total",
				Help:      "Vault operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "riftvault",
				Subsystem: "vault",
				Name:      "operation_duration_seconds",
				Help:      "Latency of vault operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "riftvault",
				Subsystem: "vault",
				Name:      "commit_conflicts_total",
				Help:      "Optimistic commit conflicts that forced a re-execution.",
			}, []string{"operation"}),
			fees: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "riftvault",
				Subsystem: "vault",
				Name:      "fees_total",
				Help:      "Fee units routed by the distribution cascade, by destination.",
			}, []string{"vault", "destination"}),
			backing: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "riftvault",
				Subsystem: "vault",
				Name:      "backing_ratio_bps",
				Help:      "Current backing ratio of each vault in basis points.",
			}, []string{"vault"}),
			rebalances: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "riftvault",
				Subsystem: "vault",
				Name:      "rebalances_total",
				Help:      "Applied rebalances segmented by trigger.",
			}, []string{"vault", "trigger"}),
		}
		prometheus.MustRegister(
			vaultRegistry.operations,
			vaultRegistry.latency,
			vaultRegistry.conflicts,
			vaultRegistry.fees,
			vaultRegistry.backing,
			vaultRegistry.rebalances,
		)
	})
	return vaultRegistry
}

// ObserveOperation records one executed operation.
func (m *VaultMetrics) ObserveOperation(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(label(operation), outcome).Inc()
	m.latency.WithLabelValues(label(operation)).Observe(d.Seconds())
}

// RecordConflict counts a commit conflict for operation.
func (m *VaultMetrics) RecordConflict(operation string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(label(operation)).Inc()
}

// RecordFee adds amount to the destination bucket of vault.
func (m *VaultMetrics) RecordFee(vault, destination string, amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.fees.WithLabelValues(label(vault), label(destination)).Add(float64(amount))
}

// SetBackingRatio publishes the backing ratio of vault.
func (m *VaultMetrics) SetBackingRatio(vault string, bps uint64) {
	if m == nil {
		return
	}
	m.backing.WithLabelValues(label(vault)).Set(float64(bps))
}

// RecordRebalance counts an applied rebalance.
func (m *VaultMetrics) RecordRebalance(vault, trigger string) {
	if m == nil {
		return
	}
	m.rebalances.WithLabelValues(label(vault), label(trigger)).Inc()
}

// OracleFeedMetrics captures the health of polled price feeds.
type OracleFeedMetrics struct {
	samples   *prometheus.CounterVec
	freshness *prometheus.GaugeVec
}

// OracleFeed returns the singleton price feed metrics registry.
func OracleFeed() *OracleFeedMetrics {
	oracleMetricsOnce.Do(func() {
		oracleRegistry = &OracleFeedMetrics{
			samples: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "riftvault",
				Subsystem: "oracle",
				Name:      "samples_total",
				Help:      "Polled price samples segmented by source and outcome.",
			}, []string{"source", "outcome"}),
			freshness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "riftvault",
				Subsystem: "oracle",
				Name:      "sample_age_seconds",
				Help:      "Age of the latest accepted sample per source.",
			}, []string{"source"}),
		}
		prometheus.MustRegister(oracleRegistry.samples, oracleRegistry.freshness)
	})
	return oracleRegistry
}

// RecordSample counts a polled sample.
func (m *OracleFeedMetrics) RecordSample(source, outcome string) {
	if m == nil {
		return
	}
	m.samples.WithLabelValues(label(source), label(outcome)).Inc()
}

// RecordFreshness publishes the age of the latest accepted sample.
func (m *OracleFeedMetrics) RecordFreshness(source string, age time.Duration) {
	if m == nil {
		return
	}
	m.freshness.WithLabelValues(label(source)).Set(age.Seconds())
}

func label(value string) string {
	normalized := strings.TrimSpace(value)
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
