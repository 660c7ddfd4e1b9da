// Package metrics provides Prometheus metrics for the SFTP MCP server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	connectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sftp_mcp_connects_total",
			Help: "Total connection attempts by result",
		},
		[]string{"result"},
	)

	loginFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sftp_mcp_login_fallbacks_total",
			Help: "Total logins retried with the fallback password",
		},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sftp_mcp_active_sessions",
			Help: "Number of registered SFTP sessions",
		},
	)

	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sftp_mcp_operations_total",
			Help: "Total filesystem operations",
		},
		[]string{"operation", "status"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sftp_mcp_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	listedEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sftp_mcp_listed_entries_total",
			Help: "Total file records produced by directory listings",
		},
	)

	bytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sftp_mcp_bytes_transferred_total",
			Help: "Total bytes read from or written to the server",
		},
		[]string{"direction"},
	)

	policyDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sftp_mcp_policy_denials_total",
			Help: "Total requests rejected by the access policy",
		},
		[]string{"reason"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordConnect records the outcome of a connection attempt.
func RecordConnect(result string) {
	connectsTotal.WithLabelValues(result).Inc()
}

// RecordLoginFallback records a login retried with the fallback credential.
func RecordLoginFallback() {
	loginFallbacksTotal.Inc()
}

// SetActiveSessions sets the number of registered sessions.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// RecordOperation records a filesystem operation.
func RecordOperation(op string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	operationsTotal.WithLabelValues(op, status).Inc()
	operationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordListedEntries records the number of records returned by a listing.
func RecordListedEntries(n int) {
	listedEntriesTotal.Add(float64(n))
}

// RecordBytes records transferred bytes; direction is "read" or "write".
func RecordBytes(direction string, n int64) {
	bytesTransferred.WithLabelValues(direction).Add(float64(n))
}

// RecordPolicyDenial records a request rejected by the access policy.
func RecordPolicyDenial(reason string) {
	policyDenialsTotal.WithLabelValues(reason).Inc()
}
