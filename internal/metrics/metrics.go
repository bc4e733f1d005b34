// Package metrics holds the Prometheus collectors for poolwatch.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"poolwatch/internal/provider"
)

const namespace = "poolwatch"

// ── Provider fetch metrics ─────────────────────────────────────────────

var (
	FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fetch",
		Name:      "total",
		Help:      "Total number of account fetches per provider and outcome.",
	}, []string{"provider", "status"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "fetch",
		Name:      "duration_seconds",
		Help:      "Duration of account fetches per provider in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30},
	}, []string{"provider"})
)

// ── Hash rate gauges ───────────────────────────────────────────────────

var (
	AccountHashrate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "account",
		Name:      "hashrate_ph",
		Help:      "Last hash rate per account in PH/s, by window.",
	}, []string{"group", "account", "window"})

	GroupHashrate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "group",
		Name:      "hashrate_ph",
		Help:      "Last group total hash rate in PH/s, by window.",
	}, []string{"group", "window"})

	GroupFailed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "group",
		Name:      "failed_accounts",
		Help:      "Accounts that failed in the last run, per group.",
	}, []string{"group"})
)

// ── HTTP server metrics ────────────────────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// ObserveFetch records one account fetch. status is provider.Class of the
// fetch error.
func ObserveFetch(kind provider.Kind, status string, d time.Duration) {
	FetchTotal.WithLabelValues(string(kind), status).Inc()
	FetchDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

// SetAccount records the payload of a successful account fetch.
func SetAccount(group, account string, p provider.SharePayload) {
	AccountHashrate.WithLabelValues(group, account, "15m").Set(p.Shares15m)
	AccountHashrate.WithLabelValues(group, account, "1d").Set(p.Shares1d)
}

// SetGroup records a flushed group total.
func SetGroup(group string, p provider.SharePayload, failed int) {
	GroupHashrate.WithLabelValues(group, "15m").Set(p.Shares15m)
	GroupHashrate.WithLabelValues(group, "1d").Set(p.Shares1d)
	GroupFailed.WithLabelValues(group).Set(float64(failed))
}

// Push sends the default registry to a Prometheus Pushgateway.
func Push(ctx context.Context, url, job string) error {
	return push.New(url, job).
		Gatherer(prometheus.DefaultGatherer).
		PushContext(ctx)
}
