// Package metrics provides Prometheus metrics collection for ledgerdesk.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for ledgerdesk.
type Collector struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Webhook metrics
	WebhookEvents    *prometheus.CounterVec
	WebhookFailures  *prometheus.CounterVec
	ReconcileChanges *prometheus.CounterVec

	// Partner metrics
	PartnerCalls     *prometheus.CounterVec
	PartnerCacheHits *prometheus.CounterVec
	PartnerThrottled prometheus.Counter
	PartnerCacheSize prometheus.Gauge

	// Notification metrics
	NotifyDeliveries *prometheus.CounterVec
}

// New creates a new metrics collector with all metrics registered.
func New() *Collector {
	return &Collector{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ledgerdesk",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ledgerdesk",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),

		WebhookEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ledgerdesk",
				Name:      "webhook_events_total",
				Help:      "Inbound payment provider webhook events by type and result",
			},
			[]string{"event", "result"},
		),
		WebhookFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ledgerdesk",
				Name:      "webhook_failures_total",
				Help:      "Webhook events that could not be processed",
			},
			[]string{"reason"},
		),
		ReconcileChanges: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ledgerdesk",
				Name:      "reconcile_status_changes_total",
				Help:      "Local status transitions applied by the reconciler",
			},
			[]string{"entity", "status"},
		),

		PartnerCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ledgerdesk",
				Name:      "partner_calls_total",
				Help:      "Outbound partner API calls by result",
			},
			[]string{"result"},
		),
		PartnerCacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ledgerdesk",
				Name:      "partner_cache_requests_total",
				Help:      "Partner cache lookups by outcome",
			},
			[]string{"outcome"},
		),
		PartnerThrottled: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "ledgerdesk",
				Name:      "partner_throttled_total",
				Help:      "Partner calls delayed or refused by the rate limiter",
			},
		),
		PartnerCacheSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ledgerdesk",
				Name:      "partner_cache_entries",
				Help:      "Current number of entries in the partner cache",
			},
		),

		NotifyDeliveries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ledgerdesk",
				Name:      "crm_deliveries_total",
				Help:      "Outbound CRM notification deliveries by status",
			},
			[]string{"status"},
		),
	}
}
