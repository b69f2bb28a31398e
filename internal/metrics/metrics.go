// Package metrics registers the Prometheus collectors of the API and the
// daily notifier.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsledger_http_requests_total",
			Help: "HTTP requests served by the API",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opsledger_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	NotifierRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsledger_notifier_runs_total",
			Help: "Daily notifier runs by outcome",
		},
		[]string{"outcome"},
	)

	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsledger_notifications_dispatched_total",
			Help: "Aggregated notifications sent by channel and status",
		},
		[]string{"channel", "status"},
	)

	RenewalsNotified = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "opsledger_renewals_notified_total",
			Help: "Subscription renewals included in notifications",
		},
	)

	PurchaseCostTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsledger_purchase_cost_transitions_total",
			Help: "Purchase cost validations and un-validations",
		},
		[]string{"action"},
	)

	PolicyAcknowledgements = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "opsledger_policy_acknowledgements_total",
			Help: "New policy acknowledgements recorded",
		},
	)

	AttachmentBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "opsledger_attachment_bytes_total",
			Help: "Bytes written to the attachment store",
		},
	)
)

// Middleware records request count and latency. The route pattern is used
// as the path label so ids do not explode cardinality.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Route().Path
		if path == "" {
			path = "unmatched"
		}
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		httpRequestsTotal.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}
