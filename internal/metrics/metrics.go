// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "recharge_store"

// Result label values.
const (
	ResultSuccess  = "success"
	ResultDeclined = "declined"
	ResultFailed   = "failed"
	ResultRetry    = "retry"
)

// ─── HTTP ───────────────────────────────────────────────────────────────────

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "Total HTTP requests by method, route and status code.",
}, []string{"method", "route", "status"})

var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by method and route.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route"})

var RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "rate_limited_total",
	Help:      "Requests rejected by the rate limiter, by rule.",
}, []string{"rule"})

// ─── Wallet ─────────────────────────────────────────────────────────────────

var Deposits = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "wallet",
	Name:      "deposits_total",
	Help:      "Deposit attempts by result.",
}, []string{"result"})

var Withdrawals = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "wallet",
	Name:      "withdrawals_total",
	Help:      "Withdrawal transitions by status.",
}, []string{"status"})

// ─── Orders ─────────────────────────────────────────────────────────────────

var OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "orders",
	Name:      "created_total",
	Help:      "Orders placed.",
})

var Payments = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "orders",
	Name:      "payments_total",
	Help:      "Order payment attempts by method kind and result.",
}, []string{"method", "result"})

var Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "orders",
	Name:      "deliveries_total",
	Help:      "Delivery attempts by result.",
}, []string{"result"})

var Refunds = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "orders",
	Name:      "refunds_total",
	Help:      "Orders refunded to the wallet.",
})

// ─── Notifications ──────────────────────────────────────────────────────────

var NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "notifications",
	Name:      "created_total",
	Help:      "Notifications appended, by type.",
}, []string{"type"})

var NotificationsSwept = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "notifications",
	Name:      "swept_total",
	Help:      "Notifications removed by the retention sweep.",
})

var StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "notifications",
	Name:      "stream_clients",
	Help:      "Connected realtime notification clients.",
})

// PaymentMethodLabel collapses free-form payment methods into a bounded label set.
func PaymentMethodLabel(method string) string {
	if method == "wallet" {
		return "wallet"
	}
	return "gateway"
}
