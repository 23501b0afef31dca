package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smmstore_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smmstore_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	OrdersCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smmstore_orders_created_total",
			Help: "Total number of orders created",
		},
		[]string{"kind", "payment_method"},
	)

	OrderTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smmstore_order_transitions_total",
			Help: "Total number of order status transitions",
		},
		[]string{"from", "to", "trigger"},
	)

	StatusConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smmstore_order_status_conflicts_total",
			Help: "Transitions rejected because the order status changed underneath",
		},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smmstore_emails_sent_total",
			Help: "Total number of emails sent",
		},
		[]string{"type", "status"},
	)

	EmailQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smmstore_email_queue_length",
			Help: "Current length of email queue",
		},
	)

	WalletAdjustmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smmstore_wallet_adjustments_total",
			Help: "Total number of manual wallet adjustments",
		},
		[]string{"operation"},
	)

	WalletCreditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smmstore_wallet_credits_total",
			Help: "Total number of wallet ledger credits",
		},
		[]string{"reference"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordOrderCreated(kind, paymentMethod string) {
	OrdersCreatedTotal.WithLabelValues(kind, paymentMethod).Inc()
}

func RecordTransition(from, to, trigger string) {
	OrderTransitionsTotal.WithLabelValues(from, to, trigger).Inc()
}

func RecordStatusConflict() {
	StatusConflictsTotal.Inc()
}

func RecordEmail(emailType, status string) {
	EmailsSentTotal.WithLabelValues(emailType, status).Inc()
}

func RecordWalletAdjustment(operation string) {
	WalletAdjustmentsTotal.WithLabelValues(operation).Inc()
}

func RecordWalletCredit(reference string) {
	WalletCreditsTotal.WithLabelValues(reference).Inc()
}
