package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders placed",
	}, []string{"fulfillment"})

	OrdersRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_rejected_total",
		Help: "Total number of checkout attempts rejected",
	}, []string{"reason"})

	OrdersCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_completed_total",
		Help: "Total number of orders completed with a verified delivery code",
	})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	VerificationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "delivery_verification_failures_total",
		Help: "Total number of delivery code mismatches",
	})

	CashbackDebitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cashback_debited_total",
		Help: "Total number of cashback debits applied at checkout",
	})

	CashbackCreditedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cashback_credited_total",
		Help: "Total number of cashback credits on completed orders",
	})

	CashbackRestoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cashback_restored_total",
		Help: "Total number of cashback restorations on cancelled orders",
	})

	CheckoutLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_latency_seconds",
		Help:    "Latency of order placement",
		Buckets: prometheus.DefBuckets,
	})

	MessagesPostedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messages_posted_total",
		Help: "Total number of support messages posted",
	}, []string{"sender"})

	NotificationsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_published_total",
		Help: "Total number of notifications fanned out to subscribers",
	}, []string{"event_type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
