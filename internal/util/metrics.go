package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersCreatedByHour = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_by_hour_total",
		Help: "Orders created, labelled by hour of day",
	}, []string{"hour"})

	OrdersPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_paid_total",
		Help: "Total number of orders successfully paid",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of rejected order operations",
	}, []string{"reason"})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	OrdersDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_deleted_total",
		Help: "Total number of soft-deleted orders",
	})

	OrdersMarkedLateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_marked_late_total",
		Help: "Total number of orders promoted to LATE by the aging sweep",
	})

	StockDebitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_debit_latency_seconds",
		Help:    "Latency of the stock debit phase of order creation",
		Buckets: prometheus.DefBuckets,
	})

	ProductsBelowMinimum = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "products_below_minimum",
		Help: "Active products whose stock is below the minimum threshold at the last sweep",
	})

	SweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_runs_total",
		Help: "Background sweep executions",
	}, []string{"sweep", "outcome"})

	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_requests_total",
		Help: "Calls to external integrations",
	}, []string{"service", "outcome"})

	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_request_latency_seconds",
		Help:    "Latency of external integration calls including retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"service"})

	RateCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_rate_cache_lookups_total",
		Help: "Exchange rate cache lookups",
	}, []string{"result"})

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
