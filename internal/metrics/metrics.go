// Package metrics holds the Prometheus collectors for the workflow paths
// that can partially fail and therefore need visibility in production.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	SalePartialFailures  prometheus.Counter
	TargetRecalculations prometheus.Counter
	ServiceIncomeCreated prometheus.Counter
	StockShortfalls      prometheus.Counter

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: registry,
		SalePartialFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sale_partial_failures_total",
			Help: "Sales persisted with at least one failed stock decrement.",
		}),
		TargetRecalculations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "target_recalculations_total",
			Help: "Completed recalculation passes over active sales targets.",
		}),
		ServiceIncomeCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "service_income_created_total",
			Help: "Income transactions created by service ticket completion.",
		}),
		StockShortfalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_shortfalls_total",
			Help: "Sale attempts rejected because stock was insufficient.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status class.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	registry.MustRegister(
		m.SalePartialFailures,
		m.TargetRecalculations,
		m.ServiceIncomeCreated,
		m.StockShortfalls,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
