package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/odyssey-retail/internal/inventory"
)

// Metrics collects the Prometheus metrics of the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	invoices        *prometheus.CounterVec
	stockRejections prometheus.Counter
	partialCommits  *prometheus.CounterVec
	lowStock        prometheus.Counter
}

// NewMetrics builds a registry with the HTTP and billing collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retail_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "retail_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	invoices := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retail_invoices_created_total",
		Help: "Invoices created by payment method.",
	}, []string{"payment_method"})
	rejections := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retail_stock_rejections_total",
		Help: "Invoice settlements rejected for insufficient stock.",
	})
	partial := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retail_partial_commits_total",
		Help: "Invoice writes whose commit outcome was unknown, by stage.",
	}, []string{"stage"})
	lowStock := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retail_low_stock_alerts_total",
		Help: "Ledgers that crossed their reorder level.",
	})
	registry.MustRegister(requests, duration, invoices, rejections, partial, lowStock,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		invoices:        invoices,
		stockRejections: rejections,
		partialCommits:  partial,
		lowStock:        lowStock,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records count and latency of every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for collectors owned by other packages.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// Gatherer exposes the registry to tests and push jobs.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.DefaultGatherer
	}
	return m.registry
}

// InvoiceCreated counts a committed invoice.
func (m *Metrics) InvoiceCreated(method string) {
	if m == nil {
		return
	}
	m.invoices.WithLabelValues(method).Inc()
}

// StockRejected counts a settlement refused for insufficient stock.
func (m *Metrics) StockRejected() {
	if m == nil {
		return
	}
	m.stockRejections.Inc()
}

// PartialCommit counts a write left for reconciliation.
func (m *Metrics) PartialCommit(stage string) {
	if m == nil {
		return
	}
	m.partialCommits.WithLabelValues(stage).Inc()
}

// CountLowStock wraps next so every low-stock event is counted before delivery.
func (m *Metrics) CountLowStock(next inventory.IntegrationHandler) inventory.IntegrationHandler {
	return lowStockCounter{metrics: m, next: next}
}

type lowStockCounter struct {
	metrics *Metrics
	next    inventory.IntegrationHandler
}

func (c lowStockCounter) HandleLowStock(ctx context.Context, evt inventory.LowStockEvent) error {
	if c.metrics != nil {
		c.metrics.lowStock.Inc()
	}
	if c.next == nil {
		return nil
	}
	return c.next.HandleLowStock(ctx, evt)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
