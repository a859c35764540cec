package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-retail/internal/inventory"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesBillingCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.InvoiceCreated("upi")
	metrics.InvoiceCreated("upi")
	metrics.StockRejected()
	metrics.PartialCommit("create")

	body := scrape(t, metrics)
	for _, want := range []string{
		`retail_invoices_created_total{payment_method="upi"} 2`,
		`retail_stock_rejections_total 1`,
		`retail_partial_commits_total{stage="create"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics, got: %s", want, body)
		}
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/api/invoices/{id}")

	req := httptest.NewRequest(http.MethodGet, "/api/invoices/7", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, `retail_http_requests_total{code="418",route="/api/invoices/{id}"} 1`) {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, `retail_http_request_duration_seconds_bucket{route="/api/invoices/{id}"`) {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

type failingHandler struct{ calls int }

func (f *failingHandler) HandleLowStock(context.Context, inventory.LowStockEvent) error {
	f.calls++
	return errors.New("queue down")
}

func TestCountLowStockWrapsHandler(t *testing.T) {
	metrics := NewMetrics()
	next := &failingHandler{}
	wrapped := metrics.CountLowStock(next)

	if err := wrapped.HandleLowStock(context.Background(), inventory.LowStockEvent{ProductID: 3}); err == nil {
		t.Fatal("expected delivery error to propagate")
	}
	if next.calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", next.calls)
	}
	if err := metrics.CountLowStock(nil).HandleLowStock(context.Background(), inventory.LowStockEvent{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body := scrape(t, metrics); !strings.Contains(body, "retail_low_stock_alerts_total 2") {
		t.Fatalf("expected two low stock events, got: %s", body)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.InvoiceCreated("cash")
	metrics.StockRejected()
	metrics.PartialCommit("cancel")

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from nil metrics, got %d", rr.Code)
	}
}
