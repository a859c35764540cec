package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-retail/internal/jobs"
)

// LowStockJob handles low-stock alerts raised by settlements and manual movements.
type LowStockJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockJob wires dependencies for the low-stock handler.
func NewLowStockJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockJob {
	return &LowStockJob{Logger: logger, Metrics: metrics}
}

// Handle processes TaskInventoryLowStock tasks.
func (j *LowStockJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("low stock: handler not configured")
	}
	var payload LowStockPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.LedgerID == 0 || payload.ProductID == 0 {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskInventoryLowStock)
	severity := "reorder"
	if payload.CurrentStock <= payload.MinimumStock {
		severity = "below_minimum"
	}
	j.logger().WarnContext(ctx, "stock at reorder level",
		slog.Int64("ledger_id", payload.LedgerID),
		slog.Int64("product_id", payload.ProductID),
		slog.Int64("current_stock", payload.CurrentStock),
		slog.Int64("reorder_level", payload.ReorderLevel),
		slog.String("severity", severity))
	return tracker.End(nil)
}

func (j *LowStockJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *LowStockJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
