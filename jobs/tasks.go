package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-retail/internal/inventory"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInventoryLowStock reports a ledger that crossed its reorder level.
	TaskInventoryLowStock = "inventory:low_stock"
	// TaskBillingReconcile resolves reconciliation markers left by unknown commits.
	TaskBillingReconcile = "billing:reconcile"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
	// ReconcileSchedule runs the sweep every five minutes.
	ReconcileSchedule = "*/5 * * * *"
	// IdempotencyCleanupSchedule runs the purge nightly.
	IdempotencyCleanupSchedule = "20 3 * * *"
)

// LowStockPayload describes a ledger at or below its reorder level.
type LowStockPayload struct {
	LedgerID     int64     `json:"ledgerId"`
	ProductID    int64     `json:"productId"`
	CurrentStock int64     `json:"currentStock"`
	ReorderLevel int64     `json:"reorderLevel"`
	MinimumStock int64     `json:"minimumStock"`
	At           time.Time `json:"at"`
}

// NewLowStockTask constructs an Asynq task for evt.
func NewLowStockTask(evt inventory.LowStockEvent) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockPayload{
		LedgerID:     evt.LedgerID,
		ProductID:    evt.ProductID,
		CurrentStock: evt.CurrentStock,
		ReorderLevel: evt.ReorderLevel,
		MinimumStock: evt.MinimumStock,
		At:           evt.At,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryLowStock, body, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// ReconcilePayload carries scheduling metadata.
type ReconcilePayload struct {
	Trigger string `json:"trigger"`
}

// NewReconcileTask constructs the sweep task. trigger records who asked for it.
func NewReconcileTask(trigger string) (*asynq.Task, error) {
	if trigger == "" {
		trigger = "cron"
	}
	body, err := json.Marshal(ReconcilePayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBillingReconcile, body, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyCleanupTask constructs the purge task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}
