package inventory

import (
	"context"
	"time"
)

// LowStockEvent is published after a committed movement leaves a ledger at or below its reorder level.
type LowStockEvent struct {
	LedgerID     int64     `json:"ledgerId"`
	ProductID    int64     `json:"productId"`
	CurrentStock int64     `json:"currentStock"`
	ReorderLevel int64     `json:"reorderLevel"`
	MinimumStock int64     `json:"minimumStock"`
	At           time.Time `json:"at"`
}

// IntegrationHandler receives stock events once the owning transaction has committed.
type IntegrationHandler interface {
	HandleLowStock(ctx context.Context, evt LowStockEvent) error
}

// LowStockEventFor builds the event for l when previous was above the reorder level.
func LowStockEventFor(previous int64, l Ledger, at time.Time) (LowStockEvent, bool) {
	if !CrossedReorder(previous, l.CurrentStock, l.ReorderLevel) {
		return LowStockEvent{}, false
	}
	return LowStockEvent{
		LedgerID:     l.ID,
		ProductID:    l.ProductID,
		CurrentStock: l.CurrentStock,
		ReorderLevel: l.ReorderLevel,
		MinimumStock: l.MinimumStock,
		At:           at,
	}, true
}
