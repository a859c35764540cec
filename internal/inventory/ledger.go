package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// Apply returns the stock level that results from applying a movement to current.
// `in` adds, `out` is rejected when it exceeds current, `adjustment` sets the level.
func Apply(productID, current int64, typ MovementType, qty int64) (int64, error) {
	switch typ {
	case MovementIn:
		if qty <= 0 {
			return current, quantityError("must be positive for in movements")
		}
		return current + qty, nil
	case MovementOut:
		if qty <= 0 {
			return current, quantityError("must be positive for out movements")
		}
		if qty > current {
			return current, &shared.InsufficientStockError{ProductID: productID, Requested: qty, Available: current}
		}
		return current - qty, nil
	case MovementAdjustment:
		if qty < 0 {
			return current, quantityError("adjustment level must be >= 0")
		}
		return qty, nil
	default:
		return current, shared.Validation("type", fmt.Sprintf("unknown movement type %q", typ))
	}
}

func quantityError(msg string) error {
	return &shared.Error{Kind: shared.ErrValidation, Field: "quantity", Message: msg, Cause: ErrInvalidQuantity}
}

// Record applies spec to ledger in place and returns the movement to persist.
func Record(ledger *Ledger, spec MovementSpec, now time.Time) (Movement, error) {
	if strings.TrimSpace(spec.Reason) == "" {
		return Movement{}, shared.Validation("reason", "required")
	}
	next, err := Apply(ledger.ProductID, ledger.CurrentStock, spec.Type, spec.Quantity)
	if err != nil {
		return Movement{}, err
	}
	m := Movement{
		LedgerID:      ledger.ID,
		ProductID:     ledger.ProductID,
		Type:          spec.Type,
		Quantity:      spec.Quantity,
		PreviousStock: ledger.CurrentStock,
		NewStock:      next,
		Reason:        strings.TrimSpace(spec.Reason),
		Reference:     spec.Reference,
		PerformedBy:   spec.ActorID,
		CreatedAt:     now,
	}
	ledger.CurrentStock = next
	ledger.LastUpdated = now
	ledger.Status = ledger.DeriveStatus()
	return m, nil
}

// Replay recomputes the stock level from an ordered movement history starting at zero.
func Replay(movements []Movement) (int64, error) {
	var level int64
	for i, m := range movements {
		next, err := Apply(m.ProductID, level, m.Type, m.Quantity)
		if err != nil {
			return level, fmt.Errorf("replay movement %d: %w", i, err)
		}
		level = next
	}
	return level, nil
}

// DeriveStatus classifies the ledger. Checks run in a fixed order so a level at or
// below the reorder level reports low-stock before minimum-reached.
func (l Ledger) DeriveStatus() StockStatus {
	switch {
	case l.CurrentStock <= 0:
		return StatusOutOfStock
	case l.CurrentStock <= l.ReorderLevel:
		return StatusLowStock
	case l.CurrentStock <= l.MinimumStock:
		return StatusMinimumReached
	case l.CurrentStock >= l.MaximumStock:
		return StatusOverstock
	default:
		return StatusInStock
	}
}

// CrossedReorder reports whether stock moved from above the reorder level to at or below it.
func CrossedReorder(previous, current, reorderLevel int64) bool {
	return previous > reorderLevel && current <= reorderLevel
}

func validateThresholds(l Ledger) error {
	switch {
	case l.MinimumStock < 0:
		return shared.Validation("minimumStock", "must be >= 0")
	case l.ReorderLevel < 0:
		return shared.Validation("reorderLevel", "must be >= 0")
	case l.MaximumStock <= 0:
		return shared.Validation("maximumStock", "must be > 0")
	case l.MaximumStock < l.MinimumStock:
		return shared.Validation("maximumStock", "must be >= minimumStock")
	}
	return nil
}
