package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetLedger(ctx context.Context, id int64) (Ledger, error)
	GetLedgerByProduct(ctx context.Context, productID int64) (Ledger, error)
	ListLedgers(ctx context.Context, filter ListFilter) ([]Ledger, int, error)
	ListLowStock(ctx context.Context) ([]Ledger, error)
	ListMovements(ctx context.Context, ledgerID int64, page, limit int) ([]Movement, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates inventory operations.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	integration IntegrationHandler
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service. audit and integration may be nil.
func NewService(repo RepositoryPort, audit AuditPort, integration IntegrationHandler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, integration: integration, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Post applies spec to a ledger already locked by tx and persists the movement.
// It is shared by manual movements and invoice settlement.
func Post(ctx context.Context, tx TxRepository, ledger Ledger, spec MovementSpec, now time.Time) (Ledger, Movement, error) {
	movement, err := Record(&ledger, spec, now)
	if err != nil {
		return Ledger{}, Movement{}, err
	}
	stored, err := tx.InsertMovement(ctx, movement)
	if err != nil {
		return Ledger{}, Movement{}, err
	}
	updated, err := tx.UpdateLedger(ctx, ledger)
	if err != nil {
		return Ledger{}, Movement{}, err
	}
	return updated, stored, nil
}

// CreateLedger registers a product with the stock ledger. A positive initial stock
// is recorded as an `in` movement so the history replays to the current level.
func (s *Service) CreateLedger(ctx context.Context, input CreateLedgerInput) (Ledger, error) {
	if input.ProductID <= 0 {
		return Ledger{}, shared.Validation("productId", "required")
	}
	if input.InitialStock < 0 {
		return Ledger{}, quantityError("initial stock must be >= 0")
	}
	ledger := Ledger{
		ProductID:    input.ProductID,
		MinimumStock: valueOr(input.MinimumStock, DefaultMinimumStock),
		ReorderLevel: valueOr(input.ReorderLevel, DefaultReorderLevel),
		MaximumStock: valueOr(input.MaximumStock, DefaultMaximumStock),
		Location:     DefaultLocation,
		IsActive:     true,
	}
	if input.Location != nil {
		ledger.Location = mergeLocation(ledger.Location, *input.Location)
	}
	if err := validateThresholds(ledger); err != nil {
		return Ledger{}, err
	}

	var created Ledger
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		stored, err := tx.InsertLedger(ctx, ledger)
		if err != nil {
			return err
		}
		if input.InitialStock > 0 {
			stored, _, err = Post(ctx, tx, stored, MovementSpec{
				Type:     MovementIn,
				Quantity: input.InitialStock,
				Reason:   "Initial stock",
				ActorID:  input.ActorID,
			}, s.now().UTC())
			if err != nil {
				return err
			}
		}
		created = stored
		return nil
	})
	if err != nil {
		return Ledger{}, err
	}
	s.record(ctx, input.ActorID, "inventory:ledger_created", created.ID, map[string]any{
		"product_id":    created.ProductID,
		"initial_stock": input.InitialStock,
	})
	return created, nil
}

// UpdateLedger changes thresholds, location or the active flag.
func (s *Service) UpdateLedger(ctx context.Context, id int64, input UpdateLedgerInput) (Ledger, error) {
	var updated Ledger
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ledger, err := tx.LockLedger(ctx, id)
		if err != nil {
			return err
		}
		ledger.MinimumStock = valueOr(input.MinimumStock, ledger.MinimumStock)
		ledger.ReorderLevel = valueOr(input.ReorderLevel, ledger.ReorderLevel)
		ledger.MaximumStock = valueOr(input.MaximumStock, ledger.MaximumStock)
		if input.Location != nil {
			ledger.Location = mergeLocation(ledger.Location, *input.Location)
		}
		if input.IsActive != nil {
			ledger.IsActive = *input.IsActive
		}
		if err := validateThresholds(ledger); err != nil {
			return err
		}
		updated, err = tx.UpdateLedger(ctx, ledger)
		return err
	})
	if err != nil {
		return Ledger{}, err
	}
	s.record(ctx, input.ActorID, "inventory:ledger_updated", id, map[string]any{
		"minimum_stock": updated.MinimumStock,
		"reorder_level": updated.ReorderLevel,
		"maximum_stock": updated.MaximumStock,
	})
	return updated, nil
}

// AddMovement posts a manual movement against a ledger.
func (s *Service) AddMovement(ctx context.Context, input MovementInput) (Ledger, Movement, error) {
	if !input.Type.Valid() {
		return Ledger{}, Movement{}, shared.Validation("type", "must be one of in, out, adjustment")
	}
	var (
		ledger   Ledger
		movement Movement
		previous int64
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.LockLedger(ctx, input.LedgerID)
		if err != nil {
			return err
		}
		previous = locked.CurrentStock
		ledger, movement, err = Post(ctx, tx, locked, MovementSpec{
			Type:      input.Type,
			Quantity:  input.Quantity,
			Reason:    input.Reason,
			Reference: input.Reference,
			ActorID:   input.ActorID,
		}, s.now().UTC())
		return err
	})
	if err != nil {
		return Ledger{}, Movement{}, err
	}
	s.record(ctx, input.ActorID, "inventory:"+string(input.Type), ledger.ID, map[string]any{
		"product_id": ledger.ProductID,
		"quantity":   input.Quantity,
		"new_stock":  movement.NewStock,
		"reason":     movement.Reason,
	})
	s.NotifyLowStock(ctx, previous, ledger)
	return ledger, movement, nil
}

// NotifyLowStock hands a low-stock event to the integration handler when the ledger
// just crossed its reorder level. Delivery failures are logged, never returned.
func (s *Service) NotifyLowStock(ctx context.Context, previous int64, ledger Ledger) {
	if s.integration == nil {
		return
	}
	evt, ok := LowStockEventFor(previous, ledger, s.now().UTC())
	if !ok {
		return
	}
	if err := s.integration.HandleLowStock(ctx, evt); err != nil {
		s.logger.Warn("low stock notification failed",
			slog.Int64("ledger_id", ledger.ID), slog.Int64("product_id", ledger.ProductID), slog.Any("error", err))
	}
}

// GetLedger returns a ledger by id.
func (s *Service) GetLedger(ctx context.Context, id int64) (Ledger, error) {
	return s.repo.GetLedger(ctx, id)
}

// GetLedgerByProduct returns the ledger of a product.
func (s *Service) GetLedgerByProduct(ctx context.Context, productID int64) (Ledger, error) {
	return s.repo.GetLedgerByProduct(ctx, productID)
}

// ListLedgers returns active ledgers, optionally filtered by derived status.
func (s *Service) ListLedgers(ctx context.Context, filter ListFilter) ([]Ledger, shared.Pagination, error) {
	switch filter.Status {
	case "", StatusOutOfStock, StatusLowStock, StatusMinimumReached, StatusOverstock, StatusInStock:
	default:
		return nil, shared.Pagination{}, shared.Validation("status", fmt.Sprintf("unknown stock status %q", filter.Status))
	}
	ledgers, total, err := s.repo.ListLedgers(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return ledgers, shared.NewPagination(filter.Page, filter.Limit, total), nil
}

// ListMovements returns the movement history of a ledger, newest first.
func (s *Service) ListMovements(ctx context.Context, ledgerID int64, page, limit int) ([]Movement, shared.Pagination, error) {
	if _, err := s.repo.GetLedger(ctx, ledgerID); err != nil {
		return nil, shared.Pagination{}, err
	}
	movements, total, err := s.repo.ListMovements(ctx, ledgerID, page, limit)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return movements, shared.NewPagination(page, limit, total), nil
}

// LowStockAlerts lists ledgers at or below their reorder level. Urgency is high once
// the minimum stock is reached.
func (s *Service) LowStockAlerts(ctx context.Context) ([]LowStockAlert, error) {
	ledgers, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return nil, err
	}
	alerts := make([]LowStockAlert, 0, len(ledgers))
	for _, l := range ledgers {
		urgency := "medium"
		if l.CurrentStock <= l.MinimumStock {
			urgency = "high"
		}
		alerts = append(alerts, LowStockAlert{Ledger: l, Urgency: urgency})
	}
	return alerts, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, ledgerID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "stock_ledger",
		EntityID: strconv.FormatInt(ledgerID, 10),
		Meta:     meta,
		At:       s.now().UTC(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func valueOr(v *int64, fallback int64) int64 {
	if v == nil {
		return fallback
	}
	return *v
}

func mergeLocation(base, patch Location) Location {
	if patch.Warehouse != "" {
		base.Warehouse = patch.Warehouse
	}
	if patch.Section != "" {
		base.Section = patch.Section
	}
	if patch.Shelf != "" {
		base.Shelf = patch.Shelf
	}
	return base
}
