package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-retail/internal/inventory"
	"github.com/odyssey-erp/odyssey-retail/internal/platform/db"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
	"github.com/odyssey-erp/odyssey-retail/internal/tally"
)

const (
	idempotencyModule     = "billing"
	defaultNumberAttempts = 5
	markerWriteTimeout    = 5 * time.Second
)

// ServiceConfig groups engine settings.
type ServiceConfig struct {
	Location       *time.Location
	NumberAttempts int
}

// Dependencies are the optional collaborators of the engine.
type Dependencies struct {
	Idempotency IdempotencyPort
	Audit       AuditPort
	Stock       StockNotifier
	Metrics     Recorder
	Logger      *slog.Logger
}

// Service settles invoices against stock and the daily tally.
type Service struct {
	store    Store
	numbers  Allocator
	attempts int
	loc      *time.Location
	idem     IdempotencyPort
	audit    AuditPort
	stock    StockNotifier
	metrics  Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service.
func NewService(store Store, cfg ServiceConfig, deps Dependencies) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	attempts := cfg.NumberAttempts
	if attempts <= 0 {
		attempts = defaultNumberAttempts
	}
	s := &Service{
		store:    store,
		numbers:  NewAllocator(loc),
		attempts: attempts,
		loc:      loc,
		idem:     deps.Idempotency,
		audit:    deps.Audit,
		stock:    deps.Stock,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		now:      time.Now,
	}
	if s.metrics == nil {
		s.metrics = noopRecorder{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// stockTouch remembers ledger levels before and after a sale for low-stock notification.
type stockTouch struct {
	before map[int64]int64
	after  map[int64]inventory.Ledger
}

func (t stockTouch) notify(ctx context.Context, n StockNotifier) {
	if n == nil {
		return
	}
	for productID, ledger := range t.after {
		n.NotifyLowStock(ctx, t.before[productID], ledger)
	}
}

type ledgerSet map[int64]inventory.Ledger

func (ls ledgerSet) available(productID int64) int64 {
	l, ok := ls[productID]
	if !ok || !l.IsActive {
		return 0
	}
	return l.CurrentStock
}

// CreateInvoice settles and stores a new invoice. Unless it is a draft, stock is
// withdrawn and the amount is folded into today's tally in the same transaction.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInput) (Invoice, error) {
	due, err := s.normalizeCreate(&input)
	if err != nil {
		return Invoice{}, err
	}

	var idemKey string
	if input.IdempotencyKey != "" && s.idem != nil {
		idemKey = shared.InvoiceIdempotencyKey(input.ActorID, input.IdempotencyKey)
		if err := s.idem.CheckAndInsert(ctx, idemKey, idempotencyModule); err != nil {
			return Invoice{}, err
		}
	}

	inv, touch, err := s.createWithRetry(ctx, input, due)
	if err != nil {
		if errors.Is(err, shared.ErrInsufficientStock) {
			s.metrics.StockRejected()
		}
		// The outcome of a partial commit is unknown, so the key stays claimed.
		if idemKey != "" && !errors.Is(err, shared.ErrPartialCommit) {
			if delErr := s.idem.Delete(ctx, idemKey); delErr != nil {
				s.logger.Warn("release idempotency key failed", slog.String("key", idemKey), slog.Any("error", delErr))
			}
		}
		return Invoice{}, err
	}

	s.metrics.InvoiceCreated(string(inv.PaymentMethod))
	touch.notify(ctx, s.stock)
	s.record(ctx, input.ActorID, "billing:invoice_created", inv, map[string]any{
		"grand_total":    inv.GrandTotal.StringFixed(2),
		"payment_method": inv.PaymentMethod,
		"status":         inv.Status,
	})
	s.logger.Info("invoice created",
		slog.String("number", inv.Number),
		slog.String("status", string(inv.Status)),
		slog.String("grand_total", inv.GrandTotal.StringFixed(2)),
		slog.Int("lines", len(inv.Lines)))
	return inv, nil
}

func (s *Service) createWithRetry(ctx context.Context, input CreateInput, due *time.Time) (Invoice, stockTouch, error) {
	for attempt := 1; attempt <= s.attempts; attempt++ {
		inv, touch, number, attemptID, err := s.createOnce(ctx, input, due)
		switch {
		case err == nil:
			return inv, touch, nil
		case errors.Is(err, ErrNumberConflict):
			s.logger.Debug("invoice number taken, retrying", slog.String("number", number), slog.Int("attempt", attempt))
			continue
		case errors.Is(err, db.ErrCommitFailed):
			return Invoice{}, stockTouch{}, s.partialCommit(ctx, number, attemptID, StageCreate, err)
		default:
			return Invoice{}, stockTouch{}, db.StaleVersion(err)
		}
	}
	return Invoice{}, stockTouch{}, shared.Conflict("invoice",
		fmt.Sprintf("no unique invoice number after %d attempts", s.attempts), ErrNumberConflict)
}

// createOnce runs one numbering attempt. Every attempt carries its own id so a
// lost commit cannot be confused with a later invoice that reused the number.
func (s *Service) createOnce(ctx context.Context, input CreateInput, due *time.Time) (Invoice, stockTouch, string, uuid.UUID, error) {
	now := s.now().UTC()
	attemptID := uuid.New()
	day := tally.DayOf(now, s.loc)
	year := s.numbers.Year(now)
	finalize := input.Status != StatusDraft

	var (
		inv    Invoice
		touch  stockTouch
		number string
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var (
			ledgers ledgerSet
			levels  StockLevels
		)
		if finalize {
			var err error
			if ledgers, err = lockLedgers(ctx, tx, inputProductIDs(input.Lines)); err != nil {
				return err
			}
			levels = ledgers.available
		}
		settlement, err := Settle(ctx, input.Lines, tx, levels)
		if err != nil {
			return err
		}
		count, err := tx.CountInvoicesInYear(ctx, year)
		if err != nil {
			return err
		}
		number = s.numbers.Candidate(count, now)

		draft := Invoice{
			Number:        number,
			NumberYear:    year,
			AttemptID:     attemptID,
			Customer:      input.Customer,
			PaymentMethod: input.PaymentMethod,
			PaymentStatus: PaymentPending,
			Status:        input.Status,
			DueDate:       due,
			Notes:         input.Notes,
			Tags:          input.Tags,
			CreatedBy:     input.ActorID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		settlement.Apply(&draft)
		if finalize {
			draft.TallyDate = &day
		}
		stored, err := tx.InsertInvoice(ctx, draft)
		if err != nil {
			return err
		}
		if finalize {
			if touch, err = s.applySale(ctx, tx, stored, ledgers, input.ActorID, now); err != nil {
				return err
			}
		}
		inv = stored
		return nil
	})
	return inv, touch, number, attemptID, err
}

// FinalizeInvoice moves a draft to sent, withdrawing stock and folding the amount into today's tally.
func (s *Service) FinalizeInvoice(ctx context.Context, id, actorID int64) (Invoice, error) {
	now := s.now().UTC()
	day := tally.DayOf(now, s.loc)
	var (
		inv    Invoice
		touch  stockTouch
		number string
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.LockInvoice(ctx, id)
		if err != nil {
			return err
		}
		number = current.Number
		if current.Status != StatusDraft {
			return shared.State("invoice", current.Number, fmt.Sprintf("cannot finalize a %s invoice", current.Status), nil)
		}
		ledgers, err := lockLedgers(ctx, tx, lineProductIDs(current.Lines))
		if err != nil {
			return err
		}
		if err := CheckStock(current.Lines, ledgers.available); err != nil {
			return err
		}
		current.Status = StatusSent
		current.TallyDate = &day
		current.UpdatedAt = now
		if touch, err = s.applySale(ctx, tx, current, ledgers, actorID, now); err != nil {
			return err
		}
		inv, err = tx.SaveInvoice(ctx, current)
		return err
	})
	if err != nil {
		return Invoice{}, s.classify(ctx, err, number, StageFinalize)
	}
	touch.notify(ctx, s.stock)
	s.record(ctx, actorID, "billing:invoice_finalized", inv, map[string]any{"grand_total": inv.GrandTotal.StringFixed(2)})
	return inv, nil
}

// applySale withdraws each line from its locked ledger and folds the invoice into
// the tally of inv.TallyDate.
func (s *Service) applySale(ctx context.Context, tx Tx, inv Invoice, ledgers ledgerSet, actorID int64, now time.Time) (stockTouch, error) {
	touch := stockTouch{before: make(map[int64]int64, len(ledgers)), after: make(map[int64]inventory.Ledger, len(ledgers))}
	for productID, l := range ledgers {
		touch.before[productID] = l.CurrentStock
	}
	for _, line := range inv.Lines {
		ledger, ok := ledgers[line.ProductID]
		if !ok {
			return stockTouch{}, &shared.InsufficientStockError{ProductID: line.ProductID, Requested: line.Quantity}
		}
		updated, _, err := inventory.Post(ctx, tx.Ledgers(), ledger, inventory.MovementSpec{
			Type:      inventory.MovementOut,
			Quantity:  line.Quantity,
			Reason:    "Invoice: " + inv.Number,
			Reference: inv.Number,
			ActorID:   actorID,
		}, now)
		if err != nil {
			return stockTouch{}, err
		}
		ledgers[line.ProductID] = updated
		touch.after[line.ProductID] = updated
	}
	t, err := tx.Tallies().LockTally(ctx, *inv.TallyDate)
	if err != nil {
		return stockTouch{}, err
	}
	if err := t.Fold(inv.ID, inv.PaymentMethod, inv.GrandTotal); err != nil {
		return stockTouch{}, err
	}
	if _, err := tx.Tallies().SaveTally(ctx, t); err != nil {
		return stockTouch{}, err
	}
	return touch, nil
}

// CancelInvoice cancels an invoice. Sent and overdue invoices get their stock back
// through `in` movements and their amount taken out of a still-open tally.
func (s *Service) CancelInvoice(ctx context.Context, id int64, reason string, actorID int64) (Invoice, error) {
	now := s.now().UTC()
	var (
		inv         Invoice
		number      string
		tallySealed bool
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.LockInvoice(ctx, id)
		if err != nil {
			return err
		}
		number = current.Number
		switch current.Status {
		case StatusPaid:
			return shared.State("invoice", current.Number, "paid invoices cannot be cancelled", ErrCannotCancelPaid)
		case StatusCancelled:
			return shared.State("invoice", current.Number, "invoice is already cancelled", nil)
		}
		if current.AffectsStock() {
			if err := s.restock(ctx, tx, current, actorID, now); err != nil {
				return err
			}
		}
		if current.Tallied() {
			t, ok, err := tx.Tallies().FindTallyForUpdate(ctx, *current.TallyDate)
			if err != nil {
				return err
			}
			switch {
			case ok && t.Closed:
				tallySealed = true
			case ok:
				if err := t.Unfold(current.ID, current.PaymentMethod, current.GrandTotal); err != nil {
					return err
				}
				if _, err := tx.Tallies().SaveTally(ctx, t); err != nil {
					return err
				}
			}
		}
		current.Status = StatusCancelled
		current.CancelledAt = &now
		current.CancelledBy = actorID
		current.CancelReason = strings.TrimSpace(reason)
		current.UpdatedAt = now
		inv, err = tx.SaveInvoice(ctx, current)
		return err
	})
	if err != nil {
		return Invoice{}, s.classify(ctx, err, number, StageCancel)
	}
	if tallySealed {
		s.logger.Info("cancelled invoice left in closed tally",
			slog.String("number", inv.Number), slog.String("tally_date", inv.TallyDate.Format(tally.DateLayout)))
	}
	s.record(ctx, actorID, "billing:invoice_cancelled", inv, map[string]any{"reason": inv.CancelReason})
	s.logger.Info("invoice cancelled", slog.String("number", inv.Number), slog.Int64("actor_id", actorID))
	return inv, nil
}

func (s *Service) restock(ctx context.Context, tx Tx, inv Invoice, actorID int64, now time.Time) error {
	ledgers, err := lockLedgers(ctx, tx, lineProductIDs(inv.Lines))
	if err != nil {
		return err
	}
	for _, line := range inv.Lines {
		ledger, ok := ledgers[line.ProductID]
		if !ok {
			return shared.NotFound("stock_ledger", fmt.Sprintf("product %d", line.ProductID), inventory.ErrLedgerNotFound)
		}
		updated, _, err := inventory.Post(ctx, tx.Ledgers(), ledger, inventory.MovementSpec{
			Type:      inventory.MovementIn,
			Quantity:  line.Quantity,
			Reason:    "Invoice cancelled: " + inv.Number,
			Reference: inv.Number,
			ActorID:   actorID,
		}, now)
		if err != nil {
			return err
		}
		ledgers[line.ProductID] = updated
	}
	return nil
}

// TransitionStatus moves an invoice along the status machine. Moving a draft to
// sent finalizes it and moving to cancelled cancels it.
func (s *Service) TransitionStatus(ctx context.Context, id int64, to InvoiceStatus, actorID int64) (Invoice, error) {
	if !to.Valid() {
		return Invoice{}, shared.Validation("status", fmt.Sprintf("unknown invoice status %q", to))
	}
	switch to {
	case StatusSent:
		return s.FinalizeInvoice(ctx, id, actorID)
	case StatusCancelled:
		return s.CancelInvoice(ctx, id, "", actorID)
	}
	now := s.now().UTC()
	var inv Invoice
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.LockInvoice(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(current.Status, to) {
			return shared.State("invoice", current.Number, fmt.Sprintf("cannot move from %s to %s", current.Status, to), nil)
		}
		current.Status = to
		if to == StatusPaid {
			current.PaymentStatus = PaymentPaid
		}
		current.UpdatedAt = now
		inv, err = tx.SaveInvoice(ctx, current)
		return err
	})
	if err != nil {
		return Invoice{}, db.StaleVersion(err)
	}
	s.record(ctx, actorID, "billing:invoice_status", inv, map[string]any{"status": to})
	return inv, nil
}

// UpdateInvoice patches an invoice. Notes change at any time before
// cancellation; everything else only while the invoice is a draft.
func (s *Service) UpdateInvoice(ctx context.Context, id int64, patch UpdateInput) (Invoice, error) {
	now := s.now().UTC()
	var inv Invoice
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.LockInvoice(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == StatusCancelled {
			return shared.State("invoice", current.Number, "cancelled invoices cannot be changed", nil)
		}
		structural := patch.Customer != nil || patch.Lines != nil || patch.PaymentMethod != nil ||
			patch.DueDate != nil || patch.Tags != nil
		if structural && current.Status != StatusDraft {
			return shared.State("invoice", current.Number, "only draft invoices can change customer, items, due date, payment method or tags", nil)
		}
		if patch.Customer != nil {
			customer := *patch.Customer
			customer.Name = strings.TrimSpace(customer.Name)
			if customer.Name == "" {
				return shared.Validation("customer.name", "required")
			}
			current.Customer = customer
		}
		if patch.Lines != nil {
			settlement, err := Settle(ctx, patch.Lines, tx, nil)
			if err != nil {
				return err
			}
			settlement.Apply(&current)
		}
		if patch.PaymentMethod != nil {
			if !patch.PaymentMethod.Valid() {
				return shared.Validation("paymentMethod", "unknown payment method")
			}
			current.PaymentMethod = *patch.PaymentMethod
		}
		if patch.DueDate != nil {
			if current.DueDate, err = parseDueDate(*patch.DueDate); err != nil {
				return err
			}
		}
		if patch.Notes != nil {
			if len(*patch.Notes) > 1000 {
				return shared.Validation("notes", "must be at most 1000 characters")
			}
			current.Notes = strings.TrimSpace(*patch.Notes)
		}
		if patch.Tags != nil {
			current.Tags = shared.NormalizeTags(patch.Tags)
		}
		current.UpdatedAt = now
		inv, err = tx.SaveInvoice(ctx, current)
		return err
	})
	if err != nil {
		return Invoice{}, db.StaleVersion(err)
	}
	s.record(ctx, patch.ActorID, "billing:invoice_updated", inv, nil)
	return inv, nil
}

// UpdatePayment changes the payment method or status. On a tallied invoice a method
// change moves the amount between the buckets of that day's tally.
func (s *Service) UpdatePayment(ctx context.Context, id int64, update PaymentUpdate) (Invoice, error) {
	if update.Method == nil && update.Status == nil {
		return Invoice{}, shared.Validation("body", "paymentMethod or paymentStatus is required")
	}
	if update.Method != nil && !update.Method.Valid() {
		return Invoice{}, shared.Validation("paymentMethod", "unknown payment method")
	}
	if update.Status != nil && !update.Status.Valid() {
		return Invoice{}, shared.Validation("paymentStatus", "unknown payment status")
	}
	now := s.now().UTC()
	var inv Invoice
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.LockInvoice(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == StatusCancelled {
			return shared.State("invoice", current.Number, "cancelled invoices cannot be changed", nil)
		}
		if update.Method != nil && *update.Method != current.PaymentMethod {
			if current.Tallied() {
				t, ok, err := tx.Tallies().FindTallyForUpdate(ctx, *current.TallyDate)
				if err != nil {
					return err
				}
				if ok {
					if err := t.MoveBucket(current.PaymentMethod, *update.Method, current.GrandTotal); err != nil {
						return err
					}
					if _, err := tx.Tallies().SaveTally(ctx, t); err != nil {
						return err
					}
				}
			}
			current.PaymentMethod = *update.Method
		}
		if update.Status != nil {
			current.PaymentStatus = *update.Status
		}
		current.UpdatedAt = now
		inv, err = tx.SaveInvoice(ctx, current)
		return err
	})
	if err != nil {
		return Invoice{}, db.StaleVersion(err)
	}
	s.record(ctx, update.ActorID, "billing:invoice_payment", inv, map[string]any{
		"payment_method": inv.PaymentMethod,
		"payment_status": inv.PaymentStatus,
	})
	return inv, nil
}

// GetInvoice returns an invoice with its lines.
func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return s.store.GetInvoice(ctx, id)
}

// ListInvoices returns one page of invoices.
func (s *Service) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, shared.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Pagination{}, shared.Validation("status", "unknown invoice status")
	}
	if filter.PaymentStatus != "" && !filter.PaymentStatus.Valid() {
		return nil, shared.Pagination{}, shared.Validation("paymentStatus", "unknown payment status")
	}
	switch filter.SortBy {
	case "":
		filter.SortBy = SortCreatedAt
	case SortCreatedAt, SortGrandTotal, SortNumber:
	default:
		return nil, shared.Pagination{}, shared.Validation("sortBy", "must be createdAt, grandTotal or invoiceNumber")
	}
	invoices, total, err := s.store.ListInvoices(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return invoices, shared.NewPagination(filter.Page, filter.Limit, total), nil
}

// classify turns a commit failure into a PartialCommitError with a marker.
func (s *Service) classify(ctx context.Context, err error, number, stage string) error {
	if errors.Is(err, db.ErrCommitFailed) {
		return s.partialCommit(ctx, number, uuid.Nil, stage, err)
	}
	return db.StaleVersion(err)
}

// partialCommit records a reconciliation marker outside the failed transaction.
func (s *Service) partialCommit(ctx context.Context, number string, attemptID uuid.UUID, stage string, cause error) error {
	marker := ReconciliationMarker{
		ID:            uuid.New(),
		InvoiceNumber: number,
		AttemptID:     attemptID,
		Stage:         stage,
		Detail:        cause.Error(),
		CreatedAt:     s.now().UTC(),
	}
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markerWriteTimeout)
	defer cancel()
	markerID := marker.ID.String()
	if err := s.store.InsertMarker(mctx, marker); err != nil {
		s.logger.Error("write reconciliation marker failed",
			slog.String("number", number), slog.String("stage", stage), slog.Any("error", err))
		markerID = ""
	}
	s.metrics.PartialCommit(stage)
	s.logger.Error("invoice commit outcome unknown",
		slog.String("number", number),
		slog.String("stage", stage),
		slog.String("marker_id", markerID),
		slog.Any("error", cause))
	return &shared.PartialCommitError{InvoiceNumber: number, Stage: stage, MarkerID: markerID, Cause: cause}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, inv Invoice, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["number"] = inv.Number
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "invoice",
		EntityID: fmt.Sprint(inv.ID),
		Meta:     meta,
		At:       s.now().UTC(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) normalizeCreate(input *CreateInput) (*time.Time, error) {
	input.Customer.Name = strings.TrimSpace(input.Customer.Name)
	if input.Customer.Name == "" {
		return nil, shared.Validation("customer.name", "required")
	}
	if len(input.Lines) == 0 {
		return nil, shared.Validation("items", "at least one item is required")
	}
	if input.PaymentMethod == "" {
		input.PaymentMethod = shared.PaymentCash
	}
	if !input.PaymentMethod.Valid() {
		return nil, shared.Validation("paymentMethod", "unknown payment method")
	}
	switch input.Status {
	case "":
		input.Status = StatusSent
	case StatusDraft, StatusSent:
	default:
		return nil, shared.Validation("status", "new invoices must be draft or sent")
	}
	if len(input.Notes) > 1000 {
		return nil, shared.Validation("notes", "must be at most 1000 characters")
	}
	input.Notes = strings.TrimSpace(input.Notes)
	input.Tags = shared.NormalizeTags(input.Tags)
	return parseDueDate(input.DueDate)
}

func parseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	due, err := time.Parse(tally.DateLayout, raw)
	if err != nil {
		return nil, shared.Validation("dueDate", "must be YYYY-MM-DD")
	}
	return &due, nil
}

// lockLedgers locks the ledgers of productIDs in ascending product order so
// concurrent settlements always acquire row locks in the same sequence.
// Products without a ledger are left out and count as having no stock.
func lockLedgers(ctx context.Context, tx Tx, productIDs []int64) (ledgerSet, error) {
	ledgers := make(ledgerSet, len(productIDs))
	for _, id := range productIDs {
		l, err := tx.Ledgers().LockLedgerByProduct(ctx, id)
		if err != nil {
			if errors.Is(err, inventory.ErrLedgerNotFound) {
				continue
			}
			return nil, err
		}
		ledgers[id] = l
	}
	return ledgers, nil
}

func inputProductIDs(lines []LineInput) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	return sortedUnique(ids)
}

func lineProductIDs(lines []Line) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	return sortedUnique(ids)
}

func sortedUnique(ids []int64) []int64 {
	slices.Sort(ids)
	return slices.Compact(ids)
}
