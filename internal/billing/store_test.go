package billing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/catalog"
	"github.com/odyssey-erp/odyssey-retail/internal/inventory"
	"github.com/odyssey-erp/odyssey-retail/internal/platform/db"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
	"github.com/odyssey-erp/odyssey-retail/internal/tally"
)

const (
	commitOK      = ""
	commitApplied = "applied"
	commitLost    = "lost"
)

var errConnReset = errors.New("connection reset by peer")

// memoryStore emulates the Postgres store: row locks are held until the end of
// the transaction and writes are undone on rollback. Uncommitted inserts are
// visible to other transactions, which is enough to exercise number retries.
type memoryStore struct {
	mu        sync.Mutex
	products  map[int64]catalog.Product
	ledgers   map[int64]inventory.Ledger
	byProduct map[int64]int64
	movements []inventory.Movement
	tallies   map[time.Time]tally.DailyTally
	invoices  map[int64]Invoice
	numbers   map[string]int64
	markers   []ReconciliationMarker
	seq       map[string]int64
	rowLocks  map[string]*sync.Mutex

	commitMode string
	conflicts  int
	// abortErr, when set, aborts the next transaction after its work ran.
	abortErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		products:  make(map[int64]catalog.Product),
		ledgers:   make(map[int64]inventory.Ledger),
		byProduct: make(map[int64]int64),
		tallies:   make(map[time.Time]tally.DailyTally),
		invoices:  make(map[int64]Invoice),
		numbers:   make(map[string]int64),
		seq:       make(map[string]int64),
		rowLocks:  make(map[string]*sync.Mutex),
	}
}

func (s *memoryStore) next(kind string) int64 {
	s.seq[kind]++
	return s.seq[kind]
}

// addProduct registers a product priced at price with rate percent GST and a ledger holding stock units.
func (s *memoryStore) addProduct(id int64, price, rate string, stock int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id] = catalog.Product{
		ID:        id,
		Name:      fmt.Sprintf("Product %d", id),
		SKU:       fmt.Sprintf("SKU-%d", id),
		BasePrice: decimal.RequireFromString(price),
		GSTRate:   decimal.RequireFromString(rate),
		IsActive:  true,
	}
	ledgerID := s.next("ledger")
	s.ledgers[ledgerID] = inventory.Ledger{
		ID:           ledgerID,
		ProductID:    id,
		CurrentStock: stock,
		MinimumStock: inventory.DefaultMinimumStock,
		ReorderLevel: inventory.DefaultReorderLevel,
		MaximumStock: inventory.DefaultMaximumStock,
		IsActive:     true,
	}
	s.byProduct[id] = ledgerID
}

func (s *memoryStore) stockOf(productID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledgers[s.byProduct[productID]].CurrentStock
}

func (s *memoryStore) movementsFor(productID int64) []inventory.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []inventory.Movement
	for _, m := range s.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out
}

func (s *memoryStore) tallyOf(day time.Time) (tally.DailyTally, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tallies[day]
	return t, ok
}

func (s *memoryStore) putTally(t tally.DailyTally) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.next("tally")
	}
	s.tallies[t.Date] = t
}

func (s *memoryStore) invoiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invoices)
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	tx := &memoryTx{s: s, held: make(map[string]*sync.Mutex)}
	defer tx.release()
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	s.mu.Lock()
	mode, abort := s.commitMode, s.abortErr
	s.abortErr = nil
	s.mu.Unlock()
	if abort != nil {
		tx.rollback()
		return abort
	}
	switch mode {
	case commitLost:
		tx.rollback()
		return fmt.Errorf("%w: %w", db.ErrCommitFailed, errConnReset)
	case commitApplied:
		return fmt.Errorf("%w: %w", db.ErrCommitFailed, errConnReset)
	}
	return nil
}

func (s *memoryStore) GetInvoice(_ context.Context, id int64) (Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return Invoice{}, shared.NotFound("invoice", id, ErrInvoiceNotFound)
	}
	return cloneInvoice(inv), nil
}

func (s *memoryStore) FindInvoiceByNumber(_ context.Context, number string) (Invoice, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.numbers[number]
	if !ok {
		return Invoice{}, false, nil
	}
	return cloneInvoice(s.invoices[id]), true, nil
}

func (s *memoryStore) FindInvoiceByAttempt(_ context.Context, attemptID uuid.UUID) (Invoice, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invoices {
		if inv.AttemptID == attemptID {
			return cloneInvoice(inv), true, nil
		}
	}
	return Invoice{}, false, nil
}

func (s *memoryStore) ListInvoices(_ context.Context, filter ListFilter) ([]Invoice, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Invoice
	for _, inv := range s.invoices {
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		out = append(out, cloneInvoice(inv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (s *memoryStore) InsertMarker(_ context.Context, m ReconciliationMarker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers = append(s.markers, m)
	return nil
}

func (s *memoryStore) PendingMarkers(_ context.Context, limit int) ([]ReconciliationMarker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ReconciliationMarker
	for _, m := range s.markers {
		if m.ResolvedAt == nil && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memoryStore) ResolveMarker(_ context.Context, id uuid.UUID, resolution string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.markers {
		if s.markers[i].ID == id && s.markers[i].ResolvedAt == nil {
			s.markers[i].ResolvedAt = &at
			s.markers[i].Resolution = resolution
		}
	}
	return nil
}

type memoryTx struct {
	s     *memoryStore
	held  map[string]*sync.Mutex
	order []string
	undo  []func()
}

func (tx *memoryTx) lock(key string) {
	if _, ok := tx.held[key]; ok {
		return
	}
	tx.s.mu.Lock()
	m, ok := tx.s.rowLocks[key]
	if !ok {
		m = &sync.Mutex{}
		tx.s.rowLocks[key] = m
	}
	tx.s.mu.Unlock()
	m.Lock()
	tx.held[key] = m
	tx.order = append(tx.order, key)
}

func (tx *memoryTx) release() {
	for i := len(tx.order) - 1; i >= 0; i-- {
		tx.held[tx.order[i]].Unlock()
	}
	tx.held = nil
	tx.order = nil
}

func (tx *memoryTx) rollback() {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *memoryTx) FindProduct(_ context.Context, id int64) (catalog.Product, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	p, ok := tx.s.products[id]
	if !ok || !p.IsActive {
		return catalog.Product{}, shared.NotFound("product", id, catalog.ErrProductNotFound)
	}
	return p, nil
}

func (tx *memoryTx) Ledgers() inventory.TxRepository { return memoryLedgers{tx} }

func (tx *memoryTx) Tallies() tally.TxRepository { return memoryTallies{tx} }

func (tx *memoryTx) CountInvoicesInYear(_ context.Context, year int) (int64, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	var n int64
	for _, inv := range tx.s.invoices {
		if inv.NumberYear == year {
			n++
		}
	}
	return n, nil
}

func (tx *memoryTx) InsertInvoice(_ context.Context, inv Invoice) (Invoice, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	if tx.s.conflicts > 0 {
		tx.s.conflicts--
		return Invoice{}, ErrNumberConflict
	}
	if _, taken := tx.s.numbers[inv.Number]; taken {
		return Invoice{}, ErrNumberConflict
	}
	inv.ID = tx.s.next("invoice")
	tx.s.invoices[inv.ID] = cloneInvoice(inv)
	tx.s.numbers[inv.Number] = inv.ID
	id, number := inv.ID, inv.Number
	tx.undo = append(tx.undo, func() {
		delete(tx.s.invoices, id)
		delete(tx.s.numbers, number)
	})
	return inv, nil
}

func (tx *memoryTx) LockInvoice(_ context.Context, id int64) (Invoice, error) {
	tx.lock(fmt.Sprintf("invoice:%d", id))
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	inv, ok := tx.s.invoices[id]
	if !ok {
		return Invoice{}, shared.NotFound("invoice", id, ErrInvoiceNotFound)
	}
	return cloneInvoice(inv), nil
}

func (tx *memoryTx) SaveInvoice(_ context.Context, inv Invoice) (Invoice, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	prev, ok := tx.s.invoices[inv.ID]
	if !ok {
		return Invoice{}, shared.NotFound("invoice", inv.ID, ErrInvoiceNotFound)
	}
	tx.s.invoices[inv.ID] = cloneInvoice(inv)
	tx.undo = append(tx.undo, func() { tx.s.invoices[prev.ID] = prev })
	return inv, nil
}

type memoryLedgers struct{ tx *memoryTx }

func (l memoryLedgers) LockLedger(ctx context.Context, id int64) (inventory.Ledger, error) {
	l.tx.s.mu.Lock()
	ledger, ok := l.tx.s.ledgers[id]
	l.tx.s.mu.Unlock()
	if !ok {
		return inventory.Ledger{}, shared.NotFound("stock_ledger", id, inventory.ErrLedgerNotFound)
	}
	return l.LockLedgerByProduct(ctx, ledger.ProductID)
}

func (l memoryLedgers) LockLedgerByProduct(_ context.Context, productID int64) (inventory.Ledger, error) {
	l.tx.lock(fmt.Sprintf("ledger:%d", productID))
	l.tx.s.mu.Lock()
	defer l.tx.s.mu.Unlock()
	id, ok := l.tx.s.byProduct[productID]
	if !ok {
		return inventory.Ledger{}, shared.NotFound("stock_ledger", productID, inventory.ErrLedgerNotFound)
	}
	return l.tx.s.ledgers[id], nil
}

func (l memoryLedgers) InsertLedger(_ context.Context, ledger inventory.Ledger) (inventory.Ledger, error) {
	s := l.tx.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byProduct[ledger.ProductID]; ok {
		return inventory.Ledger{}, shared.Conflict("stock_ledger", "duplicate", inventory.ErrLedgerExists)
	}
	ledger.ID = s.next("ledger")
	s.ledgers[ledger.ID] = ledger
	s.byProduct[ledger.ProductID] = ledger.ID
	l.tx.undo = append(l.tx.undo, func() {
		delete(s.ledgers, ledger.ID)
		delete(s.byProduct, ledger.ProductID)
	})
	return ledger, nil
}

func (l memoryLedgers) UpdateLedger(_ context.Context, ledger inventory.Ledger) (inventory.Ledger, error) {
	s := l.tx.s
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.ledgers[ledger.ID]
	if !ok {
		return inventory.Ledger{}, shared.NotFound("stock_ledger", ledger.ID, inventory.ErrLedgerNotFound)
	}
	ledger.Version = prev.Version + 1
	ledger.Status = ledger.DeriveStatus()
	s.ledgers[ledger.ID] = ledger
	l.tx.undo = append(l.tx.undo, func() { s.ledgers[prev.ID] = prev })
	return ledger, nil
}

func (l memoryLedgers) InsertMovement(_ context.Context, m inventory.Movement) (inventory.Movement, error) {
	s := l.tx.s
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.next("movement")
	s.movements = append(s.movements, m)
	id := m.ID
	l.tx.undo = append(l.tx.undo, func() {
		s.movements = slices.DeleteFunc(s.movements, func(x inventory.Movement) bool { return x.ID == id })
	})
	return m, nil
}

type memoryTallies struct{ tx *memoryTx }

func (t memoryTallies) LockTally(ctx context.Context, day time.Time) (tally.DailyTally, error) {
	if existing, ok, err := t.FindTallyForUpdate(ctx, day); err != nil || ok {
		return existing, err
	}
	s := t.tx.s
	s.mu.Lock()
	defer s.mu.Unlock()
	created := tally.New(day)
	created.ID = s.next("tally")
	s.tallies[day] = created
	t.tx.undo = append(t.tx.undo, func() { delete(s.tallies, day) })
	return cloneTally(created), nil
}

func (t memoryTallies) FindTallyForUpdate(_ context.Context, day time.Time) (tally.DailyTally, bool, error) {
	t.tx.lock("tally:" + day.Format(tally.DateLayout))
	s := t.tx.s
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.tallies[day]
	if !ok {
		return tally.DailyTally{}, false, nil
	}
	return cloneTally(existing), true, nil
}

func (t memoryTallies) SaveTally(_ context.Context, saved tally.DailyTally) (tally.DailyTally, error) {
	s := t.tx.s
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.tallies[saved.Date]
	s.tallies[saved.Date] = cloneTally(saved)
	t.tx.undo = append(t.tx.undo, func() {
		if existed {
			s.tallies[prev.Date] = prev
		} else {
			delete(s.tallies, saved.Date)
		}
	})
	return saved, nil
}

func (t memoryTallies) InsertExpense(_ context.Context, _ int64, e tally.Expense) (tally.Expense, error) {
	s := t.tx.s
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.next("expense")
	return e, nil
}

func cloneInvoice(inv Invoice) Invoice {
	inv.Lines = append([]Line(nil), inv.Lines...)
	inv.Tags = append([]string(nil), inv.Tags...)
	return inv
}

func cloneTally(t tally.DailyTally) tally.DailyTally {
	sales := make(map[shared.PaymentMethod]decimal.Decimal, len(t.Sales))
	for k, v := range t.Sales {
		sales[k] = v
	}
	t.Sales = sales
	t.Expenses = append([]tally.Expense(nil), t.Expenses...)
	t.InvoiceIDs = append([]int64(nil), t.InvoiceIDs...)
	return t
}
