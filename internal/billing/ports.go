package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-retail/internal/inventory"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
	"github.com/odyssey-erp/odyssey-retail/internal/tally"
)

// Tx is the transactional view the invoice engine works through. Every method
// runs in the same database transaction.
type Tx interface {
	ProductLookup
	Ledgers() inventory.TxRepository
	Tallies() tally.TxRepository
	CountInvoicesInYear(ctx context.Context, year int) (int64, error)
	// InsertInvoice stores inv with its lines; a taken number yields ErrNumberConflict.
	InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	LockInvoice(ctx context.Context, id int64) (Invoice, error)
	SaveInvoice(ctx context.Context, inv Invoice) (Invoice, error)
}

// Store persists invoices and reconciliation markers.
type Store interface {
	// WithTx runs fn in one transaction. Commit errors wrap db.ErrCommitFailed.
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	FindInvoiceByNumber(ctx context.Context, number string) (Invoice, bool, error)
	// FindInvoiceByAttempt loads the invoice written by one create attempt.
	FindInvoiceByAttempt(ctx context.Context, attemptID uuid.UUID) (Invoice, bool, error)
	ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, int, error)
	InsertMarker(ctx context.Context, m ReconciliationMarker) error
	PendingMarkers(ctx context.Context, limit int) ([]ReconciliationMarker, error)
	ResolveMarker(ctx context.Context, id uuid.UUID, resolution string, at time.Time) error
}

// IdempotencyPort claims request keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// StockNotifier is told about ledgers changed by a committed sale.
type StockNotifier interface {
	NotifyLowStock(ctx context.Context, previous int64, ledger inventory.Ledger)
}

// Recorder counts engine outcomes.
type Recorder interface {
	InvoiceCreated(method string)
	StockRejected()
	PartialCommit(stage string)
}

type noopRecorder struct{}

func (noopRecorder) InvoiceCreated(string) {}
func (noopRecorder) StockRejected()        {}
func (noopRecorder) PartialCommit(string)  {}
