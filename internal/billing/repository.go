package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-retail/internal/catalog"
	"github.com/odyssey-erp/odyssey-retail/internal/inventory"
	"github.com/odyssey-erp/odyssey-retail/internal/platform/db"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
	"github.com/odyssey-erp/odyssey-retail/internal/tally"
)

const invoiceColumns = `id, number, number_year, customer, subtotal, total_tax, total_discount, grand_total,
	payment_method, payment_status, status, due_date, notes, tags, tally_date, COALESCE(created_by, 0),
	COALESCE(cancelled_by, 0), cancelled_at, cancel_reason, created_at, updated_at`

const lineColumns = `invoice_id, product_id, product_name, sku, quantity, unit_price, tax_rate, tax_amount, discount, total`

var sortColumns = map[SortField]string{
	SortCreatedAt:  "created_at",
	SortGrandTotal: "grand_total",
	SortNumber:     "number",
}

// Repository persists invoices in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn in a read-committed transaction that also carries the
// catalog, stock ledger and tally repositories.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{
			q:        tx,
			products: catalog.NewQuerier(tx),
			ledgers:  inventory.NewTxRepository(tx),
			tallies:  tally.NewTxRepository(tx),
		})
	})
}

// GetInvoice loads an invoice with its lines.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return loadInvoice(ctx, r.pool, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
}

// FindInvoiceByNumber loads an invoice by number.
func (r *Repository) FindInvoiceByNumber(ctx context.Context, number string) (Invoice, bool, error) {
	inv, err := loadInvoice(ctx, r.pool, `SELECT `+invoiceColumns+` FROM invoices WHERE number = $1`, number)
	if err != nil {
		if shared.KindOf(err) == shared.KindNotFound {
			return Invoice{}, false, nil
		}
		return Invoice{}, false, err
	}
	return inv, true, nil
}

// FindInvoiceByAttempt loads the invoice inserted by a create attempt.
func (r *Repository) FindInvoiceByAttempt(ctx context.Context, attemptID uuid.UUID) (Invoice, bool, error) {
	inv, err := loadInvoice(ctx, r.pool, `SELECT `+invoiceColumns+` FROM invoices WHERE attempt_id = $1`, attemptID)
	if err != nil {
		if shared.KindOf(err) == shared.KindNotFound {
			return Invoice{}, false, nil
		}
		return Invoice{}, false, err
	}
	return inv, true, nil
}

// ListInvoices returns one page of invoices and the total match count.
func (r *Repository) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.PaymentStatus != "" {
		args = append(args, string(filter.PaymentStatus))
		where = append(where, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if c := strings.TrimSpace(filter.Customer); c != "" {
		args = append(args, "%"+c+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(customer->>'name' ILIKE $%d OR customer->>'phone' ILIKE $%d OR customer->>'email' ILIKE $%d)", n, n, n))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("billing: count invoices: %w", err)
	}

	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if filter.Ascending {
		direction = "ASC"
	}
	page, limit := shared.NormalizePage(filter.Page, filter.Limit)
	args = append(args, limit, shared.Offset(page, limit))
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM invoices %s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d`,
		invoiceColumns, clause, column, direction, direction, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("billing: list invoices: %w", err)
	}
	defer rows.Close()
	var (
		invoices []Invoice
		ids      []int64
	)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
		ids = append(ids, inv.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	lines, err := loadLines(ctx, r.pool, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range invoices {
		invoices[i].Lines = lines[invoices[i].ID]
	}
	return invoices, total, nil
}

// InsertMarker records a reconciliation marker.
func (r *Repository) InsertMarker(ctx context.Context, m ReconciliationMarker) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO reconciliation_markers (id, invoice_number, attempt_id, stage, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`, m.ID, m.InvoiceNumber, nullableUUID(m.AttemptID), m.Stage, m.Detail, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("billing: insert marker: %w", err)
	}
	return nil
}

// PendingMarkers returns unresolved markers, oldest first.
func (r *Repository) PendingMarkers(ctx context.Context, limit int) ([]ReconciliationMarker, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_number, attempt_id, stage, detail, created_at FROM reconciliation_markers
		WHERE resolved_at IS NULL ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("billing: pending markers: %w", err)
	}
	defer rows.Close()
	var out []ReconciliationMarker
	for rows.Next() {
		var (
			m       ReconciliationMarker
			attempt *uuid.UUID
		)
		if err := rows.Scan(&m.ID, &m.InvoiceNumber, &attempt, &m.Stage, &m.Detail, &m.CreatedAt); err != nil {
			return nil, err
		}
		if attempt != nil {
			m.AttemptID = *attempt
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ResolveMarker stamps a marker with its resolution.
func (r *Repository) ResolveMarker(ctx context.Context, id uuid.UUID, resolution string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE reconciliation_markers SET resolved_at = $2, resolution = $3
		WHERE id = $1 AND resolved_at IS NULL`, id, at, resolution)
	if err != nil {
		return fmt.Errorf("billing: resolve marker: %w", err)
	}
	return nil
}

type txStore struct {
	q        pgx.Tx
	products *catalog.Querier
	ledgers  inventory.TxRepository
	tallies  tally.TxRepository
}

func (t *txStore) FindProduct(ctx context.Context, id int64) (catalog.Product, error) {
	return t.products.FindProduct(ctx, id)
}

func (t *txStore) Ledgers() inventory.TxRepository { return t.ledgers }

func (t *txStore) Tallies() tally.TxRepository { return t.tallies }

func (t *txStore) CountInvoicesInYear(ctx context.Context, year int) (int64, error) {
	var count int64
	if err := t.q.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE number_year = $1`, year).Scan(&count); err != nil {
		return 0, fmt.Errorf("billing: count invoices in year: %w", err)
	}
	return count, nil
}

func (t *txStore) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	customer, err := json.Marshal(inv.Customer)
	if err != nil {
		return Invoice{}, fmt.Errorf("billing: encode customer: %w", err)
	}
	err = t.q.QueryRow(ctx, `INSERT INTO invoices (number, number_year, customer, subtotal, total_tax, total_discount,
		grand_total, payment_method, payment_status, status, due_date, notes, tags, tally_date, created_by,
		created_at, updated_at, attempt_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16, $17)
		RETURNING id`,
		inv.Number, inv.NumberYear, customer, inv.Subtotal, inv.TotalTax, inv.TotalDiscount, inv.GrandTotal,
		string(inv.PaymentMethod), string(inv.PaymentStatus), string(inv.Status), inv.DueDate, inv.Notes,
		tagsOrEmpty(inv.Tags), inv.TallyDate, nullableID(inv.CreatedBy), inv.CreatedAt, nullableUUID(inv.AttemptID)).Scan(&inv.ID)
	if err != nil {
		if db.IsUniqueViolation(err, "invoices_number_key") {
			return Invoice{}, ErrNumberConflict
		}
		return Invoice{}, fmt.Errorf("billing: insert invoice: %w", err)
	}
	if err := insertLines(ctx, t.q, inv.ID, inv.Lines); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (t *txStore) LockInvoice(ctx context.Context, id int64) (Invoice, error) {
	return loadInvoice(ctx, t.q, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id)
}

func (t *txStore) SaveInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	customer, err := json.Marshal(inv.Customer)
	if err != nil {
		return Invoice{}, fmt.Errorf("billing: encode customer: %w", err)
	}
	tag, err := t.q.Exec(ctx, `UPDATE invoices SET customer = $2, subtotal = $3, total_tax = $4, total_discount = $5,
		grand_total = $6, payment_method = $7, payment_status = $8, status = $9, due_date = $10, notes = $11,
		tags = $12, tally_date = $13, cancelled_by = $14, cancelled_at = $15, cancel_reason = $16, updated_at = $17
		WHERE id = $1`,
		inv.ID, customer, inv.Subtotal, inv.TotalTax, inv.TotalDiscount, inv.GrandTotal,
		string(inv.PaymentMethod), string(inv.PaymentStatus), string(inv.Status), inv.DueDate, inv.Notes,
		tagsOrEmpty(inv.Tags), inv.TallyDate, nullableID(inv.CancelledBy), inv.CancelledAt, inv.CancelReason, inv.UpdatedAt)
	if err != nil {
		return Invoice{}, fmt.Errorf("billing: update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Invoice{}, shared.NotFound("invoice", inv.ID, ErrInvoiceNotFound)
	}
	if _, err := t.q.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, inv.ID); err != nil {
		return Invoice{}, fmt.Errorf("billing: clear invoice lines: %w", err)
	}
	if err := insertLines(ctx, t.q, inv.ID, inv.Lines); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func insertLines(ctx context.Context, tx pgx.Tx, invoiceID int64, lines []Line) error {
	batch := &pgx.Batch{}
	for i, l := range lines {
		batch.Queue(`INSERT INTO invoice_lines (invoice_id, line_no, product_id, product_name, sku, quantity,
			unit_price, tax_rate, tax_amount, discount, total) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			invoiceID, i+1, l.ProductID, l.ProductName, l.SKU, l.Quantity, l.UnitPrice, l.TaxRate, l.TaxAmount,
			l.Discount, l.Total)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("billing: insert invoice lines: %w", err)
	}
	return nil
}

func loadInvoice(ctx context.Context, q db.DBTX, sql string, arg any) (Invoice, error) {
	inv, err := scanInvoice(q.QueryRow(ctx, sql, arg))
	if err != nil {
		if db.IsNoRows(err) {
			return Invoice{}, shared.NotFound("invoice", arg, ErrInvoiceNotFound)
		}
		return Invoice{}, fmt.Errorf("billing: load invoice: %w", err)
	}
	lines, err := loadLines(ctx, q, []int64{inv.ID})
	if err != nil {
		return Invoice{}, err
	}
	inv.Lines = lines[inv.ID]
	return inv, nil
}

func loadLines(ctx context.Context, q db.DBTX, invoiceIDs []int64) (map[int64][]Line, error) {
	out := make(map[int64][]Line, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `SELECT `+lineColumns+` FROM invoice_lines WHERE invoice_id = ANY($1) ORDER BY invoice_id, line_no`, invoiceIDs)
	if err != nil {
		return nil, fmt.Errorf("billing: load invoice lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			invoiceID int64
			l         Line
		)
		if err := rows.Scan(&invoiceID, &l.ProductID, &l.ProductName, &l.SKU, &l.Quantity, &l.UnitPrice, &l.TaxRate,
			&l.TaxAmount, &l.Discount, &l.Total); err != nil {
			return nil, err
		}
		out[invoiceID] = append(out[invoiceID], l)
	}
	return out, rows.Err()
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var (
		inv      Invoice
		customer []byte
		method   string
		payment  string
		status   string
	)
	err := row.Scan(&inv.ID, &inv.Number, &inv.NumberYear, &customer, &inv.Subtotal, &inv.TotalTax, &inv.TotalDiscount,
		&inv.GrandTotal, &method, &payment, &status, &inv.DueDate, &inv.Notes, &inv.Tags, &inv.TallyDate,
		&inv.CreatedBy, &inv.CancelledBy, &inv.CancelledAt, &inv.CancelReason, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return Invoice{}, err
	}
	if err := json.Unmarshal(customer, &inv.Customer); err != nil {
		return Invoice{}, fmt.Errorf("billing: decode customer: %w", err)
	}
	inv.PaymentMethod = shared.PaymentMethod(method)
	inv.PaymentStatus = PaymentStatus(payment)
	inv.Status = InvoiceStatus(status)
	return inv, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func nullableID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
