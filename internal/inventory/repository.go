package inventory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-retail/internal/platform/db"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

const ledgerColumns = `id, product_id, current_stock, minimum_stock, reorder_level, maximum_stock,
	warehouse, section, shelf, is_active, version, last_updated, created_at`

const movementColumns = `id, ledger_id, product_id, movement_type, quantity, previous_stock, new_stock,
	reason, reference, COALESCE(performed_by, 0), created_at`

// statusExpr mirrors Ledger.DeriveStatus so listings can filter in SQL.
const statusExpr = `CASE
	WHEN current_stock <= 0 THEN 'out-of-stock'
	WHEN current_stock <= reorder_level THEN 'low-stock'
	WHEN current_stock <= minimum_stock THEN 'minimum-reached'
	WHEN current_stock >= maximum_stock THEN 'overstock'
	ELSE 'in-stock' END`

// TxRepository exposes the row-locking operations that must run inside one transaction.
type TxRepository interface {
	LockLedger(ctx context.Context, id int64) (Ledger, error)
	LockLedgerByProduct(ctx context.Context, productID int64) (Ledger, error)
	InsertLedger(ctx context.Context, l Ledger) (Ledger, error)
	UpdateLedger(ctx context.Context, l Ledger) (Ledger, error)
	InsertMovement(ctx context.Context, m Movement) (Movement, error)
}

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// GetLedger loads a ledger by id.
func (r *Repository) GetLedger(ctx context.Context, id int64) (Ledger, error) {
	return getLedger(ctx, r.pool, `SELECT `+ledgerColumns+` FROM stock_ledgers WHERE id = $1`, "id", id)
}

// GetLedgerByProduct loads the ledger of a product.
func (r *Repository) GetLedgerByProduct(ctx context.Context, productID int64) (Ledger, error) {
	return getLedger(ctx, r.pool, `SELECT `+ledgerColumns+` FROM stock_ledgers WHERE product_id = $1`, "product", productID)
}

// ListLedgers returns one page of ledgers and the total match count.
func (r *Repository) ListLedgers(ctx context.Context, filter ListFilter) ([]Ledger, int, error) {
	where := "WHERE is_active"
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where += fmt.Sprintf(" AND (%s) = $%d", statusExpr, len(args))
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_ledgers `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("inventory: count ledgers: %w", err)
	}
	page, limit := shared.NormalizePage(filter.Page, filter.Limit)
	args = append(args, limit, shared.Offset(page, limit))
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM stock_ledgers %s ORDER BY last_updated DESC, id DESC LIMIT $%d OFFSET $%d`,
		ledgerColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("inventory: list ledgers: %w", err)
	}
	ledgers, err := collectLedgers(rows)
	if err != nil {
		return nil, 0, err
	}
	return ledgers, total, nil
}

// ListLowStock returns active ledgers at or below their reorder level, lowest first.
func (r *Repository) ListLowStock(ctx context.Context) ([]Ledger, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ledgerColumns+` FROM stock_ledgers
		WHERE is_active AND current_stock <= reorder_level ORDER BY current_stock ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("inventory: list low stock: %w", err)
	}
	return collectLedgers(rows)
}

// ListMovements returns the movements of a ledger, newest first.
func (r *Repository) ListMovements(ctx context.Context, ledgerID int64, page, limit int) ([]Movement, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_movements WHERE ledger_id = $1`, ledgerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("inventory: count movements: %w", err)
	}
	page, limit = shared.NormalizePage(page, limit)
	rows, err := r.pool.Query(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE ledger_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, ledgerID, limit, shared.Offset(page, limit))
	if err != nil {
		return nil, 0, fmt.Errorf("inventory: list movements: %w", err)
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

type txRepo struct {
	q db.DBTX
}

// NewTxRepository binds the ledger operations to q, usually an open pgx.Tx owned by the caller.
func NewTxRepository(q db.DBTX) TxRepository {
	return &txRepo{q: q}
}

func (r *txRepo) LockLedger(ctx context.Context, id int64) (Ledger, error) {
	return getLedger(ctx, r.q, `SELECT `+ledgerColumns+` FROM stock_ledgers WHERE id = $1 FOR UPDATE`, "id", id)
}

func (r *txRepo) LockLedgerByProduct(ctx context.Context, productID int64) (Ledger, error) {
	return getLedger(ctx, r.q, `SELECT `+ledgerColumns+` FROM stock_ledgers WHERE product_id = $1 FOR UPDATE`, "product", productID)
}

func (r *txRepo) InsertLedger(ctx context.Context, l Ledger) (Ledger, error) {
	row := r.q.QueryRow(ctx, `INSERT INTO stock_ledgers (product_id, current_stock, minimum_stock, reorder_level,
		maximum_stock, warehouse, section, shelf, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE) RETURNING `+ledgerColumns,
		l.ProductID, l.CurrentStock, l.MinimumStock, l.ReorderLevel, l.MaximumStock,
		l.Location.Warehouse, l.Location.Section, l.Location.Shelf)
	stored, err := scanLedger(row)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err, "stock_ledgers_product_key"):
			return Ledger{}, shared.Conflict("stock_ledger", fmt.Sprintf("product %d already has a ledger", l.ProductID), ErrLedgerExists)
		case db.IsForeignKeyViolation(err):
			return Ledger{}, shared.NotFound("product", l.ProductID, nil)
		}
		return Ledger{}, fmt.Errorf("inventory: insert ledger: %w", err)
	}
	return stored, nil
}

func (r *txRepo) UpdateLedger(ctx context.Context, l Ledger) (Ledger, error) {
	row := r.q.QueryRow(ctx, `UPDATE stock_ledgers SET current_stock = $2, minimum_stock = $3, reorder_level = $4,
		maximum_stock = $5, warehouse = $6, section = $7, shelf = $8, is_active = $9,
		version = version + 1, last_updated = NOW()
		WHERE id = $1 RETURNING `+ledgerColumns,
		l.ID, l.CurrentStock, l.MinimumStock, l.ReorderLevel, l.MaximumStock,
		l.Location.Warehouse, l.Location.Section, l.Location.Shelf, l.IsActive)
	stored, err := scanLedger(row)
	if err != nil {
		if db.IsNoRows(err) {
			return Ledger{}, shared.NotFound("stock_ledger", l.ID, ErrLedgerNotFound)
		}
		return Ledger{}, fmt.Errorf("inventory: update ledger: %w", err)
	}
	return stored, nil
}

func (r *txRepo) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	var actor *int64
	if m.PerformedBy != 0 {
		actor = &m.PerformedBy
	}
	row := r.q.QueryRow(ctx, `INSERT INTO stock_movements (ledger_id, product_id, movement_type, quantity,
		previous_stock, new_stock, reason, reference, performed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING `+movementColumns,
		m.LedgerID, m.ProductID, string(m.Type), m.Quantity, m.PreviousStock, m.NewStock,
		m.Reason, m.Reference, actor, m.CreatedAt)
	stored, err := scanMovement(row)
	if err != nil {
		return Movement{}, fmt.Errorf("inventory: insert movement: %w", err)
	}
	return stored, nil
}

func getLedger(ctx context.Context, q db.DBTX, sql, by string, id int64) (Ledger, error) {
	l, err := scanLedger(q.QueryRow(ctx, sql, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Ledger{}, &shared.Error{Kind: shared.ErrNotFound, Resource: "stock_ledger", ID: fmt.Sprintf("%s %d", by, id), Cause: ErrLedgerNotFound}
		}
		return Ledger{}, fmt.Errorf("inventory: load ledger: %w", err)
	}
	return l, nil
}

func collectLedgers(rows pgx.Rows) ([]Ledger, error) {
	defer rows.Close()
	var out []Ledger
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLedger(row pgx.Row) (Ledger, error) {
	var l Ledger
	err := row.Scan(&l.ID, &l.ProductID, &l.CurrentStock, &l.MinimumStock, &l.ReorderLevel, &l.MaximumStock,
		&l.Location.Warehouse, &l.Location.Section, &l.Location.Shelf, &l.IsActive, &l.Version,
		&l.LastUpdated, &l.CreatedAt)
	if err != nil {
		return Ledger{}, err
	}
	l.Status = l.DeriveStatus()
	return l, nil
}

func scanMovement(row pgx.Row) (Movement, error) {
	var (
		m   Movement
		typ string
	)
	if err := row.Scan(&m.ID, &m.LedgerID, &m.ProductID, &typ, &m.Quantity, &m.PreviousStock, &m.NewStock,
		&m.Reason, &m.Reference, &m.PerformedBy, &m.CreatedAt); err != nil {
		return Movement{}, err
	}
	m.Type = MovementType(typ)
	return m, nil
}
