package tally

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/platform/db"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

const tallyColumns = `id, tally_date, sales, invoice_ids, remarks, is_closed, COALESCE(closed_by, 0), closed_at,
	created_at, updated_at`

// TxRepository exposes the tally operations that run inside a caller's transaction.
type TxRepository interface {
	// LockTally returns the tally of day, creating it when missing, and holds its row lock.
	LockTally(ctx context.Context, day time.Time) (DailyTally, error)
	// FindTallyForUpdate locks an existing tally without creating one.
	FindTallyForUpdate(ctx context.Context, day time.Time) (DailyTally, bool, error)
	SaveTally(ctx context.Context, t DailyTally) (DailyTally, error)
	InsertExpense(ctx context.Context, tallyID int64, e Expense) (Expense, error)
}

// Repository persists daily tallies in PostgreSQL.
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

// GetTally loads the tally of day with its expenses.
func (r *Repository) GetTally(ctx context.Context, day time.Time) (DailyTally, bool, error) {
	return findTally(ctx, r.pool, `SELECT `+tallyColumns+` FROM daily_tallies WHERE tally_date = $1`, day)
}

type txRepo struct {
	q db.DBTX
}

// NewTxRepository binds the tally operations to q, usually an open pgx.Tx.
func NewTxRepository(q db.DBTX) TxRepository {
	return &txRepo{q: q}
}

func (r *txRepo) LockTally(ctx context.Context, day time.Time) (DailyTally, error) {
	if _, err := r.q.Exec(ctx, `INSERT INTO daily_tallies (tally_date) VALUES ($1) ON CONFLICT (tally_date) DO NOTHING`, day); err != nil {
		return DailyTally{}, fmt.Errorf("tally: ensure tally: %w", err)
	}
	t, ok, err := r.FindTallyForUpdate(ctx, day)
	if err != nil {
		return DailyTally{}, err
	}
	if !ok {
		return DailyTally{}, fmt.Errorf("tally: tally %s vanished after insert", day.Format(DateLayout))
	}
	return t, nil
}

func (r *txRepo) FindTallyForUpdate(ctx context.Context, day time.Time) (DailyTally, bool, error) {
	return findTally(ctx, r.q, `SELECT `+tallyColumns+` FROM daily_tallies WHERE tally_date = $1 FOR UPDATE`, day)
}

func (r *txRepo) SaveTally(ctx context.Context, t DailyTally) (DailyTally, error) {
	sales, err := json.Marshal(t.Sales)
	if err != nil {
		return DailyTally{}, fmt.Errorf("tally: encode sales: %w", err)
	}
	var closedBy *int64
	if t.ClosedBy != 0 {
		closedBy = &t.ClosedBy
	}
	row := r.q.QueryRow(ctx, `UPDATE daily_tallies SET sales = $2, invoice_ids = $3, remarks = $4, is_closed = $5,
		closed_by = $6, closed_at = $7, updated_at = NOW() WHERE id = $1 RETURNING `+tallyColumns,
		t.ID, sales, t.InvoiceIDs, t.Remarks, t.Closed, closedBy, t.ClosedAt)
	stored, err := scanTally(row)
	if err != nil {
		if db.IsNoRows(err) {
			return DailyTally{}, shared.NotFound("daily_tally", t.Date.Format(DateLayout), nil)
		}
		return DailyTally{}, fmt.Errorf("tally: save tally: %w", err)
	}
	stored.Expenses = t.Expenses
	stored.Recompute()
	return stored, nil
}

func (r *txRepo) InsertExpense(ctx context.Context, tallyID int64, e Expense) (Expense, error) {
	var recordedBy *int64
	if e.RecordedBy != 0 {
		recordedBy = &e.RecordedBy
	}
	err := r.q.QueryRow(ctx, `INSERT INTO tally_expenses (tally_id, description, amount, category, payment_method,
		recorded_by, recorded_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		tallyID, e.Description, e.Amount, string(e.Category), string(e.PaymentMethod), recordedBy, e.RecordedAt).Scan(&e.ID)
	if err != nil {
		return Expense{}, fmt.Errorf("tally: insert expense: %w", err)
	}
	return e, nil
}

func findTally(ctx context.Context, q db.DBTX, sql string, day time.Time) (DailyTally, bool, error) {
	t, err := scanTally(q.QueryRow(ctx, sql, day))
	if err != nil {
		if db.IsNoRows(err) {
			return DailyTally{}, false, nil
		}
		return DailyTally{}, false, fmt.Errorf("tally: load tally: %w", err)
	}
	expenses, err := loadExpenses(ctx, q, t.ID)
	if err != nil {
		return DailyTally{}, false, err
	}
	t.Expenses = expenses
	t.Recompute()
	return t, true, nil
}

func loadExpenses(ctx context.Context, q db.DBTX, tallyID int64) ([]Expense, error) {
	rows, err := q.Query(ctx, `SELECT id, description, amount, category, payment_method, COALESCE(recorded_by, 0), recorded_at
		FROM tally_expenses WHERE tally_id = $1 ORDER BY id`, tallyID)
	if err != nil {
		return nil, fmt.Errorf("tally: list expenses: %w", err)
	}
	defer rows.Close()
	var out []Expense
	for rows.Next() {
		var (
			e        Expense
			category string
			method   string
		)
		if err := rows.Scan(&e.ID, &e.Description, &e.Amount, &category, &method, &e.RecordedBy, &e.RecordedAt); err != nil {
			return nil, err
		}
		e.Category = ExpenseCategory(category)
		e.PaymentMethod = shared.PaymentMethod(method)
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanTally(row pgx.Row) (DailyTally, error) {
	var (
		t     DailyTally
		sales []byte
	)
	if err := row.Scan(&t.ID, &t.Date, &sales, &t.InvoiceIDs, &t.Remarks, &t.Closed, &t.ClosedBy, &t.ClosedAt,
		&t.CreatedAt, &t.UpdatedAt); err != nil {
		return DailyTally{}, err
	}
	t.Sales = make(map[shared.PaymentMethod]decimal.Decimal)
	if len(sales) > 0 {
		if err := json.Unmarshal(sales, &t.Sales); err != nil {
			return DailyTally{}, fmt.Errorf("tally: decode sales: %w", err)
		}
	}
	return t, nil
}
