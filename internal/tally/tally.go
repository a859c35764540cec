package tally

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// DayOf returns the calendar day of t in loc, normalised to midnight UTC so it
// compares equal to values scanned from a DATE column.
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD day.
func ParseDay(raw string) (time.Time, error) {
	day, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, shared.Validation("date", "must be YYYY-MM-DD")
	}
	return day, nil
}

// New returns an empty open tally for day.
func New(day time.Time) DailyTally {
	t := DailyTally{Date: day, Sales: make(map[shared.PaymentMethod]decimal.Decimal)}
	t.Recompute()
	return t
}

// Recompute derives the totals from the sales buckets and expenses.
func (t *DailyTally) Recompute() {
	if t.Sales == nil {
		t.Sales = make(map[shared.PaymentMethod]decimal.Decimal)
	}
	sales := decimal.Zero
	for _, amount := range t.Sales {
		sales = sales.Add(amount)
	}
	expenses := decimal.Zero
	for _, e := range t.Expenses {
		expenses = expenses.Add(e.Amount)
	}
	t.SalesTotal = sales.Round(2)
	t.TotalExpenses = expenses.Round(2)
	t.NetAmount = t.SalesTotal.Sub(t.TotalExpenses)
	if t.InvoiceIDs == nil {
		t.InvoiceIDs = []int64{}
	}
	if t.Expenses == nil {
		t.Expenses = []Expense{}
	}
}

// Fold adds an invoice amount to the bucket of its payment method.
func (t *DailyTally) Fold(invoiceID int64, method shared.PaymentMethod, amount decimal.Decimal) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	t.addToBucket(method, amount)
	if invoiceID != 0 && !slices.Contains(t.InvoiceIDs, invoiceID) {
		t.InvoiceIDs = append(t.InvoiceIDs, invoiceID)
	}
	t.Recompute()
	return nil
}

// Unfold takes an invoice amount back out of its bucket.
func (t *DailyTally) Unfold(invoiceID int64, method shared.PaymentMethod, amount decimal.Decimal) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	t.addToBucket(method, amount.Neg())
	t.InvoiceIDs = slices.DeleteFunc(t.InvoiceIDs, func(id int64) bool { return id == invoiceID })
	t.Recompute()
	return nil
}

// MoveBucket moves amount from one payment bucket to another.
func (t *DailyTally) MoveBucket(from, to shared.PaymentMethod, amount decimal.Decimal) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	t.addToBucket(from, amount.Neg())
	t.addToBucket(to, amount)
	t.Recompute()
	return nil
}

// AddExpense appends e to the day.
func (t *DailyTally) AddExpense(e Expense) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	t.Expenses = append(t.Expenses, e)
	t.Recompute()
	return nil
}

// Close seals the tally; later folds and expenses are rejected.
func (t *DailyTally) Close(actorID int64, remarks string, at time.Time) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	t.Closed = true
	t.ClosedBy = actorID
	t.ClosedAt = &at
	if remarks != "" {
		t.Remarks = remarks
	}
	return nil
}

func (t *DailyTally) addToBucket(method shared.PaymentMethod, amount decimal.Decimal) {
	if t.Sales == nil {
		t.Sales = make(map[shared.PaymentMethod]decimal.Decimal)
	}
	next := t.Sales[method].Add(amount).Round(2)
	if next.IsZero() {
		delete(t.Sales, method)
		return
	}
	t.Sales[method] = next
}

func (t *DailyTally) ensureOpen() error {
	if t.Closed {
		return ClosedError(t.Date)
	}
	return nil
}

// ClosedError reports that the tally of day is sealed.
func ClosedError(day time.Time) error {
	return &shared.Error{
		Kind:     shared.ErrConflict,
		Resource: "daily_tally",
		ID:       day.Format(DateLayout),
		Message:  "tally is closed",
		Cause:    ErrTallyClosed,
	}
}
