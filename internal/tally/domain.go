package tally

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// ErrTallyClosed indicates a write against a sealed daily tally.
var ErrTallyClosed = errors.New("tally: daily tally is closed")

// DateLayout is the wire format of a tally day.
const DateLayout = "2006-01-02"

// ExpenseCategory groups shop expenses.
type ExpenseCategory string

const (
	ExpenseUtilities   ExpenseCategory = "utilities"
	ExpenseRent        ExpenseCategory = "rent"
	ExpenseSalary      ExpenseCategory = "salary"
	ExpenseInventory   ExpenseCategory = "inventory"
	ExpenseMaintenance ExpenseCategory = "maintenance"
	ExpenseOther       ExpenseCategory = "other"
)

// Valid reports whether c is a known category.
func (c ExpenseCategory) Valid() bool {
	switch c {
	case ExpenseUtilities, ExpenseRent, ExpenseSalary, ExpenseInventory, ExpenseMaintenance, ExpenseOther:
		return true
	}
	return false
}

// DailyTally aggregates the sales and expenses of one calendar day.
type DailyTally struct {
	ID            int64                                    `json:"id,omitempty"`
	Date          time.Time                                `json:"date"`
	Sales         map[shared.PaymentMethod]decimal.Decimal `json:"sales"`
	SalesTotal    decimal.Decimal                          `json:"salesTotal"`
	Expenses      []Expense                                `json:"expenses"`
	TotalExpenses decimal.Decimal                          `json:"totalExpenses"`
	NetAmount     decimal.Decimal                          `json:"netAmount"`
	InvoiceIDs    []int64                                  `json:"invoiceIds"`
	Remarks       string                                   `json:"remarks,omitempty"`
	Closed        bool                                     `json:"isClosed"`
	ClosedBy      int64                                    `json:"closedBy,omitempty"`
	ClosedAt      *time.Time                               `json:"closedAt,omitempty"`
	CreatedAt     time.Time                                `json:"createdAt"`
	UpdatedAt     time.Time                                `json:"updatedAt"`
}

// Expense is money paid out of the shop on a day.
type Expense struct {
	ID            int64                `json:"id"`
	Description   string               `json:"description"`
	Amount        decimal.Decimal      `json:"amount"`
	Category      ExpenseCategory      `json:"category"`
	PaymentMethod shared.PaymentMethod `json:"paymentMethod"`
	RecordedBy    int64                `json:"recordedBy,omitempty"`
	RecordedAt    time.Time            `json:"recordedAt"`
}

// ExpenseInput records an expense against a day; Date defaults to today.
type ExpenseInput struct {
	Date          string               `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Description   string               `json:"description" validate:"required,max=500"`
	Amount        decimal.Decimal      `json:"amount"`
	Category      ExpenseCategory      `json:"category" validate:"required"`
	PaymentMethod shared.PaymentMethod `json:"paymentMethod"`
	ActorID       int64                `json:"-"`
}

// CloseInput seals a day.
type CloseInput struct {
	Date    string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Remarks string `json:"remarks" validate:"max=1000"`
	ActorID int64  `json:"-"`
}
