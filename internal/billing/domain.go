package billing

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

var (
	// ErrProductNotFound indicates an invoice line referencing a missing or inactive product.
	ErrProductNotFound = errors.New("billing: product not found")
	// ErrInvalidQuantity indicates an invoice line quantity below one.
	ErrInvalidQuantity = errors.New("billing: quantity must be at least 1")
	// ErrCannotCancelPaid indicates an attempt to cancel a paid invoice.
	ErrCannotCancelPaid = errors.New("billing: cannot cancel a paid invoice")
	// ErrNumberConflict indicates another invoice took the candidate number first.
	ErrNumberConflict = errors.New("billing: invoice number already taken")
	// ErrInvoiceNotFound indicates a missing invoice.
	ErrInvoiceNotFound = errors.New("billing: invoice not found")
)

// InvoiceStatus tracks the lifecycle of an invoice.
type InvoiceStatus string

const (
	StatusDraft     InvoiceStatus = "draft"
	StatusSent      InvoiceStatus = "sent"
	StatusPaid      InvoiceStatus = "paid"
	StatusCancelled InvoiceStatus = "cancelled"
	StatusOverdue   InvoiceStatus = "overdue"
)

// PaymentStatus tracks collection of an invoice.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentPartial  PaymentStatus = "partial"
	PaymentRefunded PaymentStatus = "refunded"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentPartial, PaymentRefunded:
		return true
	}
	return false
}

// Address of a customer.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Pincode string `json:"pincode,omitempty"`
	Country string `json:"country,omitempty"`
}

// Customer is the billed party, stored as a snapshot on the invoice.
type Customer struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Phone   string  `json:"phone,omitempty" validate:"max=20"`
	Email   string  `json:"email,omitempty" validate:"omitempty,email"`
	Address Address `json:"address"`
	TaxID   string  `json:"gstNumber,omitempty" validate:"max=20"`
}

// Line is a settled invoice line with the product snapshot taken at billing time.
type Line struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	SKU         string          `json:"sku"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TaxRate     decimal.Decimal `json:"gstRate"`
	TaxAmount   decimal.Decimal `json:"gstAmount"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"totalAmount"`
}

// Invoice is a settled sale.
type Invoice struct {
	ID            int64                `json:"id"`
	Number        string               `json:"invoiceNumber"`
	NumberYear    int                  `json:"-"`
	AttemptID     uuid.UUID            `json:"-"`
	Customer      Customer             `json:"customer"`
	Lines         []Line               `json:"items"`
	Subtotal      decimal.Decimal      `json:"subtotal"`
	TotalTax      decimal.Decimal      `json:"totalGst"`
	TotalDiscount decimal.Decimal      `json:"totalDiscount"`
	GrandTotal    decimal.Decimal      `json:"grandTotal"`
	PaymentMethod shared.PaymentMethod `json:"paymentMethod"`
	PaymentStatus PaymentStatus        `json:"paymentStatus"`
	Status        InvoiceStatus        `json:"status"`
	DueDate       *time.Time           `json:"dueDate,omitempty"`
	Notes         string               `json:"notes,omitempty"`
	Tags          []string             `json:"tags"`
	TallyDate     *time.Time           `json:"tallyDate,omitempty"`
	CreatedBy     int64                `json:"createdBy,omitempty"`
	CancelledBy   int64                `json:"cancelledBy,omitempty"`
	CancelledAt   *time.Time           `json:"cancelledAt,omitempty"`
	CancelReason  string               `json:"cancelReason,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// LineInput is one requested line of an invoice.
type LineInput struct {
	ProductID int64           `json:"productId" validate:"required"`
	Quantity  int64           `json:"quantity"`
	Discount  decimal.Decimal `json:"discount"`
}

// CreateInput carries a new invoice. Status may be draft or sent (default).
type CreateInput struct {
	Customer       Customer             `json:"customer"`
	Lines          []LineInput          `json:"items" validate:"required,min=1,dive"`
	PaymentMethod  shared.PaymentMethod `json:"paymentMethod"`
	Status         InvoiceStatus        `json:"status" validate:"omitempty,oneof=draft sent"`
	DueDate        string               `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	Notes          string               `json:"notes" validate:"max=1000"`
	Tags           []string             `json:"tags"`
	IdempotencyKey string               `json:"-"`
	ActorID        int64                `json:"-"`
}

// UpdateInput patches an invoice. Customer, lines, due date and payment method
// only change while the invoice is a draft.
type UpdateInput struct {
	Customer      *Customer             `json:"customer,omitempty"`
	Lines         []LineInput           `json:"items,omitempty" validate:"omitempty,min=1,dive"`
	PaymentMethod *shared.PaymentMethod `json:"paymentMethod,omitempty"`
	DueDate       *string               `json:"dueDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Notes         *string               `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Tags          []string              `json:"tags,omitempty"`
	ActorID       int64                 `json:"-"`
}

// PaymentUpdate changes how or whether an invoice was paid.
type PaymentUpdate struct {
	Method  *shared.PaymentMethod `json:"paymentMethod,omitempty"`
	Status  *PaymentStatus        `json:"paymentStatus,omitempty"`
	ActorID int64                 `json:"-"`
}

// SortField orders invoice listings.
type SortField string

const (
	SortCreatedAt  SortField = "createdAt"
	SortGrandTotal SortField = "grandTotal"
	SortNumber     SortField = "invoiceNumber"
)

// ListFilter narrows invoice listings.
type ListFilter struct {
	Status        InvoiceStatus
	PaymentStatus PaymentStatus
	Customer      string
	From          *time.Time
	To            *time.Time
	SortBy        SortField
	Ascending     bool
	Page          int
	Limit         int
}

// Marker stages and resolutions.
const (
	StageCreate   = "create"
	StageFinalize = "finalize"
	StageCancel   = "cancel"

	ResolutionCommitted  = "committed"
	ResolutionRolledBack = "rolled_back"
)

// ReconciliationMarker records a write whose commit outcome was unknown.
type ReconciliationMarker struct {
	ID            uuid.UUID  `json:"id"`
	InvoiceNumber string     `json:"invoiceNumber"`
	AttemptID     uuid.UUID  `json:"attemptId"`
	Stage         string     `json:"stage"`
	Detail        string     `json:"detail"`
	CreatedAt     time.Time  `json:"createdAt"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`
	Resolution    string     `json:"resolution,omitempty"`
}
