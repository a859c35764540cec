package inventory

import (
	"errors"
	"time"
)

// MovementType enumerates the ways stock can change.
type MovementType string

const (
	// MovementIn adds stock.
	MovementIn MovementType = "in"
	// MovementOut withdraws stock; never allowed to drive the level below zero.
	MovementOut MovementType = "out"
	// MovementAdjustment sets the level to an absolute count after a physical check.
	MovementAdjustment MovementType = "adjustment"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	return t == MovementIn || t == MovementOut || t == MovementAdjustment
}

// StockStatus is derived from the current level and the ledger thresholds.
type StockStatus string

const (
	StatusOutOfStock     StockStatus = "out-of-stock"
	StatusLowStock       StockStatus = "low-stock"
	StatusMinimumReached StockStatus = "minimum-reached"
	StatusOverstock      StockStatus = "overstock"
	StatusInStock        StockStatus = "in-stock"
)

var (
	// ErrInvalidQuantity indicates a movement quantity outside the allowed range.
	ErrInvalidQuantity = errors.New("inventory: invalid quantity")
	// ErrLedgerNotFound indicates a missing stock ledger.
	ErrLedgerNotFound = errors.New("inventory: stock ledger not found")
	// ErrLedgerExists indicates the product already has a ledger.
	ErrLedgerExists = errors.New("inventory: stock ledger already exists for product")
	// ErrNegativeStock indicates a withdrawal larger than the available stock.
	ErrNegativeStock = errors.New("inventory: negative stock not allowed")
)

// Default thresholds and location applied to new ledgers.
const (
	DefaultMinimumStock int64 = 10
	DefaultReorderLevel int64 = 20
	DefaultMaximumStock int64 = 1000
)

// Location identifies where a product is shelved.
type Location struct {
	Warehouse string `json:"warehouse"`
	Section   string `json:"section"`
	Shelf     string `json:"shelf"`
}

// DefaultLocation is used when a ledger is created without one.
var DefaultLocation = Location{Warehouse: "Main", Section: "A", Shelf: "1"}

// Ledger tracks the stock level of exactly one product.
type Ledger struct {
	ID           int64       `json:"id"`
	ProductID    int64       `json:"productId"`
	CurrentStock int64       `json:"currentStock"`
	MinimumStock int64       `json:"minimumStock"`
	ReorderLevel int64       `json:"reorderLevel"`
	MaximumStock int64       `json:"maximumStock"`
	Location     Location    `json:"location"`
	IsActive     bool        `json:"isActive"`
	Version      int64       `json:"version"`
	Status       StockStatus `json:"stockStatus"`
	LastUpdated  time.Time   `json:"lastUpdated"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// Movement is an append-only record of a stock change.
type Movement struct {
	ID            int64        `json:"id"`
	LedgerID      int64        `json:"ledgerId"`
	ProductID     int64        `json:"productId"`
	Type          MovementType `json:"type"`
	Quantity      int64        `json:"quantity"`
	PreviousStock int64        `json:"previousStock"`
	NewStock      int64        `json:"newStock"`
	Reason        string       `json:"reason"`
	Reference     string       `json:"reference,omitempty"`
	PerformedBy   int64        `json:"performedBy,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// MovementSpec describes a movement before it is applied to a ledger.
type MovementSpec struct {
	Type      MovementType
	Quantity  int64
	Reason    string
	Reference string
	ActorID   int64
}

// CreateLedgerInput registers a product with the stock ledger.
type CreateLedgerInput struct {
	ProductID    int64     `json:"productId" validate:"required,gt=0"`
	InitialStock int64     `json:"initialStock" validate:"gte=0"`
	MinimumStock *int64    `json:"minimumStock,omitempty" validate:"omitempty,gte=0"`
	ReorderLevel *int64    `json:"reorderLevel,omitempty" validate:"omitempty,gte=0"`
	MaximumStock *int64    `json:"maximumStock,omitempty" validate:"omitempty,gt=0"`
	Location     *Location `json:"location,omitempty"`
	ActorID      int64     `json:"-"`
}

// UpdateLedgerInput changes thresholds, location or the active flag. Stock levels
// only change through movements.
type UpdateLedgerInput struct {
	MinimumStock *int64    `json:"minimumStock,omitempty" validate:"omitempty,gte=0"`
	ReorderLevel *int64    `json:"reorderLevel,omitempty" validate:"omitempty,gte=0"`
	MaximumStock *int64    `json:"maximumStock,omitempty" validate:"omitempty,gt=0"`
	Location     *Location `json:"location,omitempty"`
	IsActive     *bool     `json:"isActive,omitempty"`
	ActorID      int64     `json:"-"`
}

// MovementInput is a manual movement posted against a ledger.
type MovementInput struct {
	LedgerID  int64        `json:"-"`
	Type      MovementType `json:"type" validate:"required,oneof=in out adjustment"`
	Quantity  int64        `json:"quantity" validate:"gte=0"`
	Reason    string       `json:"reason" validate:"required,max=500"`
	Reference string       `json:"reference" validate:"max=100"`
	ActorID   int64        `json:"-"`
}

// ListFilter narrows ledger listings.
type ListFilter struct {
	Status StockStatus
	Page   int
	Limit  int
}

// LowStockAlert flags a ledger at or below its reorder level.
type LowStockAlert struct {
	Ledger  Ledger `json:"ledger"`
	Urgency string `json:"urgency"`
}
