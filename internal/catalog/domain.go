package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Category enumerates product categories sold by the store.
type Category string

const (
	CategoryRefrigerator   Category = "refrigerator"
	CategoryWashingMachine Category = "washing-machine"
	CategoryAirConditioner Category = "air-conditioner"
	CategoryTelevision     Category = "television"
	CategoryMicrowave      Category = "microwave"
	CategoryOther          Category = "other"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryRefrigerator, CategoryWashingMachine, CategoryAirConditioner, CategoryTelevision, CategoryMicrowave, CategoryOther:
		return true
	}
	return false
}

// ErrProductNotFound indicates a missing or inactive product.
var ErrProductNotFound = errors.New("catalog: product not found")

// ErrDuplicateSKU indicates the SKU is already used by another product.
var ErrDuplicateSKU = errors.New("catalog: sku already exists")

// Product is a sellable catalog item. BasePrice is the pre-tax unit price used on invoices.
type Product struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Brand          string          `json:"brand"`
	Model          string          `json:"model"`
	Category       Category        `json:"category"`
	Description    string          `json:"description"`
	SKU            string          `json:"sku"`
	Barcode        string          `json:"barcode,omitempty"`
	BasePrice      decimal.Decimal `json:"basePrice"`
	SellingPrice   decimal.Decimal `json:"sellingPrice"`
	CostPrice      decimal.Decimal `json:"costPrice"`
	GSTRate        decimal.Decimal `json:"gstRate"`
	WarrantyMonths int             `json:"warrantyMonths"`
	Tags           []string        `json:"tags"`
	IsActive       bool            `json:"isActive"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// CreateProductRequest is the payload for registering a product.
type CreateProductRequest struct {
	Name           string           `json:"name" validate:"required,max=200"`
	Brand          string           `json:"brand" validate:"required,max=100"`
	Model          string           `json:"model" validate:"required,max=100"`
	Category       Category         `json:"category" validate:"required"`
	Description    string           `json:"description" validate:"max=2000"`
	SKU            string           `json:"sku" validate:"required,max=64"`
	Barcode        string           `json:"barcode" validate:"max=64"`
	BasePrice      decimal.Decimal  `json:"basePrice"`
	SellingPrice   decimal.Decimal  `json:"sellingPrice"`
	CostPrice      decimal.Decimal  `json:"costPrice"`
	GSTRate        *decimal.Decimal `json:"gstRate,omitempty"`
	WarrantyMonths *int             `json:"warrantyMonths,omitempty" validate:"omitempty,gte=0,lte=240"`
	Tags           []string         `json:"tags"`
}

// UpdateProductRequest carries optional field changes.
type UpdateProductRequest struct {
	Name           *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Brand          *string          `json:"brand,omitempty" validate:"omitempty,max=100"`
	Model          *string          `json:"model,omitempty" validate:"omitempty,max=100"`
	Category       *Category        `json:"category,omitempty"`
	Description    *string          `json:"description,omitempty" validate:"omitempty,max=2000"`
	Barcode        *string          `json:"barcode,omitempty" validate:"omitempty,max=64"`
	BasePrice      *decimal.Decimal `json:"basePrice,omitempty"`
	SellingPrice   *decimal.Decimal `json:"sellingPrice,omitempty"`
	CostPrice      *decimal.Decimal `json:"costPrice,omitempty"`
	GSTRate        *decimal.Decimal `json:"gstRate,omitempty"`
	WarrantyMonths *int             `json:"warrantyMonths,omitempty" validate:"omitempty,gte=0,lte=240"`
	Tags           []string         `json:"tags,omitempty"`
	IsActive       *bool            `json:"isActive,omitempty"`
}

// ListFilter narrows product listings.
type ListFilter struct {
	Category Category
	Search   string
	Active   *bool
	Page     int
	Limit    int
}

var (
	hundred           = decimal.NewFromInt(100)
	defaultGSTRate    = decimal.NewFromInt(18)
	defaultWarrantyMo = 12
)
