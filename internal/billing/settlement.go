package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/catalog"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

var hundred = decimal.NewFromInt(100)

// LineAmounts are the money figures of one line, each rounded to two places.
type LineAmounts struct {
	Gross    decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// ComputeLine prices qty units at unitPrice with taxRate percent tax and a flat discount.
// gross = qty*price, tax = gross*rate/100, total = gross + tax - discount.
func ComputeLine(qty int64, unitPrice, taxRate, discount decimal.Decimal) (LineAmounts, error) {
	if qty < 1 {
		return LineAmounts{}, &shared.Error{Kind: shared.ErrValidation, Field: "quantity", Message: "must be at least 1", Cause: ErrInvalidQuantity}
	}
	if unitPrice.IsNegative() {
		return LineAmounts{}, shared.Validation("unitPrice", "must be >= 0")
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(hundred) {
		return LineAmounts{}, shared.Validation("gstRate", "must be between 0 and 100")
	}
	if discount.IsNegative() {
		return LineAmounts{}, shared.Validation("discount", "must be >= 0")
	}
	gross := unitPrice.Mul(decimal.NewFromInt(qty)).Round(2)
	tax := gross.Mul(taxRate).Div(hundred).Round(2)
	disc := discount.Round(2)
	if disc.GreaterThan(gross.Add(tax)) {
		return LineAmounts{}, shared.Validation("discount", "exceeds line amount")
	}
	return LineAmounts{Gross: gross, Tax: tax, Discount: disc, Total: gross.Add(tax).Sub(disc)}, nil
}

// ProductLookup resolves active products for settlement.
type ProductLookup interface {
	FindProduct(ctx context.Context, id int64) (catalog.Product, error)
}

// StockLevels reports the stock available for a product. A nil StockLevels skips the check.
type StockLevels func(productID int64) int64

// Settlement is the priced result of a set of line inputs.
type Settlement struct {
	Lines         []Line
	Subtotal      decimal.Decimal
	TotalTax      decimal.Decimal
	TotalDiscount decimal.Decimal
	GrandTotal    decimal.Decimal
}

// Settle prices lines in order and stops at the first failing line. Each line is
// validated, its product resolved, and stock checked against the running total
// requested for that product before its amounts are accumulated.
func Settle(ctx context.Context, inputs []LineInput, products ProductLookup, stock StockLevels) (Settlement, error) {
	if len(inputs) == 0 {
		return Settlement{}, shared.Validation("items", "at least one item is required")
	}
	out := Settlement{
		Lines:         make([]Line, 0, len(inputs)),
		Subtotal:      decimal.Zero,
		TotalTax:      decimal.Zero,
		TotalDiscount: decimal.Zero,
	}
	requested := make(map[int64]int64, len(inputs))
	for i, in := range inputs {
		if in.Quantity < 1 {
			return Settlement{}, &shared.Error{
				Kind:    shared.ErrValidation,
				Field:   fmt.Sprintf("items[%d].quantity", i),
				Message: "must be at least 1",
				Cause:   ErrInvalidQuantity,
			}
		}
		product, err := products.FindProduct(ctx, in.ProductID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return Settlement{}, &shared.Error{
					Kind:     shared.ErrNotFound,
					Resource: "product",
					ID:       fmt.Sprint(in.ProductID),
					Field:    fmt.Sprintf("items[%d].productId", i),
					Cause:    ErrProductNotFound,
				}
			}
			return Settlement{}, err
		}
		if stock != nil {
			requested[in.ProductID] += in.Quantity
			if available := stock(in.ProductID); requested[in.ProductID] > available {
				return Settlement{}, &shared.InsufficientStockError{
					ProductID: in.ProductID,
					Requested: requested[in.ProductID],
					Available: available,
				}
			}
		}
		amounts, err := ComputeLine(in.Quantity, product.BasePrice, product.GSTRate, in.Discount)
		if err != nil {
			var se *shared.Error
			if errors.As(err, &se) {
				se.Field = fmt.Sprintf("items[%d].%s", i, se.Field)
			}
			return Settlement{}, err
		}
		out.Lines = append(out.Lines, Line{
			ProductID:   product.ID,
			ProductName: product.Name,
			SKU:         product.SKU,
			Quantity:    in.Quantity,
			UnitPrice:   product.BasePrice,
			TaxRate:     product.GSTRate,
			TaxAmount:   amounts.Tax,
			Discount:    amounts.Discount,
			Total:       amounts.Total,
		})
		out.Subtotal = out.Subtotal.Add(amounts.Gross)
		out.TotalTax = out.TotalTax.Add(amounts.Tax)
		out.TotalDiscount = out.TotalDiscount.Add(amounts.Discount)
	}
	out.GrandTotal = out.Subtotal.Add(out.TotalTax).Sub(out.TotalDiscount)
	return out, nil
}

// Apply copies the settled lines and totals onto inv.
func (s Settlement) Apply(inv *Invoice) {
	inv.Lines = s.Lines
	inv.Subtotal = s.Subtotal
	inv.TotalTax = s.TotalTax
	inv.TotalDiscount = s.TotalDiscount
	inv.GrandTotal = s.GrandTotal
}

// CheckStock verifies that stock covers the cumulative quantity of every product in lines.
func CheckStock(lines []Line, stock StockLevels) error {
	requested := make(map[int64]int64, len(lines))
	for _, l := range lines {
		requested[l.ProductID] += l.Quantity
		if available := stock(l.ProductID); requested[l.ProductID] > available {
			return &shared.InsufficientStockError{ProductID: l.ProductID, Requested: requested[l.ProductID], Available: available}
		}
	}
	return nil
}
