// Package receipt renders printable invoice receipts.
package receipt

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/odyssey-retail/internal/billing"
)

// Renderer writes A4 receipts with the shop header on top.
type Renderer struct {
	ShopName string
	Address  string
	TaxID    string
	Location *time.Location
	printer  *message.Printer
}

// NewRenderer builds a Renderer that formats amounts for lang (for example "en-IN").
func NewRenderer(shopName, address, taxID string, loc *time.Location, lang string) *Renderer {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{
		ShopName: shopName,
		Address:  address,
		TaxID:    taxID,
		Location: loc,
		printer:  message.NewPrinter(tag),
	}
}

// Money formats an amount with two decimals and locale digit grouping.
func (r *Renderer) Money(d decimal.Decimal) string {
	return "Rs. " + r.printer.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

// Render writes the receipt of inv as PDF.
func (r *Renderer) Render(w io.Writer, inv billing.Invoice) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetTitle(inv.Number, false)
	pdf.SetCreator(r.ShopName, false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, r.ShopName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	if r.Address != "" {
		pdf.CellFormat(190, 5, r.Address, "", 1, "C", false, 0, "")
	}
	if r.TaxID != "" {
		pdf.CellFormat(190, 5, "GSTIN: "+r.TaxID, "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	title := "Tax Invoice"
	if inv.Status == billing.StatusCancelled {
		title = "Tax Invoice (CANCELLED)"
	}
	pdf.CellFormat(190, 8, title, "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(95, 6, "Invoice No: "+inv.Number, "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 6, "Date: "+inv.CreatedAt.In(r.Location).Format("02-Jan-2006 03:04 PM"), "RB", 1, "L", false, 0, "")
	pdf.CellFormat(95, 6, "Customer: "+inv.Customer.Name, "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 6, "Phone: "+inv.Customer.Phone, "RB", 1, "L", false, 0, "")
	if addr := formatAddress(inv.Customer.Address); addr != "" {
		pdf.CellFormat(190, 6, "Address: "+addr, "LRB", 1, "L", false, 0, "")
	}
	if inv.Customer.TaxID != "" {
		pdf.CellFormat(190, 6, "Customer GSTIN: "+inv.Customer.TaxID, "LRB", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(200, 200, 200)
	pdf.CellFormat(70, 7, "Item", "1", 0, "C", true, 0, "")
	pdf.CellFormat(15, 7, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 7, "Rate", "1", 0, "C", true, 0, "")
	pdf.CellFormat(20, 7, "GST %", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 7, "Discount", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 7, "Amount", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, l := range inv.Lines {
		pdf.CellFormat(70, 6, truncate(l.ProductName+" ("+l.SKU+")", 40), "1", 0, "L", false, 0, "")
		pdf.CellFormat(15, 6, fmt.Sprintf("%d", l.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, r.Money(l.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, l.TaxRate.StringFixed(2), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, r.Money(l.Discount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, r.Money(l.Total), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(3)

	totals := []struct {
		label  string
		amount decimal.Decimal
	}{
		{"Subtotal", inv.Subtotal},
		{"GST", inv.TotalTax},
		{"Discount", inv.TotalDiscount},
	}
	for _, t := range totals {
		pdf.CellFormat(160, 6, t.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, r.Money(t.amount), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(160, 8, "Grand Total", "T", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, r.Money(inv.GrandTotal), "T", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.Ln(4)
	pdf.CellFormat(190, 6, fmt.Sprintf("Payment: %s (%s)", inv.PaymentMethod, inv.PaymentStatus), "", 1, "L", false, 0, "")
	if inv.Notes != "" {
		pdf.MultiCell(190, 5, "Notes: "+inv.Notes, "", "L", false)
	}
	pdf.Ln(6)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(190, 5, "Thank you for shopping with us.", "", 1, "C", false, 0, "")

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("receipt: layout %s: %w", inv.Number, err)
	}
	return pdf.Output(w)
}

func formatAddress(a billing.Address) string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Street, a.City, a.State, a.Pincode, a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
