package catalog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// RepositoryPort abstracts product persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, p Product) (Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
}

// Service coordinates catalog operations.
type Service struct {
	repo   RepositoryPort
	cache  *Cache
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// CreateProduct validates and stores a new product.
func (s *Service) CreateProduct(ctx context.Context, req CreateProductRequest) (Product, error) {
	p := Product{
		Name:           strings.TrimSpace(req.Name),
		Brand:          strings.TrimSpace(req.Brand),
		Model:          strings.TrimSpace(req.Model),
		Category:       req.Category,
		Description:    req.Description,
		SKU:            strings.ToUpper(strings.TrimSpace(req.SKU)),
		Barcode:        req.Barcode,
		BasePrice:      req.BasePrice,
		SellingPrice:   req.SellingPrice,
		CostPrice:      req.CostPrice,
		GSTRate:        defaultGSTRate,
		WarrantyMonths: defaultWarrantyMo,
		Tags:           shared.NormalizeTags(req.Tags),
		IsActive:       true,
	}
	if req.GSTRate != nil {
		p.GSTRate = *req.GSTRate
	}
	if req.WarrantyMonths != nil {
		p.WarrantyMonths = *req.WarrantyMonths
	}
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, p)
}

// UpdateProduct applies the non-nil fields of req.
func (s *Service) UpdateProduct(ctx context.Context, id int64, req UpdateProductRequest) (Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Brand != nil {
		p.Brand = strings.TrimSpace(*req.Brand)
	}
	if req.Model != nil {
		p.Model = strings.TrimSpace(*req.Model)
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Barcode != nil {
		p.Barcode = *req.Barcode
	}
	if req.BasePrice != nil {
		p.BasePrice = *req.BasePrice
	}
	if req.SellingPrice != nil {
		p.SellingPrice = *req.SellingPrice
	}
	if req.CostPrice != nil {
		p.CostPrice = *req.CostPrice
	}
	if req.GSTRate != nil {
		p.GSTRate = *req.GSTRate
	}
	if req.WarrantyMonths != nil {
		p.WarrantyMonths = *req.WarrantyMonths
	}
	if req.Tags != nil {
		p.Tags = shared.NormalizeTags(req.Tags)
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	updated, err := s.repo.Update(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx, id)
	return updated, nil
}

// DeactivateProduct hides a product from sale. Invoices keep their snapshots.
func (s *Service) DeactivateProduct(ctx context.Context, id int64) error {
	inactive := false
	_, err := s.UpdateProduct(ctx, id, UpdateProductRequest{IsActive: &inactive})
	return err
}

// GetProduct returns a product, served from cache when possible.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.cache.Fetch(ctx, id, func(ctx context.Context) (Product, error) {
		return s.repo.Get(ctx, id)
	})
}

// ListProducts returns a page of products.
func (s *Service) ListProducts(ctx context.Context, filter ListFilter) ([]Product, shared.Pagination, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, shared.Pagination{}, shared.Validation("category", "unknown category")
	}
	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return products, shared.NewPagination(filter.Page, filter.Limit, total), nil
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("invalidate product cache", slog.Int64("product_id", id), slog.Any("error", err))
	}
}

func validateProduct(p Product) error {
	switch {
	case p.Name == "":
		return shared.Validation("name", "required")
	case p.Brand == "":
		return shared.Validation("brand", "required")
	case p.Model == "":
		return shared.Validation("model", "required")
	case p.SKU == "":
		return shared.Validation("sku", "required")
	case !p.Category.Valid():
		return shared.Validation("category", "unknown category")
	case p.BasePrice.IsNegative():
		return shared.Validation("basePrice", "must be >= 0")
	case p.SellingPrice.IsNegative():
		return shared.Validation("sellingPrice", "must be >= 0")
	case p.CostPrice.IsNegative():
		return shared.Validation("costPrice", "must be >= 0")
	case p.GSTRate.IsNegative() || p.GSTRate.GreaterThan(hundred):
		return shared.Validation("gstRate", "must be between 0 and 100")
	case p.WarrantyMonths < 0:
		return shared.Validation("warrantyMonths", "must be >= 0")
	}
	return nil
}

// PriceWithTax returns the unit price including GST, rounded to two places.
func (p Product) PriceWithTax() decimal.Decimal {
	return p.BasePrice.Add(p.BasePrice.Mul(p.GSTRate).Div(hundred)).Round(2)
}
