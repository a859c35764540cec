package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-retail/internal/platform/db"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

const productColumns = `id, name, brand, model, category, description, sku, barcode, base_price, selling_price,
	cost_price, gst_rate, warranty_months, tags, is_active, created_at, updated_at`

// Querier reads products through any pgx connection, including an open transaction.
type Querier struct {
	db db.DBTX
}

// NewQuerier wraps q.
func NewQuerier(q db.DBTX) *Querier {
	return &Querier{db: q}
}

// FindProduct loads an active product and takes a share lock when called inside a
// transaction so the price cannot change until it commits.
func (q *Querier) FindProduct(ctx context.Context, id int64) (Product, error) {
	row := q.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 AND is_active FOR SHARE`, id)
	p, err := scanProduct(row)
	if err != nil {
		if db.IsNoRows(err) {
			return Product{}, shared.NotFound("product", id, ErrProductNotFound)
		}
		return Product{}, fmt.Errorf("catalog: find product: %w", err)
	}
	return p, nil
}

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts p and returns the stored row.
func (r *Repository) Create(ctx context.Context, p Product) (Product, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO products (name, brand, model, category, description, sku, barcode,
		base_price, selling_price, cost_price, gst_rate, warranty_months, tags, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, TRUE)
		RETURNING `+productColumns,
		p.Name, p.Brand, p.Model, string(p.Category), p.Description, p.SKU, p.Barcode,
		p.BasePrice, p.SellingPrice, p.CostPrice, p.GSTRate, p.WarrantyMonths, p.Tags)
	stored, err := scanProduct(row)
	if err != nil {
		if db.IsUniqueViolation(err, "products_sku_key") {
			return Product{}, shared.Conflict("product", "sku "+p.SKU+" already exists", ErrDuplicateSKU)
		}
		return Product{}, fmt.Errorf("catalog: insert product: %w", err)
	}
	return stored, nil
}

// Update overwrites the mutable columns of p.
func (r *Repository) Update(ctx context.Context, p Product) (Product, error) {
	row := r.pool.QueryRow(ctx, `UPDATE products SET name = $2, brand = $3, model = $4, category = $5,
		description = $6, barcode = $7, base_price = $8, selling_price = $9, cost_price = $10, gst_rate = $11,
		warranty_months = $12, tags = $13, is_active = $14, updated_at = NOW()
		WHERE id = $1 RETURNING `+productColumns,
		p.ID, p.Name, p.Brand, p.Model, string(p.Category), p.Description, p.Barcode,
		p.BasePrice, p.SellingPrice, p.CostPrice, p.GSTRate, p.WarrantyMonths, p.Tags, p.IsActive)
	stored, err := scanProduct(row)
	if err != nil {
		if db.IsNoRows(err) {
			return Product{}, shared.NotFound("product", p.ID, ErrProductNotFound)
		}
		return Product{}, fmt.Errorf("catalog: update product: %w", err)
	}
	return stored, nil
}

// Get loads a product regardless of its active flag.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if db.IsNoRows(err) {
			return Product{}, shared.NotFound("product", id, ErrProductNotFound)
		}
		return Product{}, fmt.Errorf("catalog: get product: %w", err)
	}
	return p, nil
}

// List returns one page of products and the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR brand ILIKE $%d OR model ILIKE $%d OR sku ILIKE $%d)", n, n, n, n))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("catalog: count products: %w", err)
	}

	page, limit := shared.NormalizePage(filter.Page, filter.Limit)
	args = append(args, limit, shared.Offset(page, limit))
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products`+clause+
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("catalog: scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p        Product
		category string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Brand, &p.Model, &category, &p.Description, &p.SKU, &p.Barcode,
		&p.BasePrice, &p.SellingPrice, &p.CostPrice, &p.GSTRate, &p.WarrantyMonths, &p.Tags, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt)
	p.Category = Category(category)
	return p, err
}
