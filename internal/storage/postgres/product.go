package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/gearmart/internal/domain/product"
)

const productColumns = `id, seller_id, name, description, category, subcategory, brand,
	price, offer_price, images, features, stock, low_stock_threshold, stock_status,
	archived, created_at`

const (
	listProductsSQL = `SELECT ` + productColumns + `
		FROM products WHERE archived = FALSE OR $1 ORDER BY created_at DESC, id`

	listProductsBySellerSQL = `SELECT ` + productColumns + `
		FROM products WHERE seller_id = $1 ORDER BY created_at DESC, id`

	getProductByIDSQL = `SELECT ` + productColumns + `
		FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + `
		FROM products WHERE id = ANY($1)`

	createProductSQL = `INSERT INTO products (id, seller_id, name, description, category,
		subcategory, brand, price, offer_price, images, features, stock,
		low_stock_threshold, stock_status, archived, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	updateProductStockSQL = `UPDATE products
		SET stock = $2, low_stock_threshold = $3, stock_status = $4
		WHERE id = $1
		RETURNING ` + productColumns

	setProductArchivedSQL = `UPDATE products SET archived = $2 WHERE id = $1`

	// The conditional decrement is the oversell guard: the row predicate
	// rejects reservations larger than the remaining stock, and the status
	// recompute happens in the same statement.
	reserveStockSQL = `UPDATE products
		SET stock = stock - $2,
			stock_status = CASE
				WHEN stock - $2 <= 0 THEN 'Out of Stock'
				WHEN stock - $2 <= low_stock_threshold THEN 'Low Stock'
				ELSE 'In Stock'
			END
		WHERE id = $1 AND stock >= $2
		RETURNING stock`

	releaseStockSQL = `UPDATE products
		SET stock = stock + $2,
			stock_status = CASE
				WHEN stock + $2 <= 0 THEN 'Out of Stock'
				WHEN stock + $2 <= low_stock_threshold THEN 'Low Stock'
				ELSE 'In Stock'
			END
		WHERE id = $1
		RETURNING stock`

	getStockSQL = `SELECT stock FROM products WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns catalog products, newest first. Archived products are included
// only when requested.
func (r *ProductRepository) List(ctx context.Context, includeArchived bool) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// ListBySeller returns all of a seller's products, archived included.
func (r *ProductRepository) ListBySeller(ctx context.Context, sellerID string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsBySellerSQL, sellerID)
	if err != nil {
		return nil, fmt.Errorf("listing products for seller %q: %w", sellerID, err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create persists a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	imagesJSON, err := json.Marshal(p.Images)
	if err != nil {
		return fmt.Errorf("marshaling product images: %w", err)
	}

	_, err = r.pool.Exec(ctx, createProductSQL,
		p.ID, p.SellerID, p.Name, p.Description, p.Category,
		p.Subcategory, p.Brand, p.Price, p.OfferPrice, imagesJSON, p.Features,
		p.Stock, p.LowStockThreshold, p.StockStatus, p.Archived, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// UpdateStock sets the stock count and threshold, recomputing the status in
// the same write, and returns the updated product.
func (r *ProductRepository) UpdateStock(ctx context.Context, id string, stock, lowStockThreshold int) (*product.Product, error) {
	status := product.DeriveStockStatus(stock, lowStockThreshold)
	rows, err := r.pool.Query(ctx, updateProductStockSQL, id, stock, lowStockThreshold, status)
	if err != nil {
		return nil, fmt.Errorf("updating stock for product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("updating stock for product %q: %w", id, err)
	}
	return &p, nil
}

// SetArchived archives or unarchives a product.
func (r *ProductRepository) SetArchived(ctx context.Context, id string, archived bool) error {
	tag, err := r.pool.Exec(ctx, setProductArchivedSQL, id, archived)
	if err != nil {
		return fmt.Errorf("archiving product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// ReserveStock decrements stock by qty when enough units remain, returning
// the new count. A reservation that would overdraw fails without mutating.
func (r *ProductRepository) ReserveStock(ctx context.Context, id string, qty int) (int, error) {
	var remaining int
	err := r.pool.QueryRow(ctx, reserveStockSQL, id, qty).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("reserving %d units of product %q: %w", qty, id, err)
	}

	// The predicate rejected the update: either the product is gone or the
	// stock is short. Re-read to tell the two apart.
	var available int
	err = r.pool.QueryRow(ctx, getStockSQL, id).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, product.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("reading stock of product %q: %w", id, err)
	}
	return 0, &product.InsufficientStockError{ProductID: id, Requested: qty, Available: available}
}

// ReleaseStock increments stock by qty and returns the new count.
func (r *ProductRepository) ReleaseStock(ctx context.Context, id string, qty int) (int, error) {
	var remaining int
	err := r.pool.QueryRow(ctx, releaseStockSQL, id, qty).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, product.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("releasing %d units of product %q: %w", qty, id, err)
	}
	return remaining, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p          product.Product
		imagesJSON []byte
	)
	err := row.Scan(
		&p.ID, &p.SellerID, &p.Name, &p.Description, &p.Category, &p.Subcategory, &p.Brand,
		&p.Price, &p.OfferPrice, &imagesJSON, &p.Features, &p.Stock, &p.LowStockThreshold,
		&p.StockStatus, &p.Archived, &p.CreatedAt,
	)
	if err != nil {
		return p, err
	}
	if len(imagesJSON) > 0 {
		if err := json.Unmarshal(imagesJSON, &p.Images); err != nil {
			return p, fmt.Errorf("unmarshaling images for product %q: %w", p.ID, err)
		}
	}
	return p, nil
}
