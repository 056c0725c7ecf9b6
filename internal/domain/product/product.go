package product

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrNotOwner is returned when a seller operates on another seller's
	// product.
	ErrNotOwner = errors.New("not the product owner")
)

// DefaultLowStockThreshold is applied when a seller does not set one.
const DefaultLowStockThreshold = 5

// StockStatus is the derived availability label for a product. It is always a
// pure function of (stock, low stock threshold) and must be recomputed in the
// same write that changes stock.
type StockStatus string

const (
	StockStatusIn  StockStatus = "In Stock"
	StockStatusLow StockStatus = "Low Stock"
	StockStatusOut StockStatus = "Out of Stock"
)

// DeriveStockStatus computes the stock status for a stock count and threshold.
func DeriveStockStatus(stock, lowStockThreshold int) StockStatus {
	switch {
	case stock <= 0:
		return StockStatusOut
	case stock <= lowStockThreshold:
		return StockStatusLow
	default:
		return StockStatusIn
	}
}

// Image holds a stored reference to a product image. Image files themselves
// live in an external media store.
type Image struct {
	URL string `json:"url"`
}

// Product represents a catalog item offered by a seller.
type Product struct {
	ID                string          `json:"id"`
	SellerID          string          `json:"seller_id"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	Category          string          `json:"category"`
	Subcategory       string          `json:"subcategory,omitempty"`
	Brand             string          `json:"brand,omitempty"`
	Price             decimal.Decimal `json:"price"`
	OfferPrice        decimal.Decimal `json:"offer_price"`
	Images            []Image         `json:"images,omitempty"`
	Features          []string        `json:"features,omitempty"`
	Stock             int             `json:"stock"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	StockStatus       StockStatus     `json:"stock_status"`
	Archived          bool            `json:"archived"`
	CreatedAt         time.Time       `json:"created_at"`
}

// InsufficientStockError indicates a reservation asked for more units than the
// product currently has.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Repository defines persistence and inventory-ledger operations for products.
//
// ReserveStock and ReleaseStock are the ledger primitives: both must apply the
// stock delta and recompute the stock status in a single atomic write.
// ReserveStock fails without mutating when the requested quantity exceeds the
// current stock, so concurrent reservations against the same product can never
// oversell.
type Repository interface {
	List(ctx context.Context, includeArchived bool) ([]Product, error)
	ListBySeller(ctx context.Context, sellerID string) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error

	// UpdateStock sets the stock count and low-stock threshold, recomputing
	// the stock status in the same write, and returns the updated product.
	UpdateStock(ctx context.Context, id string, stock, lowStockThreshold int) (*Product, error)

	SetArchived(ctx context.Context, id string, archived bool) error

	// ReserveStock atomically decrements stock by qty if qty <= current stock
	// and returns the new stock count. It returns *InsufficientStockError
	// (without mutating) when not enough units are available.
	ReserveStock(ctx context.Context, id string, qty int) (int, error)

	// ReleaseStock atomically increments stock by qty and returns the new
	// stock count. Growth is uncapped.
	ReleaseStock(ctx context.Context, id string, qty int) (int, error)
}
