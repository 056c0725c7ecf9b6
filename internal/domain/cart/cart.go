// Package cart holds the buyer's pending item selection. The core only needs
// to clear it after a successful order; reads and writes come from the
// storefront UI.
package cart

import "context"

// Cart maps product IDs to selected quantities for a single buyer.
type Cart struct {
	UserID string
	Items  map[string]int
}

// Repository defines persistence operations for carts.
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Set(ctx context.Context, c *Cart) error
	Clear(ctx context.Context, userID string) error
}
