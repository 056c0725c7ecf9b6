package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/gearmart/internal/domain/cart"
)

const (
	getCartSQL = `SELECT items FROM carts WHERE user_id = $1`

	setCartSQL = `INSERT INTO carts (user_id, items, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET items = EXCLUDED.items, updated_at = now()`

	clearCartSQL = `DELETE FROM carts WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the buyer's cart. A buyer without a stored row gets an empty
// cart.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	c := &cart.Cart{UserID: userID, Items: map[string]int{}}

	var itemsJSON []byte
	err := r.pool.QueryRow(ctx, getCartSQL, userID).Scan(&itemsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting cart for user %q: %w", userID, err)
	}

	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &c.Items); err != nil {
			return nil, fmt.Errorf("unmarshaling cart for user %q: %w", userID, err)
		}
	}
	return c, nil
}

// Set upserts the buyer's cart.
func (r *CartRepository) Set(ctx context.Context, c *cart.Cart) error {
	itemsJSON, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("marshaling cart items: %w", err)
	}
	if _, err := r.pool.Exec(ctx, setCartSQL, c.UserID, itemsJSON); err != nil {
		return fmt.Errorf("setting cart for user %q: %w", c.UserID, err)
	}
	return nil
}

// Clear removes the buyer's cart. Clearing an absent cart is not an error.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, clearCartSQL, userID); err != nil {
		return fmt.Errorf("clearing cart for user %q: %w", userID, err)
	}
	return nil
}
