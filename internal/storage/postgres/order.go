package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/gearmart/internal/domain/order"
)

const orderColumns = `id, user_id, items, amount, tax, shipping_fee, total_amount,
	address, status, can_cancel, payment_method, payment_status, payment_details,
	tracking_number, estimated_delivery, tracking_history, return_request,
	archived, original, created_at`

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, items, amount, tax, shipping_fee,
		total_amount, address, status, can_cancel, payment_method, payment_status,
		payment_details, tracking_number, estimated_delivery, tracking_history,
		return_request, archived, original, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	updateOrderSQL = `UPDATE orders
		SET items = $2, amount = $3, tax = $4, shipping_fee = $5, total_amount = $6,
			address = $7, status = $8, can_cancel = $9, payment_method = $10,
			payment_status = $11, payment_details = $12, tracking_number = $13,
			estimated_delivery = $14, tracking_history = $15, return_request = $16,
			archived = $17, original = $18
		WHERE id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1 AND (archived = FALSE OR $2)
		ORDER BY created_at DESC, id`

	listAllOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE archived = FALSE OR $1
		ORDER BY created_at DESC, id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Structured
// sub-entities (items, address, payment details, tracking history, the return
// request, and the archive snapshot) live in JSONB columns.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	cols, err := marshalOrder(o)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, cols.items, o.Amount, o.Tax, o.ShippingFee,
		o.TotalAmount, cols.address, o.Status, o.CanCancel, o.PaymentMethod,
		o.PaymentStatus, cols.paymentDetails, o.TrackingNumber, o.EstimatedDelivery,
		cols.trackingHistory, cols.returnRequest, o.Archived, cols.original, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// Update persists the full state of an existing order.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	cols, err := marshalOrder(o)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, updateOrderSQL,
		o.ID, cols.items, o.Amount, o.Tax, o.ShippingFee, o.TotalAmount,
		cols.address, o.Status, o.CanCancel, o.PaymentMethod, o.PaymentStatus,
		cols.paymentDetails, o.TrackingNumber, o.EstimatedDelivery,
		cols.trackingHistory, cols.returnRequest, o.Archived, cols.original,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// ListByUser returns a buyer's orders, newest first. Archived orders are
// included only when requested.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, includeArchived bool) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListAll returns every order, newest first, for the seller dashboard.
func (r *OrderRepository) ListAll(ctx context.Context, includeArchived bool) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listAllOrdersSQL, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

type orderJSONColumns struct {
	items           []byte
	address         []byte
	paymentDetails  []byte
	trackingHistory []byte
	returnRequest   []byte
	original        []byte
}

func marshalOrder(o *order.Order) (orderJSONColumns, error) {
	var (
		cols orderJSONColumns
		err  error
	)
	if cols.items, err = json.Marshal(o.Items); err != nil {
		return cols, fmt.Errorf("marshaling order items: %w", err)
	}
	if cols.address, err = json.Marshal(o.Address); err != nil {
		return cols, fmt.Errorf("marshaling order address: %w", err)
	}
	if cols.paymentDetails, err = json.Marshal(o.PaymentDetails); err != nil {
		return cols, fmt.Errorf("marshaling payment details: %w", err)
	}
	if cols.trackingHistory, err = json.Marshal(o.TrackingHistory); err != nil {
		return cols, fmt.Errorf("marshaling tracking history: %w", err)
	}
	if cols.returnRequest, err = json.Marshal(o.ReturnRequest); err != nil {
		return cols, fmt.Errorf("marshaling return request: %w", err)
	}
	if o.Original != nil {
		if cols.original, err = json.Marshal(o.Original); err != nil {
			return cols, fmt.Errorf("marshaling archive snapshot: %w", err)
		}
	}
	return cols, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o    order.Order
		cols orderJSONColumns
	)
	err := row.Scan(
		&o.ID, &o.UserID, &cols.items, &o.Amount, &o.Tax, &o.ShippingFee,
		&o.TotalAmount, &cols.address, &o.Status, &o.CanCancel, &o.PaymentMethod,
		&o.PaymentStatus, &cols.paymentDetails, &o.TrackingNumber, &o.EstimatedDelivery,
		&cols.trackingHistory, &cols.returnRequest, &o.Archived, &cols.original, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}

	for _, f := range []struct {
		data []byte
		dst  any
	}{
		{cols.items, &o.Items},
		{cols.address, &o.Address},
		{cols.paymentDetails, &o.PaymentDetails},
		{cols.trackingHistory, &o.TrackingHistory},
		{cols.returnRequest, &o.ReturnRequest},
	} {
		if len(f.data) == 0 {
			continue
		}
		if err := json.Unmarshal(f.data, f.dst); err != nil {
			return o, fmt.Errorf("unmarshaling order %q: %w", o.ID, err)
		}
	}
	if len(cols.original) > 0 {
		o.Original = &order.Snapshot{}
		if err := json.Unmarshal(cols.original, o.Original); err != nil {
			return o, fmt.Errorf("unmarshaling archive snapshot of order %q: %w", o.ID, err)
		}
	}
	return o, nil
}
