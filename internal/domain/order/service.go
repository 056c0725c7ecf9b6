package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/gearmart/internal/domain/auth"
	"github.com/xenking/gearmart/internal/domain/cart"
	"github.com/xenking/gearmart/internal/domain/pricing"
	"github.com/xenking/gearmart/internal/domain/product"
	"github.com/xenking/gearmart/internal/notify"
	"github.com/xenking/gearmart/internal/outbox"
)

// Service encapsulates the order lifecycle: assembly, the status state
// machine, payment and tracking updates, archival, and the return workflow.
type Service struct {
	products product.Repository
	orders   Repository
	carts    cart.Repository
	events   outbox.Queue
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	orders Repository,
	carts cart.Repository,
	events outbox.Queue,
) *Service {
	return &Service{
		products: products,
		orders:   orders,
		carts:    carts,
		events:   events,
	}
}

// CreateOrderRequest holds the input for assembling an order from a cart.
type CreateOrderRequest struct {
	UserID        string
	Address       Address
	Items         []Item
	PaymentMethod PaymentMethod
	PaymentMeta   map[string]any
}

// CreateOrder validates the lines and address, prices the order, reserves
// stock for every line, persists the order, clears the buyer's cart, and
// enqueues the confirmation notification.
//
// Stock reservation is all-or-nothing: each line is reserved through the
// inventory ledger's conditional decrement, and if any line fails the
// reservations already applied in this request are released again. Either a
// fully consistent order exists with stock reserved across all lines, or no
// order and no stock mutation persists.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
	}
	if err := req.Address.Validate(); err != nil {
		return nil, err
	}

	// Batch fetch all products in a single query.
	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		ids[i] = item.ProductID
	}
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	// Verify every line resolves to a purchasable product, check stock, and
	// accumulate the subtotal from offer prices.
	subtotal := decimal.Zero
	for _, item := range req.Items {
		p, ok := productMap[item.ProductID]
		if !ok || p.Archived {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if item.Quantity > p.Stock {
			return nil, &product.InsufficientStockError{
				ProductID: p.ID,
				Requested: item.Quantity,
				Available: p.Stock,
			}
		}
		subtotal = subtotal.Add(p.OfferPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	// Price once; the charges are snapshotted on the order and never
	// recomputed.
	charges := pricing.ComputeCharges(subtotal, req.Address.State)

	now := time.Now()
	o := &Order{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Items:           req.Items,
		Amount:          subtotal,
		Tax:             charges.Tax,
		ShippingFee:     charges.ShippingFee,
		TotalAmount:     charges.Total,
		Address:         req.Address,
		Status:          StatusPlaced,
		CanCancel:       true,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   derivePaymentStatus(req.PaymentMethod),
		PaymentDetails:  paymentDetails(req.PaymentMethod, req.PaymentMeta, now),
		TrackingHistory: nil,
		ReturnRequest:   ReturnRequest{Status: ReturnNone},
		CreatedAt:       now,
	}

	// Reserve stock line by line; release already-applied reservations if a
	// later line fails.
	reserved := make([]Item, 0, len(req.Items))
	for _, item := range req.Items {
		if _, err := s.products.ReserveStock(ctx, item.ProductID, item.Quantity); err != nil {
			s.releaseReservations(ctx, reserved)
			return nil, err
		}
		reserved = append(reserved, item)
	}

	if err := s.orders.Create(ctx, o); err != nil {
		s.releaseReservations(ctx, reserved)
		return nil, errors.Wrap(err, "create order")
	}

	// Cart clear and notification are best-effort; the order already exists.
	if err := s.carts.Clear(ctx, req.UserID); err != nil {
		zctx.From(ctx).Warn("clear cart failed",
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
	}
	s.enqueue(ctx, outbox.Event{
		Name:      outbox.EventOrderCreated,
		Recipient: o.UserID,
		Template:  notify.TemplateOrderConfirmation,
		Payload:   eventPayload(o),
	})

	return o, nil
}

// releaseReservations is the compensating rollback for a failed multi-line
// reservation. Release failures are logged; they cannot fail the original
// error path.
func (s *Service) releaseReservations(ctx context.Context, reserved []Item) {
	for _, item := range reserved {
		if _, err := s.products.ReleaseStock(ctx, item.ProductID, item.Quantity); err != nil {
			zctx.From(ctx).Error("compensating stock release failed",
				zap.String("product_id", item.ProductID),
				zap.Int("quantity", item.Quantity),
				zap.Error(err),
			)
		}
	}
}

// derivePaymentStatus maps the payment method to the initial payment status.
// E-wallet payments are confirmed at submission time; everything else settles
// later.
func derivePaymentStatus(method PaymentMethod) PaymentStatus {
	if method == PaymentMethodGcash {
		return PaymentPaid
	}
	return PaymentPending
}

func paymentDetails(method PaymentMethod, meta map[string]any, now time.Time) PaymentDetails {
	details := PaymentDetails{}
	for k, v := range meta {
		details[k] = v
	}
	if method == PaymentMethodGcash {
		if _, ok := details["paymentDate"]; !ok {
			details["paymentDate"] = now
		}
	}
	return details
}

// enqueue adds an event to the outbox, logging instead of failing: the core
// transition already succeeded and must not be rolled back by a notification
// problem.
func (s *Service) enqueue(ctx context.Context, e outbox.Event) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if err := s.events.Enqueue(ctx, e); err != nil {
		zctx.From(ctx).Error("enqueue notification event failed",
			zap.String("event", e.Name),
			zap.Error(err),
		)
	}
}

// eventPayload is the template data shipped with order notifications.
func eventPayload(o *Order) map[string]any {
	payload := map[string]any{
		"orderId":     o.ID,
		"date":        o.CreatedAt,
		"amount":      o.Amount,
		"totalAmount": o.TotalAmount,
		"status":      string(o.Status),
	}
	if o.TrackingNumber != "" {
		payload["trackingNumber"] = o.TrackingNumber
	}
	if o.EstimatedDelivery != nil {
		payload["estimatedDelivery"] = *o.EstimatedDelivery
	}
	return payload
}

// Get returns an order visible to the actor: buyers see their own orders,
// sellers see all.
func (s *Service) Get(ctx context.Context, orderID string, actor auth.Actor) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsSeller() && o.UserID != actor.UserID {
		return nil, ErrNotOwner
	}
	return o, nil
}

// Track returns the tracking view of an order by ID. The order ID acts as the
// tracking token, so no actor check applies.
func (s *Service) Track(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// ListForUser returns the actor's own orders, newest first.
func (s *Service) ListForUser(ctx context.Context, actor auth.Actor, includeArchived bool) ([]Order, error) {
	return s.orders.ListByUser(ctx, actor.UserID, includeArchived)
}

// ListAll returns every order for the seller dashboard.
func (s *Service) ListAll(ctx context.Context, actor auth.Actor, includeArchived bool) ([]Order, error) {
	if err := auth.RequireSeller(actor); err != nil {
		return nil, err
	}
	return s.orders.ListAll(ctx, includeArchived)
}
