package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the fulfillment state of an order. Sellers may set free-form
// intermediate labels; only the constants below carry special semantics.
type Status string

const (
	StatusPlaced    Status = "Order Placed"
	StatusConfirmed Status = "Confirmed"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
	StatusRefunded  Status = "Refunded"
)

// PaymentMethod is how the buyer pays. Unrecognized methods are accepted and
// treated as pending until the seller confirms payment.
type PaymentMethod string

const (
	PaymentMethodCOD   PaymentMethod = "COD"
	PaymentMethodGcash PaymentMethod = "Gcash"
)

// PaymentStatus is the settlement state of an order's payment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "Pending"
	PaymentPaid     PaymentStatus = "Paid"
	PaymentFailed   PaymentStatus = "Failed"
	PaymentRefunded PaymentStatus = "Refunded"
)

// Valid reports whether s is one of the defined payment statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// PaymentDetails holds method-specific payment data (provider references,
// payment dates). Updates merge into the existing map rather than replacing it.
type PaymentDetails map[string]any

// Address is the delivery address. All six fields are required.
type Address struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Pincode  string `json:"pincode"`
	Area     string `json:"area"`
	City     string `json:"city"`
	State    string `json:"state"`
}

// Validate returns *InvalidAddressError naming every empty field.
func (a Address) Validate() error {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"fullName", a.FullName},
		{"phone", a.Phone},
		{"pincode", a.Pincode},
		{"area", a.Area},
		{"city", a.City},
		{"state", a.State},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &InvalidAddressError{Missing: missing}
	}
	return nil
}

// Item is a single order line.
type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// TrackingEvent is one entry in the append-only tracking history.
type TrackingEvent struct {
	Status      string    `json:"status"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Timestamp   time.Time `json:"timestamp"`
}

// ReturnStatus is the state of an order's return request.
type ReturnStatus string

const (
	ReturnNone      ReturnStatus = "None"
	ReturnRequested ReturnStatus = "Requested"
	ReturnApproved  ReturnStatus = "Approved"
	ReturnRejected  ReturnStatus = "Rejected"
	ReturnRefunded  ReturnStatus = "Refunded"
)

// ReturnRequest is the return/refund sub-entity attached to a delivered order.
type ReturnRequest struct {
	Status       ReturnStatus    `json:"status"`
	Reason       string          `json:"reason,omitempty"`
	RefundMethod string          `json:"refund_method,omitempty"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	Message      string          `json:"message,omitempty"`
	Restocked    bool            `json:"restocked"`
	RequestedAt  *time.Time      `json:"requested_at,omitempty"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`
}

// Open reports whether a non-terminal return request exists.
func (r ReturnRequest) Open() bool {
	return r.Status == ReturnRequested
}

// Snapshot preserves the priced fields of an order across archival so that
// unarchiving restores them exactly.
type Snapshot struct {
	Items       []Item          `json:"items"`
	Amount      decimal.Decimal `json:"amount"`
	Tax         decimal.Decimal `json:"tax"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// Order is the central aggregate: a buyer's purchase with pricing snapshot,
// payment, tracking, and return state. Tax and shipping are computed once at
// creation and never recomputed, even if pricing rules change later.
type Order struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Items  []Item `json:"items"`

	// Amount is the subtotal; TotalAmount = Amount + Tax + ShippingFee,
	// fixed at creation.
	Amount      decimal.Decimal `json:"amount"`
	Tax         decimal.Decimal `json:"tax"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	TotalAmount decimal.Decimal `json:"total_amount"`

	Address   Address `json:"address"`
	Status    Status  `json:"status"`
	CanCancel bool    `json:"can_cancel"`

	PaymentMethod  PaymentMethod  `json:"payment_method"`
	PaymentStatus  PaymentStatus  `json:"payment_status"`
	PaymentDetails PaymentDetails `json:"payment_details,omitempty"`

	TrackingNumber    string          `json:"tracking_number,omitempty"`
	EstimatedDelivery *time.Time      `json:"estimated_delivery,omitempty"`
	TrackingHistory   []TrackingEvent `json:"tracking_history,omitempty"`

	ReturnRequest ReturnRequest `json:"return_request"`

	Archived bool `json:"archived"`
	// Original holds the pre-archive snapshot while Archived is true.
	Original *Snapshot `json:"original,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	ListByUser(ctx context.Context, userID string, includeArchived bool) ([]Order, error)
	ListAll(ctx context.Context, includeArchived bool) ([]Order, error)
}
