package order

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/gearmart/internal/domain/auth"
	"github.com/xenking/gearmart/internal/notify"
	"github.com/xenking/gearmart/internal/outbox"
)

// Return workflow actions.
const (
	ReturnActionApprove = "approve"
	ReturnActionReject  = "reject"
)

// RequestReturn opens a return request on a delivered order. Only the buyer
// may request, only while the order is Delivered, and only when no other
// return request exists.
func (s *Service) RequestReturn(ctx context.Context, orderID, reason, refundMethod string, actor auth.Actor) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != actor.UserID {
		return nil, ErrNotOwner
	}
	if o.Status != StatusDelivered || o.ReturnRequest.Status != ReturnNone {
		return nil, ErrReturnNotAllowed
	}

	now := time.Now()
	o.ReturnRequest = ReturnRequest{
		Status:       ReturnRequested,
		Reason:       reason,
		RefundMethod: refundMethod,
		RequestedAt:  &now,
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// ProcessReturnRequest holds the seller's decision on a pending return.
type ProcessReturnRequest struct {
	Action       string
	Message      string
	RefundAmount decimal.Decimal
	Restock      bool
}

// ProcessReturn resolves a pending return request.
//
// Approval stamps the processing time, records the refund, and moves the
// order to Refunded; with the restock flag set, every line's units go back to
// the inventory ledger exactly once and the request is marked restocked. The
// decision is persisted before any stock moves, so a failed write leaves the
// request pending and the ledger untouched.
// Rejection stamps the processing time and leaves the order status unchanged.
func (s *Service) ProcessReturn(ctx context.Context, orderID string, req ProcessReturnRequest, actor auth.Actor) (*Order, error) {
	if err := auth.RequireSeller(actor); err != nil {
		return nil, err
	}
	if req.Action != ReturnActionApprove && req.Action != ReturnActionReject {
		return nil, ErrInvalidReturnAction
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.ReturnRequest.Open() {
		return nil, ErrNoPendingReturn
	}

	now := time.Now()
	restock := false
	switch req.Action {
	case ReturnActionApprove:
		o.ReturnRequest.Status = ReturnApproved
		o.ReturnRequest.ProcessedAt = &now
		o.ReturnRequest.Message = req.Message
		o.ReturnRequest.RefundAmount = req.RefundAmount
		o.Status = StatusRefunded

		if req.Restock && !o.ReturnRequest.Restocked {
			o.ReturnRequest.Restocked = true
			restock = true
		}

	case ReturnActionReject:
		o.ReturnRequest.Status = ReturnRejected
		o.ReturnRequest.ProcessedAt = &now
		o.ReturnRequest.Message = req.Message
	}

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, err
	}

	if restock {
		s.restock(ctx, o)
	}

	s.enqueue(ctx, outbox.Event{
		Name:      outbox.EventReturnProcessed,
		Recipient: o.UserID,
		Template:  notify.TemplateReturnProcessed,
		Payload:   eventPayload(o),
	})
	return o, nil
}

// restock releases every line's units back to inventory. Release failures are
// logged and skipped; the remaining lines still restock.
func (s *Service) restock(ctx context.Context, o *Order) {
	for _, item := range o.Items {
		if _, err := s.products.ReleaseStock(ctx, item.ProductID, item.Quantity); err != nil {
			zctx.From(ctx).Error("restock failed",
				zap.String("order_id", o.ID),
				zap.String("product_id", item.ProductID),
				zap.Int("quantity", item.Quantity),
				zap.Error(err),
			)
		}
	}
}
