package order

import (
	"context"
	"time"

	"github.com/xenking/gearmart/internal/domain/auth"
	"github.com/xenking/gearmart/internal/notify"
	"github.com/xenking/gearmart/internal/outbox"
)

// Cancel cancels the order on behalf of its buyer (or a seller). Cancellation
// is only available while CanCancel holds; a second cancel attempt fails with
// ErrAlreadyCancelled and leaves the order unchanged.
func (s *Service) Cancel(ctx context.Context, orderID string, actor auth.Actor) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsSeller() && o.UserID != actor.UserID {
		return nil, ErrNotOwner
	}

	if err := o.Cancel(); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, err
	}

	s.enqueue(ctx, outbox.Event{
		Name:      outbox.EventOrderCancelled,
		Recipient: o.UserID,
		Template:  notify.TemplateOrderCancelled,
		Payload:   eventPayload(o),
	})
	return o, nil
}

// UpdateStatus applies a seller status change. Transitions into Confirmed and
// Delivered notify the buyer; other labels update silently.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status Status, actor auth.Actor) (*Order, error) {
	if err := auth.RequireSeller(actor); err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := o.SetStatus(status); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, err
	}

	var template string
	switch status {
	case StatusConfirmed:
		template = notify.TemplateOrderApproved
	case StatusDelivered:
		template = notify.TemplateOrderShipped
	}
	if template != "" {
		s.enqueue(ctx, outbox.Event{
			Name:      outbox.EventStatusChanged,
			Recipient: o.UserID,
			Template:  template,
			Payload:   eventPayload(o),
		})
	}
	return o, nil
}

// UpdateTracking applies a seller tracking update: any subset of tracking
// number, delivery estimate, and a history event. The buyer is notified when
// a tracking number is newly set or a "Shipped" event is recorded.
func (s *Service) UpdateTracking(ctx context.Context, orderID string, patch TrackingPatch, actor auth.Actor) (*Order, error) {
	if err := auth.RequireSeller(actor); err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	notifyShipped := o.ApplyTracking(patch, time.Now())
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, err
	}

	if notifyShipped {
		s.enqueue(ctx, outbox.Event{
			Name:      outbox.EventTrackingUpdated,
			Recipient: o.UserID,
			Template:  notify.TemplateOrderShipped,
			Payload:   eventPayload(o),
		})
	}
	return o, nil
}

// Archive archives or unarchives an order for the seller dashboard.
func (s *Service) Archive(ctx context.Context, orderID string, archived bool, actor auth.Actor) (*Order, error) {
	if err := auth.RequireSeller(actor); err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	o.SetArchived(archived)
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdatePayment applies a seller payment update: status must be a defined
// enum value, details merge into the existing payment details.
func (s *Service) UpdatePayment(ctx context.Context, orderID string, status PaymentStatus, details PaymentDetails, actor auth.Actor) (*Order, error) {
	if err := auth.RequireSeller(actor); err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := o.SetPaymentStatus(status, details, time.Now()); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}
