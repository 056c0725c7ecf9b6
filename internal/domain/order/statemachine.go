package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cancel transitions the order to Cancelled. Cancelled is terminal: the order
// is locked against further status changes and CanCancel is forced false.
// Cancellation does not restock inventory; units only return to stock through
// an approved return with the restock flag.
func (o *Order) Cancel() error {
	if o.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	if !o.CanCancel {
		return ErrCancellationNotAllowed
	}
	o.Status = StatusCancelled
	o.CanCancel = false
	return nil
}

// SetStatus applies a seller status update. Cancelled orders are locked.
// Delivered is terminal for cancellation: it forces CanCancel false.
func (o *Order) SetStatus(status Status) error {
	if o.Status == StatusCancelled {
		return ErrOrderLocked
	}
	o.Status = status
	if status == StatusDelivered {
		o.CanCancel = false
	}
	return nil
}

// TrackingPatch carries the optional tracking fields of an update. Any subset
// may be set.
type TrackingPatch struct {
	TrackingNumber    string
	EstimatedDelivery *time.Time
	Event             *TrackingEvent
}

// ApplyTracking applies the patch and reports whether the update warrants a
// shipment notification: a newly set tracking number or a "Shipped" event.
// Tracking events append to the history, which is never reordered or trimmed.
// Events without a timestamp get a server-assigned one.
func (o *Order) ApplyTracking(patch TrackingPatch, now time.Time) (notifyShipped bool) {
	if patch.TrackingNumber != "" {
		if patch.TrackingNumber != o.TrackingNumber {
			notifyShipped = true
		}
		o.TrackingNumber = patch.TrackingNumber
	}
	if patch.EstimatedDelivery != nil {
		o.EstimatedDelivery = patch.EstimatedDelivery
	}
	if patch.Event != nil {
		e := *patch.Event
		if e.Timestamp.IsZero() {
			e.Timestamp = now
		}
		o.TrackingHistory = append(o.TrackingHistory, e)
		if e.Status == "Shipped" {
			notifyShipped = true
		}
	}
	return notifyShipped
}

// SetArchived archives or unarchives the order.
//
// Archiving snapshots the priced fields into Original and zeroes the live
// values. Unarchiving restores the snapshot exactly and clears it; when no
// snapshot exists the order degrades to its zeroed state rather than failing.
func (o *Order) SetArchived(archived bool) {
	if archived == o.Archived {
		o.Archived = archived
		return
	}

	if archived {
		o.Original = &Snapshot{
			Items:       o.Items,
			Amount:      o.Amount,
			Tax:         o.Tax,
			ShippingFee: o.ShippingFee,
			TotalAmount: o.TotalAmount,
		}
		o.Items = nil
		o.Amount = decimal.Zero
		o.Tax = decimal.Zero
		o.ShippingFee = decimal.Zero
		o.TotalAmount = decimal.Zero
		o.Archived = true
		return
	}

	if o.Original != nil {
		o.Items = o.Original.Items
		o.Amount = o.Original.Amount
		o.Tax = o.Original.Tax
		o.ShippingFee = o.Original.ShippingFee
		o.TotalAmount = o.Original.TotalAmount
	} else {
		o.Items = nil
		o.Amount = decimal.Zero
		o.Tax = decimal.Zero
		o.ShippingFee = decimal.Zero
		o.TotalAmount = decimal.Zero
	}
	o.Original = nil
	o.Archived = false
}

// SetPaymentStatus updates the payment state, merging details into the
// existing map. The payment date is stamped on the first transition to Paid
// unless the details already carry one.
func (o *Order) SetPaymentStatus(status PaymentStatus, details PaymentDetails, now time.Time) error {
	if !status.Valid() {
		return ErrInvalidPaymentStatus
	}

	o.PaymentStatus = status
	if o.PaymentDetails == nil {
		o.PaymentDetails = PaymentDetails{}
	}
	for k, v := range details {
		o.PaymentDetails[k] = v
	}
	if status == PaymentPaid {
		if _, ok := o.PaymentDetails["paymentDate"]; !ok {
			o.PaymentDetails["paymentDate"] = now
		}
	}
	return nil
}
