package order

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// Sentinel errors for order operations. All are recoverable and surface to
// the caller as typed failures, never as panics or opaque internals.
var (
	ErrNotFound               = errors.New("order not found")
	ErrEmptyItems             = errors.New("items required")
	ErrNotOwner               = errors.New("not the order owner")
	ErrAlreadyCancelled       = errors.New("order is already cancelled")
	ErrCancellationNotAllowed = errors.New("order cannot be cancelled")
	ErrOrderLocked            = errors.New("cannot update a cancelled order")
	ErrReturnNotAllowed       = errors.New("return not allowed for this order")
	ErrNoPendingReturn        = errors.New("no pending return request")
	ErrInvalidPaymentStatus   = errors.New("invalid payment status")
	ErrInvalidReturnAction    = errors.New("invalid return action")
)

// ProductNotFoundError indicates a line references a product that does not
// exist or is no longer purchasable.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InvalidAddressError lists the required address fields that were empty.
type InvalidAddressError struct {
	Missing []string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("address missing required fields: %s", strings.Join(e.Missing, ", "))
}
