package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/gearmart/internal/domain/auth"
	"github.com/xenking/gearmart/internal/domain/order"
	"github.com/xenking/gearmart/internal/domain/product"
)

// mapError converts domain errors to an HTTP status and a client-safe
// message. Unknown errors are hidden behind a generic 500.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, err.Error()

	case errors.Is(err, order.ErrNotOwner),
		errors.Is(err, product.ErrNotOwner):
		return http.StatusForbidden, err.Error()

	case errors.Is(err, auth.ErrSellerRequired):
		return http.StatusForbidden, err.Error()

	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrInvalidPaymentStatus),
		errors.Is(err, order.ErrInvalidReturnAction):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, order.ErrAlreadyCancelled),
		errors.Is(err, order.ErrCancellationNotAllowed),
		errors.Is(err, order.ErrOrderLocked),
		errors.Is(err, order.ErrReturnNotAllowed),
		errors.Is(err, order.ErrNoPendingReturn):
		return http.StatusConflict, err.Error()
	}

	var (
		iqErr  *order.InvalidQuantityError
		iaErr  *order.InvalidAddressError
		pnfErr *order.ProductNotFoundError
		isErr  *product.InsufficientStockError
	)
	switch {
	case errors.As(err, &iqErr):
		return http.StatusUnprocessableEntity, iqErr.Error()
	case errors.As(err, &iaErr):
		return http.StatusUnprocessableEntity, iaErr.Error()
	case errors.As(err, &pnfErr):
		return http.StatusUnprocessableEntity, pnfErr.Error()
	case errors.As(err, &isErr):
		return http.StatusConflict, isErr.Error()
	}

	return http.StatusInternalServerError, "internal server error"
}
