package order

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/gearmart/internal/outbox"
)

// deliveredOrder places an order and moves it through Delivered.
func deliveredOrder(t *testing.T, env *testEnv, items ...Item) *Order {
	t.Helper()
	o := placeOrder(t, env, items...)
	_, err := env.svc.UpdateStatus(context.Background(), o.ID, StatusDelivered, seller)
	require.NoError(t, err)
	return o
}

func TestRequestReturn(t *testing.T) {
	env := newEnv(newTestProduct("p1", 500, 10))
	o := deliveredOrder(t, env)

	updated, err := env.svc.RequestReturn(context.Background(), o.ID, "defective switch", "gcash", buyer)
	require.NoError(t, err)
	assert.Equal(t, ReturnRequested, updated.ReturnRequest.Status)
	assert.Equal(t, "defective switch", updated.ReturnRequest.Reason)
	assert.Equal(t, "gcash", updated.ReturnRequest.RefundMethod)
	require.NotNil(t, updated.ReturnRequest.RequestedAt)
	assert.Equal(t, StatusDelivered, updated.Status, "requesting does not change order status")

	// A second request on the same order is rejected.
	_, err = env.svc.RequestReturn(context.Background(), o.ID, "changed my mind", "gcash", buyer)
	require.ErrorIs(t, err, ErrReturnNotAllowed)
}

func TestRequestReturn_Preconditions(t *testing.T) {
	env := newEnv(newTestProduct("p1", 500, 10))

	// Not delivered yet.
	placed := placeOrder(t, env)
	_, err := env.svc.RequestReturn(context.Background(), placed.ID, "reason", "gcash", buyer)
	require.ErrorIs(t, err, ErrReturnNotAllowed)

	// Not the owner.
	delivered := deliveredOrder(t, env)
	_, err = env.svc.RequestReturn(context.Background(), delivered.ID, "reason", "gcash", otherBuyer)
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestProcessReturn_ApproveWithRestock(t *testing.T) {
	env := newEnv(newTestProduct("p1", 500, 10))
	o := deliveredOrder(t, env, Item{ProductID: "p1", Quantity: 3})
	require.Equal(t, 7, env.products.stock("p1"))

	_, err := env.svc.RequestReturn(context.Background(), o.ID, "defective", "gcash", buyer)
	require.NoError(t, err)

	_, err = env.svc.ProcessReturn(context.Background(), o.ID, ProcessReturnRequest{
		Action:       ReturnActionApprove,
		RefundAmount: decimal.NewFromInt(1500),
		Restock:      true,
	}, buyer)
	require.Error(t, err, "only sellers process returns")

	processed, err := env.svc.ProcessReturn(context.Background(), o.ID, ProcessReturnRequest{
		Action:       ReturnActionApprove,
		Message:      "refund issued",
		RefundAmount: decimal.NewFromInt(1500),
		Restock:      true,
	}, seller)
	require.NoError(t, err)

	assert.Equal(t, ReturnApproved, processed.ReturnRequest.Status)
	assert.Equal(t, StatusRefunded, processed.Status)
	assert.True(t, processed.ReturnRequest.Restocked)
	assert.True(t, decimal.NewFromInt(1500).Equal(processed.ReturnRequest.RefundAmount))
	require.NotNil(t, processed.ReturnRequest.ProcessedAt)
	assert.Equal(t, 10, env.products.stock("p1"), "approved restock returns the units")
	assert.Contains(t, env.events.names(), outbox.EventReturnProcessed)

	// Processing the same request again finds nothing pending; stock is not
	// incremented twice.
	_, err = env.svc.ProcessReturn(context.Background(), o.ID, ProcessReturnRequest{
		Action:  ReturnActionApprove,
		Restock: true,
	}, seller)
	require.ErrorIs(t, err, ErrNoPendingReturn)
	assert.Equal(t, 10, env.products.stock("p1"))
}

func TestProcessReturn_ApproveWithoutRestock(t *testing.T) {
	env := newEnv(newTestProduct("p1", 500, 10))
	o := deliveredOrder(t, env, Item{ProductID: "p1", Quantity: 3})

	_, err := env.svc.RequestReturn(context.Background(), o.ID, "defective", "gcash", buyer)
	require.NoError(t, err)

	processed, err := env.svc.ProcessReturn(context.Background(), o.ID, ProcessReturnRequest{
		Action:       ReturnActionApprove,
		RefundAmount: decimal.NewFromInt(1500),
	}, seller)
	require.NoError(t, err)

	assert.False(t, processed.ReturnRequest.Restocked)
	assert.Equal(t, 7, env.products.stock("p1"), "units stay out of stock when the seller keeps them")
}

func TestProcessReturn_Reject(t *testing.T) {
	env := newEnv(newTestProduct("p1", 500, 10))
	o := deliveredOrder(t, env)

	_, err := env.svc.RequestReturn(context.Background(), o.ID, "changed my mind", "gcash", buyer)
	require.NoError(t, err)

	processed, err := env.svc.ProcessReturn(context.Background(), o.ID, ProcessReturnRequest{
		Action:  ReturnActionReject,
		Message: "outside the return window",
	}, seller)
	require.NoError(t, err)

	assert.Equal(t, ReturnRejected, processed.ReturnRequest.Status)
	assert.Equal(t, StatusDelivered, processed.Status, "rejection leaves the order status alone")
	assert.Equal(t, "outside the return window", processed.ReturnRequest.Message)
	require.NotNil(t, processed.ReturnRequest.ProcessedAt)
	assert.Equal(t, 9, env.products.stock("p1"))
}

func TestProcessReturn_InvalidAction(t *testing.T) {
	env := newEnv(newTestProduct("p1", 500, 10))
	o := deliveredOrder(t, env)

	_, err := env.svc.RequestReturn(context.Background(), o.ID, "reason", "gcash", buyer)
	require.NoError(t, err)

	_, err = env.svc.ProcessReturn(context.Background(), o.ID, ProcessReturnRequest{Action: "escalate"}, seller)
	require.ErrorIs(t, err, ErrInvalidReturnAction)
}

func TestProcessReturn_NoPendingRequest(t *testing.T) {
	env := newEnv(newTestProduct("p1", 500, 10))
	o := deliveredOrder(t, env)

	_, err := env.svc.ProcessReturn(context.Background(), o.ID, ProcessReturnRequest{Action: ReturnActionApprove}, seller)
	require.ErrorIs(t, err, ErrNoPendingReturn)
}

func TestProcessReturn_RestockOnlyAfterPersist(t *testing.T) {
	env := newEnv(newTestProduct("p1", 500, 10))
	o := deliveredOrder(t, env, Item{ProductID: "p1", Quantity: 3})
	require.Equal(t, 7, env.products.stock("p1"))

	_, err := env.svc.RequestReturn(context.Background(), o.ID, "defective", "gcash", buyer)
	require.NoError(t, err)

	// A storage failure while approving must leave the request pending and
	// the ledger untouched.
	env.orders.updateErr = ErrNotFound // any storage failure
	_, err = env.svc.ProcessReturn(context.Background(), o.ID, ProcessReturnRequest{
		Action:  ReturnActionApprove,
		Restock: true,
	}, seller)
	require.Error(t, err)
	assert.Equal(t, 7, env.products.stock("p1"), "failed approval must not restock")
	assert.Equal(t, ReturnRequested, env.orders.get(o.ID).ReturnRequest.Status)

	// The retry after recovery succeeds and restocks exactly once.
	env.orders.updateErr = nil
	processed, err := env.svc.ProcessReturn(context.Background(), o.ID, ProcessReturnRequest{
		Action:  ReturnActionApprove,
		Restock: true,
	}, seller)
	require.NoError(t, err)
	assert.True(t, processed.ReturnRequest.Restocked)
	assert.Equal(t, 10, env.products.stock("p1"))
}
