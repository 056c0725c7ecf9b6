package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/gearmart/internal/domain/order"
)

type createOrderRequest struct {
	Items          []order.Item   `json:"items"`
	Address        order.Address  `json:"address"`
	PaymentMethod  string         `json:"payment_method"`
	PaymentDetails map[string]any `json:"payment_details"`
}

// CreateOrder assembles an order from the request lines for the
// authenticated buyer.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, envelope{Success: false, Message: "invalid request body"})
		return
	}

	o, err := h.orders.CreateOrder(r.Context(), order.CreateOrderRequest{
		UserID:        actor(r).UserID,
		Address:       req.Address,
		Items:         req.Items,
		PaymentMethod: order.PaymentMethod(req.PaymentMethod),
		PaymentMeta:   req.PaymentDetails,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, r, o)
}

// ListOrders returns the buyer's own orders. Archived orders are excluded
// unless ?archived=true.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListForUser(r.Context(), actor(r), r.URL.Query().Get("archived") == "true")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, r, orders)
}

// ListAllOrders returns every order for the seller dashboard.
func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAll(r.Context(), actor(r), r.URL.Query().Get("archived") == "true")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, r, orders)
}

// GetOrder returns a single order visible to the actor.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"), actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, r, o)
}

// trackingView is the public subset of an order exposed without
// authentication.
type trackingView struct {
	OrderID           string                `json:"order_id"`
	Status            order.Status          `json:"status"`
	TrackingNumber    string                `json:"tracking_number,omitempty"`
	EstimatedDelivery *time.Time            `json:"estimated_delivery,omitempty"`
	TrackingHistory   []order.TrackingEvent `json:"tracking_history"`
}

// TrackOrder returns the public tracking view of an order.
func (h *Handler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Track(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, r, trackingView{
		OrderID:           o.ID,
		Status:            o.Status,
		TrackingNumber:    o.TrackingNumber,
		EstimatedDelivery: o.EstimatedDelivery,
		TrackingHistory:   o.TrackingHistory,
	})
}

// CancelOrder cancels the order on behalf of the actor.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), chi.URLParam(r, "id"), actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, r, o)
}

// UpdateOrderStatus applies a seller status change.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Status == "" {
		h.writeJSON(w, r, http.StatusBadRequest, envelope{Success: false, Message: "status is required"})
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), order.Status(req.Status), actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, r, o)
}

type updateTrackingRequest struct {
	TrackingNumber    string               `json:"tracking_number"`
	EstimatedDelivery *time.Time           `json:"estimated_delivery"`
	Event             *order.TrackingEvent `json:"event"`
}

// UpdateOrderTracking applies a seller tracking update.
func (h *Handler) UpdateOrderTracking(w http.ResponseWriter, r *http.Request) {
	var req updateTrackingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, envelope{Success: false, Message: "invalid request body"})
		return
	}

	o, err := h.orders.UpdateTracking(r.Context(), chi.URLParam(r, "id"), order.TrackingPatch{
		TrackingNumber:    req.TrackingNumber,
		EstimatedDelivery: req.EstimatedDelivery,
		Event:             req.Event,
	}, actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, r, o)
}

// ArchiveOrder archives or unarchives an order for the seller dashboard.
func (h *Handler) ArchiveOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Archived bool `json:"archived"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, envelope{Success: false, Message: "invalid request body"})
		return
	}

	o, err := h.orders.Archive(r.Context(), chi.URLParam(r, "id"), req.Archived, actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, r, o)
}

// UpdateOrderPayment applies a seller payment update.
func (h *Handler) UpdateOrderPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentStatus  string         `json:"payment_status"`
		PaymentDetails map[string]any `json:"payment_details"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, envelope{Success: false, Message: "invalid request body"})
		return
	}

	o, err := h.orders.UpdatePayment(r.Context(), chi.URLParam(r, "id"),
		order.PaymentStatus(req.PaymentStatus), req.PaymentDetails, actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, r, o)
}

// RequestReturn opens a return request on a delivered order.
func (h *Handler) RequestReturn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason       string `json:"reason"`
		RefundMethod string `json:"refund_method"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, envelope{Success: false, Message: "invalid request body"})
		return
	}

	o, err := h.orders.RequestReturn(r.Context(), chi.URLParam(r, "id"), req.Reason, req.RefundMethod, actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, r, o)
}

// ProcessReturn resolves a pending return request.
func (h *Handler) ProcessReturn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action       string          `json:"action"`
		Message      string          `json:"message"`
		RefundAmount decimal.Decimal `json:"refund_amount"`
		Restock      bool            `json:"restock"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, envelope{Success: false, Message: "invalid request body"})
		return
	}

	o, err := h.orders.ProcessReturn(r.Context(), chi.URLParam(r, "id"), order.ProcessReturnRequest{
		Action:       req.Action,
		Message:      req.Message,
		RefundAmount: req.RefundAmount,
		Restock:      req.Restock,
	}, actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, r, o)
}
