// Package handler exposes the domain over HTTP: JSON request decoding, the
// response envelope, API key authentication, and domain error mapping.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/gearmart/internal/domain/auth"
	"github.com/xenking/gearmart/internal/domain/cart"
	"github.com/xenking/gearmart/internal/domain/order"
	"github.com/xenking/gearmart/internal/domain/product"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Handler routes HTTP requests to the domain services.
type Handler struct {
	products     product.Repository
	carts        cart.Repository
	orders       *order.Service
	auth         *Authenticator
	imageBaseURL string
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	products product.Repository,
	carts cart.Repository,
	orders *order.Service,
	authn *Authenticator,
) *Handler {
	return &Handler{
		products:     products,
		carts:        carts,
		orders:       orders,
		auth:         authn,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Routes mounts all API routes. Public routes are the product catalog, the
// shipping quote, and the order tracking view; everything else requires an
// API key.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/product", h.ListProducts)
	r.Get("/product/{id}", h.GetProduct)
	r.Get("/shipping/quote", h.ShippingQuote)
	r.Get("/order/{id}/track", h.TrackOrder)

	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAPIKey)

		r.Get("/cart", h.GetCart)
		r.Put("/cart", h.SetCart)

		r.Post("/order", h.CreateOrder)
		r.Get("/order", h.ListOrders)
		r.Get("/order/seller", h.ListAllOrders)
		r.Get("/order/{id}", h.GetOrder)
		r.Post("/order/{id}/cancel", h.CancelOrder)
		r.Post("/order/{id}/status", h.UpdateOrderStatus)
		r.Post("/order/{id}/tracking", h.UpdateOrderTracking)
		r.Post("/order/{id}/archive", h.ArchiveOrder)
		r.Post("/order/{id}/payment", h.UpdateOrderPayment)
		r.Post("/order/{id}/return", h.RequestReturn)
		r.Post("/order/{id}/return/process", h.ProcessReturn)

		r.Post("/product", h.CreateProduct)
		r.Get("/product/inventory", h.ListInventory)
		r.Post("/product/{id}/stock", h.UpdateProductStock)
		r.Post("/product/{id}/archive", h.ArchiveProduct)
	})
}

// envelope is the uniform response shape: success plus either a payload or a
// message.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("encode response", zap.Error(err))
	}
}

func (h *Handler) writeData(w http.ResponseWriter, r *http.Request, data any) {
	h.writeJSON(w, r, http.StatusOK, envelope{Success: true, Data: data})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := mapError(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
	}
	h.writeJSON(w, r, status, envelope{Success: false, Message: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(dst)
}

// actor extracts the authenticated actor stored by the auth middleware.
func actor(r *http.Request) auth.Actor {
	return ActorFromContext(r.Context())
}
