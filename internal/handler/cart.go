package handler

import (
	"net/http"

	"github.com/xenking/gearmart/internal/domain/cart"
)

// GetCart returns the buyer's cart. Buyers without a stored cart get an
// empty one.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), actor(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, r, c.Items)
}

// SetCart replaces the buyer's cart with the submitted selection. Lines with
// non-positive quantities are dropped.
func (h *Handler) SetCart(w http.ResponseWriter, r *http.Request) {
	var items map[string]int
	if err := decodeJSON(r, &items); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, envelope{Success: false, Message: "invalid request body"})
		return
	}
	for id, qty := range items {
		if qty <= 0 {
			delete(items, id)
		}
	}

	c := &cart.Cart{UserID: actor(r).UserID, Items: items}
	if err := h.carts.Set(r.Context(), c); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, r, c.Items)
}
