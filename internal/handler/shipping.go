package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/xenking/gearmart/internal/domain/pricing"
)

// shippingQuote is the checkout preview: the zone serving the address plus
// the charges an order with this subtotal would carry.
type shippingQuote struct {
	Zone          pricing.Zone    `json:"zone"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	ShippingFee   decimal.Decimal `json:"shipping_fee"`
	Total         decimal.Decimal `json:"total"`
	FreeThreshold decimal.Decimal `json:"free_shipping_threshold"`
	EstimatedDays string          `json:"estimated_days"`
}

// ShippingQuote prices a hypothetical order: ?state resolves the zone,
// ?subtotal (optional) yields the tax and fee an order would carry. The quote
// is informational; orders are always priced at creation time.
func (h *Handler) ShippingQuote(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	info := pricing.InfoFor(state)

	subtotal := decimal.Zero
	if raw := r.URL.Query().Get("subtotal"); raw != "" {
		var err error
		subtotal, err = decimal.NewFromString(raw)
		if err != nil || subtotal.IsNegative() {
			h.writeJSON(w, r, http.StatusBadRequest, envelope{Success: false, Message: "subtotal must be a non-negative number"})
			return
		}
	}
	charges := pricing.ComputeCharges(subtotal, state)

	h.writeData(w, r, shippingQuote{
		Zone:          charges.Zone,
		Subtotal:      subtotal,
		Tax:           charges.Tax,
		ShippingFee:   charges.ShippingFee,
		Total:         charges.Total,
		FreeThreshold: info.Threshold,
		EstimatedDays: info.EstimatedDays,
	})
}
