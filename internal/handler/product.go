package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/gearmart/internal/domain/auth"
	"github.com/xenking/gearmart/internal/domain/product"
)

// ListProducts returns the public catalog. Archived products are hidden.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context(), false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, r, h.withImageBase(products))
}

// GetProduct returns a single product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.resolveImages(p)
	h.writeData(w, r, p)
}

type createProductRequest struct {
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Category          string          `json:"category"`
	Subcategory       string          `json:"subcategory"`
	Brand             string          `json:"brand"`
	Price             decimal.Decimal `json:"price"`
	OfferPrice        decimal.Decimal `json:"offer_price"`
	Images            []product.Image `json:"images"`
	Features          []string        `json:"features"`
	Stock             int             `json:"stock"`
	LowStockThreshold int             `json:"low_stock_threshold"`
}

// CreateProduct adds a catalog item for the authenticated seller.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	act := actor(r)
	if err := auth.RequireSeller(act); err != nil {
		h.writeError(w, r, err)
		return
	}

	var req createProductRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, envelope{Success: false, Message: "invalid request body"})
		return
	}
	if req.Name == "" || req.Category == "" {
		h.writeJSON(w, r, http.StatusBadRequest, envelope{Success: false, Message: "name and category are required"})
		return
	}
	if req.OfferPrice.IsZero() {
		req.OfferPrice = req.Price
	}
	threshold := req.LowStockThreshold
	if threshold <= 0 {
		threshold = product.DefaultLowStockThreshold
	}

	p := &product.Product{
		ID:                uuid.New().String(),
		SellerID:          act.UserID,
		Name:              req.Name,
		Description:       req.Description,
		Category:          req.Category,
		Subcategory:       req.Subcategory,
		Brand:             req.Brand,
		Price:             req.Price,
		OfferPrice:        req.OfferPrice,
		Images:            req.Images,
		Features:          req.Features,
		Stock:             req.Stock,
		LowStockThreshold: threshold,
		StockStatus:       product.DeriveStockStatus(req.Stock, threshold),
		CreatedAt:         time.Now(),
	}
	if err := h.products.Create(r.Context(), p); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, r, p)
}

type inventoryReport struct {
	Products   []product.Product `json:"products"`
	Total      int               `json:"total"`
	LowStock   int               `json:"low_stock"`
	OutOfStock int               `json:"out_of_stock"`
}

// ListInventory returns the seller's own products with stock levels, archived
// included, plus low/out-of-stock counts.
func (h *Handler) ListInventory(w http.ResponseWriter, r *http.Request) {
	act := actor(r)
	if err := auth.RequireSeller(act); err != nil {
		h.writeError(w, r, err)
		return
	}

	products, err := h.products.ListBySeller(r.Context(), act.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	report := inventoryReport{
		Products: h.withImageBase(products),
		Total:    len(products),
	}
	for _, p := range products {
		switch p.StockStatus {
		case product.StockStatusLow:
			report.LowStock++
		case product.StockStatusOut:
			report.OutOfStock++
		}
	}
	h.writeData(w, r, report)
}

// UpdateProductStock sets the stock count and low-stock threshold. Only the
// owning seller may write; the stock status is recomputed in the same write.
func (h *Handler) UpdateProductStock(w http.ResponseWriter, r *http.Request) {
	act := actor(r)
	if err := auth.RequireSeller(act); err != nil {
		h.writeError(w, r, err)
		return
	}

	var req struct {
		Stock             *int `json:"stock"`
		LowStockThreshold int  `json:"low_stock_threshold"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Stock == nil || *req.Stock < 0 {
		h.writeJSON(w, r, http.StatusBadRequest, envelope{Success: false, Message: "stock must be a non-negative integer"})
		return
	}

	id := chi.URLParam(r, "id")
	existing, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if existing.SellerID != act.UserID {
		h.writeError(w, r, product.ErrNotOwner)
		return
	}

	threshold := req.LowStockThreshold
	if threshold <= 0 {
		threshold = existing.LowStockThreshold
	}

	p, err := h.products.UpdateStock(r.Context(), id, *req.Stock, threshold)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, r, p)
}

// ArchiveProduct archives or unarchives a product owned by the requesting
// seller. Archived products stay readable but can no longer be ordered.
func (h *Handler) ArchiveProduct(w http.ResponseWriter, r *http.Request) {
	act := actor(r)
	if err := auth.RequireSeller(act); err != nil {
		h.writeError(w, r, err)
		return
	}

	var req struct {
		Archived bool `json:"archived"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, envelope{Success: false, Message: "invalid request body"})
		return
	}

	id := chi.URLParam(r, "id")
	existing, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if existing.SellerID != act.UserID {
		h.writeError(w, r, product.ErrNotOwner)
		return
	}

	if err := h.products.SetArchived(r.Context(), id, req.Archived); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, envelope{Success: true})
}

// withImageBase resolves relative image paths for a product slice in place.
func (h *Handler) withImageBase(products []product.Product) []product.Product {
	for i := range products {
		h.resolveImages(&products[i])
	}
	return products
}

func (h *Handler) resolveImages(p *product.Product) {
	if h.imageBaseURL == "" {
		return
	}
	for i, img := range p.Images {
		if img.URL != "" && !strings.HasPrefix(img.URL, "http") {
			p.Images[i].URL = strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(img.URL, "/")
		}
	}
}
