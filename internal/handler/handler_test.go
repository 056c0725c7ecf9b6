package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/gearmart/internal/domain/auth"
	"github.com/xenking/gearmart/internal/domain/cart"
	"github.com/xenking/gearmart/internal/domain/order"
	"github.com/xenking/gearmart/internal/domain/product"
	"github.com/xenking/gearmart/internal/outbox"
)

// --- Mock implementations ---

type memProductRepo struct {
	byID map[string]*product.Product
}

func newMemProductRepo(products ...product.Product) *memProductRepo {
	byID := make(map[string]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return &memProductRepo{byID: byID}
}

func (m *memProductRepo) List(_ context.Context, includeArchived bool) ([]product.Product, error) {
	var out []product.Product
	for _, p := range m.byID {
		if includeArchived || !p.Archived {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProductRepo) ListBySeller(_ context.Context, sellerID string) ([]product.Product, error) {
	var out []product.Product
	for _, p := range m.byID {
		if p.SellerID == sellerID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProductRepo) Create(_ context.Context, p *product.Product) error {
	m.byID[p.ID] = p
	return nil
}

func (m *memProductRepo) UpdateStock(_ context.Context, id string, stock, threshold int) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	p.Stock = stock
	p.LowStockThreshold = threshold
	p.StockStatus = product.DeriveStockStatus(stock, threshold)
	cp := *p
	return &cp, nil
}

func (m *memProductRepo) SetArchived(_ context.Context, id string, archived bool) error {
	p, ok := m.byID[id]
	if !ok {
		return product.ErrNotFound
	}
	p.Archived = archived
	return nil
}

func (m *memProductRepo) ReserveStock(_ context.Context, id string, qty int) (int, error) {
	p, ok := m.byID[id]
	if !ok {
		return 0, product.ErrNotFound
	}
	if qty > p.Stock {
		return 0, &product.InsufficientStockError{ProductID: id, Requested: qty, Available: p.Stock}
	}
	p.Stock -= qty
	p.StockStatus = product.DeriveStockStatus(p.Stock, p.LowStockThreshold)
	return p.Stock, nil
}

func (m *memProductRepo) ReleaseStock(_ context.Context, id string, qty int) (int, error) {
	p, ok := m.byID[id]
	if !ok {
		return 0, product.ErrNotFound
	}
	p.Stock += qty
	p.StockStatus = product.DeriveStockStatus(p.Stock, p.LowStockThreshold)
	return p.Stock, nil
}

type memOrderRepo struct {
	byID map[string]*order.Order
}

func (m *memOrderRepo) Create(_ context.Context, o *order.Order) error {
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

func (m *memOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderRepo) Update(_ context.Context, o *order.Order) error {
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

func (m *memOrderRepo) ListByUser(_ context.Context, userID string, includeArchived bool) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.byID {
		if o.UserID == userID && (includeArchived || !o.Archived) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrderRepo) ListAll(_ context.Context, includeArchived bool) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.byID {
		if includeArchived || !o.Archived {
			out = append(out, *o)
		}
	}
	return out, nil
}

type memCartRepo struct {
	byUser map[string]map[string]int
}

func (m *memCartRepo) Get(_ context.Context, userID string) (*cart.Cart, error) {
	items := m.byUser[userID]
	if items == nil {
		items = map[string]int{}
	}
	return &cart.Cart{UserID: userID, Items: items}, nil
}

func (m *memCartRepo) Set(_ context.Context, c *cart.Cart) error {
	m.byUser[c.UserID] = c.Items
	return nil
}

func (m *memCartRepo) Clear(_ context.Context, userID string) error {
	delete(m.byUser, userID)
	return nil
}

type memAPIKeyRepo struct {
	byHash map[string]*auth.APIKey
}

func (m *memAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKey, error) {
	k, ok := m.byHash[hash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return k, nil
}

type noopQueue struct{}

func (noopQueue) Enqueue(context.Context, outbox.Event) error { return nil }
func (noopQueue) ListPending(context.Context, int) ([]outbox.Event, error) {
	return nil, nil
}
func (noopQueue) MarkDispatched(context.Context, string) error { return nil }

// --- Test server setup ---

var testPepper = []byte("test-pepper")

const (
	buyerKey       = "buyer-key"
	sellerKey      = "seller-key"
	rivalSellerKey = "rival-seller-key"
)

type fixture struct {
	router   http.Handler
	products *memProductRepo
	orders   *memOrderRepo
}

func newFixture(products ...product.Product) *fixture {
	productRepo := newMemProductRepo(products...)
	orderRepo := &memOrderRepo{byID: map[string]*order.Order{}}
	cartRepo := &memCartRepo{byUser: map[string]map[string]int{}}
	keyRepo := &memAPIKeyRepo{byHash: map[string]*auth.APIKey{
		auth.HashKey(buyerKey, testPepper): {
			ID: "k1", KeyHash: auth.HashKey(buyerKey, testPepper),
			UserID: "buyer-1", Name: "Buyer", Role: auth.RoleBuyer,
		},
		auth.HashKey(sellerKey, testPepper): {
			ID: "k2", KeyHash: auth.HashKey(sellerKey, testPepper),
			UserID: "seller-1", Name: "Seller", Role: auth.RoleSeller,
		},
		auth.HashKey(rivalSellerKey, testPepper): {
			ID: "k3", KeyHash: auth.HashKey(rivalSellerKey, testPepper),
			UserID: "seller-2", Name: "Rival", Role: auth.RoleSeller,
		},
	}}

	svc := order.NewService(productRepo, orderRepo, cartRepo, noopQueue{})
	h := New(Config{}, productRepo, cartRepo, svc, NewAuthenticator(keyRepo, testPepper))

	r := chi.NewRouter()
	r.Route("/api", h.Routes)

	return &fixture{router: r, products: productRepo, orders: orderRepo}
}

func (f *fixture) do(t *testing.T, method, path, apiKey string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func catalogProduct(id string, offerPrice int64, stock int) product.Product {
	return product.Product{
		ID:                id,
		SellerID:          "seller-1",
		Name:              "Mechanical Keyboard",
		Category:          "Keyboard",
		Price:             decimal.NewFromInt(offerPrice + 200),
		OfferPrice:        decimal.NewFromInt(offerPrice),
		Stock:             stock,
		LowStockThreshold: product.DefaultLowStockThreshold,
		StockStatus:       product.DeriveStockStatus(stock, product.DefaultLowStockThreshold),
	}
}

func orderBody(productID string, qty int) map[string]any {
	return map[string]any{
		"items": []map[string]any{{"product_id": productID, "quantity": qty}},
		"address": map[string]any{
			"full_name": "Juan dela Cruz",
			"phone":     "09171234567",
			"pincode":   "1000",
			"area":      "Sampaloc",
			"city":      "Manila",
			"state":     "Metro Manila",
		},
		"payment_method": "COD",
	}
}

// --- Tests ---

func TestAuth(t *testing.T) {
	f := newFixture(catalogProduct("p1", 500, 10))

	rec := f.do(t, http.MethodPost, "/api/order", "", orderBody("p1", 1))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/order", "wrong-key", orderBody("p1", 1))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Public routes need no key.
	rec = f.do(t, http.MethodGet, "/api/product", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateOrderEndpoint(t *testing.T) {
	f := newFixture(catalogProduct("p1", 500, 10))

	rec := f.do(t, http.MethodPost, "/api/order", buyerKey, orderBody("p1", 1))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var o order.Order
	require.NoError(t, json.Unmarshal(data, &o))

	assert.Equal(t, "buyer-1", o.UserID)
	assert.True(t, decimal.NewFromInt(630).Equal(o.TotalAmount), "total %s", o.TotalAmount)
	assert.Equal(t, 9, f.products.byID["p1"].Stock)
}

func TestCreateOrderEndpoint_InsufficientStock(t *testing.T) {
	f := newFixture(catalogProduct("p1", 500, 2))

	rec := f.do(t, http.MethodPost, "/api/order", buyerKey, orderBody("p1", 5))
	assert.Equal(t, http.StatusConflict, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "insufficient stock")
}

func TestCreateOrderEndpoint_BadAddress(t *testing.T) {
	f := newFixture(catalogProduct("p1", 500, 10))

	body := orderBody("p1", 1)
	body["address"].(map[string]any)["phone"] = ""

	rec := f.do(t, http.MethodPost, "/api/order", buyerKey, body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeEnvelope(t, rec).Message, "phone")
}

func TestCancelEndpoint_Conflict(t *testing.T) {
	f := newFixture(catalogProduct("p1", 500, 10))

	rec := f.do(t, http.MethodPost, "/api/order", buyerKey, orderBody("p1", 1))
	require.Equal(t, http.StatusOK, rec.Code)
	var id string
	for oid := range f.orders.byID {
		id = oid
	}

	rec = f.do(t, http.MethodPost, "/api/order/"+id+"/cancel", buyerKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/order/"+id+"/cancel", buyerKey, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// A cancelled order is locked against status updates.
	rec = f.do(t, http.MethodPost, "/api/order/"+id+"/status", sellerKey, map[string]any{"status": "Confirmed"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSellerOnlyEndpoints(t *testing.T) {
	f := newFixture(catalogProduct("p1", 500, 10))

	rec := f.do(t, http.MethodGet, "/api/order/seller", buyerKey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/product/p1/stock", buyerKey, map[string]any{"stock": 3})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/product/p1/stock", sellerKey, map[string]any{"stock": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, f.products.byID["p1"].Stock)
	assert.Equal(t, product.StockStatusLow, f.products.byID["p1"].StockStatus)
}

func TestTrackEndpoint_Public(t *testing.T) {
	f := newFixture(catalogProduct("p1", 500, 10))

	rec := f.do(t, http.MethodPost, "/api/order", buyerKey, orderBody("p1", 1))
	require.Equal(t, http.StatusOK, rec.Code)
	var id string
	for oid := range f.orders.byID {
		id = oid
	}

	rec = f.do(t, http.MethodGet, "/api/order/"+id+"/track", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var view trackingView
	require.NoError(t, json.Unmarshal(data, &view))
	assert.Equal(t, id, view.OrderID)
	assert.Equal(t, order.StatusPlaced, view.Status)

	rec = f.do(t, http.MethodGet, "/api/order/nope/track", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShippingQuoteEndpoint(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/api/shipping/quote?state=Cebu&subtotal=1000", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var quote shippingQuote
	require.NoError(t, json.Unmarshal(data, &quote))

	assert.Equal(t, "Visayas", string(quote.Zone))
	assert.True(t, decimal.NewFromInt(120).Equal(quote.Tax), "tax %s", quote.Tax)
	assert.True(t, decimal.NewFromInt(140).Equal(quote.ShippingFee), "fee %s", quote.ShippingFee)

	rec = f.do(t, http.MethodGet, "/api/shipping/quote?state=Cebu&subtotal=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartEndpoints(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPut, "/api/cart", buyerKey, map[string]int{"p1": 2, "p2": 0})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/cart", buyerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var items map[string]int
	require.NoError(t, json.Unmarshal(data, &items))
	assert.Equal(t, map[string]int{"p1": 2}, items, "zero-quantity lines are dropped")
}

func TestCreateProductEndpoint(t *testing.T) {
	f := newFixture()

	body := map[string]any{
		"name":     "Gaming Mouse",
		"category": "Mouse",
		"price":    "1500",
		"stock":    20,
	}

	rec := f.do(t, http.MethodPost, "/api/product", buyerKey, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/product", sellerKey, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env := decodeEnvelope(t, rec)
	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var p product.Product
	require.NoError(t, json.Unmarshal(data, &p))

	assert.Equal(t, "seller-1", p.SellerID)
	assert.True(t, p.OfferPrice.Equal(p.Price), "offer price defaults to price")
	assert.Equal(t, product.StockStatusIn, p.StockStatus)
	assert.Equal(t, product.DefaultLowStockThreshold, p.LowStockThreshold)
}

func TestInventoryEndpoint(t *testing.T) {
	f := newFixture(
		catalogProduct("p1", 500, 10),
		catalogProduct("p2", 800, 3),
		catalogProduct("p3", 1200, 0),
	)

	rec := f.do(t, http.MethodGet, "/api/product/inventory", buyerKey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/product/inventory", sellerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env := decodeEnvelope(t, rec)
	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var report inventoryReport
	require.NoError(t, json.Unmarshal(data, &report))

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.LowStock)
	assert.Equal(t, 1, report.OutOfStock)
	assert.Len(t, report.Products, 3)
}

func TestProductOwnership(t *testing.T) {
	f := newFixture(catalogProduct("p1", 500, 10))

	// A seller cannot touch another seller's product.
	rec := f.do(t, http.MethodPost, "/api/product/p1/stock", rivalSellerKey, map[string]any{"stock": 0})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 10, f.products.byID["p1"].Stock)

	rec = f.do(t, http.MethodPost, "/api/product/p1/archive", rivalSellerKey, map[string]any{"archived": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, f.products.byID["p1"].Archived)

	// The owner can.
	rec = f.do(t, http.MethodPost, "/api/product/p1/archive", sellerKey, map[string]any{"archived": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.products.byID["p1"].Archived)
}
