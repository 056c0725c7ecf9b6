//go:build integration

// Package integration exercises the PostgreSQL repositories against a real
// database started with testcontainers. Run with:
//
//	go test -tags integration ./tests/integration/
package integration

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/gearmart/internal/domain/auth"
	"github.com/xenking/gearmart/internal/domain/cart"
	"github.com/xenking/gearmart/internal/domain/order"
	"github.com/xenking/gearmart/internal/domain/product"
	"github.com/xenking/gearmart/internal/outbox"
	"github.com/xenking/gearmart/internal/storage/postgres"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "gearmart",
				"POSTGRES_PASSWORD": "gearmart",
				"POSTGRES_DB":       "gearmart_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres container: %v", err)
	}
	defer func() {
		if err := container.Terminate(context.Background()); err != nil {
			log.Printf("terminate container: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("container port: %v", err)
	}

	databaseURL := fmt.Sprintf("postgres://gearmart:gearmart@%s:%s/gearmart_test?sslmode=disable",
		host, port.Port())

	pool, err = postgres.NewPool(ctx, databaseURL)
	if err != nil {
		log.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	return m.Run()
}

func seedProduct(t *testing.T, stock, threshold int) *product.Product {
	t.Helper()
	p := &product.Product{
		ID:                uuid.New().String(),
		SellerID:          "seller-1",
		Name:              "Test Keyboard",
		Category:          "Keyboard",
		Price:             decimal.NewFromInt(4500),
		OfferPrice:        decimal.NewFromInt(3990),
		Images:            []product.Image{{URL: "/products/test.jpg"}},
		Features:          []string{"Hot-swappable"},
		Stock:             stock,
		LowStockThreshold: threshold,
		StockStatus:       product.DeriveStockStatus(stock, threshold),
		CreatedAt:         time.Now().UTC(),
	}
	require.NoError(t, postgres.NewProductRepository(pool).Create(context.Background(), p))
	return p
}

func TestProductRepository_RoundTrip(t *testing.T) {
	repo := postgres.NewProductRepository(pool)
	p := seedProduct(t, 10, 5)

	got, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.True(t, p.OfferPrice.Equal(got.OfferPrice))
	assert.Equal(t, p.Images, got.Images)
	assert.Equal(t, p.Features, got.Features)
	assert.Equal(t, product.StockStatusIn, got.StockStatus)

	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, product.ErrNotFound)
}

func TestProductRepository_ReserveRelease(t *testing.T) {
	repo := postgres.NewProductRepository(pool)
	ctx := context.Background()
	p := seedProduct(t, 10, 5)

	remaining, err := repo.ReserveStock(ctx, p.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, 4, remaining)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, product.StockStatusLow, got.StockStatus, "status recomputed in the same write")

	// Overdraw fails without mutating.
	_, err = repo.ReserveStock(ctx, p.ID, 5)
	var isErr *product.InsufficientStockError
	require.ErrorAs(t, err, &isErr)
	assert.Equal(t, 4, isErr.Available)

	got, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Stock)

	remaining, err = repo.ReleaseStock(ctx, p.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, 10, remaining)

	_, err = repo.ReserveStock(ctx, "missing", 1)
	assert.ErrorIs(t, err, product.ErrNotFound)
}

func TestProductRepository_ConcurrentReservations(t *testing.T) {
	// Two buyers race for the last units: exactly one reservation of the
	// remaining stock may win.
	repo := postgres.NewProductRepository(pool)
	ctx := context.Background()
	p := seedProduct(t, 5, 2)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.ReserveStock(ctx, p.ID, 5); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes, "only one full reservation may succeed")

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
	assert.Equal(t, product.StockStatusOut, got.StockStatus)
}

func TestOrderRepository_RoundTrip(t *testing.T) {
	repo := postgres.NewOrderRepository(pool)
	ctx := context.Background()
	eta := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Microsecond)

	o := &order.Order{
		ID:     uuid.New().String(),
		UserID: "buyer-rt",
		Items:  []order.Item{{ProductID: "p1", Quantity: 2}},
		Amount: decimal.NewFromInt(500), Tax: decimal.NewFromInt(60),
		ShippingFee: decimal.NewFromInt(100), TotalAmount: decimal.NewFromInt(660),
		Address: order.Address{
			FullName: "Juan dela Cruz", Phone: "09171234567", Pincode: "1000",
			Area: "Sampaloc", City: "Manila", State: "Metro Manila",
		},
		Status:        order.StatusPlaced,
		CanCancel:     true,
		PaymentMethod: order.PaymentMethodGcash,
		PaymentStatus: order.PaymentPaid,
		PaymentDetails: order.PaymentDetails{
			"reference": "GC-1",
		},
		TrackingNumber:    "TRK-1",
		EstimatedDelivery: &eta,
		TrackingHistory: []order.TrackingEvent{
			{Status: "Packed", Location: "Manila Hub", Timestamp: time.Now().UTC().Truncate(time.Microsecond)},
		},
		ReturnRequest: order.ReturnRequest{Status: order.ReturnNone},
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Create(ctx, o))

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Items, got.Items)
	assert.True(t, o.TotalAmount.Equal(got.TotalAmount))
	assert.Equal(t, o.Address, got.Address)
	assert.Equal(t, "GC-1", got.PaymentDetails["reference"])
	assert.Equal(t, o.TrackingNumber, got.TrackingNumber)
	require.Len(t, got.TrackingHistory, 1)
	assert.Equal(t, "Packed", got.TrackingHistory[0].Status)
	require.NotNil(t, got.EstimatedDelivery)

	// Archive round-trip through the aggregate and Update.
	got.SetArchived(true)
	require.NoError(t, repo.Update(ctx, got))

	archived, err := repo.GetByID(ctx, got.ID)
	require.NoError(t, err)
	assert.True(t, archived.Archived)
	assert.True(t, archived.TotalAmount.IsZero())
	require.NotNil(t, archived.Original)

	archived.SetArchived(false)
	require.NoError(t, repo.Update(ctx, archived))

	restored, err := repo.GetByID(ctx, archived.ID)
	require.NoError(t, err)
	assert.False(t, restored.Archived)
	assert.Nil(t, restored.Original)
	assert.Equal(t, o.Items, restored.Items)
	assert.True(t, o.TotalAmount.Equal(restored.TotalAmount))
}

func TestOrderRepository_Listing(t *testing.T) {
	repo := postgres.NewOrderRepository(pool)
	ctx := context.Background()
	userID := uuid.New().String()

	for i := range 3 {
		o := &order.Order{
			ID:     uuid.New().String(),
			UserID: userID,
			Items:  []order.Item{{ProductID: "p1", Quantity: 1}},
			Amount: decimal.NewFromInt(100), Tax: decimal.NewFromInt(12),
			ShippingFee: decimal.NewFromInt(100), TotalAmount: decimal.NewFromInt(212),
			Status:        order.StatusPlaced,
			CanCancel:     true,
			PaymentMethod: order.PaymentMethodCOD,
			PaymentStatus: order.PaymentPending,
			ReturnRequest: order.ReturnRequest{Status: order.ReturnNone},
			Archived:      i == 2,
			CreatedAt:     time.Now().UTC(),
		}
		require.NoError(t, repo.Create(ctx, o))
	}

	visible, err := repo.ListByUser(ctx, userID, false)
	require.NoError(t, err)
	assert.Len(t, visible, 2)

	all, err := repo.ListByUser(ctx, userID, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCartRepository(t *testing.T) {
	repo := postgres.NewCartRepository(pool)
	ctx := context.Background()
	userID := uuid.New().String()

	// Absent cart reads as empty.
	c, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	require.NoError(t, repo.Set(ctx, &cart.Cart{UserID: userID, Items: map[string]int{"p1": 2}}))
	require.NoError(t, repo.Set(ctx, &cart.Cart{UserID: userID, Items: map[string]int{"p1": 3, "p2": 1}}))

	c, err = repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 3, "p2": 1}, c.Items)

	require.NoError(t, repo.Clear(ctx, userID))
	c, err = repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestAPIKeyRepository(t *testing.T) {
	repo := postgres.NewAPIKeyRepository(pool)
	ctx := context.Background()

	hash := auth.HashKey("integration-key", []byte("pepper"))
	_, err := pool.Exec(ctx, `INSERT INTO api_keys (id, key_hash, user_id, name, email, role, active)
		VALUES ($1, $2, 'buyer-ik', 'Integration', 'ik@example.com', 'buyer', TRUE)`,
		uuid.New().String(), hash)
	require.NoError(t, err)

	key, err := repo.FindByHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, "buyer-ik", key.UserID)
	assert.Equal(t, auth.RoleBuyer, key.Role)

	_, err = repo.FindByHash(ctx, auth.HashKey("wrong", []byte("pepper")))
	assert.ErrorIs(t, err, auth.ErrKeyNotFound)
}

func TestOutboxRepository(t *testing.T) {
	repo := postgres.NewOutboxRepository(pool)
	ctx := context.Background()

	e := outbox.Event{
		ID:        uuid.New().String(),
		Name:      outbox.EventOrderCreated,
		Recipient: "buyer-ob",
		Template:  "orderConfirmation",
		Payload:   map[string]any{"orderId": "o1"},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Enqueue(ctx, e))

	pending, err := repo.ListPending(ctx, 100)
	require.NoError(t, err)
	var found bool
	for _, p := range pending {
		if p.ID == e.ID {
			found = true
			assert.Equal(t, "o1", p.Payload["orderId"])
			assert.Nil(t, p.DispatchedAt)
		}
	}
	require.True(t, found, "enqueued event must be pending")

	require.NoError(t, repo.MarkDispatched(ctx, e.ID))

	pending, err = repo.ListPending(ctx, 100)
	require.NoError(t, err)
	for _, p := range pending {
		assert.NotEqual(t, e.ID, p.ID, "dispatched event must not be pending")
	}
}
