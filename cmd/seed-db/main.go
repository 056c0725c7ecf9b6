// Command seed-db loads the catalog seed file and development API keys into
// the database. It is idempotent: products and keys are upserted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/gearmart/internal/domain/auth"
	"github.com/xenking/gearmart/internal/domain/product"
	"github.com/xenking/gearmart/internal/storage/postgres"
)

type productJSON struct {
	ID                string          `json:"id"`
	SellerID          string          `json:"seller_id"`
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

const upsertProductSQL = `INSERT INTO products (id, seller_id, name, description, category,
	subcategory, brand, price, offer_price, images, features, stock,
	low_stock_threshold, stock_status, archived, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, FALSE, $15)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, description = EXCLUDED.description,
		category = EXCLUDED.category, subcategory = EXCLUDED.subcategory,
		brand = EXCLUDED.brand, price = EXCLUDED.price,
		offer_price = EXCLUDED.offer_price, images = EXCLUDED.images,
		features = EXCLUDED.features, stock = EXCLUDED.stock,
		low_stock_threshold = EXCLUDED.low_stock_threshold,
		stock_status = EXCLUDED.stock_status`

const upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, user_id, name, email, role, active)
	VALUES ($1, $2, $3, $4, $5, $6, TRUE)
	ON CONFLICT (id) DO UPDATE SET
		key_hash = EXCLUDED.key_hash, user_id = EXCLUDED.user_id,
		name = EXCLUDED.name, email = EXCLUDED.email, role = EXCLUDED.role,
		active = TRUE`

func main() {
	var (
		databaseURL  string
		productsFile string
		buyerKey     string
		sellerKey    string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&buyerKey, "buyer-key", "", "buyer API key to seed (or GEARMART_SEED_BUYER_KEY env)")
	flag.StringVar(&sellerKey, "seller-key", "", "seller API key to seed (or GEARMART_SEED_SELLER_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or GEARMART_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if buyerKey == "" {
		buyerKey = os.Getenv("GEARMART_SEED_BUYER_KEY")
	}
	if sellerKey == "" {
		sellerKey = os.Getenv("GEARMART_SEED_SELLER_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("GEARMART_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, buyerKey, sellerKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, buyerKey, sellerKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedAPIKeys(ctx, pool, buyerKey, sellerKey, pepper); err != nil {
		return errors.Wrap(err, "seed api keys")
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if p.OfferPrice.IsZero() {
			p.OfferPrice = p.Price
		}
		threshold := p.LowStockThreshold
		if threshold <= 0 {
			threshold = product.DefaultLowStockThreshold
		}

		imagesJSON, err := json.Marshal(p.Images)
		if err != nil {
			return errors.Wrapf(err, "marshal images of product %s", p.ID)
		}

		_, err = pool.Exec(ctx, upsertProductSQL,
			p.ID, p.SellerID, p.Name, p.Description, p.Category,
			p.Subcategory, p.Brand, p.Price, p.OfferPrice, imagesJSON, p.Features,
			p.Stock, threshold, product.DeriveStockStatus(p.Stock, threshold), time.Now(),
		)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedAPIKeys(ctx context.Context, pool *pgxpool.Pool, buyerKey, sellerKey, pepper string) error {
	keys := []struct {
		id, rawKey, userID, name, email string
		role                            auth.Role
	}{
		{"seed-buyer", buyerKey, "buyer-1", "Seed buyer", "buyer@example.com", auth.RoleBuyer},
		{"seed-seller", sellerKey, "seller-1", "Seed seller", "seller@example.com", auth.RoleSeller},
	}

	for _, k := range keys {
		if k.rawKey == "" {
			slog.Info("skipping api key, no raw key provided", slog.String("id", k.id))
			continue
		}

		hash := auth.HashKey(k.rawKey, []byte(pepper))
		_, err := pool.Exec(ctx, upsertAPIKeySQL, k.id, hash, k.userID, k.name, k.email, k.role)
		if err != nil {
			return errors.Wrapf(err, "upsert api key %s", k.id)
		}

		slog.Info("upserted api key", slog.String("id", k.id), slog.String("role", string(k.role)))
	}

	return nil
}
