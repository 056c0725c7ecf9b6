// Command catalog-ingest reconciles supplier availability manifests with the
// inventory ledger. Suppliers export large gzip-compressed manifests, one SKU
// per line; a SKU counts as confirmed only when at least two manifests list
// it, which filters out single-warehouse export glitches. Confirmed SKUs that
// exist in the catalog are restocked through the ledger.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/gearmart/internal/domain/product"
	"github.com/xenking/gearmart/internal/storage/postgres"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	numFiles      = 3
	progressEvery = 10_000_000
	minSKULen     = 8
	maxSKULen     = 24
)

// fileResult holds candidate SKUs found in a single manifest during pass 2.
type fileResult struct {
	candidates map[string]uint
}

func main() {
	var (
		dataDir      string
		databaseURL  string
		restockUnits int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing manifestN.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&restockUnits, "restock-units", 10, "units added per confirmed SKU")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, restockUnits); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, restockUnits int) error {
	files := make([]string, numFiles)
	for i := range numFiles {
		files[i] = filepath.Join(dataDir, fmt.Sprintf("manifest%d.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: Build bloom filters concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", numFiles))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: Find SKUs appearing in 2+ manifests.
	slog.Info("pass 2: finding confirmed SKUs")

	confirmed, err := findConfirmedSKUs(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find confirmed SKUs")
	}

	slog.Info("confirmed SKUs found", slog.Int("count", len(confirmed)))

	if len(confirmed) == 0 {
		slog.Info("no confirmed SKUs to restock")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := restockProducts(ctx, postgres.NewProductRepository(pool), confirmed, restockUnits); err != nil {
		return errors.Wrap(err, "restock products")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per manifest, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(sku string) {
			if len(sku) >= minSKULen && len(sku) <= maxSKULen {
				filter.AddString(sku)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress",
						slog.Int("file", idx+1),
						slog.Uint64("skus", count),
					)
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_skus", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findConfirmedSKUs re-streams each manifest and checks SKUs against OTHER
// manifests' bloom filters. A SKU is confirmed if it appears in 2 or more
// manifests.
func findConfirmedSKUs(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge bitmasks from all manifests.
	merged := make(map[string]uint)
	for _, r := range results {
		for sku, mask := range r.candidates {
			merged[sku] |= mask
		}
	}

	// Keep SKUs appearing in 2+ manifests.
	var confirmed []string
	for sku, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			confirmed = append(confirmed, sku)
		}
	}

	return confirmed, nil
}

func findCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(sku string) {
			if len(sku) < minSKULen || len(sku) > maxSKULen {
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("file", idx+1),
					slog.Uint64("skus", count),
				)
			}

			// Check if this SKU appears in any OTHER manifest's bloom filter.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(sku) {
					candidates[sku] |= fileBit
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_skus", count),
			slog.Int("candidates", len(candidates)),
		)

		results[idx] = fileResult{candidates: candidates}
		return nil
	}
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(sku string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// restockProducts releases units back into the ledger for every confirmed
// SKU that exists in the catalog. Unknown SKUs are logged and skipped.
func restockProducts(ctx context.Context, products *postgres.ProductRepository, skus []string, units int) error {
	slog.Info("restocking products", slog.Int("count", len(skus)), slog.Int("units_each", units))

	var restocked, unknown int
	for i, sku := range skus {
		_, err := products.ReleaseStock(ctx, sku, units)
		switch {
		case errors.Is(err, product.ErrNotFound):
			unknown++
		case err != nil:
			return errors.Wrapf(err, "restock sku %s", sku)
		default:
			restocked++
		}

		if (i+1)%100 == 0 || i+1 == len(skus) {
			slog.Info("restock progress", slog.Int("processed", i+1), slog.Int("total", len(skus)))
		}
	}

	slog.Info("restock summary", slog.Int("restocked", restocked), slog.Int("unknown_skus", unknown))
	return nil
}
