// stock-ingest loads warehouse inventory feeds into the database. Each feed
// is a gzip-compressed CSV of product_id,size,stock lines, one per warehouse.
// A (product, size) pair carried by a single feed is written as-is; a pair
// carried by several feeds has its stocks summed, since each warehouse
// reports only its own shelves.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
)

// stockRow is one parsed feed line. An empty size means the product is sold
// without a size breakdown.
type stockRow struct {
	productID string
	size      string
	stock     int
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing stockfeed*.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("stock ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("stock ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "stockfeed*.gz"))
	if err != nil {
		return errors.Wrap(err, "glob feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no stockfeed*.gz files in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	// Pass 1: build one bloom filter of (product, size) keys per feed.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: write single-feed rows directly; rows whose key shows up in
	// another feed's filter are collected and summed before writing.
	slog.Info("pass 2: writing stock rows")

	shared, err := writeDirectRows(ctx, pool, files, filters)
	if err != nil {
		return errors.Wrap(err, "write direct rows")
	}

	if err := writeSharedRows(ctx, pool, shared); err != nil {
		return errors.Wrap(err, "write shared rows")
	}

	// Aggregate counters of sized products are derived from the size rows.
	slog.Info("refreshing aggregate stock")

	if _, err := pool.Exec(ctx, refreshAggregatesSQL); err != nil {
		return errors.Wrap(err, "refresh aggregate stock")
	}

	return nil
}

func rowKey(r stockRow) string {
	return r.productID + "|" + r.size
}

// buildBloomFilters creates one bloom filter per feed file, concurrently.
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

		if err := streamGzFile(ctx, path, func(r stockRow) error {
			filter.AddString(rowKey(r))
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress",
					slog.Int("file", idx+1),
					slog.Uint64("rows", count),
				)
			}
			return nil
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_rows", count),
		)

		filters[idx] = filter
		return nil
	}
}

// writeDirectRows streams every feed again. Rows whose key is absent from
// all other feeds' filters are upserted straight away; the rest are returned
// for merging. A bloom false positive only routes a row through the merge
// path, which writes the same value.
func writeDirectRows(
	ctx context.Context,
	pool *pgxpool.Pool,
	files []string,
	filters []*bloom.BloomFilter,
) (map[string]stockRow, error) {
	var (
		mu     sync.Mutex
		shared = make(map[string]stockRow)
	)

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		idx, path := i, f
		g.Go(func() error {
			var count uint64
			err := streamGzFile(ctx, path, func(r stockRow) error {
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 2 progress",
						slog.Int("file", idx+1),
						slog.Uint64("rows", count),
					)
				}

				for j, other := range filters {
					if j == idx {
						continue
					}
					if other.TestString(rowKey(r)) {
						mu.Lock()
						if prev, ok := shared[rowKey(r)]; ok {
							r.stock += prev.stock
						}
						shared[rowKey(r)] = r
						mu.Unlock()
						return nil
					}
				}
				return upsertStock(ctx, pool, r)
			})
			if err != nil {
				return errors.Wrapf(err, "ingest file %d", idx+1)
			}

			slog.Info("pass 2 complete",
				slog.Int("file", idx+1),
				slog.Uint64("total_rows", count),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return shared, nil
}

func writeSharedRows(ctx context.Context, pool *pgxpool.Pool, shared map[string]stockRow) error {
	if len(shared) == 0 {
		return nil
	}

	slog.Info("writing shared rows", slog.Int("count", len(shared)))

	for _, r := range shared {
		if err := upsertStock(ctx, pool, r); err != nil {
			return err
		}
	}
	return nil
}

const (
	// The EXISTS guard silently drops rows for products missing from the
	// catalog instead of tripping the foreign key.
	upsertSizeStockSQL = `INSERT INTO product_sizes (product_id, label, stock)
		SELECT $1, $2, $3 WHERE EXISTS (SELECT 1 FROM products WHERE id = $1)
		ON CONFLICT (product_id, label) DO UPDATE SET stock = EXCLUDED.stock`

	setAggregateStockSQL = `UPDATE products SET stock = $2 WHERE id = $1`

	refreshAggregatesSQL = `UPDATE products p SET stock = agg.total
		FROM (SELECT product_id, SUM(stock)::int AS total FROM product_sizes GROUP BY product_id) agg
		WHERE p.id = agg.product_id`
)

func upsertStock(ctx context.Context, pool *pgxpool.Pool, r stockRow) error {
	if r.size == "" {
		_, err := pool.Exec(ctx, setAggregateStockSQL, r.productID, r.stock)
		return errors.Wrapf(err, "set stock for %s", r.productID)
	}
	_, err := pool.Exec(ctx, upsertSizeStockSQL, r.productID, r.size, r.stock)
	return errors.Wrapf(err, "upsert stock for %s size %s", r.productID, r.size)
}

// streamGzFile opens a gzip-compressed CSV file and calls fn for each parsed
// line. Malformed lines are skipped with a warning.
func streamGzFile(ctx context.Context, path string, fn func(stockRow) error) error {
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

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		r, ok := parseLine(line)
		if !ok {
			slog.Warn("skipping malformed line", slog.String("file", path), slog.String("line", line))
			continue
		}
		if err := fn(r); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

func parseLine(line string) (stockRow, bool) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return stockRow{}, false
	}

	stock, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil || stock < 0 {
		return stockRow{}, false
	}

	id := strings.TrimSpace(parts[0])
	if id == "" {
		return stockRow{}, false
	}

	return stockRow{
		productID: id,
		size:      product.NormalizeSize(parts[1]),
		stock:     stock,
	}, true
}
