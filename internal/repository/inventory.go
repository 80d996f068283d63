package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/inventory"
)

const (
	// The availability check and the decrement are one conditional UPDATE so
	// concurrent reservations against the same size serialize on the row and
	// can never drive stock negative.
	reserveSizeSQL = `UPDATE product_sizes SET stock = stock - $3
		WHERE product_id = $1 AND label = $2 AND stock >= $3`

	// Aggregate fallback for products sold without a size breakdown. The
	// NOT EXISTS guard keeps the aggregate counter derived for sized
	// products: their availability lives in product_sizes only.
	reserveAggregateSQL = `UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
		AND NOT EXISTS (SELECT 1 FROM product_sizes ps WHERE ps.product_id = products.id)`

	sizeRowExistsSQL = `SELECT EXISTS (SELECT 1 FROM product_sizes WHERE product_id = $1 AND label = $2)`
	productExistsSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`
)

// querier is the subset of pgx operations shared by pgxpool.Pool and pgx.Tx,
// so reservations can run standalone or inside a settlement transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// reserve applies one stock reservation against q. It tries the per-size
// counter first and falls back to the aggregate counter for products with
// no size rows.
func reserve(ctx context.Context, q querier, r inventory.Reservation) error {
	if r.Quantity <= 0 {
		return fmt.Errorf("reserve %q: non-positive quantity %d", r.ProductID, r.Quantity)
	}

	if r.Size != "" {
		tag, err := q.Exec(ctx, reserveSizeSQL, r.ProductID, r.Size, r.Quantity)
		if err != nil {
			return fmt.Errorf("reserving size stock for %q: %w", r.ProductID, err)
		}
		if tag.RowsAffected() > 0 {
			return nil
		}

		// The size row exists but holds fewer than the requested quantity.
		var sizeExists bool
		if err := q.QueryRow(ctx, sizeRowExistsSQL, r.ProductID, r.Size).Scan(&sizeExists); err != nil {
			return fmt.Errorf("checking size row for %q: %w", r.ProductID, err)
		}
		if sizeExists {
			return &inventory.InsufficientStockError{ProductID: r.ProductID, Size: r.Size, Requested: r.Quantity}
		}
	}

	tag, err := q.Exec(ctx, reserveAggregateSQL, r.ProductID, r.Quantity)
	if err != nil {
		return fmt.Errorf("reserving aggregate stock for %q: %w", r.ProductID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var productExists bool
	if err := q.QueryRow(ctx, productExistsSQL, r.ProductID).Scan(&productExists); err != nil {
		return fmt.Errorf("checking product %q: %w", r.ProductID, err)
	}
	if !productExists {
		return inventory.ErrNotFound
	}
	return &inventory.InsufficientStockError{ProductID: r.ProductID, Size: r.Size, Requested: r.Quantity}
}

var _ inventory.Ledger = (*InventoryLedger)(nil)

// InventoryLedger implements inventory.Ledger backed by PostgreSQL. Order
// placement and settlement apply the same reservation logic inside their
// transactions; this standalone form serves tooling and tests.
type InventoryLedger struct {
	pool *pgxpool.Pool
}

// NewInventoryLedger returns an InventoryLedger that uses the given pool.
func NewInventoryLedger(pool *pgxpool.Pool) *InventoryLedger {
	return &InventoryLedger{pool: pool}
}

// Reserve atomically decrements stock for the reservation or fails without
// side effects.
func (l *InventoryLedger) Reserve(ctx context.Context, r inventory.Reservation) error {
	return reserve(ctx, l.pool, r)
}
