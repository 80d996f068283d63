package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/product"
)

const (
	// Sized products report availability as the sum of their size rows; the
	// aggregate column only counts for products without a size breakdown.
	productColumns = `p.id, p.name, p.description, p.price, p.image, p.category,
		COALESCE((SELECT SUM(ps.stock) FROM product_sizes ps WHERE ps.product_id = p.id), p.stock),
		p.rating, p.num_reviews`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products p ORDER BY p.id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products p WHERE p.id = ANY($1)`

	getProductSizesSQL = `SELECT label, stock FROM product_sizes WHERE product_id = $1 ORDER BY label`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier, size breakdown
// included.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	sizeRows, err := r.pool.Query(ctx, getProductSizesSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting sizes for product %q: %w", id, err)
	}
	p.Sizes, err = pgx.CollectRows(sizeRows, func(row pgx.CollectableRow) (product.SizeStock, error) {
		var s product.SizeStock
		err := row.Scan(&s.Label, &s.Stock)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting sizes for product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p      product.Product
		price  decimal.Decimal
		rating decimal.Decimal
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &price, &p.Image, &p.Category,
		&p.Stock, &rating, &p.NumReviews,
	)
	p.Price = price
	p.Rating = rating
	return p, err
}
