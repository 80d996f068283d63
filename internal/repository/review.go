package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/review"
)

const (
	createReviewSQL = `INSERT INTO reviews (user_id, product_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	updateReviewSQL = `UPDATE reviews SET rating = $3, comment = $4
		WHERE user_id = $1 AND product_id = $2 RETURNING id, created_at`

	deleteReviewSQL = `DELETE FROM reviews WHERE user_id = $1 AND product_id = $2`

	listReviewsByProductSQL = `SELECT id, user_id, product_id, rating, comment, created_at
		FROM reviews WHERE product_id = $1 ORDER BY created_at DESC`

	// Recomputes the denormalized aggregates from the surviving rows, so it
	// is correct for inserts, updates and deletes alike.
	refreshProductRatingSQL = `UPDATE products SET
		rating = COALESCE((SELECT AVG(rating) FROM reviews WHERE product_id = $1), 0),
		num_reviews = (SELECT COUNT(*) FROM reviews WHERE product_id = $1)
		WHERE id = $1`
)

var _ review.Repository = (*ReviewRepository)(nil)

// ReviewRepository implements review.Repository backed by PostgreSQL. Every
// mutation refreshes the product's aggregate rating and review count in the
// same transaction.
type ReviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository returns a ReviewRepository that uses the given pool.
func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create persists a new review. A second review from the same user for the
// same product trips the unique constraint and is reported as ErrDuplicate.
func (r *ReviewRepository) Create(ctx context.Context, rv *review.Review) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, createReviewSQL,
			rv.UserID, rv.ProductID, rv.Rating, rv.Comment, rv.CreatedAt,
		).Scan(&rv.ID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, refreshProductRatingSQL, rv.ProductID)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return review.ErrDuplicate
		}
		return fmt.Errorf("creating review for product %q: %w", rv.ProductID, err)
	}
	return nil
}

// Update replaces the rating and comment of the user's existing review.
func (r *ReviewRepository) Update(ctx context.Context, rv *review.Review) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, updateReviewSQL,
			rv.UserID, rv.ProductID, rv.Rating, rv.Comment,
		).Scan(&rv.ID, &rv.CreatedAt)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, refreshProductRatingSQL, rv.ProductID)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return review.ErrNotFound
		}
		return fmt.Errorf("updating review for product %q: %w", rv.ProductID, err)
	}
	return nil
}

// Delete removes the user's review of the product.
func (r *ReviewRepository) Delete(ctx context.Context, userID int64, productID string) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, deleteReviewSQL, userID, productID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return review.ErrNotFound
		}
		_, err = tx.Exec(ctx, refreshProductRatingSQL, productID)
		return err
	})
	if err != nil {
		if errors.Is(err, review.ErrNotFound) {
			return review.ErrNotFound
		}
		return fmt.Errorf("deleting review for product %q: %w", productID, err)
	}
	return nil
}

// ListByProduct returns all reviews for a product, newest first.
func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string) ([]review.Review, error) {
	rows, err := r.pool.Query(ctx, listReviewsByProductSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing reviews for product %q: %w", productID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (review.Review, error) {
		var rv review.Review
		err := row.Scan(&rv.ID, &rv.UserID, &rv.ProductID, &rv.Rating, &rv.Comment, &rv.CreatedAt)
		return rv, err
	})
}
