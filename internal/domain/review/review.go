package review

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotEligible is returned when the user has no paid order containing
	// the product they are trying to review.
	ErrNotEligible = errors.New("review not allowed: no paid order for this product")
	// ErrDuplicate is returned when the user has already reviewed the
	// product.
	ErrDuplicate = errors.New("product already reviewed")
	// ErrInvalidRating is returned for ratings outside the 1..5 range.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	// ErrNotFound is returned when the requested review does not exist.
	ErrNotFound = errors.New("review not found")
)

// Review is a purchase-gated product rating. At most one review exists per
// (user, product) pair.
type Review struct {
	ID        int64
	UserID    int64
	ProductID string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// Repository persists reviews. Mutations must recompute the product's
// aggregate rating (arithmetic mean) and review count in the same
// transaction.
type Repository interface {
	Create(ctx context.Context, r *Review) error
	Update(ctx context.Context, r *Review) error
	Delete(ctx context.Context, userID int64, productID string) error
	ListByProduct(ctx context.Context, productID string) ([]Review, error)
}

// OrderReader is the slice of order state the eligibility gate depends on.
type OrderReader interface {
	HasPaidOrderWithProduct(ctx context.Context, userID int64, productID string) (bool, error)
}
