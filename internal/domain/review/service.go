package review

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Service authorizes and persists product reviews.
type Service struct {
	reviews Repository
	orders  OrderReader
	now     func() time.Time
}

// NewService creates a review service backed by the given repositories.
func NewService(reviews Repository, orders OrderReader) *Service {
	return &Service{
		reviews: reviews,
		orders:  orders,
		now:     time.Now,
	}
}

// CanReview reports whether the user is allowed to review the product:
// true iff a paid order of theirs contains it.
func (s *Service) CanReview(ctx context.Context, userID int64, productID string) (bool, error) {
	return s.orders.HasPaidOrderWithProduct(ctx, userID, productID)
}

// Create adds a review after checking purchase eligibility. The repository
// enforces the one-review-per-user-per-product constraint and surfaces
// violations as ErrDuplicate.
func (s *Service) Create(ctx context.Context, userID int64, productID string, rating int, comment string) (*Review, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	ok, err := s.CanReview(ctx, userID, productID)
	if err != nil {
		return nil, errors.Wrap(err, "check review eligibility")
	}
	if !ok {
		return nil, ErrNotEligible
	}

	r := &Review{
		UserID:    userID,
		ProductID: productID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: s.now().UTC(),
	}
	if err := s.reviews.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Update replaces the user's existing review of the product.
func (s *Service) Update(ctx context.Context, userID int64, productID string, rating int, comment string) (*Review, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	r := &Review{
		UserID:    userID,
		ProductID: productID,
		Rating:    rating,
		Comment:   comment,
	}
	if err := s.reviews.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes the user's review of the product.
func (s *Service) Delete(ctx context.Context, userID int64, productID string) error {
	return s.reviews.Delete(ctx, userID, productID)
}

// ListByProduct returns all reviews for a product.
func (s *Service) ListByProduct(ctx context.Context, productID string) ([]Review, error) {
	return s.reviews.ListByProduct(ctx, productID)
}
