// Package handler contains the HTTP handlers for the storefront API.
package handler

import (
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/review"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Handler translates HTTP requests into domain calls and maps results and
// errors back to JSON responses.
type Handler struct {
	products     product.Repository
	orders       *order.Service
	reviews      *review.Service
	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	products product.Repository,
	orders *order.Service,
	reviews *review.Service,
) *Handler {
	return &Handler{
		products:     products,
		orders:       orders,
		reviews:      reviews,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// imageURL resolves a stored image path against the configured base URL.
func (h *Handler) imageURL(path string) string {
	if h.imageBaseURL == "" || path == "" {
		return path
	}
	return h.imageBaseURL + "/" + path
}
