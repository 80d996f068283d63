package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront-checkout/internal/domain/product"
)

type sizeStockResponse struct {
	Label string `json:"label"`
	Stock int    `json:"stock"`
}

type productResponse struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Price       float64             `json:"price"`
	Image       string              `json:"image"`
	Category    string              `json:"category"`
	Stock       int                 `json:"stock"`
	Rating      float64             `json:"rating"`
	NumReviews  int                 `json:"num_reviews"`
	Sizes       []sizeStockResponse `json:"sizes,omitempty"`
}

// ListProducts returns the full catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = h.toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetProduct returns one product with its per-size availability.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toProductResponse(*p))
}

func (h *Handler) toProductResponse(p product.Product) productResponse {
	resp := productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.InexactFloat64(),
		Image:       h.imageURL(p.Image),
		Category:    p.Category,
		Stock:       p.Stock,
		Rating:      p.Rating.InexactFloat64(),
		NumReviews:  p.NumReviews,
	}
	if len(p.Sizes) > 0 {
		resp.Sizes = make([]sizeStockResponse, len(p.Sizes))
		for i, s := range p.Sizes {
			resp.Sizes[i] = sizeStockResponse{Label: s.Label, Stock: s.Stock}
		}
	}
	return resp
}
