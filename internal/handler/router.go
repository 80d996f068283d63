package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Router assembles the API routes. Authentication and role checks live in
// the route tree; handlers only read the resolved identity.
func (h *Handler) Router(sec *Security) *chi.Mux {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)
		r.Get("/products/{id}/reviews", h.ListReviews)

		r.Group(func(r chi.Router) {
			r.Use(sec.Authenticate)

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.PlaceOrder)
				r.Post("/gateway/create", h.CreateGatewayOrder)
				r.Post("/gateway/verify", h.VerifyGatewayPayment)
				r.Get("/myorders", h.ListMyOrders)
				r.Get("/{id}", h.GetOrder)

				r.Group(func(r chi.Router) {
					r.Use(RequireAdmin)
					r.Get("/", h.ListOrders)
					r.Put("/{id}/deliver", h.DeliverOrder)
				})
			})

			r.Post("/products/{id}/reviews", h.CreateReview)
			r.Put("/products/{id}/reviews", h.UpdateReview)
			r.Delete("/products/{id}/reviews", h.DeleteReview)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
