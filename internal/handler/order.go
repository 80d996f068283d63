package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront-checkout/internal/domain/order"
)

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type addressPayload struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type placeOrderRequest struct {
	Items    []orderItemRequest `json:"items"`
	Shipping addressPayload     `json:"shipping"`
}

type orderItemResponse struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Image     string  `json:"image"`
	Size      string  `json:"size,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	UserID        int64               `json:"user_id"`
	Items         []orderItemResponse `json:"items"`
	Shipping      addressPayload      `json:"shipping"`
	PaymentMethod string              `json:"payment_method"`
	ItemsPrice    float64             `json:"items_price"`
	TaxPrice      float64             `json:"tax_price"`
	ShippingPrice float64             `json:"shipping_price"`
	TotalPrice    float64             `json:"total_price"`
	IsPaid        bool                `json:"is_paid"`
	PaidAt        *string             `json:"paid_at,omitempty"`
	IsDelivered   bool                `json:"is_delivered"`
	DeliveredAt   *string             `json:"delivered_at,omitempty"`
	CreatedAt     string              `json:"created_at"`
}

// PlaceOrder creates a pay-on-delivery order. Stock is committed right away.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	req, ok := decodePlaceOrder(w, r)
	if !ok {
		return
	}

	o, err := h.orders.PlaceCashOrder(r.Context(), order.PlaceRequest{
		UserID:   ident.UserID,
		Items:    toItemRequests(req.Items),
		Shipping: toAddress(req.Shipping),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toOrderResponse(o))
}

type gatewayOrderResponse struct {
	Order         orderResponse `json:"order"`
	RemoteOrderID string        `json:"remote_order_id"`
	Amount        int64         `json:"amount"`
	Currency      string        `json:"currency"`
}

// CreateGatewayOrder creates an unpaid order plus a provider payment intent
// for the server-computed total. The client completes payment against the
// provider and then calls VerifyGatewayPayment.
func (h *Handler) CreateGatewayOrder(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	req, ok := decodePlaceOrder(w, r)
	if !ok {
		return
	}

	result, err := h.orders.PlaceGatewayOrder(r.Context(), order.PlaceRequest{
		UserID:   ident.UserID,
		Items:    toItemRequests(req.Items),
		Shipping: toAddress(req.Shipping),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, gatewayOrderResponse{
		Order:         h.toOrderResponse(result.Order),
		RemoteOrderID: result.RemoteOrderID,
		Amount:        result.Amount,
		Currency:      result.Currency,
	})
}

type verifyPaymentRequest struct {
	OrderID         string `json:"order_id"`
	RemoteOrderID   string `json:"remote_order_id"`
	RemotePaymentID string `json:"remote_payment_id"`
	Signature       string `json:"signature"`
}

// VerifyGatewayPayment settles a gateway order from the provider callback
// relayed by the client. Replays of an already-settled callback return the
// stored order unchanged.
func (h *Handler) VerifyGatewayPayment(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == "" || req.RemoteOrderID == "" || req.RemotePaymentID == "" || req.Signature == "" {
		writeError(w, http.StatusBadRequest, "order_id, remote_order_id, remote_payment_id and signature are required")
		return
	}

	o, err := h.orders.ConfirmPayment(r.Context(), order.ConfirmRequest{
		UserID:          ident.UserID,
		OrderID:         req.OrderID,
		RemoteOrderID:   req.RemoteOrderID,
		RemotePaymentID: req.RemotePaymentID,
		Signature:       req.Signature,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toOrderResponse(o))
}

// GetOrder returns one order to its owner or an admin.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	o, err := h.orders.Get(r.Context(), ident, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toOrderResponse(o))
}

// ListMyOrders returns the caller's orders, newest first.
func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	orders, err := h.orders.ListMine(r.Context(), ident.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toOrderResponses(orders))
}

// ListOrders returns every order. Admin only.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAll(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toOrderResponses(orders))
}

// DeliverOrder marks an order delivered. Admin only. An unpaid cash order
// also becomes paid, since the courier collects on handover.
func (h *Handler) DeliverOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.MarkDelivered(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toOrderResponse(o))
}

func decodePlaceOrder(w http.ResponseWriter, r *http.Request) (placeOrderRequest, bool) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	return req, true
}

func toItemRequests(items []orderItemRequest) []order.ItemRequest {
	out := make([]order.ItemRequest, len(items))
	for i, item := range items {
		out[i] = order.ItemRequest{
			ProductID: item.ProductID,
			Size:      item.Size,
			Quantity:  item.Quantity,
		}
	}
	return out
}

func toAddress(a addressPayload) order.Address {
	return order.Address{
		Line1:      a.Line1,
		City:       a.City,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

func (h *Handler) toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     h.imageURL(item.Image),
			Size:      item.Size,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.InexactFloat64(),
		}
	}
	return orderResponse{
		ID:     o.ID,
		UserID: o.UserID,
		Items:  items,
		Shipping: addressPayload{
			Line1:      o.Shipping.Line1,
			City:       o.Shipping.City,
			PostalCode: o.Shipping.PostalCode,
			Country:    o.Shipping.Country,
		},
		PaymentMethod: string(o.PaymentMethod),
		ItemsPrice:    o.ItemsPrice.InexactFloat64(),
		TaxPrice:      o.TaxPrice.InexactFloat64(),
		ShippingPrice: o.ShippingPrice.InexactFloat64(),
		TotalPrice:    o.TotalPrice.InexactFloat64(),
		IsPaid:        o.IsPaid,
		PaidAt:        formatTime(o.PaidAt),
		IsDelivered:   o.IsDelivered,
		DeliveredAt:   formatTime(o.DeliveredAt),
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) toOrderResponses(orders []order.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = h.toOrderResponse(&orders[i])
	}
	return out
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
