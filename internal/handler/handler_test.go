package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/inventory"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/payment"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/review"
)

var testSecret = []byte("test-secret")

// --- Mock implementations ---

type mockProductRepo struct {
	byID map[string]*product.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	var out []product.Product
	for _, p := range m.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

type mockOrderRepo struct {
	stored    map[string]*order.Order
	createErr error
	hasPaid   bool
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{stored: make(map[string]*order.Order)}
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.stored[o.ID] = o
	return nil
}

func (m *mockOrderRepo) CreateWithReservations(ctx context.Context, o *order.Order, _ []inventory.Reservation) error {
	return m.Create(ctx, o)
}

func (m *mockOrderRepo) Settle(_ context.Context, orderID string, ref order.PaymentRef, _ []inventory.Reservation) (*order.Order, error) {
	o, ok := m.stored[orderID]
	if !ok {
		return nil, order.ErrNotFound
	}
	if !o.IsPaid {
		o.IsPaid = true
		o.GatewayPaymentID = ref.PaymentID
		o.GatewaySignature = ref.Signature
	}
	return o, nil
}

func (m *mockOrderRepo) MarkDelivered(_ context.Context, orderID string) (*order.Order, error) {
	o, ok := m.stored[orderID]
	if !ok {
		return nil, order.ErrNotFound
	}
	o.IsDelivered = true
	o.IsPaid = true
	return o, nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, orderID string) (*order.Order, error) {
	o, ok := m.stored[orderID]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID int64) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.stored {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) ListAll(_ context.Context) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.stored {
		out = append(out, *o)
	}
	return out, nil
}

func (m *mockOrderRepo) HasPaidOrderWithProduct(_ context.Context, _ int64, _ string) (bool, error) {
	return m.hasPaid, nil
}

type mockGateway struct {
	intent    *payment.Intent
	createErr error
	verifyOK  bool
}

func (m *mockGateway) CreateIntent(_ context.Context, amount int64, currency string, _ payment.Metadata) (*payment.Intent, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.intent != nil {
		return m.intent, nil
	}
	return &payment.Intent{RemoteOrderID: "rzp_order_1", Amount: amount, Currency: currency}, nil
}

func (m *mockGateway) VerifyCallback(_, _, _ string) bool {
	return m.verifyOK
}

type mockReviewRepo struct {
	createErr error
	reviews   []review.Review
}

func (m *mockReviewRepo) Create(_ context.Context, r *review.Review) error {
	if m.createErr != nil {
		return m.createErr
	}
	r.ID = int64(len(m.reviews) + 1)
	m.reviews = append(m.reviews, *r)
	return nil
}

func (m *mockReviewRepo) Update(_ context.Context, r *review.Review) error {
	if m.createErr != nil {
		return m.createErr
	}
	return nil
}

func (m *mockReviewRepo) Delete(_ context.Context, _ int64, _ string) error {
	return nil
}

func (m *mockReviewRepo) ListByProduct(_ context.Context, _ string) ([]review.Review, error) {
	return m.reviews, nil
}

type mockUserRepo struct {
	users map[int64]*auth.User
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (*auth.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return u, nil
}

// --- Test fixture ---

type fixture struct {
	router     http.Handler
	orders     *mockOrderRepo
	reviews    *mockReviewRepo
	gateway    *mockGateway
	adminToken string
	userToken  string
}

func newFixture() *fixture {
	products := &mockProductRepo{byID: map[string]*product.Product{
		"sneaker-1": {
			ID:    "sneaker-1",
			Name:  "Runner Sneaker",
			Price: decimal.RequireFromString("120.00"),
			Sizes: []product.SizeStock{{Label: "9", Stock: 3}},
		},
		"tee-1": {
			ID:    "tee-1",
			Name:  "Classic Tee",
			Price: decimal.RequireFromString("25.00"),
			Stock: 50,
		},
	}}
	orders := newMockOrderRepo()
	reviews := &mockReviewRepo{}
	gw := &mockGateway{}

	pricing := order.Pricing{
		TaxRate:          decimal.RequireFromString("0.15"),
		ShippingFee:      decimal.RequireFromString("10"),
		FreeShippingOver: decimal.RequireFromString("100"),
		Currency:         "USD",
	}
	orderService := order.NewService(products, orders, gw, pricing)
	reviewService := review.NewService(reviews, orders)

	h := NewHandler(HandlerConfig{}, products, orderService, reviewService)
	sec := NewSecurity(&mockUserRepo{users: map[int64]*auth.User{
		1: {ID: 1, Name: "Admin", Role: auth.RoleAdmin},
		2: {ID: 2, Name: "Customer", Role: auth.RoleCustomer},
	}}, testSecret)

	return &fixture{
		router:     h.Router(sec),
		orders:     orders,
		reviews:    reviews,
		gateway:    gw,
		adminToken: auth.SignToken(testSecret, 1),
		userToken:  auth.SignToken(testSecret, 2),
	}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func cartBody(items ...orderItemRequest) placeOrderRequest {
	return placeOrderRequest{
		Items: items,
		Shipping: addressPayload{
			Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US",
		},
	}
}

// --- Tests ---

func TestAuth(t *testing.T) {
	f := newFixture()

	t.Run("missing token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/orders/myorders", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("forged token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/orders/myorders", "2.deadbeef", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token for unknown user", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/orders/myorders", auth.SignToken(testSecret, 99), nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/orders/myorders", f.userToken, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestPlaceOrder(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture()
		rec := f.do(t, http.MethodPost, "/api/orders", f.userToken,
			cartBody(orderItemRequest{ProductID: "tee-1", Quantity: 2}))
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp orderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "cash", resp.PaymentMethod)
		assert.Equal(t, int64(2), resp.UserID)
		assert.InDelta(t, 50.0, resp.ItemsPrice, 1e-9)
		assert.InDelta(t, 7.5, resp.TaxPrice, 1e-9)
		assert.InDelta(t, 10.0, resp.ShippingPrice, 1e-9)
		assert.InDelta(t, 67.5, resp.TotalPrice, 1e-9)
		assert.False(t, resp.IsPaid)
	})

	t.Run("empty cart", func(t *testing.T) {
		f := newFixture()
		rec := f.do(t, http.MethodPost, "/api/orders", f.userToken, cartBody())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown product", func(t *testing.T) {
		f := newFixture()
		rec := f.do(t, http.MethodPost, "/api/orders", f.userToken,
			cartBody(orderItemRequest{ProductID: "missing", Quantity: 1}))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("insufficient stock", func(t *testing.T) {
		f := newFixture()
		f.orders.createErr = &inventory.InsufficientStockError{ProductID: "sneaker-1", Size: "9", Requested: 5}
		rec := f.do(t, http.MethodPost, "/api/orders", f.userToken,
			cartBody(orderItemRequest{ProductID: "sneaker-1", Size: "9", Quantity: 5}))
		assert.Equal(t, http.StatusConflict, rec.Code)

		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, http.StatusConflict, resp.Code)
	})
}

func TestCreateGatewayOrder(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture()
		rec := f.do(t, http.MethodPost, "/api/orders/gateway/create", f.userToken,
			cartBody(orderItemRequest{ProductID: "sneaker-1", Size: "9", Quantity: 1}))
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp gatewayOrderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "rzp_order_1", resp.RemoteOrderID)
		// 120.00 subtotal, free shipping, 18.00 tax -> 13800 minor units.
		assert.Equal(t, int64(13800), resp.Amount)
		assert.Equal(t, "USD", resp.Currency)
		assert.False(t, resp.Order.IsPaid)
	})

	t.Run("provider down", func(t *testing.T) {
		f := newFixture()
		f.gateway.createErr = payment.ErrGatewayUnavailable
		rec := f.do(t, http.MethodPost, "/api/orders/gateway/create", f.userToken,
			cartBody(orderItemRequest{ProductID: "tee-1", Quantity: 1}))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestVerifyGatewayPayment(t *testing.T) {
	placeGatewayOrder := func(t *testing.T, f *fixture) string {
		rec := f.do(t, http.MethodPost, "/api/orders/gateway/create", f.userToken,
			cartBody(orderItemRequest{ProductID: "tee-1", Quantity: 1}))
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp gatewayOrderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp.Order.ID
	}

	t.Run("settles order", func(t *testing.T) {
		f := newFixture()
		f.gateway.verifyOK = true
		orderID := placeGatewayOrder(t, f)

		rec := f.do(t, http.MethodPost, "/api/orders/gateway/verify", f.userToken, verifyPaymentRequest{
			OrderID:         orderID,
			RemoteOrderID:   "rzp_order_1",
			RemotePaymentID: "rzp_pay_1",
			Signature:       "deadbeef",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp orderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.IsPaid)
	})

	t.Run("forged signature", func(t *testing.T) {
		f := newFixture()
		f.gateway.verifyOK = false
		orderID := placeGatewayOrder(t, f)

		rec := f.do(t, http.MethodPost, "/api/orders/gateway/verify", f.userToken, verifyPaymentRequest{
			OrderID:         orderID,
			RemoteOrderID:   "rzp_order_1",
			RemotePaymentID: "rzp_pay_1",
			Signature:       "forged",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, f.orders.stored[orderID].IsPaid)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newFixture()
		rec := f.do(t, http.MethodPost, "/api/orders/gateway/verify", f.userToken, verifyPaymentRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetOrder(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/api/orders", f.userToken,
		cartBody(orderItemRequest{ProductID: "tee-1", Quantity: 1}))
	require.Equal(t, http.StatusCreated, rec.Code)

	var placed orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &placed))

	t.Run("owner", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/orders/"+placed.ID, f.userToken, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("admin", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/orders/"+placed.ID, f.adminToken, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/orders/does-not-exist", f.userToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAdminEndpoints(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/api/orders", f.userToken,
		cartBody(orderItemRequest{ProductID: "tee-1", Quantity: 1}))
	require.Equal(t, http.StatusCreated, rec.Code)

	var placed orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &placed))

	t.Run("list all as customer", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/orders", f.userToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("list all as admin", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/orders", f.adminToken, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("deliver as customer", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/api/orders/"+placed.ID+"/deliver", f.userToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("deliver as admin marks paid", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/api/orders/"+placed.ID+"/deliver", f.adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp orderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.IsDelivered)
		assert.True(t, resp.IsPaid)
	})
}

func TestProducts(t *testing.T) {
	f := newFixture()

	t.Run("list", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/products", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp []productResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp, 2)
	})

	t.Run("get with sizes", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/products/sneaker-1", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp productResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.InDelta(t, 120.0, resp.Price, 1e-9)
		require.Len(t, resp.Sizes, 1)
		assert.Equal(t, "9", resp.Sizes[0].Label)
	})

	t.Run("not found", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/products/ghost", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestReviews(t *testing.T) {
	t.Run("eligible after paid order", func(t *testing.T) {
		f := newFixture()
		f.orders.hasPaid = true

		rec := f.do(t, http.MethodPost, "/api/products/tee-1/reviews", f.userToken,
			reviewRequest{Rating: 5, Comment: "great"})
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp reviewResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "tee-1", resp.ProductID)
		assert.Equal(t, 5, resp.Rating)
	})

	t.Run("not eligible without purchase", func(t *testing.T) {
		f := newFixture()
		f.orders.hasPaid = false

		rec := f.do(t, http.MethodPost, "/api/products/tee-1/reviews", f.userToken,
			reviewRequest{Rating: 4, Comment: "ok"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("duplicate review", func(t *testing.T) {
		f := newFixture()
		f.orders.hasPaid = true
		f.reviews.createErr = review.ErrDuplicate

		rec := f.do(t, http.MethodPost, "/api/products/tee-1/reviews", f.userToken,
			reviewRequest{Rating: 4, Comment: "again"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("invalid rating", func(t *testing.T) {
		f := newFixture()
		f.orders.hasPaid = true

		rec := f.do(t, http.MethodPost, "/api/products/tee-1/reviews", f.userToken,
			reviewRequest{Rating: 6})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list is public", func(t *testing.T) {
		f := newFixture()
		rec := f.do(t, http.MethodGet, "/api/products/tee-1/reviews", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("create requires auth", func(t *testing.T) {
		f := newFixture()
		rec := f.do(t, http.MethodPost, "/api/products/tee-1/reviews", "",
			reviewRequest{Rating: 5})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
