package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/payment"
	"github.com/xenking/storefront-checkout/internal/domain/product"
)

// ItemRequest is one cart line as submitted by the client.
type ItemRequest struct {
	ProductID string
	Size      string
	Quantity  int
}

// PlaceRequest holds the input for placing an order. Prices are not part of
// the request: the service recomputes every amount from the catalog.
type PlaceRequest struct {
	UserID   int64
	Items    []ItemRequest
	Shipping Address
}

// GatewayOrderResult is returned to the client so it can complete payment
// out-of-band against the provider.
type GatewayOrderResult struct {
	Order         *Order
	RemoteOrderID string
	Amount        int64
	Currency      string
}

// ConfirmRequest carries a provider payment callback for verification.
type ConfirmRequest struct {
	UserID          int64
	OrderID         string
	RemoteOrderID   string
	RemotePaymentID string
	Signature       string
}

// Service coordinates order creation, gateway interaction, payment
// verification and stock commitment.
type Service struct {
	products product.Repository
	orders   Repository
	gateway  payment.Gateway
	pricing  Pricing
	now      func() time.Time
}

// NewService creates the settlement orchestrator with its domain
// dependencies.
func NewService(products product.Repository, orders Repository, gateway payment.Gateway, pricing Pricing) *Service {
	return &Service{
		products: products,
		orders:   orders,
		gateway:  gateway,
		pricing:  pricing,
		now:      time.Now,
	}
}

// PlaceCashOrder places a pay-on-delivery order. Stock is committed at
// placement time: the order row and every reservation are applied in one
// transaction, so an out-of-stock line leaves nothing behind.
func (s *Service) PlaceCashOrder(ctx context.Context, req PlaceRequest) (*Order, error) {
	o, err := s.buildOrder(ctx, req, PaymentCash)
	if err != nil {
		return nil, err
	}

	if err := s.orders.CreateWithReservations(ctx, o, o.Reservations()); err != nil {
		return nil, errors.Wrap(err, "create cash order")
	}
	return o, nil
}

// PlaceGatewayOrder creates an unpaid order and registers a payment intent
// with the provider for the server-computed total. Stock is not touched
// until the payment callback is verified.
func (s *Service) PlaceGatewayOrder(ctx context.Context, req PlaceRequest) (*GatewayOrderResult, error) {
	o, err := s.buildOrder(ctx, req, PaymentGateway)
	if err != nil {
		return nil, err
	}

	amount := MinorUnits(o.TotalPrice)
	intent, err := s.gateway.CreateIntent(ctx, amount, s.pricing.Currency, payment.Metadata{
		OrderID: o.ID,
		UserID:  o.UserID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create payment intent")
	}
	o.GatewayOrderID = intent.RemoteOrderID

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create gateway order")
	}

	return &GatewayOrderResult{
		Order:         o,
		RemoteOrderID: intent.RemoteOrderID,
		Amount:        intent.Amount,
		Currency:      intent.Currency,
	}, nil
}

// ConfirmPayment settles a gateway order from a provider callback. The
// signature is verified before anything else; a forged or mismatched
// callback changes no state. Settlement is idempotent: duplicate callbacks
// for an already-paid order return the stored order without decrementing
// stock again.
func (s *Service) ConfirmPayment(ctx context.Context, req ConfirmRequest) (*Order, error) {
	o, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != req.UserID {
		return nil, ErrForbidden
	}

	// The callback must reference the intent this order was created with;
	// otherwise a signature captured for a cheaper payment could be replayed
	// against a more expensive order.
	if o.PaymentMethod != PaymentGateway || o.GatewayOrderID == "" || o.GatewayOrderID != req.RemoteOrderID {
		return nil, payment.ErrVerificationFailed
	}

	if !s.gateway.VerifyCallback(req.RemoteOrderID, req.RemotePaymentID, req.Signature) {
		return nil, payment.ErrVerificationFailed
	}

	if o.IsPaid {
		return o, nil
	}

	settled, err := s.orders.Settle(ctx, o.ID, PaymentRef{
		PaymentID: req.RemotePaymentID,
		Signature: req.Signature,
	}, o.Reservations())
	if err != nil {
		return nil, errors.Wrap(err, "settle order")
	}
	return settled, nil
}

// MarkDelivered marks an order delivered. Delivery implies the cash was
// collected, so an unpaid order also becomes paid.
func (s *Service) MarkDelivered(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.MarkDelivered(ctx, orderID)
}

// Get returns an order to its owner or an admin.
func (s *Service) Get(ctx context.Context, ident auth.Identity, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != ident.UserID && !ident.IsAdmin() {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListMine returns the caller's orders.
func (s *Service) ListMine(ctx context.Context, userID int64) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// ListAll returns every order. Admin only; access is enforced at the
// transport layer.
func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	return s.orders.ListAll(ctx)
}

// buildOrder validates the cart, snapshots catalog prices and computes the
// authoritative totals.
func (s *Service) buildOrder(ctx context.Context, req PlaceRequest, method PaymentMethod) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrInvalidCart
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.ProductID == "" {
			return nil, ErrInvalidCart
		}
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	items := make([]LineItem, len(req.Items))
	subtotal := decimal.Zero
	for i, item := range req.Items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		items[i] = LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Image:     p.Image,
			Size:      product.NormalizeSize(item.Size),
			Quantity:  item.Quantity,
			UnitPrice: p.Price,
		}
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	totals := s.pricing.Compute(subtotal)
	return &Order{
		ID:            uuid.New().String(),
		UserID:        req.UserID,
		Items:         items,
		Shipping:      req.Shipping,
		PaymentMethod: method,
		ItemsPrice:    totals.Items,
		TaxPrice:      totals.Tax,
		ShippingPrice: totals.Shipping,
		TotalPrice:    totals.Total,
		CreatedAt:     s.now().UTC(),
	}, nil
}
