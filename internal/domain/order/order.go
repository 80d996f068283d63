package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/inventory"
)

// PaymentMethod tags how an order is paid.
type PaymentMethod string

const (
	// PaymentCash is collected by the courier on delivery. Stock is committed
	// at placement time.
	PaymentCash PaymentMethod = "cash"
	// PaymentGateway is a pre-paid flow through the external provider. Stock
	// is committed at settlement time, after the callback is verified.
	PaymentGateway PaymentMethod = "gateway"
)

var (
	// ErrNotFound is returned when the requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrForbidden is returned when a caller accesses an order they do not
	// own without the admin role.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCart is returned for an empty or malformed cart.
	ErrInvalidCart = errors.New("invalid cart")
)

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return "quantity must be greater than 0 for product " + e.ProductID
}

// ProductNotFoundError indicates a cart references a product that does not
// exist in the catalog.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return "product " + e.ProductID + " not found"
}

// LineItem is one product+size+quantity entry within an order. Name, image
// and unit price are snapshotted at order-creation time and never
// recalculated from the live catalog.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Address is the shipping destination for an order.
type Address struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Order represents a customer's purchase intent and its lifecycle state.
// IsPaid transitions false to true at most once; TotalPrice is the
// authoritative amount charged.
type Order struct {
	ID            string
	UserID        int64
	Items         []LineItem
	Shipping      Address
	PaymentMethod PaymentMethod

	ItemsPrice    decimal.Decimal
	TaxPrice      decimal.Decimal
	ShippingPrice decimal.Decimal
	TotalPrice    decimal.Decimal

	IsPaid      bool
	PaidAt      *time.Time
	IsDelivered bool
	DeliveredAt *time.Time

	GatewayOrderID   string
	GatewayPaymentID string
	GatewaySignature string

	CreatedAt time.Time
}

// Reservations derives the stock reservations for the order's line items.
func (o *Order) Reservations() []inventory.Reservation {
	res := make([]inventory.Reservation, len(o.Items))
	for i, item := range o.Items {
		res[i] = inventory.Reservation{
			ProductID: item.ProductID,
			Size:      item.Size,
			Quantity:  item.Quantity,
		}
	}
	return res
}

// PaymentRef carries the verified gateway references stored on settlement.
type PaymentRef struct {
	PaymentID string
	Signature string
}

// Repository defines persistence operations for orders. Implementations
// must apply reservations and order-state transitions atomically: a failed
// reservation leaves both the order and all stock counters untouched.
type Repository interface {
	// Create persists a new unpaid order without touching stock.
	Create(ctx context.Context, o *Order) error

	// CreateWithReservations persists a new unpaid order and applies the
	// reservations in the same transaction.
	CreateWithReservations(ctx context.Context, o *Order, res []inventory.Reservation) error

	// Settle marks the order paid exactly once. When the order is already
	// paid it returns the stored order unchanged and applies nothing (the
	// idempotent short-circuit for duplicate provider callbacks). Otherwise
	// it applies the reservations and the paid transition in one
	// transaction, holding a row lock on the order for its duration.
	Settle(ctx context.Context, orderID string, ref PaymentRef, res []inventory.Reservation) (*Order, error)

	// MarkDelivered sets the delivered flag and, as a business rule, also
	// marks the order paid when it is not already (cash collected on
	// delivery).
	MarkDelivered(ctx context.Context, orderID string) (*Order, error)

	GetByID(ctx context.Context, orderID string) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)

	// HasPaidOrderWithProduct reports whether the user owns a paid order
	// containing the product. Consumed by the review eligibility gate.
	HasPaidOrderWithProduct(ctx context.Context, userID int64, productID string) (bool, error)
}
