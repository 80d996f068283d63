package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/inventory"
	"github.com/xenking/storefront-checkout/internal/domain/order"
)

const orderColumns = `id::text, user_id, items, shipping, payment_method,
	items_price, tax_price, shipping_price, total_price,
	is_paid, paid_at, is_delivered, delivered_at,
	gateway_order_id, gateway_payment_id, gateway_signature, created_at`

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, items, shipping, payment_method,
		items_price, tax_price, shipping_price, total_price, gateway_order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	// FOR UPDATE holds the order row for the duration of the settlement
	// transaction so concurrent callbacks for the same order serialize.
	getOrderForUpdateSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	settleOrderSQL = `UPDATE orders SET is_paid = TRUE, paid_at = now(),
		gateway_payment_id = $2, gateway_signature = $3
		WHERE id = $1 RETURNING ` + orderColumns

	// Delivery implies payment: couriers collect cash orders on handover.
	markDeliveredSQL = `UPDATE orders SET is_delivered = TRUE, delivered_at = now(),
		is_paid = TRUE, paid_at = COALESCE(paid_at, now())
		WHERE id = $1 RETURNING ` + orderColumns

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	listAllOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`

	// The GIN index on items makes the containment probe cheap.
	hasPaidOrderWithProductSQL = `SELECT EXISTS (
		SELECT 1 FROM orders WHERE user_id = $1 AND is_paid AND items @> $2)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Items and
// the shipping address are serialized to JSON for storage in JSONB columns.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new unpaid order without touching stock counters.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return r.insert(ctx, r.pool, o)
}

// CreateWithReservations persists a new unpaid order and applies the stock
// reservations in the same transaction. A failed reservation rolls back the
// order and every counter already decremented.
func (r *OrderRepository) CreateWithReservations(ctx context.Context, o *order.Order, res []inventory.Reservation) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := r.insert(ctx, tx, o); err != nil {
			return err
		}
		for _, rr := range res {
			if err := reserve(ctx, tx, rr); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *OrderRepository) insert(ctx context.Context, q querier, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	shippingJSON, err := json.Marshal(o.Shipping)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	_, err = q.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, itemsJSON, shippingJSON, string(o.PaymentMethod),
		o.ItemsPrice, o.TaxPrice, o.ShippingPrice, o.TotalPrice,
		o.GatewayOrderID, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Settle marks the order paid exactly once. Already-paid orders are returned
// unchanged without touching stock, which makes duplicate provider callbacks
// harmless.
func (r *OrderRepository) Settle(ctx context.Context, orderID string, ref order.PaymentRef, res []inventory.Reservation) (*order.Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, order.ErrNotFound
	}

	var settled *order.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, getOrderForUpdateSQL, orderID)
		if err != nil {
			return fmt.Errorf("locking order %q: %w", orderID, err)
		}
		o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return fmt.Errorf("locking order %q: %w", orderID, err)
		}
		if o.IsPaid {
			settled = &o
			return nil
		}

		for _, rr := range res {
			if err := reserve(ctx, tx, rr); err != nil {
				return err
			}
		}

		rows, err = tx.Query(ctx, settleOrderSQL, orderID, ref.PaymentID, ref.Signature)
		if err != nil {
			return fmt.Errorf("settling order %q: %w", orderID, err)
		}
		o, err = pgx.CollectExactlyOneRow(rows, scanOrder)
		if err != nil {
			return fmt.Errorf("settling order %q: %w", orderID, err)
		}
		settled = &o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}

// MarkDelivered sets the delivered flag and marks the order paid when it is
// not already.
func (r *OrderRepository) MarkDelivered(ctx context.Context, orderID string) (*order.Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, order.ErrNotFound
	}

	rows, err := r.pool.Query(ctx, markDeliveredSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("marking order %q delivered: %w", orderID, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("marking order %q delivered: %w", orderID, err)
	}
	return &o, nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, orderID string) (*order.Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, order.ErrNotFound
	}

	rows, err := r.pool.Query(ctx, getOrderByIDSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", orderID, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", orderID, err)
	}
	return &o, nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %d: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListAll returns every order, newest first.
func (r *OrderRepository) ListAll(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listAllOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// HasPaidOrderWithProduct reports whether the user owns a paid order whose
// items contain the product, via a JSONB containment probe.
func (r *OrderRepository) HasPaidOrderWithProduct(ctx context.Context, userID int64, productID string) (bool, error) {
	probe, err := json.Marshal([]map[string]string{{"product_id": productID}})
	if err != nil {
		return false, fmt.Errorf("marshaling containment probe: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, hasPaidOrderWithProductSQL, userID, probe).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking paid orders for user %d: %w", userID, err)
	}
	return exists, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o              order.Order
		items, address []byte
	)
	err := row.Scan(
		&o.ID, &o.UserID, &items, &address, &o.PaymentMethod,
		&o.ItemsPrice, &o.TaxPrice, &o.ShippingPrice, &o.TotalPrice,
		&o.IsPaid, &o.PaidAt, &o.IsDelivered, &o.DeliveredAt,
		&o.GatewayOrderID, &o.GatewayPaymentID, &o.GatewaySignature, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(address, &o.Shipping); err != nil {
		return o, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	return o, nil
}
