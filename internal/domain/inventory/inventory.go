// Package inventory defines the stock reservation model. Reservations are
// applied by the storage layer as single atomic conditional decrements; the
// settlement flow guarantees each reservation is applied at most once per
// order.
package inventory

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a reservation targets a product that does not
// exist in the ledger.
var ErrNotFound = errors.New("inventory: product not found")

// InsufficientStockError indicates the requested quantity exceeds the
// available stock for a product size.
type InsufficientStockError struct {
	ProductID string
	Size      string
	Requested int
}

func (e *InsufficientStockError) Error() string {
	if e.Size == "" {
		return fmt.Sprintf("insufficient stock for product %s: requested %d", e.ProductID, e.Requested)
	}
	return fmt.Sprintf("insufficient stock for product %s size %s: requested %d", e.ProductID, e.Size, e.Requested)
}

// Reservation is a request to decrement stock for one order line item.
// Size holds the normalized label; empty means the product is sold without
// a size breakdown and the aggregate counter is decremented instead.
type Reservation struct {
	ProductID string
	Size      string
	Quantity  int
}

// Ledger provides atomic "decrement if sufficient" semantics. Reserve must
// treat the availability check and the decrement as a single step: under
// concurrency, two reservations against the same size never both succeed
// when their combined quantity exceeds stock.
type Ledger interface {
	Reserve(ctx context.Context, r Reservation) error
}
