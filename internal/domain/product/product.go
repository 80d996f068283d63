package product

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Image       string
	Category    string
	// Stock is the aggregate counter. For products with size rows it is a
	// derived view (sum of per-size stock); it is authoritative only for
	// products sold without a size breakdown.
	Stock      int
	Rating     decimal.Decimal
	NumReviews int
	Sizes      []SizeStock
}

// SizeStock holds the available stock for one size variant.
type SizeStock struct {
	Label string
	Stock int
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}

// NormalizeSize converts a size label to its canonical form so that numeric
// and textual labels from different clients compare equal. Labels are
// trimmed and upper-cased; numeric labels are reformatted so "09", "9" and
// "9.0" all normalize to "9".
func NormalizeSize(label string) string {
	s := strings.ToUpper(strings.TrimSpace(label))
	if s == "" {
		return s
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return s
}
