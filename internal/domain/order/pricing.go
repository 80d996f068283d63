package order

import "github.com/shopspring/decimal"

// Pricing holds the server-side pricing policy. Totals are always recomputed
// from snapshotted catalog prices; any client-declared total is a display
// hint only and never reaches the payment gateway.
type Pricing struct {
	// TaxRate is applied to the items subtotal, e.g. 0.02 for 2%.
	TaxRate decimal.Decimal
	// ShippingFee is the flat shipping charge.
	ShippingFee decimal.Decimal
	// FreeShippingOver waives the shipping fee for subtotals at or above
	// this threshold. Zero disables the waiver.
	FreeShippingOver decimal.Decimal
	// Currency is the ISO code passed to the payment gateway.
	Currency string
}

// Totals is the monetary breakdown of an order.
type Totals struct {
	Items    decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// Compute derives the order totals from the items subtotal.
func (p Pricing) Compute(subtotal decimal.Decimal) Totals {
	tax := subtotal.Mul(p.TaxRate).Round(2)

	shipping := p.ShippingFee
	if p.FreeShippingOver.IsPositive() && subtotal.GreaterThanOrEqual(p.FreeShippingOver) {
		shipping = decimal.Zero
	}

	subtotal = subtotal.Round(2)
	return Totals{
		Items:    subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}
}

// MinorUnits converts a decimal amount to integer minor currency units
// (e.g. 12.34 -> 1234) for the payment gateway.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
