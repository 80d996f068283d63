// Package payment defines the port to the external payment provider. The
// gateway adapter is the only component that trusts provider-supplied data;
// every payment confirmation must pass VerifyCallback before it has any
// effect on order or stock state.
package payment

import (
	"context"

	"github.com/go-faster/errors"
)

var (
	// ErrGatewayUnavailable is returned when the provider cannot be reached
	// or gateway credentials are not configured. Distinct from a declined or
	// forged payment so clients can fall back to another payment method.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrVerificationFailed is returned when a payment callback carries an
	// invalid signature or references the wrong payment intent.
	ErrVerificationFailed = errors.New("payment verification failed")
)

// Intent references a provider-side payment request created ahead of the
// customer completing payment out-of-band.
type Intent struct {
	RemoteOrderID string
	// Amount in minor currency units.
	Amount   int64
	Currency string
}

// Metadata links a payment intent back to the local order and user.
type Metadata struct {
	OrderID string
	UserID  int64
}

// Gateway isolates all interaction with the external payment provider.
type Gateway interface {
	// CreateIntent registers a payment intent for the given amount in minor
	// currency units and returns the provider's reference.
	CreateIntent(ctx context.Context, amount int64, currency string, meta Metadata) (*Intent, error)

	// VerifyCallback reports whether the provider's callback signature is
	// authentic for the given intent and payment references. A mismatch
	// returns false, never an error.
	VerifyCallback(remoteOrderID, remotePaymentID, signature string) bool
}
