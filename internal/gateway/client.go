// Package gateway implements the payment.Gateway port against a
// Razorpay-style REST provider. It is the single trust boundary for
// provider-supplied data: callbacks are only believed after their HMAC
// signature checks out.
package gateway

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-checkout/internal/domain/payment"
)

// Compile-time check that Client satisfies the domain port.
var _ payment.Gateway = (*Client)(nil)

// Config holds the provider connection settings.
type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	// Timeout bounds every provider call; an expired call surfaces as
	// ErrGatewayUnavailable instead of hanging the request.
	Timeout time.Duration
}

// Client talks to the payment provider over HTTP.
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
}

// NewClient creates a provider client. Missing credentials are tolerated at
// construction so cash-only deployments can run without gateway settings;
// CreateIntent then fails with ErrGatewayUnavailable.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		http:      &http.Client{Timeout: timeout},
	}
}

// CreateIntent registers a provider-side payment order for the given amount
// in minor currency units and returns its reference.
func (c *Client) CreateIntent(ctx context.Context, amount int64, currency string, meta payment.Metadata) (*payment.Intent, error) {
	if c.baseURL == "" || c.keyID == "" || c.keySecret == "" {
		return nil, errors.Wrap(payment.ErrGatewayUnavailable, "gateway credentials not configured")
	}

	body := encodeIntentRequest(amount, currency, meta)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(payment.ErrGatewayUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errors.Wrapf(payment.ErrGatewayUnavailable, "provider returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(payment.ErrGatewayUnavailable, "read response")
	}

	intent, err := decodeIntentResponse(data)
	if err != nil {
		return nil, errors.Wrap(payment.ErrGatewayUnavailable, err.Error())
	}
	return intent, nil
}

// VerifyCallback reports whether the callback signature is authentic for
// the given intent and payment references.
func (c *Client) VerifyCallback(remoteOrderID, remotePaymentID, signature string) bool {
	if c.keySecret == "" {
		return false
	}
	return VerifySignature([]byte(c.keySecret), remoteOrderID, remotePaymentID, signature)
}

func encodeIntentRequest(amount int64, currency string, meta payment.Metadata) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("amount", func(e *jx.Encoder) { e.Int64(amount) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(currency) })
		e.Field("receipt", func(e *jx.Encoder) { e.Str(meta.OrderID) })
		e.Field("notes", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("order_id", func(e *jx.Encoder) { e.Str(meta.OrderID) })
				e.Field("user_id", func(e *jx.Encoder) { e.Str(strconv.FormatInt(meta.UserID, 10)) })
			})
		})
	})
	return e.Bytes()
}

func decodeIntentResponse(data []byte) (*payment.Intent, error) {
	var intent payment.Intent
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			s, err := d.Str()
			if err != nil {
				return err
			}
			intent.RemoteOrderID = s
		case "amount":
			n, err := d.Int64()
			if err != nil {
				return err
			}
			intent.Amount = n
		case "currency":
			s, err := d.Str()
			if err != nil {
				return err
			}
			intent.Currency = s
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode provider response")
	}

	if intent.RemoteOrderID == "" {
		return nil, errors.New("provider response missing order id")
	}
	return &intent, nil
}
