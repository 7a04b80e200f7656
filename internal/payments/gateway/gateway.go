// Package gateway abstracts the payment gateway used for online collection.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// Order is a gateway-side payment order awaiting capture.
type Order struct {
	OrderRef string
	Amount   decimal.Decimal
	Currency string
	KeyID    string
}

// Gateway creates payment orders and verifies capture callbacks.
type Gateway interface {
	// CreateOrder registers an order with the gateway and returns its reference.
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (Order, error)
	// VerifyCapture checks the signature the gateway sent with a capture
	// callback. An invalid signature returns an error.
	VerifyCapture(orderRef, paymentRef, signature string) error
}
