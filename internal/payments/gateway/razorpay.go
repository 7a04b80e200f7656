package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"contractor_portal_backend/platform/apperr"
	"contractor_portal_backend/platform/config"
)

// Razorpay implements Gateway against Razorpay's order / capture flow. Orders
// are created locally with Razorpay-shaped references; capture signatures are
// verified the way Razorpay signs them: HMAC-SHA256 over "orderRef|paymentRef"
// with the key secret.
type Razorpay struct {
	cfg config.GatewayConfig
}

// NewRazorpay creates a Razorpay gateway.
func NewRazorpay(cfg config.GatewayConfig) *Razorpay {
	return &Razorpay{cfg: cfg}
}

// Compile-time check that Razorpay implements Gateway.
var _ Gateway = (*Razorpay)(nil)

// CreateOrder returns a new order reference for the amount.
func (g *Razorpay) CreateOrder(_ context.Context, amount decimal.Decimal, currency, _ string) (Order, error) {
	nonce := make([]byte, 6)
	if _, err := rand.Read(nonce); err != nil {
		return Order{}, fmt.Errorf("generate order nonce: %w", err)
	}

	return Order{
		OrderRef: fmt.Sprintf("order_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(nonce)),
		Amount:   amount,
		Currency: currency,
		KeyID:    g.cfg.GetRazorpayKeyID(),
	}, nil
}

// VerifyCapture validates the capture signature. The skip flag exists for
// development environments without gateway credentials.
func (g *Razorpay) VerifyCapture(orderRef, paymentRef, signature string) error {
	if g.cfg.GetGatewaySkipSignatureCheck() {
		return nil
	}

	mac := hmac.New(sha256.New, []byte(g.cfg.GetRazorpayKeySecret()))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	expected := hex.EncodeToString(mac.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return apperr.Unauthorized("payment signature verification failed")
	}
	return nil
}
