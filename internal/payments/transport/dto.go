package transport

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InitiatePaymentRequest names the request being paid for.
type InitiatePaymentRequest struct {
	RequestID uuid.UUID `json:"requestId" validate:"required"`
}

// VerifyPaymentRequest carries the gateway's capture callback fields. The
// order reference is optional; when present it must match the payment record.
type VerifyPaymentRequest struct {
	OrderRef   string `json:"orderRef,omitempty"`
	PaymentRef string `json:"paymentRef" validate:"required"`
	Signature  string `json:"signature" validate:"required"`
}

// CreateAdvanceRequest contains data for requesting an advance payment. The
// progress id optionally ties the advance to a posted work-progress update.
type CreateAdvanceRequest struct {
	RequestID   uuid.UUID       `json:"requestId" validate:"required"`
	ProgressID  *uuid.UUID      `json:"progressId,omitempty"`
	Stage       string          `json:"stage" validate:"required,min=2,max=100"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Description *string         `json:"description,omitempty" validate:"omitempty,max=500"`
}

// PaymentResponse represents a gateway payment in API responses.
type PaymentResponse struct {
	ID          uuid.UUID       `json:"id"`
	RequestID   uuid.UUID       `json:"requestId"`
	QuotationID uuid.UUID       `json:"quotationId"`
	OrderRef    string          `json:"orderRef"`
	PaymentRef  *string         `json:"paymentRef,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	GatewayKey  string          `json:"gatewayKey,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// AdvancePaymentResponse represents an advance payment in API responses.
type AdvancePaymentResponse struct {
	ID          uuid.UUID       `json:"id"`
	RequestID   uuid.UUID       `json:"requestId"`
	QuotationID uuid.UUID       `json:"quotationId"`
	ProgressID  *uuid.UUID      `json:"progressId,omitempty"`
	Stage       string          `json:"stage"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	Description *string         `json:"description,omitempty"`
	RequestedBy uuid.UUID       `json:"requestedBy"`
	InvoiceID   *uuid.UUID      `json:"invoiceId,omitempty"`
	AllSettled  bool            `json:"allSettled,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// PaymentListResponse wraps a request's payments and advances.
type PaymentListResponse struct {
	Payments []PaymentResponse        `json:"payments"`
	Advances []AdvancePaymentResponse `json:"advances"`
}
