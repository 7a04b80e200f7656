package transport

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateQuotationRequest contains data for issuing a quotation.
type CreateQuotationRequest struct {
	RequestID  uuid.UUID       `json:"requestId" validate:"required"`
	BaseAmount decimal.Decimal `json:"baseAmount" validate:"required"`
	ServiceTax decimal.Decimal `json:"serviceTax"`
	Notes      *string         `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// RejectQuotationRequest carries the optional rejection reason.
type RejectQuotationRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// QuotationResponse represents a quotation in API responses.
type QuotationResponse struct {
	ID              uuid.UUID       `json:"id"`
	QuotationNumber string          `json:"quotationNumber"`
	RequestID       uuid.UUID       `json:"requestId"`
	BaseAmount      decimal.Decimal `json:"baseAmount"`
	ServiceTax      decimal.Decimal `json:"serviceTax"`
	GSTRate         decimal.Decimal `json:"gstRate"`
	GSTAmount       decimal.Decimal `json:"gstAmount"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Status          string          `json:"status"`
	Notes           *string         `json:"notes,omitempty"`
	RejectionReason *string         `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// QuotationListResponse wraps a list of quotations.
type QuotationListResponse struct {
	Items []QuotationResponse `json:"items"`
	Total int                 `json:"total"`
}
