package transport

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GenerateInvoiceRequest names the settled advance payment to invoice and
// the quotation it balances against.
type GenerateInvoiceRequest struct {
	QuotationID      uuid.UUID `json:"quotationId" validate:"required"`
	AdvancePaymentID uuid.UUID `json:"advancePaymentId" validate:"required"`
	ItemDescription  string    `json:"itemDescription" validate:"required,min=3,max=500"`
}

// InvoiceResponse represents an invoice in API responses.
type InvoiceResponse struct {
	ID               uuid.UUID       `json:"id"`
	InvoiceNumber    string          `json:"invoiceNumber"`
	RequestID        uuid.UUID       `json:"requestId"`
	QuotationID      uuid.UUID       `json:"quotationId"`
	AdvancePaymentID uuid.UUID       `json:"advancePaymentId"`
	CompanyName      string          `json:"companyName"`
	GSTNumber        string          `json:"gstNumber"`
	ItemDescription  string          `json:"itemDescription"`
	BaseAmount       decimal.Decimal `json:"baseAmount"`
	GSTRate          decimal.Decimal `json:"gstRate"`
	GSTAmount        decimal.Decimal `json:"gstAmount"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	AdvanceAmount    decimal.Decimal `json:"advanceAmount"`
	BalanceAmount    decimal.Decimal `json:"balanceAmount"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// InvoiceListResponse wraps a list of invoices.
type InvoiceListResponse struct {
	Items []InvoiceResponse `json:"items"`
	Total int               `json:"total"`
}

// CompanyInfoResponse carries the company details shown on invoices.
type CompanyInfoResponse struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	GSTNumber string `json:"gstNumber"`
}
