// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"contractor_portal_backend/platform/events"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Re-export platform types for convenience
type (
	Event     = events.Event
	Bus       = events.Bus
	Handler   = events.Handler
	BaseEvent = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Auth Domain Events
// =============================================================================

// UserRegistered is published when a new customer account is created.
type UserRegistered struct {
	BaseEvent
	UserID uuid.UUID `json:"userId"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
}

func (e UserRegistered) EventName() string { return "auth.user.registered" }

// =============================================================================
// Service Request Domain Events
// =============================================================================

// RequestCreated is published when a customer submits a new service request.
type RequestCreated struct {
	BaseEvent
	RequestID     uuid.UUID `json:"requestId"`
	RequestCode   string    `json:"requestCode"`
	CustomerID    uuid.UUID `json:"customerId"`
	CustomerEmail string    `json:"customerEmail"`
	ServiceType   string    `json:"serviceType"`
}

func (e RequestCreated) EventName() string { return "requests.created" }

// RequestStatusAdvanced is published on every workflow transition of a
// service request, whatever triggered it.
type RequestStatusAdvanced struct {
	BaseEvent
	RequestID     uuid.UUID `json:"requestId"`
	RequestCode   string    `json:"requestCode"`
	CustomerID    uuid.UUID `json:"customerId"`
	CustomerEmail string    `json:"customerEmail"`
	FromStatus    string    `json:"fromStatus"`
	ToStatus      string    `json:"toStatus"`
	Trigger       string    `json:"trigger"`
}

func (e RequestStatusAdvanced) EventName() string { return "requests.status.advanced" }

// RequestCompleted is published when work on a request is marked complete.
type RequestCompleted struct {
	BaseEvent
	RequestID     uuid.UUID `json:"requestId"`
	RequestCode   string    `json:"requestCode"`
	CustomerID    uuid.UUID `json:"customerId"`
	CustomerEmail string    `json:"customerEmail"`
}

func (e RequestCompleted) EventName() string { return "requests.completed" }

// =============================================================================
// Quotation Domain Events
// =============================================================================

// QuotationIssued is published when an admin issues a quotation.
type QuotationIssued struct {
	BaseEvent
	QuotationID     uuid.UUID       `json:"quotationId"`
	QuotationNumber string          `json:"quotationNumber"`
	RequestID       uuid.UUID       `json:"requestId"`
	RequestCode     string          `json:"requestCode"`
	CustomerEmail   string          `json:"customerEmail"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
}

func (e QuotationIssued) EventName() string { return "quotations.issued" }

// QuotationApproved is published when a customer approves a quotation.
type QuotationApproved struct {
	BaseEvent
	QuotationID     uuid.UUID       `json:"quotationId"`
	QuotationNumber string          `json:"quotationNumber"`
	RequestID       uuid.UUID       `json:"requestId"`
	RequestCode     string          `json:"requestCode"`
	CustomerEmail   string          `json:"customerEmail"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
}

func (e QuotationApproved) EventName() string { return "quotations.approved" }

// QuotationRejected is published when a customer rejects a quotation.
type QuotationRejected struct {
	BaseEvent
	QuotationID     uuid.UUID `json:"quotationId"`
	QuotationNumber string    `json:"quotationNumber"`
	RequestID       uuid.UUID `json:"requestId"`
	RequestCode     string    `json:"requestCode"`
	CustomerEmail   string    `json:"customerEmail"`
	Reason          string    `json:"reason,omitempty"`
}

func (e QuotationRejected) EventName() string { return "quotations.rejected" }

// =============================================================================
// Payment Domain Events
// =============================================================================

// PaymentCaptured is published when a gateway payment is verified and captured.
type PaymentCaptured struct {
	BaseEvent
	PaymentID     uuid.UUID       `json:"paymentId"`
	RequestID     uuid.UUID       `json:"requestId"`
	RequestCode   string          `json:"requestCode"`
	CustomerEmail string          `json:"customerEmail"`
	Amount        decimal.Decimal `json:"amount"`
	OrderRef      string          `json:"orderRef"`
}

func (e PaymentCaptured) EventName() string { return "payments.captured" }

// AdvancePaymentRequested is published when an admin requests an advance payment.
type AdvancePaymentRequested struct {
	BaseEvent
	AdvancePaymentID uuid.UUID       `json:"advancePaymentId"`
	RequestID        uuid.UUID       `json:"requestId"`
	RequestCode      string          `json:"requestCode"`
	CustomerEmail    string          `json:"customerEmail"`
	Stage            string          `json:"stage"`
	Amount           decimal.Decimal `json:"amount"`
}

func (e AdvancePaymentRequested) EventName() string { return "payments.advance.requested" }

// AdvancePaymentPaid is published when an advance payment is settled.
type AdvancePaymentPaid struct {
	BaseEvent
	AdvancePaymentID uuid.UUID       `json:"advancePaymentId"`
	RequestID        uuid.UUID       `json:"requestId"`
	RequestCode      string          `json:"requestCode"`
	CustomerEmail    string          `json:"customerEmail"`
	Amount           decimal.Decimal `json:"amount"`
	AllSettled       bool            `json:"allSettled"`
}

func (e AdvancePaymentPaid) EventName() string { return "payments.advance.paid" }

// =============================================================================
// Progress Domain Events
// =============================================================================

// WorkProgressAdded is published when a progress update is posted on a request.
type WorkProgressAdded struct {
	BaseEvent
	ProgressID    uuid.UUID `json:"progressId"`
	RequestID     uuid.UUID `json:"requestId"`
	RequestCode   string    `json:"requestCode"`
	CustomerEmail string    `json:"customerEmail"`
	Title         string    `json:"title"`
}

func (e WorkProgressAdded) EventName() string { return "progress.added" }

// =============================================================================
// Invoice Domain Events
// =============================================================================

// InvoiceIssued is published when an invoice is generated for a request.
type InvoiceIssued struct {
	BaseEvent
	InvoiceID     uuid.UUID       `json:"invoiceId"`
	InvoiceNumber string          `json:"invoiceNumber"`
	RequestID     uuid.UUID       `json:"requestId"`
	RequestCode   string          `json:"requestCode"`
	CustomerEmail string          `json:"customerEmail"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	BalanceAmount decimal.Decimal `json:"balanceAmount"`
}

func (e InvoiceIssued) EventName() string { return "invoices.issued" }
