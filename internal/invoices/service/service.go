// Package service implements invoice business logic. Invoices are issued
// against settled advance payments with GST computed on the advance base.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"contractor_portal_backend/internal/codegen"
	"contractor_portal_backend/internal/costing"
	"contractor_portal_backend/internal/events"
	"contractor_portal_backend/internal/invoices/repository"
	"contractor_portal_backend/internal/invoices/transport"
	paymentsrepo "contractor_portal_backend/internal/payments/repository"
	quotationsrepo "contractor_portal_backend/internal/quotations/repository"
	requestsrepo "contractor_portal_backend/internal/requests/repository"
	"contractor_portal_backend/internal/shared/authz"
	"contractor_portal_backend/platform/apperr"
	"contractor_portal_backend/platform/config"
	"contractor_portal_backend/platform/logger"
)

// Caller identifies who is performing an operation.
type Caller struct {
	ID   uuid.UUID
	Role string
}

// RequestReader is the slice of the requests module the invoices service needs.
type RequestReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (requestsrepo.ServiceRequest, error)
}

// QuotationReader resolves the approved quotation the invoice balances against.
type QuotationReader interface {
	GetApprovedByRequest(ctx context.Context, requestID uuid.UUID) (quotationsrepo.Quotation, error)
}

// AdvanceStore is the slice of the payments module the invoices service needs.
type AdvanceStore interface {
	GetAdvanceByID(ctx context.Context, id uuid.UUID) (paymentsrepo.AdvancePayment, error)
	SetAdvanceInvoice(ctx context.Context, id uuid.UUID, invoiceID uuid.UUID) error
}

// Config is the configuration surface of the invoices service.
type Config interface {
	config.GSTConfig
	config.CompanyConfig
}

// Service provides invoice operations.
type Service struct {
	repo       repository.Repository
	requests   RequestReader
	quotations QuotationReader
	advances   AdvanceStore
	cfg        Config
	bus        events.Bus
	log        *logger.Logger
	now        func() time.Time
}

// New creates a new invoices service.
func New(repo repository.Repository, requests RequestReader, quotations QuotationReader, advances AdvanceStore, cfg Config, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, requests: requests, quotations: quotations, advances: advances, cfg: cfg, bus: bus, log: log, now: time.Now}
}

// Generate issues an invoice for a settled advance payment (admin only). The
// named quotation must be the request's approved one. GST is computed on the
// advance amount; the balance is the approved quotation total less the
// advance.
func (s *Service) Generate(ctx context.Context, caller Caller, req transport.GenerateInvoiceRequest) (transport.InvoiceResponse, error) {
	if err := authz.Authorize(caller.Role, authz.OpInvoiceIssue, false); err != nil {
		return transport.InvoiceResponse{}, err
	}

	adv, err := s.advances.GetAdvanceByID(ctx, req.AdvancePaymentID)
	if err != nil {
		return transport.InvoiceResponse{}, err
	}
	if adv.Status != paymentsrepo.AdvancePaid {
		return transport.InvoiceResponse{}, apperr.InvalidState("invoice can only be issued for a paid advance").
			WithDetails(map[string]interface{}{"advanceStatus": adv.Status})
	}
	if adv.InvoiceID != nil {
		return transport.InvoiceResponse{}, apperr.Conflict("invoice was already issued for this advance payment").
			WithDetails(map[string]interface{}{"invoiceId": adv.InvoiceID.String()})
	}

	sr, err := s.requests.GetByID(ctx, adv.RequestID)
	if err != nil {
		return transport.InvoiceResponse{}, err
	}
	q, err := s.quotations.GetApprovedByRequest(ctx, sr.ID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return transport.InvoiceResponse{}, apperr.InvalidState("request has no approved quotation")
		}
		return transport.InvoiceResponse{}, err
	}
	if q.ID != req.QuotationID {
		return transport.InvoiceResponse{}, apperr.Validation("quotation does not belong to the advance's request").
			WithDetails(map[string]interface{}{"quotationId": req.QuotationID.String()})
	}

	breakdown := costing.Calculate(adv.Amount, decimal.Zero, s.cfg.GetGSTRate())
	inv, err := s.repo.Create(ctx, repository.CreateParams{
		InvoiceNumber:    codegen.InvoiceNumber(adv.ID, s.now()),
		RequestID:        sr.ID,
		QuotationID:      q.ID,
		AdvancePaymentID: adv.ID,
		CompanyName:      s.cfg.GetCompanyName(),
		GSTNumber:        s.cfg.GetGSTNumber(),
		ItemDescription:  req.ItemDescription,
		BaseAmount:       breakdown.BaseAmount,
		GSTRate:          s.cfg.GetGSTRate(),
		GSTAmount:        breakdown.GSTAmount,
		TotalAmount:      breakdown.TotalAmount,
		AdvanceAmount:    adv.Amount,
		BalanceAmount:    q.TotalAmount.Sub(adv.Amount),
	})
	if err != nil {
		return transport.InvoiceResponse{}, err
	}

	if err := s.advances.SetAdvanceInvoice(ctx, adv.ID, inv.ID); err != nil {
		return transport.InvoiceResponse{}, err
	}

	s.bus.Publish(ctx, events.InvoiceIssued{
		BaseEvent:     events.NewBaseEvent(),
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		RequestID:     sr.ID,
		RequestCode:   sr.RequestCode,
		CustomerEmail: sr.CustomerEmail,
		TotalAmount:   inv.TotalAmount,
		BalanceAmount: inv.BalanceAmount,
	})

	return toResponse(inv), nil
}

// Get retrieves a single invoice.
func (s *Service) Get(ctx context.Context, caller Caller, id uuid.UUID) (transport.InvoiceResponse, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.InvoiceResponse{}, err
	}
	sr, err := s.requests.GetByID(ctx, inv.RequestID)
	if err != nil {
		return transport.InvoiceResponse{}, err
	}
	if err := authz.Authorize(caller.Role, authz.OpInvoiceRead, sr.CustomerID == caller.ID); err != nil {
		return transport.InvoiceResponse{}, err
	}
	return toResponse(inv), nil
}

// ListByRequest returns a request's invoices.
func (s *Service) ListByRequest(ctx context.Context, caller Caller, requestID uuid.UUID) (transport.InvoiceListResponse, error) {
	sr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return transport.InvoiceListResponse{}, err
	}
	if err := authz.Authorize(caller.Role, authz.OpInvoiceRead, sr.CustomerID == caller.ID); err != nil {
		return transport.InvoiceListResponse{}, err
	}

	items, err := s.repo.ListByRequest(ctx, requestID)
	if err != nil {
		return transport.InvoiceListResponse{}, err
	}
	return toListResponse(items), nil
}

// List returns all invoices (admin only).
func (s *Service) List(ctx context.Context, caller Caller) (transport.InvoiceListResponse, error) {
	if err := authz.Authorize(caller.Role, authz.OpInvoiceRead, false); err != nil {
		return transport.InvoiceListResponse{}, err
	}

	items, err := s.repo.List(ctx)
	if err != nil {
		return transport.InvoiceListResponse{}, err
	}
	return toListResponse(items), nil
}

// MarkPaid settles an issued invoice (admin only).
func (s *Service) MarkPaid(ctx context.Context, caller Caller, id uuid.UUID) (transport.InvoiceResponse, error) {
	if err := authz.Authorize(caller.Role, authz.OpInvoiceIssue, false); err != nil {
		return transport.InvoiceResponse{}, err
	}

	inv, err := s.repo.MarkPaid(ctx, id)
	if err != nil {
		return transport.InvoiceResponse{}, err
	}
	return toResponse(inv), nil
}

// CompanyInfo returns the company details printed on invoices.
func (s *Service) CompanyInfo() transport.CompanyInfoResponse {
	return transport.CompanyInfoResponse{
		Name:      s.cfg.GetCompanyName(),
		Address:   s.cfg.GetCompanyAddress(),
		Phone:     s.cfg.GetCompanyPhone(),
		Email:     s.cfg.GetCompanyEmail(),
		GSTNumber: s.cfg.GetGSTNumber(),
	}
}

func toResponse(inv repository.Invoice) transport.InvoiceResponse {
	return transport.InvoiceResponse{
		ID:               inv.ID,
		InvoiceNumber:    inv.InvoiceNumber,
		RequestID:        inv.RequestID,
		QuotationID:      inv.QuotationID,
		AdvancePaymentID: inv.AdvancePaymentID,
		CompanyName:      inv.CompanyName,
		GSTNumber:        inv.GSTNumber,
		ItemDescription:  inv.ItemDescription,
		BaseAmount:       inv.BaseAmount,
		GSTRate:          inv.GSTRate,
		GSTAmount:        inv.GSTAmount,
		TotalAmount:      inv.TotalAmount,
		AdvanceAmount:    inv.AdvanceAmount,
		BalanceAmount:    inv.BalanceAmount,
		Status:           inv.Status,
		CreatedAt:        inv.CreatedAt,
		UpdatedAt:        inv.UpdatedAt,
	}
}

func toListResponse(items []repository.Invoice) transport.InvoiceListResponse {
	out := transport.InvoiceListResponse{Items: make([]transport.InvoiceResponse, 0, len(items))}
	for _, inv := range items {
		out.Items = append(out.Items, toResponse(inv))
	}
	out.Total = len(out.Items)
	return out
}
