package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"contractor_portal_backend/internal/events"
	"contractor_portal_backend/internal/invoices/repository"
	"contractor_portal_backend/internal/invoices/transport"
	paymentsrepo "contractor_portal_backend/internal/payments/repository"
	quotationsrepo "contractor_portal_backend/internal/quotations/repository"
	requestsrepo "contractor_portal_backend/internal/requests/repository"
	"contractor_portal_backend/internal/shared/authz"
	"contractor_portal_backend/internal/workflow"
	"contractor_portal_backend/platform/apperr"
	"contractor_portal_backend/platform/logger"
)

type fakeRequests struct {
	requests map[uuid.UUID]requestsrepo.ServiceRequest
}

func (f *fakeRequests) GetByID(_ context.Context, id uuid.UUID) (requestsrepo.ServiceRequest, error) {
	sr, ok := f.requests[id]
	if !ok {
		return requestsrepo.ServiceRequest{}, apperr.NotFound("service request not found")
	}
	return sr, nil
}

type fakeQuotations struct {
	approved map[uuid.UUID]quotationsrepo.Quotation
}

func (f *fakeQuotations) GetApprovedByRequest(_ context.Context, requestID uuid.UUID) (quotationsrepo.Quotation, error) {
	q, ok := f.approved[requestID]
	if !ok {
		return quotationsrepo.Quotation{}, apperr.NotFound("no approved quotation for request")
	}
	return q, nil
}

type fakeAdvances struct {
	advances map[uuid.UUID]paymentsrepo.AdvancePayment
}

func (f *fakeAdvances) GetAdvanceByID(_ context.Context, id uuid.UUID) (paymentsrepo.AdvancePayment, error) {
	a, ok := f.advances[id]
	if !ok {
		return paymentsrepo.AdvancePayment{}, apperr.NotFound("advance payment not found")
	}
	return a, nil
}

func (f *fakeAdvances) SetAdvanceInvoice(_ context.Context, id uuid.UUID, invoiceID uuid.UUID) error {
	a, ok := f.advances[id]
	if !ok {
		return apperr.NotFound("advance payment not found")
	}
	a.InvoiceID = &invoiceID
	f.advances[id] = a
	return nil
}

type fakeInvoiceRepo struct {
	invoices map[uuid.UUID]repository.Invoice
}

func (f *fakeInvoiceRepo) Create(_ context.Context, params repository.CreateParams) (repository.Invoice, error) {
	inv := repository.Invoice{
		ID:               uuid.New(),
		InvoiceNumber:    params.InvoiceNumber,
		RequestID:        params.RequestID,
		QuotationID:      params.QuotationID,
		AdvancePaymentID: params.AdvancePaymentID,
		CompanyName:      params.CompanyName,
		GSTNumber:        params.GSTNumber,
		ItemDescription:  params.ItemDescription,
		BaseAmount:       params.BaseAmount,
		GSTRate:          params.GSTRate,
		GSTAmount:        params.GSTAmount,
		TotalAmount:      params.TotalAmount,
		AdvanceAmount:    params.AdvanceAmount,
		BalanceAmount:    params.BalanceAmount,
		Status:           repository.StatusIssued,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	f.invoices[inv.ID] = inv
	return inv, nil
}

func (f *fakeInvoiceRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return repository.Invoice{}, apperr.NotFound("invoice not found")
	}
	return inv, nil
}

func (f *fakeInvoiceRepo) GetByAdvancePayment(_ context.Context, advancePaymentID uuid.UUID) (repository.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.AdvancePaymentID == advancePaymentID {
			return inv, nil
		}
	}
	return repository.Invoice{}, apperr.NotFound("invoice not found")
}

func (f *fakeInvoiceRepo) ListByRequest(_ context.Context, requestID uuid.UUID) ([]repository.Invoice, error) {
	var out []repository.Invoice
	for _, inv := range f.invoices {
		if inv.RequestID == requestID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeInvoiceRepo) List(_ context.Context) ([]repository.Invoice, error) {
	var out []repository.Invoice
	for _, inv := range f.invoices {
		out = append(out, inv)
	}
	return out, nil
}

func (f *fakeInvoiceRepo) MarkPaid(_ context.Context, id uuid.UUID) (repository.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return repository.Invoice{}, apperr.NotFound("invoice not found")
	}
	if inv.Status != repository.StatusIssued {
		return repository.Invoice{}, apperr.Conflict("invoice was already paid")
	}
	inv.Status = repository.StatusPaid
	f.invoices[id] = inv
	return inv, nil
}

type invoiceConfig struct{}

func (invoiceConfig) GetGSTRate() decimal.Decimal { return decimal.NewFromInt(18) }
func (invoiceConfig) GetGSTNumber() string        { return "29TEST1234A1Z5" }
func (invoiceConfig) GetCompanyName() string      { return "5R Associates Communications" }
func (invoiceConfig) GetCompanyAddress() string   { return "Chennai" }
func (invoiceConfig) GetCompanyPhone() string     { return "+919876543210" }
func (invoiceConfig) GetCompanyEmail() string     { return "office@example.com" }

type fixture struct {
	svc       *Service
	advances  *fakeAdvances
	sr        requestsrepo.ServiceRequest
	quotation quotationsrepo.Quotation
	advance   paymentsrepo.AdvancePayment
	customer  Caller
	admin     Caller
}

func newFixture(advanceStatus string) *fixture {
	customerID := uuid.New()
	sr := requestsrepo.ServiceRequest{
		ID:            uuid.New(),
		RequestCode:   "SVC-20260315-0001",
		CustomerID:    customerID,
		CustomerEmail: "customer@example.com",
		Status:        workflow.StatusPayment,
	}
	quotation := quotationsrepo.Quotation{
		ID:          uuid.New(),
		RequestID:   sr.ID,
		TotalAmount: dec("590000"),
		Status:      quotationsrepo.StatusApproved,
	}
	advance := paymentsrepo.AdvancePayment{
		ID:          uuid.New(),
		RequestID:   sr.ID,
		QuotationID: quotation.ID,
		Stage:       "Foundation",
		Amount:      dec("100000"),
		Status:      advanceStatus,
		RequestedBy: uuid.New(),
	}

	requests := &fakeRequests{requests: map[uuid.UUID]requestsrepo.ServiceRequest{sr.ID: sr}}
	quotations := &fakeQuotations{approved: map[uuid.UUID]quotationsrepo.Quotation{sr.ID: quotation}}
	advances := &fakeAdvances{advances: map[uuid.UUID]paymentsrepo.AdvancePayment{advance.ID: advance}}
	repo := &fakeInvoiceRepo{invoices: make(map[uuid.UUID]repository.Invoice)}

	log := logger.New("test")
	svc := New(repo, requests, quotations, advances, invoiceConfig{}, events.NewInMemoryBus(log), log)
	return &fixture{
		svc:       svc,
		advances:  advances,
		sr:        sr,
		quotation: quotation,
		advance:   advance,
		customer:  Caller{ID: customerID, Role: authz.RoleUser},
		admin:     Caller{ID: uuid.New(), Role: authz.RoleAdmin},
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestGenerateComputesGSTOnAdvanceBase(t *testing.T) {
	f := newFixture(paymentsrepo.AdvancePaid)

	resp, err := f.svc.Generate(context.Background(), f.admin, transport.GenerateInvoiceRequest{
		QuotationID:      f.quotation.ID,
		AdvancePaymentID: f.advance.ID,
		ItemDescription:  "Advance for interior painting",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !resp.BaseAmount.Equal(dec("100000")) {
		t.Fatalf("base must equal the advance amount, got %s", resp.BaseAmount)
	}
	if !resp.GSTAmount.Equal(dec("18000")) {
		t.Fatalf("expected GST 18000, got %s", resp.GSTAmount)
	}
	if !resp.TotalAmount.Equal(dec("118000")) {
		t.Fatalf("expected total 118000, got %s", resp.TotalAmount)
	}
	if !resp.BalanceAmount.Equal(dec("490000")) {
		t.Fatalf("balance must be quotation total minus advance, got %s", resp.BalanceAmount)
	}
	if resp.Status != repository.StatusIssued {
		t.Fatalf("new invoice must be ISSUED, got %s", resp.Status)
	}
	if !strings.HasPrefix(resp.InvoiceNumber, "INV-") {
		t.Fatalf("unexpected invoice number %q", resp.InvoiceNumber)
	}
}

func TestGenerateLinksInvoiceOntoAdvance(t *testing.T) {
	f := newFixture(paymentsrepo.AdvancePaid)

	resp, err := f.svc.Generate(context.Background(), f.admin, transport.GenerateInvoiceRequest{
		QuotationID:      f.quotation.ID,
		AdvancePaymentID: f.advance.ID,
		ItemDescription:  "Advance for interior painting",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	adv := f.advances.advances[f.advance.ID]
	if adv.InvoiceID == nil || *adv.InvoiceID != resp.ID {
		t.Fatalf("advance must link back to the invoice, got %v", adv.InvoiceID)
	}
}

func TestGenerateRequiresPaidAdvance(t *testing.T) {
	f := newFixture(paymentsrepo.AdvanceApproved)

	_, err := f.svc.Generate(context.Background(), f.admin, transport.GenerateInvoiceRequest{
		QuotationID:      f.quotation.ID,
		AdvancePaymentID: f.advance.ID,
		ItemDescription:  "Too early",
	})
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid state error, got %v", err)
	}
}

func TestGenerateRejectsForeignQuotation(t *testing.T) {
	f := newFixture(paymentsrepo.AdvancePaid)

	_, err := f.svc.Generate(context.Background(), f.admin, transport.GenerateInvoiceRequest{
		QuotationID:      uuid.New(),
		AdvancePaymentID: f.advance.ID,
		ItemDescription:  "Wrong quotation",
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGenerateRejectsDoubleIssue(t *testing.T) {
	f := newFixture(paymentsrepo.AdvancePaid)

	req := transport.GenerateInvoiceRequest{
		QuotationID:      f.quotation.ID,
		AdvancePaymentID: f.advance.ID,
		ItemDescription:  "Advance for interior painting",
	}
	if _, err := f.svc.Generate(context.Background(), f.admin, req); err != nil {
		t.Fatalf("first generate failed: %v", err)
	}

	_, err := f.svc.Generate(context.Background(), f.admin, req)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestGenerateIsAdminOnly(t *testing.T) {
	f := newFixture(paymentsrepo.AdvancePaid)

	_, err := f.svc.Generate(context.Background(), f.customer, transport.GenerateInvoiceRequest{
		QuotationID:      f.quotation.ID,
		AdvancePaymentID: f.advance.ID,
		ItemDescription:  "Customer cannot issue",
	})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestGetScopesToOwner(t *testing.T) {
	f := newFixture(paymentsrepo.AdvancePaid)

	resp, err := f.svc.Generate(context.Background(), f.admin, transport.GenerateInvoiceRequest{
		QuotationID:      f.quotation.ID,
		AdvancePaymentID: f.advance.ID,
		ItemDescription:  "Advance for interior painting",
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if _, err := f.svc.Get(context.Background(), f.customer, resp.ID); err != nil {
		t.Fatalf("owner must be able to read: %v", err)
	}

	stranger := Caller{ID: uuid.New(), Role: authz.RoleUser}
	if _, err := f.svc.Get(context.Background(), stranger, resp.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestMarkPaidOnlyOnce(t *testing.T) {
	f := newFixture(paymentsrepo.AdvancePaid)

	resp, err := f.svc.Generate(context.Background(), f.admin, transport.GenerateInvoiceRequest{
		QuotationID:      f.quotation.ID,
		AdvancePaymentID: f.advance.ID,
		ItemDescription:  "Advance for interior painting",
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	paid, err := f.svc.MarkPaid(context.Background(), f.admin, resp.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if paid.Status != repository.StatusPaid {
		t.Fatalf("invoice must be PAID, got %s", paid.Status)
	}

	if _, err := f.svc.MarkPaid(context.Background(), f.admin, resp.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestCompanyInfo(t *testing.T) {
	f := newFixture(paymentsrepo.AdvancePaid)

	info := f.svc.CompanyInfo()
	if info.Name != "5R Associates Communications" {
		t.Fatalf("unexpected company name %q", info.Name)
	}
	if info.GSTNumber != "29TEST1234A1Z5" {
		t.Fatalf("unexpected GST number %q", info.GSTNumber)
	}
}
