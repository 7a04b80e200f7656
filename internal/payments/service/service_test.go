package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"contractor_portal_backend/internal/events"
	"contractor_portal_backend/internal/payments/gateway"
	"contractor_portal_backend/internal/payments/repository"
	"contractor_portal_backend/internal/payments/transport"
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

type fakePaymentRepo struct {
	requests *fakeRequests
	payments map[uuid.UUID]repository.Payment
	advances map[uuid.UUID]repository.AdvancePayment
}

func (f *fakePaymentRepo) CreatePayment(_ context.Context, params repository.CreatePaymentParams) (repository.Payment, error) {
	p := repository.Payment{
		ID:          uuid.New(),
		RequestID:   params.RequestID,
		QuotationID: params.QuotationID,
		OrderRef:    params.OrderRef,
		Amount:      params.Amount,
		Currency:    params.Currency,
		Status:      repository.PaymentPending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	f.payments[p.ID] = p
	return p, nil
}

func (f *fakePaymentRepo) GetPaymentByID(_ context.Context, id uuid.UUID) (repository.Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return repository.Payment{}, apperr.NotFound("payment not found")
	}
	return p, nil
}

func (f *fakePaymentRepo) ListPaymentsByRequest(_ context.Context, requestID uuid.UUID) ([]repository.Payment, error) {
	var out []repository.Payment
	for _, p := range f.payments {
		if p.RequestID == requestID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePaymentRepo) CapturePayment(_ context.Context, id uuid.UUID, paymentRef string, requestID uuid.UUID, from, to workflow.Status) (repository.Payment, error) {
	p, ok := f.payments[id]
	if !ok || p.Status != repository.PaymentPending {
		return repository.Payment{}, apperr.Conflict("payment was already captured or removed")
	}
	sr := f.requests.requests[requestID]
	if sr.Status != from {
		return repository.Payment{}, apperr.Conflict("request status changed concurrently")
	}
	sr.Status = to
	sr.PaymentStatus = requestsrepo.PaymentStatusPaid
	f.requests.requests[requestID] = sr

	p.Status = repository.PaymentCaptured
	p.PaymentRef = &paymentRef
	f.payments[id] = p
	return p, nil
}

func (f *fakePaymentRepo) ListPayments(_ context.Context, customerID *uuid.UUID) ([]repository.Payment, error) {
	var out []repository.Payment
	for _, p := range f.payments {
		sr := f.requests.requests[p.RequestID]
		if customerID == nil || sr.CustomerID == *customerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePaymentRepo) ListAdvances(_ context.Context, customerID *uuid.UUID) ([]repository.AdvancePayment, error) {
	var out []repository.AdvancePayment
	for _, a := range f.advances {
		sr := f.requests.requests[a.RequestID]
		if customerID == nil || sr.CustomerID == *customerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakePaymentRepo) HasCapturedPayment(_ context.Context, requestID uuid.UUID) (bool, error) {
	for _, p := range f.payments {
		if p.RequestID == requestID && p.Status == repository.PaymentCaptured {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePaymentRepo) CreateAdvance(_ context.Context, params repository.CreateAdvanceParams) (repository.AdvancePayment, error) {
	a := repository.AdvancePayment{
		ID:          uuid.New(),
		RequestID:   params.RequestID,
		QuotationID: params.QuotationID,
		ProgressID:  params.ProgressID,
		Stage:       params.Stage,
		Amount:      params.Amount,
		Status:      repository.AdvancePending,
		Description: params.Description,
		RequestedBy: params.RequestedBy,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	f.advances[a.ID] = a

	sr := f.requests.requests[params.RequestID]
	sr.PaymentStatus = requestsrepo.PaymentStatusAdvanceRequested
	f.requests.requests[params.RequestID] = sr
	return a, nil
}

func (f *fakePaymentRepo) GetAdvanceByID(_ context.Context, id uuid.UUID) (repository.AdvancePayment, error) {
	a, ok := f.advances[id]
	if !ok {
		return repository.AdvancePayment{}, apperr.NotFound("advance payment not found")
	}
	return a, nil
}

func (f *fakePaymentRepo) ListAdvancesByRequest(_ context.Context, requestID uuid.UUID) ([]repository.AdvancePayment, error) {
	var out []repository.AdvancePayment
	for _, a := range f.advances {
		if a.RequestID == requestID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakePaymentRepo) ApproveAdvance(_ context.Context, id uuid.UUID) (repository.AdvancePayment, error) {
	a, ok := f.advances[id]
	if !ok || a.Status != repository.AdvancePending {
		return repository.AdvancePayment{}, apperr.Conflict("advance payment was already decided or removed")
	}
	a.Status = repository.AdvanceApproved
	f.advances[id] = a
	return a, nil
}

func (f *fakePaymentRepo) PayAdvance(_ context.Context, id uuid.UUID, requestID uuid.UUID) (repository.AdvancePayment, bool, error) {
	a, ok := f.advances[id]
	if !ok || a.Status != repository.AdvanceApproved {
		return repository.AdvancePayment{}, false, apperr.Conflict("advance payment is not approved or was removed")
	}
	a.Status = repository.AdvancePaid
	f.advances[id] = a

	allSettled := true
	for _, sibling := range f.advances {
		if sibling.RequestID == requestID && sibling.Status != repository.AdvancePaid {
			allSettled = false
		}
	}
	if allSettled {
		sr := f.requests.requests[requestID]
		sr.PaymentStatus = requestsrepo.PaymentStatusAdvancePaid
		f.requests.requests[requestID] = sr
	}
	return a, allSettled, nil
}

func (f *fakePaymentRepo) SetAdvanceInvoice(_ context.Context, id uuid.UUID, invoiceID uuid.UUID) error {
	a, ok := f.advances[id]
	if !ok {
		return apperr.NotFound("advance payment not found")
	}
	a.InvoiceID = &invoiceID
	f.advances[id] = a
	return nil
}

type fakeGateway struct {
	orders int
}

func (g *fakeGateway) CreateOrder(_ context.Context, amount decimal.Decimal, currency, _ string) (gateway.Order, error) {
	g.orders++
	return gateway.Order{
		OrderRef: fmt.Sprintf("order_test_%d", g.orders),
		Amount:   amount,
		Currency: currency,
		KeyID:    "rzp_test_key",
	}, nil
}

func (g *fakeGateway) VerifyCapture(_, _, signature string) error {
	if signature != "valid" {
		return apperr.Unauthorized("payment signature verification failed")
	}
	return nil
}

type companyConfig struct{}

func (companyConfig) GetCompanyName() string    { return "5R Associates Communications" }
func (companyConfig) GetCompanyAddress() string { return "Chennai" }
func (companyConfig) GetCompanyPhone() string   { return "+919876543210" }
func (companyConfig) GetCompanyEmail() string   { return "office@example.com" }

type fixture struct {
	svc      *Service
	requests *fakeRequests
	repo     *fakePaymentRepo
	sr       requestsrepo.ServiceRequest
	customer Caller
	admin    Caller
}

func newFixture(status workflow.Status, total string) *fixture {
	customerID := uuid.New()
	sr := requestsrepo.ServiceRequest{
		ID:            uuid.New(),
		RequestCode:   "SVC-20260315-0001",
		CustomerID:    customerID,
		CustomerEmail: "customer@example.com",
		Status:        status,
		PaymentStatus: requestsrepo.PaymentStatusPending,
	}
	requests := &fakeRequests{requests: map[uuid.UUID]requestsrepo.ServiceRequest{sr.ID: sr}}
	quotations := &fakeQuotations{approved: map[uuid.UUID]quotationsrepo.Quotation{}}
	if total != "" {
		quotations.approved[sr.ID] = quotationsrepo.Quotation{
			ID:          uuid.New(),
			RequestID:   sr.ID,
			TotalAmount: dec(total),
			Status:      quotationsrepo.StatusApproved,
		}
	}
	repo := &fakePaymentRepo{
		requests: requests,
		payments: make(map[uuid.UUID]repository.Payment),
		advances: make(map[uuid.UUID]repository.AdvancePayment),
	}

	log := logger.New("test")
	svc := New(repo, requests, quotations, &fakeGateway{}, companyConfig{}, events.NewInMemoryBus(log), log)
	return &fixture{
		svc:      svc,
		requests: requests,
		repo:     repo,
		sr:       sr,
		customer: Caller{ID: customerID, Role: authz.RoleUser},
		admin:    Caller{ID: uuid.New(), Role: authz.RoleAdmin},
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestInitiateCreatesPendingOrderForQuotationTotal(t *testing.T) {
	f := newFixture(workflow.StatusApproved, "590000")

	resp, err := f.svc.Initiate(context.Background(), f.customer, transport.InitiatePaymentRequest{RequestID: f.sr.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Status != repository.PaymentPending {
		t.Fatalf("new payment must be PENDING, got %s", resp.Status)
	}
	if !resp.Amount.Equal(dec("590000")) {
		t.Fatalf("amount must equal the approved quotation total, got %s", resp.Amount)
	}
	if resp.Currency != "INR" {
		t.Fatalf("expected currency INR, got %s", resp.Currency)
	}
	if resp.GatewayKey != "rzp_test_key" {
		t.Fatalf("response must carry the gateway key, got %q", resp.GatewayKey)
	}
}

func TestInitiateRequiresApprovedStatus(t *testing.T) {
	f := newFixture(workflow.StatusQuoted, "590000")

	_, err := f.svc.Initiate(context.Background(), f.customer, transport.InitiatePaymentRequest{RequestID: f.sr.ID})
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid state error, got %v", err)
	}
}

func TestInitiateRequiresApprovedQuotation(t *testing.T) {
	f := newFixture(workflow.StatusApproved, "")

	_, err := f.svc.Initiate(context.Background(), f.customer, transport.InitiatePaymentRequest{RequestID: f.sr.ID})
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid state error, got %v", err)
	}
}

func TestInitiateDeniesForeignCustomer(t *testing.T) {
	f := newFixture(workflow.StatusApproved, "590000")
	stranger := Caller{ID: uuid.New(), Role: authz.RoleUser}

	_, err := f.svc.Initiate(context.Background(), stranger, transport.InitiatePaymentRequest{RequestID: f.sr.ID})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestVerifyCapturesPaymentAndMovesRequest(t *testing.T) {
	f := newFixture(workflow.StatusApproved, "590000")

	initiated, err := f.svc.Initiate(context.Background(), f.customer, transport.InitiatePaymentRequest{RequestID: f.sr.ID})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	resp, err := f.svc.Verify(context.Background(), f.customer, initiated.ID, transport.VerifyPaymentRequest{
		PaymentRef: "pay_abc123",
		Signature:  "valid",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Status != repository.PaymentCaptured {
		t.Fatalf("payment must be CAPTURED, got %s", resp.Status)
	}
	if resp.PaymentRef == nil || *resp.PaymentRef != "pay_abc123" {
		t.Fatalf("payment ref not recorded: %v", resp.PaymentRef)
	}
	sr := f.requests.requests[f.sr.ID]
	if sr.Status != workflow.StatusPayment {
		t.Fatalf("request must move to PAYMENT, got %s", sr.Status)
	}
	if sr.PaymentStatus != requestsrepo.PaymentStatusPaid {
		t.Fatalf("request must be marked PAID, got %s", sr.PaymentStatus)
	}
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	f := newFixture(workflow.StatusApproved, "590000")

	initiated, err := f.svc.Initiate(context.Background(), f.customer, transport.InitiatePaymentRequest{RequestID: f.sr.ID})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	_, err = f.svc.Verify(context.Background(), f.customer, initiated.ID, transport.VerifyPaymentRequest{
		PaymentRef: "pay_abc123",
		Signature:  "forged",
	})
	if !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}

	p, _ := f.repo.GetPaymentByID(context.Background(), initiated.ID)
	if p.Status != repository.PaymentPending {
		t.Fatalf("payment must stay PENDING after a rejected signature, got %s", p.Status)
	}
	if f.requests.requests[f.sr.ID].Status != workflow.StatusApproved {
		t.Fatalf("request must not move on a rejected signature")
	}
}

func TestVerifyRejectsAlreadyCapturedPayment(t *testing.T) {
	f := newFixture(workflow.StatusApproved, "590000")

	initiated, _ := f.svc.Initiate(context.Background(), f.customer, transport.InitiatePaymentRequest{RequestID: f.sr.ID})
	req := transport.VerifyPaymentRequest{PaymentRef: "pay_abc123", Signature: "valid"}
	if _, err := f.svc.Verify(context.Background(), f.customer, initiated.ID, req); err != nil {
		t.Fatalf("first verify failed: %v", err)
	}

	_, err := f.svc.Verify(context.Background(), f.customer, initiated.ID, req)
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid state error, got %v", err)
	}
}

func TestVerifyRejectsMismatchedOrderRef(t *testing.T) {
	f := newFixture(workflow.StatusApproved, "590000")

	initiated, _ := f.svc.Initiate(context.Background(), f.customer, transport.InitiatePaymentRequest{RequestID: f.sr.ID})
	_, err := f.svc.Verify(context.Background(), f.customer, initiated.ID, transport.VerifyPaymentRequest{
		OrderRef:   "order_someone_elses",
		PaymentRef: "pay_abc123",
		Signature:  "valid",
	})
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("expected bad request error, got %v", err)
	}
}

func TestRequestAdvanceIsAdminOnly(t *testing.T) {
	f := newFixture(workflow.StatusApproved, "590000")

	_, err := f.svc.RequestAdvance(context.Background(), f.customer, transport.CreateAdvanceRequest{
		RequestID: f.sr.ID,
		Stage:     "Foundation",
		Amount:    dec("100000"),
	})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestRequestAdvanceRejectsAmountAboveQuotationTotal(t *testing.T) {
	f := newFixture(workflow.StatusApproved, "590000")

	_, err := f.svc.RequestAdvance(context.Background(), f.admin, transport.CreateAdvanceRequest{
		RequestID: f.sr.ID,
		Stage:     "Foundation",
		Amount:    dec("600000"),
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRequestAdvanceDuringActiveWork(t *testing.T) {
	f := newFixture(workflow.StatusInProgress, "590000")
	progressID := uuid.New()

	adv, err := f.svc.RequestAdvance(context.Background(), f.admin, transport.CreateAdvanceRequest{
		RequestID:  f.sr.ID,
		ProgressID: &progressID,
		Stage:      "Foundation complete",
		Amount:     dec("100000"),
	})
	if err != nil {
		t.Fatalf("milestone advance during work must be accepted: %v", err)
	}
	if adv.ProgressID == nil || *adv.ProgressID != progressID {
		t.Fatalf("advance must keep its progress link, got %v", adv.ProgressID)
	}
	if adv.Stage != "Foundation complete" {
		t.Fatalf("advance must carry the milestone stage, got %q", adv.Stage)
	}
}

func TestRequestAdvanceRejectedBeforeQuotationApproval(t *testing.T) {
	for _, status := range []workflow.Status{workflow.StatusRequested, workflow.StatusQuoted, workflow.StatusCompleted} {
		f := newFixture(status, "590000")

		_, err := f.svc.RequestAdvance(context.Background(), f.admin, transport.CreateAdvanceRequest{
			RequestID: f.sr.ID,
			Stage:     "Foundation",
			Amount:    dec("100000"),
		})
		if !apperr.Is(err, apperr.KindInvalidState) {
			t.Fatalf("status %s: expected invalid state error, got %v", status, err)
		}
	}
}

func TestApproveAdvanceIsAdminOnly(t *testing.T) {
	f := newFixture(workflow.StatusApproved, "590000")

	adv, err := f.svc.RequestAdvance(context.Background(), f.admin, transport.CreateAdvanceRequest{
		RequestID: f.sr.ID,
		Stage:     "Foundation",
		Amount:    dec("100000"),
	})
	if err != nil {
		t.Fatalf("request advance failed: %v", err)
	}

	if _, err := f.svc.ApproveAdvance(context.Background(), f.customer, adv.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("customer must not approve an advance, got %v", err)
	}

	approved, err := f.svc.ApproveAdvance(context.Background(), f.admin, adv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if approved.Status != repository.AdvanceApproved {
		t.Fatalf("advance must be APPROVED, got %s", approved.Status)
	}
	if approved.RequestedBy != f.admin.ID {
		t.Fatalf("advance must record the requesting admin")
	}
}

func TestPayAdvanceSettlesRequestWhenLastOutstanding(t *testing.T) {
	f := newFixture(workflow.StatusApproved, "590000")

	adv, _ := f.svc.RequestAdvance(context.Background(), f.admin, transport.CreateAdvanceRequest{
		RequestID: f.sr.ID,
		Stage:     "Foundation",
		Amount:    dec("100000"),
	})
	if _, err := f.svc.ApproveAdvance(context.Background(), f.admin, adv.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	paid, err := f.svc.PayAdvance(context.Background(), f.admin, adv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if paid.Status != repository.AdvancePaid {
		t.Fatalf("advance must be PAID, got %s", paid.Status)
	}
	if !paid.AllSettled {
		t.Fatalf("the only advance must settle the request")
	}
	sr := f.requests.requests[f.sr.ID]
	if sr.PaymentStatus != requestsrepo.PaymentStatusAdvancePaid {
		t.Fatalf("request must be marked ADVANCE_PAID, got %s", sr.PaymentStatus)
	}
	if sr.Status != workflow.StatusApproved {
		t.Fatalf("settling advances must not move the request status, got %s", sr.Status)
	}
}

func TestPayAdvanceLeavesRequestWithOutstandingSiblings(t *testing.T) {
	f := newFixture(workflow.StatusApproved, "590000")

	first, _ := f.svc.RequestAdvance(context.Background(), f.admin, transport.CreateAdvanceRequest{
		RequestID: f.sr.ID,
		Stage:     "Foundation",
		Amount:    dec("100000"),
	})
	second, _ := f.svc.RequestAdvance(context.Background(), f.admin, transport.CreateAdvanceRequest{
		RequestID: f.sr.ID,
		Stage:     "Superstructure",
		Amount:    dec("50000"),
	})

	if _, err := f.svc.ApproveAdvance(context.Background(), f.admin, first.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	paid, err := f.svc.PayAdvance(context.Background(), f.admin, first.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if paid.AllSettled {
		t.Fatalf("request must not settle while %s is outstanding", second.ID)
	}
	if f.requests.requests[f.sr.ID].Status != workflow.StatusApproved {
		t.Fatalf("request must stay APPROVED with outstanding advances")
	}
}

func TestPayAdvanceRequiresApproval(t *testing.T) {
	f := newFixture(workflow.StatusApproved, "590000")

	adv, _ := f.svc.RequestAdvance(context.Background(), f.admin, transport.CreateAdvanceRequest{
		RequestID: f.sr.ID,
		Stage:     "Foundation",
		Amount:    dec("100000"),
	})

	_, err := f.svc.PayAdvance(context.Background(), f.admin, adv.ID)
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid state error, got %v", err)
	}
}

func TestListScopesCustomerToOwnPayments(t *testing.T) {
	f := newFixture(workflow.StatusApproved, "590000")

	if _, err := f.svc.Initiate(context.Background(), f.customer, transport.InitiatePaymentRequest{RequestID: f.sr.ID}); err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	own, err := f.svc.List(context.Background(), f.customer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(own.Payments) != 1 {
		t.Fatalf("customer must see their own payment, got %d", len(own.Payments))
	}

	stranger := Caller{ID: uuid.New(), Role: authz.RoleUser}
	other, err := f.svc.List(context.Background(), stranger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(other.Payments) != 0 {
		t.Fatalf("foreign customer must see nothing, got %d", len(other.Payments))
	}

	all, err := f.svc.List(context.Background(), f.admin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all.Payments) != 1 {
		t.Fatalf("admin must see all payments, got %d", len(all.Payments))
	}
}

func TestQRCodeRendersPNG(t *testing.T) {
	f := newFixture(workflow.StatusApproved, "590000")

	initiated, err := f.svc.Initiate(context.Background(), f.customer, transport.InitiatePaymentRequest{RequestID: f.sr.ID})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	png, err := f.svc.QRCode(context.Background(), f.customer, initiated.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(png) < 8 || png[1] != 'P' || png[2] != 'N' || png[3] != 'G' {
		t.Fatalf("expected a PNG image, got %d bytes", len(png))
	}
}
