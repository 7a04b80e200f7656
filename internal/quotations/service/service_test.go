package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"contractor_portal_backend/internal/events"
	"contractor_portal_backend/internal/quotations/repository"
	"contractor_portal_backend/internal/quotations/transport"
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

type fakeQuotationRepo struct {
	requests   *fakeRequests
	quotations map[uuid.UUID]repository.Quotation
}

func (f *fakeQuotationRepo) CreateWithTransition(_ context.Context, params repository.CreateParams, from, to workflow.Status) (repository.Quotation, error) {
	sr := f.requests.requests[params.RequestID]
	if sr.Status != from {
		return repository.Quotation{}, apperr.Conflict("request status changed concurrently")
	}
	sr.Status = to
	f.requests.requests[params.RequestID] = sr

	q := repository.Quotation{
		ID:              uuid.New(),
		QuotationNumber: params.QuotationNumber,
		RequestID:       params.RequestID,
		BaseAmount:      params.BaseAmount,
		ServiceTax:      params.ServiceTax,
		GSTRate:         params.GSTRate,
		GSTAmount:       params.GSTAmount,
		TotalAmount:     params.TotalAmount,
		Status:          repository.StatusPending,
		Notes:           params.Notes,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	f.quotations[q.ID] = q
	return q, nil
}

func (f *fakeQuotationRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Quotation, error) {
	q, ok := f.quotations[id]
	if !ok {
		return repository.Quotation{}, apperr.NotFound("quotation not found")
	}
	return q, nil
}

func (f *fakeQuotationRepo) ListByRequest(_ context.Context, requestID uuid.UUID) ([]repository.Quotation, error) {
	var out []repository.Quotation
	for _, q := range f.quotations {
		if q.RequestID == requestID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuotationRepo) GetApprovedByRequest(_ context.Context, requestID uuid.UUID) (repository.Quotation, error) {
	for _, q := range f.quotations {
		if q.RequestID == requestID && q.Status == repository.StatusApproved {
			return q, nil
		}
	}
	return repository.Quotation{}, apperr.NotFound("no approved quotation for request")
}

func (f *fakeQuotationRepo) DecideWithTransition(_ context.Context, id uuid.UUID, status string, reason *string, requestID uuid.UUID, from, to workflow.Status) (repository.Quotation, error) {
	q, ok := f.quotations[id]
	if !ok || q.Status != repository.StatusPending {
		return repository.Quotation{}, apperr.Conflict("quotation was already decided or removed")
	}
	sr := f.requests.requests[requestID]
	if sr.Status != from {
		return repository.Quotation{}, apperr.Conflict("request status changed concurrently")
	}
	sr.Status = to
	f.requests.requests[requestID] = sr

	q.Status = status
	q.RejectionReason = reason
	f.quotations[id] = q
	return q, nil
}

func (f *fakeQuotationRepo) DeleteWithTransition(_ context.Context, id uuid.UUID, requestID uuid.UUID, from, to workflow.Status) error {
	q, ok := f.quotations[id]
	if !ok || q.Status != repository.StatusPending {
		return apperr.Conflict("quotation was already decided or removed")
	}
	sr := f.requests.requests[requestID]
	if sr.Status != from {
		return apperr.Conflict("request status changed concurrently")
	}
	sr.Status = to
	f.requests.requests[requestID] = sr
	delete(f.quotations, id)
	return nil
}

type gstConfig struct{}

func (gstConfig) GetGSTRate() decimal.Decimal { return decimal.NewFromInt(18) }
func (gstConfig) GetGSTNumber() string        { return "29TEST1234A1Z5" }

func newFixture(status workflow.Status) (*Service, *fakeRequests, *fakeQuotationRepo, requestsrepo.ServiceRequest) {
	customerID := uuid.New()
	sr := requestsrepo.ServiceRequest{
		ID:            uuid.New(),
		RequestCode:   "SVC-20260315-0001",
		CustomerID:    customerID,
		CustomerEmail: "customer@example.com",
		Status:        status,
	}
	requests := &fakeRequests{requests: map[uuid.UUID]requestsrepo.ServiceRequest{sr.ID: sr}}
	repo := &fakeQuotationRepo{requests: requests, quotations: make(map[uuid.UUID]repository.Quotation)}

	log := logger.New("test")
	svc := New(repo, requests, gstConfig{}, events.NewInMemoryBus(log), log)
	return svc, requests, repo, sr
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCreateMovesRequestToQuoted(t *testing.T) {
	svc, requests, _, sr := newFixture(workflow.StatusRequested)
	admin := Caller{ID: uuid.New(), Role: authz.RoleAdmin}

	resp, err := svc.Create(context.Background(), admin, transport.CreateQuotationRequest{
		RequestID:  sr.ID,
		BaseAmount: dec("500000"),
		ServiceTax: dec("0"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !resp.GSTAmount.Equal(dec("90000")) {
		t.Fatalf("expected GST 90000, got %s", resp.GSTAmount)
	}
	if !resp.TotalAmount.Equal(dec("590000")) {
		t.Fatalf("expected total 590000, got %s", resp.TotalAmount)
	}
	if resp.Status != repository.StatusPending {
		t.Fatalf("new quotation must be PENDING, got %s", resp.Status)
	}
	if requests.requests[sr.ID].Status != workflow.StatusQuoted {
		t.Fatalf("request must move to QUOTED, got %s", requests.requests[sr.ID].Status)
	}
}

func TestCreateReplacesQuotationOnQuotedRequest(t *testing.T) {
	svc, requests, _, sr := newFixture(workflow.StatusQuoted)
	admin := Caller{ID: uuid.New(), Role: authz.RoleAdmin}

	_, err := svc.Create(context.Background(), admin, transport.CreateQuotationRequest{
		RequestID:  sr.ID,
		BaseAmount: dec("1000"),
	})
	if err != nil {
		t.Fatalf("re-issuing on a QUOTED request must work: %v", err)
	}
	if requests.requests[sr.ID].Status != workflow.StatusQuoted {
		t.Fatalf("request must stay QUOTED, got %s", requests.requests[sr.ID].Status)
	}
}

func TestCreateRejectsInvalidCostInputs(t *testing.T) {
	svc, _, _, sr := newFixture(workflow.StatusRequested)
	admin := Caller{ID: uuid.New(), Role: authz.RoleAdmin}

	_, err := svc.Create(context.Background(), admin, transport.CreateQuotationRequest{
		RequestID:  sr.ID,
		BaseAmount: dec("0"),
		ServiceTax: dec("-5"),
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateDeniedForCustomers(t *testing.T) {
	svc, _, _, sr := newFixture(workflow.StatusRequested)

	_, err := svc.Create(context.Background(), Caller{ID: sr.CustomerID, Role: authz.RoleUser}, transport.CreateQuotationRequest{
		RequestID:  sr.ID,
		BaseAmount: dec("1000"),
	})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestGetVisibleToOwnerAndAdmin(t *testing.T) {
	svc, _, _, sr := newFixture(workflow.StatusRequested)
	admin := Caller{ID: uuid.New(), Role: authz.RoleAdmin}

	created, err := svc.Create(context.Background(), admin, transport.CreateQuotationRequest{
		RequestID:  sr.ID,
		BaseAmount: dec("1000"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	resp, err := svc.Get(context.Background(), Caller{ID: sr.CustomerID, Role: authz.RoleUser}, created.ID)
	if err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if resp.ID != created.ID || resp.RequestID != sr.ID {
		t.Fatalf("got quotation %s for request %s, want %s for %s", resp.ID, resp.RequestID, created.ID, sr.ID)
	}

	if _, err := svc.Get(context.Background(), admin, created.ID); err != nil {
		t.Fatalf("admin get: %v", err)
	}

	_, err = svc.Get(context.Background(), Caller{ID: uuid.New(), Role: authz.RoleUser}, created.ID)
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("foreign customer must be denied, got %v", err)
	}

	_, err = svc.Get(context.Background(), admin, uuid.New())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not-found for unknown quotation, got %v", err)
	}
}

func TestApproveMovesRequestToApproved(t *testing.T) {
	svc, requests, _, sr := newFixture(workflow.StatusRequested)
	admin := Caller{ID: uuid.New(), Role: authz.RoleAdmin}
	owner := Caller{ID: sr.CustomerID, Role: authz.RoleUser}

	created, err := svc.Create(context.Background(), admin, transport.CreateQuotationRequest{
		RequestID:  sr.ID,
		BaseAmount: dec("1000"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	resp, err := svc.Approve(context.Background(), owner, created.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if resp.Status != repository.StatusApproved {
		t.Fatalf("expected APPROVED, got %s", resp.Status)
	}
	if requests.requests[sr.ID].Status != workflow.StatusApproved {
		t.Fatalf("request must move to APPROVED, got %s", requests.requests[sr.ID].Status)
	}

	// A second decision on the same quotation must fail.
	_, err = svc.Approve(context.Background(), owner, created.ID)
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid-state on double decision, got %v", err)
	}
}

func TestRejectReturnsRequestToRequested(t *testing.T) {
	svc, requests, _, sr := newFixture(workflow.StatusRequested)
	admin := Caller{ID: uuid.New(), Role: authz.RoleAdmin}
	owner := Caller{ID: sr.CustomerID, Role: authz.RoleUser}

	created, err := svc.Create(context.Background(), admin, transport.CreateQuotationRequest{
		RequestID:  sr.ID,
		BaseAmount: dec("1000"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	reason := "price too high"
	resp, err := svc.Reject(context.Background(), owner, created.ID, &reason)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if resp.Status != repository.StatusRejected {
		t.Fatalf("expected REJECTED, got %s", resp.Status)
	}
	if requests.requests[sr.ID].Status != workflow.StatusRequested {
		t.Fatalf("request must return to REQUESTED, got %s", requests.requests[sr.ID].Status)
	}
}

func TestApproveDeniedForForeignCustomer(t *testing.T) {
	svc, _, _, sr := newFixture(workflow.StatusRequested)
	admin := Caller{ID: uuid.New(), Role: authz.RoleAdmin}

	created, err := svc.Create(context.Background(), admin, transport.CreateQuotationRequest{
		RequestID:  sr.ID,
		BaseAmount: dec("1000"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.Approve(context.Background(), Caller{ID: uuid.New(), Role: authz.RoleUser}, created.ID)
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestDeleteOnlyPending(t *testing.T) {
	svc, requests, _, sr := newFixture(workflow.StatusRequested)
	admin := Caller{ID: uuid.New(), Role: authz.RoleAdmin}
	owner := Caller{ID: sr.CustomerID, Role: authz.RoleUser}

	created, err := svc.Create(context.Background(), admin, transport.CreateQuotationRequest{
		RequestID:  sr.ID,
		BaseAmount: dec("1000"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Approve(context.Background(), owner, created.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if err := svc.Delete(context.Background(), admin, created.ID); !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("approved quotation must not be deletable, got %v", err)
	}

	// A fresh pending quotation can be deleted and the request returns to REQUESTED.
	second, err := svc.Create(context.Background(), admin, transport.CreateQuotationRequest{
		RequestID:  sr.ID,
		BaseAmount: dec("2000"),
	})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if err := svc.Delete(context.Background(), admin, second.ID); err != nil {
		t.Fatalf("delete pending: %v", err)
	}
	if requests.requests[sr.ID].Status != workflow.StatusRequested {
		t.Fatalf("request must return to REQUESTED after delete, got %s", requests.requests[sr.ID].Status)
	}
}
