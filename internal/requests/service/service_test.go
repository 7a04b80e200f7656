package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"contractor_portal_backend/internal/codegen"
	"contractor_portal_backend/internal/events"
	"contractor_portal_backend/internal/requests/repository"
	"contractor_portal_backend/internal/requests/transport"
	"contractor_portal_backend/internal/shared/authz"
	"contractor_portal_backend/internal/workflow"
	"contractor_portal_backend/platform/apperr"
	"contractor_portal_backend/platform/logger"
)

type fakeRepo struct {
	requests map[uuid.UUID]repository.ServiceRequest
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{requests: make(map[uuid.UUID]repository.ServiceRequest)}
}

func (f *fakeRepo) Create(_ context.Context, params repository.CreateParams) (repository.ServiceRequest, error) {
	sr := repository.ServiceRequest{
		ID:              uuid.New(),
		RequestCode:     params.RequestCode,
		CustomerID:      params.CustomerID,
		CustomerEmail:   "customer@example.com",
		ServiceTypeCode: params.ServiceTypeCode,
		Description:     params.Description,
		Address:         params.Address,
		PreferredDate:   params.PreferredDate,
		Status:          workflow.StatusRequested,
		PaymentStatus:   repository.PaymentStatusPending,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	f.requests[sr.ID] = sr
	return sr, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.ServiceRequest, error) {
	sr, ok := f.requests[id]
	if !ok {
		return repository.ServiceRequest{}, apperr.NotFound("service request not found")
	}
	return sr, nil
}

func (f *fakeRepo) List(_ context.Context, filter repository.ListFilter) ([]repository.ServiceRequest, int, error) {
	var out []repository.ServiceRequest
	for _, sr := range f.requests {
		if filter.CustomerID != nil && sr.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.Status != nil && sr.Status != *filter.Status {
			continue
		}
		out = append(out, sr)
	}
	return out, len(out), nil
}

func (f *fakeRepo) UpdateDetails(_ context.Context, params repository.UpdateDetailsParams) (repository.ServiceRequest, error) {
	sr, ok := f.requests[params.ID]
	if !ok {
		return repository.ServiceRequest{}, apperr.NotFound("service request not found")
	}
	if params.Description != nil {
		sr.Description = *params.Description
	}
	if params.Address != nil {
		sr.Address = *params.Address
	}
	if params.PreferredDate != nil {
		sr.PreferredDate = params.PreferredDate
	}
	f.requests[params.ID] = sr
	return sr, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to workflow.Status) error {
	sr, ok := f.requests[id]
	if !ok {
		return apperr.NotFound("service request not found")
	}
	if sr.Status != from {
		return apperr.Conflict("request status changed concurrently")
	}
	sr.Status = to
	f.requests[id] = sr
	return nil
}

func (f *fakeRepo) SetPaymentStatus(_ context.Context, id uuid.UUID, paymentStatus string) error {
	sr, ok := f.requests[id]
	if !ok {
		return apperr.NotFound("service request not found")
	}
	sr.PaymentStatus = paymentStatus
	f.requests[id] = sr
	return nil
}

type fakeCatalog struct {
	active map[string]bool
}

func (f *fakeCatalog) ActiveServiceExists(_ context.Context, code string) (bool, error) {
	return f.active[code], nil
}

func newTestService(repo *fakeRepo) *Service {
	log := logger.New("test")
	catalog := &fakeCatalog{active: map[string]bool{"PAINT-001": true, "CONST-002": true}}
	codes := codegen.NewRequestCodeGenerator(codegen.NewMemorySequence())
	return New(repo, codes, catalog, events.NewInMemoryBus(log), log)
}

func TestCreateAssignsCodeAndStatus(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	caller := Caller{ID: uuid.New(), Role: authz.RoleUser}

	resp, err := svc.Create(context.Background(), caller, transport.CreateRequest{
		ServiceTypeCode: "PAINT-001",
		Description:     "repaint the exterior walls",
		Address:         "12 MG Road, Bengaluru",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != string(workflow.StatusRequested) {
		t.Fatalf("new request must start in REQUESTED, got %s", resp.Status)
	}
	if len(resp.RequestCode) == 0 || resp.RequestCode[:4] != "SVC-" {
		t.Fatalf("unexpected request code %q", resp.RequestCode)
	}
	if resp.PaymentStatus != repository.PaymentStatusPending {
		t.Fatalf("expected payment status PENDING, got %s", resp.PaymentStatus)
	}
}

func TestCreateRejectsUnknownServiceType(t *testing.T) {
	svc := newTestService(newFakeRepo())
	caller := Caller{ID: uuid.New(), Role: authz.RoleUser}

	_, err := svc.Create(context.Background(), caller, transport.CreateRequest{
		ServiceTypeCode: "NOPE-999",
		Description:     "anything at all here",
		Address:         "somewhere",
	})
	if err == nil {
		t.Fatal("expected error for unknown service type")
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestListScopesCustomersToOwnRequests(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	alice := Caller{ID: uuid.New(), Role: authz.RoleUser}
	bob := Caller{ID: uuid.New(), Role: authz.RoleUser}

	mustCreate(t, svc, alice)
	mustCreate(t, svc, bob)
	mustCreate(t, svc, bob)

	resp, err := svc.List(context.Background(), bob, transport.ListQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("bob must see exactly his 2 requests, got %d", resp.Total)
	}

	adminResp, err := svc.List(context.Background(), Caller{ID: uuid.New(), Role: authz.RoleAdmin}, transport.ListQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adminResp.Total != 3 {
		t.Fatalf("admin must see all 3 requests, got %d", adminResp.Total)
	}
}

func TestGetDeniesForeignCustomer(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	owner := Caller{ID: uuid.New(), Role: authz.RoleUser}
	created := mustCreate(t, svc, owner)

	_, err := svc.Get(context.Background(), Caller{ID: uuid.New(), Role: authz.RoleUser}, created.ID)
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	if _, err := svc.Get(context.Background(), owner, created.ID); err != nil {
		t.Fatalf("owner must read own request: %v", err)
	}
}

func TestUpdateDetailsOnlyWhileRequested(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	owner := Caller{ID: uuid.New(), Role: authz.RoleUser}
	created := mustCreate(t, svc, owner)

	newDesc := "updated scope of painting work"
	resp, err := svc.UpdateDetails(context.Background(), owner, created.ID, transport.UpdateDetailsRequest{Description: &newDesc})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Description != newDesc {
		t.Fatalf("description not updated: %s", resp.Description)
	}

	// Move request past REQUESTED; edits must now be rejected.
	sr := repo.requests[created.ID]
	sr.Status = workflow.StatusQuoted
	repo.requests[created.ID] = sr

	_, err = svc.UpdateDetails(context.Background(), owner, created.ID, transport.UpdateDetailsRequest{Description: &newDesc})
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid-state error, got %v", err)
	}
}

func TestAdvanceStatusEnforcesOrderAndRole(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	owner := Caller{ID: uuid.New(), Role: authz.RoleUser}
	admin := Caller{ID: uuid.New(), Role: authz.RoleAdmin}
	created := mustCreate(t, svc, owner)

	// Customers cannot advance even their own requests.
	_, err := svc.AdvanceStatus(context.Background(), owner, created.ID, workflow.StatusQuoted)
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	// Skipping a step is rejected.
	_, err = svc.AdvanceStatus(context.Background(), admin, created.ID, workflow.StatusApproved)
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid-state error, got %v", err)
	}

	resp, err := svc.AdvanceStatus(context.Background(), admin, created.ID, workflow.StatusQuoted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != string(workflow.StatusQuoted) {
		t.Fatalf("expected QUOTED, got %s", resp.Status)
	}
}

func mustCreate(t *testing.T, svc *Service, caller Caller) transport.RequestResponse {
	t.Helper()
	resp, err := svc.Create(context.Background(), caller, transport.CreateRequest{
		ServiceTypeCode: "PAINT-001",
		Description:     "repaint the exterior walls",
		Address:         "12 MG Road, Bengaluru",
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return resp
}
