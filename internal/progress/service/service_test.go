package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"contractor_portal_backend/internal/adapters/storage"
	"contractor_portal_backend/internal/events"
	"contractor_portal_backend/internal/progress/repository"
	"contractor_portal_backend/internal/progress/transport"
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

func (f *fakeRequests) UpdateStatus(_ context.Context, id uuid.UUID, from, to workflow.Status) error {
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

type fakePayments struct {
	captured map[uuid.UUID]bool
}

func (f *fakePayments) HasCapturedPayment(_ context.Context, requestID uuid.UUID) (bool, error) {
	return f.captured[requestID], nil
}

type fakeProgressRepo struct {
	requests *fakeRequests
	entries  map[uuid.UUID]repository.WorkProgress
}

func (f *fakeProgressRepo) Create(_ context.Context, params repository.CreateParams) (repository.WorkProgress, error) {
	wp := repository.WorkProgress{
		ID:                uuid.New(),
		RequestID:         params.RequestID,
		Title:             params.Title,
		Description:       params.Description,
		CompletionPercent: params.CompletionPercent,
		PhotoKeys:         params.PhotoKeys,
		VideoKeys:         params.VideoKeys,
		DocumentKeys:      params.DocumentKeys,
		CreatedBy:         params.CreatedBy,
		CreatedAt:         time.Now(),
	}
	f.entries[wp.ID] = wp
	return wp, nil
}

func (f *fakeProgressRepo) CreateWithTransition(ctx context.Context, params repository.CreateParams, from, to workflow.Status) (repository.WorkProgress, error) {
	sr := f.requests.requests[params.RequestID]
	if sr.Status != from {
		return repository.WorkProgress{}, apperr.Conflict("request status changed concurrently")
	}
	sr.Status = to
	f.requests.requests[params.RequestID] = sr
	return f.Create(ctx, params)
}

func (f *fakeProgressRepo) GetByID(_ context.Context, id uuid.UUID) (repository.WorkProgress, error) {
	wp, ok := f.entries[id]
	if !ok {
		return repository.WorkProgress{}, apperr.NotFound("progress entry not found")
	}
	return wp, nil
}

func (f *fakeProgressRepo) ListByRequest(_ context.Context, requestID uuid.UUID) ([]repository.WorkProgress, error) {
	var out []repository.WorkProgress
	for _, wp := range f.entries {
		if wp.RequestID == requestID {
			out = append(out, wp)
		}
	}
	return out, nil
}

func (f *fakeProgressRepo) List(_ context.Context) ([]repository.WorkProgress, error) {
	var out []repository.WorkProgress
	for _, wp := range f.entries {
		out = append(out, wp)
	}
	return out, nil
}

func (f *fakeProgressRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.entries[id]; !ok {
		return apperr.NotFound("progress entry not found")
	}
	delete(f.entries, id)
	return nil
}

type fakeStorage struct {
	objects map[string][]byte
	uploads int
}

func (f *fakeStorage) Upload(_ context.Context, folder, fileName string, reader io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	f.uploads++
	key := fmt.Sprintf("%s/%s_%d", folder, fileName, f.uploads)
	f.objects[key] = data
	return key, nil
}

func (f *fakeStorage) DownloadURL(_ context.Context, fileKey string) (storage.PresignedURL, error) {
	return storage.PresignedURL{
		URL:       "https://storage.example.com/" + fileKey,
		FileKey:   fileKey,
		ExpiresAt: time.Now().Add(storage.PresignedURLTTL),
	}, nil
}

func (f *fakeStorage) Delete(_ context.Context, fileKey string) error {
	delete(f.objects, fileKey)
	return nil
}

type workflowConfig struct {
	requireCapturedPayment bool
}

func (c workflowConfig) GetProgressRequireCapturedPayment() bool { return c.requireCapturedPayment }

type fixture struct {
	svc      *Service
	requests *fakeRequests
	repo     *fakeProgressRepo
	store    *fakeStorage
	sr       requestsrepo.ServiceRequest
	customer Caller
	admin    Caller
}

func newFixture(status workflow.Status, paymentStatus string) *fixture {
	customerID := uuid.New()
	sr := requestsrepo.ServiceRequest{
		ID:            uuid.New(),
		RequestCode:   "SVC-20260315-0001",
		CustomerID:    customerID,
		CustomerEmail: "customer@example.com",
		Status:        status,
		PaymentStatus: paymentStatus,
	}
	requests := &fakeRequests{requests: map[uuid.UUID]requestsrepo.ServiceRequest{sr.ID: sr}}
	repo := &fakeProgressRepo{requests: requests, entries: make(map[uuid.UUID]repository.WorkProgress)}
	store := &fakeStorage{objects: make(map[string][]byte)}

	log := logger.New("test")
	svc := New(repo, requests, &fakePayments{captured: map[uuid.UUID]bool{}}, store, workflowConfig{requireCapturedPayment: true}, events.NewInMemoryBus(log), log)
	return &fixture{
		svc:      svc,
		requests: requests,
		repo:     repo,
		store:    store,
		sr:       sr,
		customer: Caller{ID: customerID, Role: authz.RoleUser},
		admin:    Caller{ID: uuid.New(), Role: authz.RoleAdmin},
	}
}

func mediaFile(name, content string) transport.MediaFile {
	return transport.MediaFile{
		Name:        name,
		Size:        int64(len(content)),
		ContentType: "image/jpeg",
		Reader:      strings.NewReader(content),
	}
}

func TestPostFirstEntryStartsWork(t *testing.T) {
	f := newFixture(workflow.StatusPayment, requestsrepo.PaymentStatusPaid)

	resp, err := f.svc.Post(context.Background(), f.admin, f.sr.ID, transport.CreateProgressRequest{
		Title:             "Site cleared",
		CompletionPercent: 10,
	}, []transport.MediaFile{mediaFile("before.jpg", "jpegdata")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.requests.requests[f.sr.ID].Status != workflow.StatusInProgress {
		t.Fatalf("first progress entry must move the request IN_PROGRESS, got %s", f.requests.requests[f.sr.ID].Status)
	}
	if len(resp.Photos) != 1 {
		t.Fatalf("expected 1 photo link, got %d", len(resp.Photos))
	}
	if resp.Photos[0].URL == "" {
		t.Fatalf("media link must be presigned")
	}
	if resp.CompletionPercent != 10 {
		t.Fatalf("expected completion 10, got %d", resp.CompletionPercent)
	}
}

func TestPostSortsMediaByKind(t *testing.T) {
	f := newFixture(workflow.StatusInProgress, requestsrepo.PaymentStatusPaid)

	resp, err := f.svc.Post(context.Background(), f.admin, f.sr.ID, transport.CreateProgressRequest{
		Title: "Walkthrough",
	}, []transport.MediaFile{
		mediaFile("wall.png", "pngdata"),
		mediaFile("tour.mp4", "mp4data"),
		mediaFile("measurements.pdf", "pdfdata"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resp.Photos) != 1 || len(resp.Videos) != 1 || len(resp.Documents) != 1 {
		t.Fatalf("media must be sorted by kind, got %d/%d/%d", len(resp.Photos), len(resp.Videos), len(resp.Documents))
	}
}

func TestPostLaterEntriesKeepStatus(t *testing.T) {
	f := newFixture(workflow.StatusInProgress, requestsrepo.PaymentStatusPaid)

	_, err := f.svc.Post(context.Background(), f.admin, f.sr.ID, transport.CreateProgressRequest{
		Title: "First coat done",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.requests.requests[f.sr.ID].Status != workflow.StatusInProgress {
		t.Fatalf("request must stay IN_PROGRESS, got %s", f.requests.requests[f.sr.ID].Status)
	}
}

func TestPostRequiresPaymentPhase(t *testing.T) {
	f := newFixture(workflow.StatusApproved, requestsrepo.PaymentStatusPending)

	_, err := f.svc.Post(context.Background(), f.admin, f.sr.ID, transport.CreateProgressRequest{
		Title: "Too early",
	}, nil)
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid state error, got %v", err)
	}
}

func TestPostRequiresSettledPayment(t *testing.T) {
	f := newFixture(workflow.StatusPayment, requestsrepo.PaymentStatusPending)

	_, err := f.svc.Post(context.Background(), f.admin, f.sr.ID, transport.CreateProgressRequest{
		Title: "No money yet",
	}, nil)
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid state error, got %v", err)
	}
}

func TestPostAllowsAdvancePaidRequests(t *testing.T) {
	f := newFixture(workflow.StatusPayment, requestsrepo.PaymentStatusAdvancePaid)

	_, err := f.svc.Post(context.Background(), f.admin, f.sr.ID, transport.CreateProgressRequest{
		Title: "Advance received, starting",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPostPaymentGuardCanBeDisabled(t *testing.T) {
	f := newFixture(workflow.StatusPayment, requestsrepo.PaymentStatusPending)
	log := logger.New("test")
	f.svc = New(f.repo, f.requests, &fakePayments{captured: map[uuid.UUID]bool{}}, f.store, workflowConfig{requireCapturedPayment: false}, events.NewInMemoryBus(log), log)

	_, err := f.svc.Post(context.Background(), f.admin, f.sr.ID, transport.CreateProgressRequest{
		Title: "Operator override",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPostIsAdminOnly(t *testing.T) {
	f := newFixture(workflow.StatusInProgress, requestsrepo.PaymentStatusPaid)

	_, err := f.svc.Post(context.Background(), f.customer, f.sr.ID, transport.CreateProgressRequest{
		Title: "Customer cannot post",
	}, nil)
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestListScopesToOwner(t *testing.T) {
	f := newFixture(workflow.StatusInProgress, requestsrepo.PaymentStatusPaid)

	if _, err := f.svc.Post(context.Background(), f.admin, f.sr.ID, transport.CreateProgressRequest{Title: "Update"}, nil); err != nil {
		t.Fatalf("post failed: %v", err)
	}

	resp, err := f.svc.ListByRequest(context.Background(), f.customer, f.sr.ID)
	if err != nil {
		t.Fatalf("owner must be able to list: %v", err)
	}
	if resp.Total != 1 {
		t.Fatalf("expected 1 entry, got %d", resp.Total)
	}

	stranger := Caller{ID: uuid.New(), Role: authz.RoleUser}
	if _, err := f.svc.ListByRequest(context.Background(), stranger, f.sr.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestListAllIsAdminOnly(t *testing.T) {
	f := newFixture(workflow.StatusInProgress, requestsrepo.PaymentStatusPaid)

	if _, err := f.svc.List(context.Background(), f.customer); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
	if _, err := f.svc.List(context.Background(), f.admin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteRemovesEntryAndMedia(t *testing.T) {
	f := newFixture(workflow.StatusInProgress, requestsrepo.PaymentStatusPaid)

	resp, err := f.svc.Post(context.Background(), f.admin, f.sr.ID, transport.CreateProgressRequest{
		Title: "With media",
	}, []transport.MediaFile{mediaFile("wall.jpg", "jpegdata")})
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}

	if err := f.svc.Delete(context.Background(), f.admin, resp.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.repo.entries) != 0 {
		t.Fatalf("entry must be removed")
	}
	if len(f.store.objects) != 0 {
		t.Fatalf("stored media must be removed, %d objects remain", len(f.store.objects))
	}
}

func TestCompleteMovesRequestToCompleted(t *testing.T) {
	f := newFixture(workflow.StatusInProgress, requestsrepo.PaymentStatusPaid)

	if err := f.svc.Complete(context.Background(), f.admin, f.sr.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.requests.requests[f.sr.ID].Status != workflow.StatusCompleted {
		t.Fatalf("request must be COMPLETED, got %s", f.requests.requests[f.sr.ID].Status)
	}
}

func TestCompleteRequiresInProgress(t *testing.T) {
	f := newFixture(workflow.StatusPayment, requestsrepo.PaymentStatusPaid)

	err := f.svc.Complete(context.Background(), f.admin, f.sr.ID)
	if err == nil {
		t.Fatalf("completing a request that has not started must fail")
	}
}
