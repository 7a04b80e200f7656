// Package service implements work progress business logic.
package service

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"

	"contractor_portal_backend/internal/adapters/storage"
	"contractor_portal_backend/internal/events"
	"contractor_portal_backend/internal/progress/repository"
	"contractor_portal_backend/internal/progress/transport"
	requestsrepo "contractor_portal_backend/internal/requests/repository"
	"contractor_portal_backend/internal/shared/authz"
	"contractor_portal_backend/internal/workflow"
	"contractor_portal_backend/platform/apperr"
	"contractor_portal_backend/platform/config"
	"contractor_portal_backend/platform/logger"
)

// mediaFolder is the object key prefix for progress attachments.
const mediaFolder = "progress"

// Caller identifies who is performing an operation.
type Caller struct {
	ID   uuid.UUID
	Role string
}

// RequestStore is the slice of the requests module the progress service needs.
type RequestStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (requestsrepo.ServiceRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to workflow.Status) error
}

// PaymentReader reports whether a request has money captured against it.
type PaymentReader interface {
	HasCapturedPayment(ctx context.Context, requestID uuid.UUID) (bool, error)
}

// Service provides work progress operations.
type Service struct {
	repo     repository.Repository
	requests RequestStore
	payments PaymentReader
	store    storage.Service
	cfg      config.WorkflowConfig
	bus      events.Bus
	log      *logger.Logger
}

// New creates a new progress service.
func New(repo repository.Repository, requests RequestStore, payments PaymentReader, store storage.Service, cfg config.WorkflowConfig, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, requests: requests, payments: payments, store: store, cfg: cfg, bus: bus, log: log}
}

// Post uploads a progress update with optional media attachments. The first
// entry on a PAYMENT-status request starts the work and moves it IN_PROGRESS.
func (s *Service) Post(ctx context.Context, caller Caller, requestID uuid.UUID, req transport.CreateProgressRequest, media []transport.MediaFile) (transport.ProgressResponse, error) {
	if err := authz.Authorize(caller.Role, authz.OpProgressPost, false); err != nil {
		return transport.ProgressResponse{}, err
	}

	sr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return transport.ProgressResponse{}, err
	}
	if sr.Status != workflow.StatusPayment && sr.Status != workflow.StatusInProgress {
		return transport.ProgressResponse{}, apperr.InvalidState("work progress can only be posted after payment begins").
			WithDetails(map[string]interface{}{"currentStatus": string(sr.Status)})
	}
	if err := s.checkPaymentGuard(ctx, sr); err != nil {
		return transport.ProgressResponse{}, err
	}

	photos, videos, documents, err := s.uploadMedia(ctx, media)
	if err != nil {
		return transport.ProgressResponse{}, err
	}

	params := repository.CreateParams{
		RequestID:         sr.ID,
		Title:             req.Title,
		Description:       req.Description,
		CompletionPercent: req.CompletionPercent,
		PhotoKeys:         photos,
		VideoKeys:         videos,
		DocumentKeys:      documents,
		CreatedBy:         caller.ID,
	}

	var wp repository.WorkProgress
	if sr.Status == workflow.StatusPayment {
		to, err := workflow.Apply(sr.Status, workflow.TriggerWorkStarted)
		if err != nil {
			return transport.ProgressResponse{}, err
		}
		wp, err = s.repo.CreateWithTransition(ctx, params, sr.Status, to)
		if err != nil {
			s.cleanupMedia(ctx, params)
			return transport.ProgressResponse{}, err
		}
		s.log.WorkflowTransition(sr.RequestCode, string(sr.Status), string(to), string(workflow.TriggerWorkStarted))
	} else {
		wp, err = s.repo.Create(ctx, params)
		if err != nil {
			s.cleanupMedia(ctx, params)
			return transport.ProgressResponse{}, err
		}
	}

	s.bus.Publish(ctx, events.WorkProgressAdded{
		BaseEvent:     events.NewBaseEvent(),
		ProgressID:    wp.ID,
		RequestID:     sr.ID,
		RequestCode:   sr.RequestCode,
		CustomerEmail: sr.CustomerEmail,
		Title:         wp.Title,
	})

	return s.toResponse(ctx, wp), nil
}

// ListByRequest returns a request's progress entries with presigned media links.
func (s *Service) ListByRequest(ctx context.Context, caller Caller, requestID uuid.UUID) (transport.ProgressListResponse, error) {
	sr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return transport.ProgressListResponse{}, err
	}
	if err := authz.Authorize(caller.Role, authz.OpProgressRead, sr.CustomerID == caller.ID); err != nil {
		return transport.ProgressListResponse{}, err
	}

	items, err := s.repo.ListByRequest(ctx, requestID)
	if err != nil {
		return transport.ProgressListResponse{}, err
	}
	return s.toListResponse(ctx, items), nil
}

// List returns all progress entries across requests (admin only).
func (s *Service) List(ctx context.Context, caller Caller) (transport.ProgressListResponse, error) {
	if err := authz.Authorize(caller.Role, authz.OpProgressRead, false); err != nil {
		return transport.ProgressListResponse{}, err
	}

	items, err := s.repo.List(ctx)
	if err != nil {
		return transport.ProgressListResponse{}, err
	}
	return s.toListResponse(ctx, items), nil
}

// Delete removes a progress entry and its stored media (admin only).
func (s *Service) Delete(ctx context.Context, caller Caller, id uuid.UUID) error {
	if err := authz.Authorize(caller.Role, authz.OpProgressDelete, false); err != nil {
		return err
	}

	wp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.deleteObjects(ctx, wp.AllMediaKeys())
	return nil
}

// Complete marks an IN_PROGRESS request as COMPLETED (admin only).
func (s *Service) Complete(ctx context.Context, caller Caller, requestID uuid.UUID) error {
	if err := authz.Authorize(caller.Role, authz.OpWorkComplete, false); err != nil {
		return err
	}

	sr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}

	to, err := workflow.Apply(sr.Status, workflow.TriggerWorkCompleted)
	if err != nil {
		return err
	}
	if err := s.requests.UpdateStatus(ctx, sr.ID, sr.Status, to); err != nil {
		return err
	}

	s.log.WorkflowTransition(sr.RequestCode, string(sr.Status), string(to), string(workflow.TriggerWorkCompleted))
	s.bus.Publish(ctx, events.RequestCompleted{
		BaseEvent:     events.NewBaseEvent(),
		RequestID:     sr.ID,
		RequestCode:   sr.RequestCode,
		CustomerID:    sr.CustomerID,
		CustomerEmail: sr.CustomerEmail,
	})
	return nil
}

// checkPaymentGuard enforces the captured-payment requirement on progress
// posting unless the operator has switched it off.
func (s *Service) checkPaymentGuard(ctx context.Context, sr requestsrepo.ServiceRequest) error {
	if !s.cfg.GetProgressRequireCapturedPayment() {
		return nil
	}
	if sr.PaymentStatus == requestsrepo.PaymentStatusAdvancePaid || sr.PaymentStatus == requestsrepo.PaymentStatusPaid {
		return nil
	}
	captured, err := s.payments.HasCapturedPayment(ctx, sr.ID)
	if err != nil {
		return err
	}
	if !captured {
		return apperr.InvalidState("work progress requires a captured payment").
			WithDetails(map[string]interface{}{"paymentStatus": sr.PaymentStatus})
	}
	return nil
}

// uploadMedia stores attachments and sorts the keys by media kind based on
// the file extension.
func (s *Service) uploadMedia(ctx context.Context, media []transport.MediaFile) (photos, videos, documents []string, err error) {
	var uploaded []string
	for _, m := range media {
		key, err := s.store.Upload(ctx, mediaFolder, m.Name, m.Reader, m.Size, m.ContentType)
		if err != nil {
			s.deleteObjects(ctx, uploaded)
			return nil, nil, nil, err
		}
		uploaded = append(uploaded, key)

		switch mediaKind(m.Name) {
		case "video":
			videos = append(videos, key)
		case "document":
			documents = append(documents, key)
		default:
			photos = append(photos, key)
		}
	}
	return photos, videos, documents, nil
}

func mediaKind(fileName string) string {
	switch strings.TrimPrefix(strings.ToLower(path.Ext(fileName)), ".") {
	case "mp4":
		return "video"
	case "pdf":
		return "document"
	default:
		return "photo"
	}
}

func (s *Service) cleanupMedia(ctx context.Context, params repository.CreateParams) {
	s.deleteObjects(ctx, params.PhotoKeys)
	s.deleteObjects(ctx, params.VideoKeys)
	s.deleteObjects(ctx, params.DocumentKeys)
}

// deleteObjects removes stored objects best-effort; failures are only logged.
func (s *Service) deleteObjects(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.Error("failed to delete stored media", "file_key", key, "error", err.Error())
		}
	}
}

func (s *Service) toListResponse(ctx context.Context, items []repository.WorkProgress) transport.ProgressListResponse {
	out := transport.ProgressListResponse{Items: make([]transport.ProgressResponse, 0, len(items))}
	for _, wp := range items {
		out.Items = append(out.Items, s.toResponse(ctx, wp))
	}
	out.Total = len(out.Items)
	return out
}

func (s *Service) toResponse(ctx context.Context, wp repository.WorkProgress) transport.ProgressResponse {
	return transport.ProgressResponse{
		ID:                wp.ID,
		RequestID:         wp.RequestID,
		Title:             wp.Title,
		Description:       wp.Description,
		CompletionPercent: wp.CompletionPercent,
		Photos:            s.presign(ctx, wp.PhotoKeys),
		Videos:            s.presign(ctx, wp.VideoKeys),
		Documents:         s.presign(ctx, wp.DocumentKeys),
		CreatedAt:         wp.CreatedAt,
	}
}

func (s *Service) presign(ctx context.Context, keys []string) []transport.MediaLink {
	links := make([]transport.MediaLink, 0, len(keys))
	for _, key := range keys {
		link, err := s.store.DownloadURL(ctx, key)
		if err != nil {
			s.log.Error("failed to presign media URL", "file_key", key, "error", err.Error())
			links = append(links, transport.MediaLink{FileKey: key})
			continue
		}
		links = append(links, transport.MediaLink{FileKey: key, URL: link.URL, ExpiresAt: link.ExpiresAt})
	}
	return links
}
