// Package service implements quotation business logic.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"contractor_portal_backend/internal/codegen"
	"contractor_portal_backend/internal/costing"
	"contractor_portal_backend/internal/events"
	"contractor_portal_backend/internal/quotations/repository"
	"contractor_portal_backend/internal/quotations/transport"
	requestsrepo "contractor_portal_backend/internal/requests/repository"
	"contractor_portal_backend/internal/shared/authz"
	"contractor_portal_backend/internal/workflow"
	"contractor_portal_backend/platform/apperr"
	"contractor_portal_backend/platform/config"
	"contractor_portal_backend/platform/logger"
)

// Caller identifies who is performing an operation.
type Caller struct {
	ID   uuid.UUID
	Role string
}

// RequestReader is the slice of the requests module the quotations service needs.
type RequestReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (requestsrepo.ServiceRequest, error)
}

// Service provides quotation operations.
type Service struct {
	repo     repository.Repository
	requests RequestReader
	cfg      config.GSTConfig
	bus      events.Bus
	log      *logger.Logger
	now      func() time.Time
}

// New creates a new quotations service.
func New(repo repository.Repository, requests RequestReader, cfg config.GSTConfig, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, requests: requests, cfg: cfg, bus: bus, log: log, now: time.Now}
}

// Create issues a quotation for a request. The request moves to QUOTED; any
// previously pending quotation stays on record but is superseded by this one.
func (s *Service) Create(ctx context.Context, caller Caller, req transport.CreateQuotationRequest) (transport.QuotationResponse, error) {
	if err := authz.Authorize(caller.Role, authz.OpQuotationIssue, false); err != nil {
		return transport.QuotationResponse{}, err
	}

	if problems := costing.ValidateInputs(req.BaseAmount, req.ServiceTax); len(problems) > 0 {
		return transport.QuotationResponse{}, apperr.Validation("invalid cost inputs").
			WithDetails(map[string]interface{}{"problems": problems})
	}

	sr, err := s.requests.GetByID(ctx, req.RequestID)
	if err != nil {
		return transport.QuotationResponse{}, err
	}

	to, err := workflow.Apply(sr.Status, workflow.TriggerQuotationIssued)
	if err != nil {
		return transport.QuotationResponse{}, err
	}

	breakdown := costing.Calculate(req.BaseAmount, req.ServiceTax, s.cfg.GetGSTRate())
	q, err := s.repo.CreateWithTransition(ctx, repository.CreateParams{
		QuotationNumber: codegen.QuotationNumber(sr.ID, s.now()),
		RequestID:       sr.ID,
		BaseAmount:      breakdown.BaseAmount,
		ServiceTax:      breakdown.ServiceTax,
		GSTRate:         s.cfg.GetGSTRate(),
		GSTAmount:       breakdown.GSTAmount,
		TotalAmount:     breakdown.TotalAmount,
		Notes:           req.Notes,
	}, sr.Status, to)
	if err != nil {
		return transport.QuotationResponse{}, err
	}

	s.log.WorkflowTransition(sr.RequestCode, string(sr.Status), string(to), string(workflow.TriggerQuotationIssued))
	s.bus.Publish(ctx, events.QuotationIssued{
		BaseEvent:       events.NewBaseEvent(),
		QuotationID:     q.ID,
		QuotationNumber: q.QuotationNumber,
		RequestID:       sr.ID,
		RequestCode:     sr.RequestCode,
		CustomerEmail:   sr.CustomerEmail,
		TotalAmount:     q.TotalAmount,
	})

	return toResponse(q), nil
}

// Get returns a single quotation. Customers can only read quotations on
// their own requests; admins can read any.
func (s *Service) Get(ctx context.Context, caller Caller, id uuid.UUID) (transport.QuotationResponse, error) {
	q, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.QuotationResponse{}, err
	}

	sr, err := s.requests.GetByID(ctx, q.RequestID)
	if err != nil {
		return transport.QuotationResponse{}, err
	}
	if err := authz.Authorize(caller.Role, authz.OpQuotationRead, sr.CustomerID == caller.ID); err != nil {
		return transport.QuotationResponse{}, err
	}

	return toResponse(q), nil
}

// ListByRequest returns all quotations for a request.
func (s *Service) ListByRequest(ctx context.Context, caller Caller, requestID uuid.UUID) (transport.QuotationListResponse, error) {
	sr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return transport.QuotationListResponse{}, err
	}
	if err := authz.Authorize(caller.Role, authz.OpQuotationRead, sr.CustomerID == caller.ID); err != nil {
		return transport.QuotationListResponse{}, err
	}

	items, err := s.repo.ListByRequest(ctx, requestID)
	if err != nil {
		return transport.QuotationListResponse{}, err
	}

	out := transport.QuotationListResponse{Items: make([]transport.QuotationResponse, 0, len(items))}
	for _, q := range items {
		out.Items = append(out.Items, toResponse(q))
	}
	out.Total = len(out.Items)
	return out, nil
}

// Approve records the customer's acceptance of a pending quotation. The parent
// request moves from QUOTED to APPROVED.
func (s *Service) Approve(ctx context.Context, caller Caller, id uuid.UUID) (transport.QuotationResponse, error) {
	return s.decide(ctx, caller, id, repository.StatusApproved, nil)
}

// Reject records the customer's rejection of a pending quotation. The parent
// request returns to REQUESTED so a revised quotation can be issued.
func (s *Service) Reject(ctx context.Context, caller Caller, id uuid.UUID, reason *string) (transport.QuotationResponse, error) {
	return s.decide(ctx, caller, id, repository.StatusRejected, reason)
}

func (s *Service) decide(ctx context.Context, caller Caller, id uuid.UUID, status string, reason *string) (transport.QuotationResponse, error) {
	q, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.QuotationResponse{}, err
	}

	sr, err := s.requests.GetByID(ctx, q.RequestID)
	if err != nil {
		return transport.QuotationResponse{}, err
	}
	if err := authz.Authorize(caller.Role, authz.OpQuotationDecide, sr.CustomerID == caller.ID); err != nil {
		return transport.QuotationResponse{}, err
	}

	if q.Status != repository.StatusPending {
		return transport.QuotationResponse{}, apperr.InvalidState("quotation has already been decided").
			WithDetails(map[string]interface{}{"quotationStatus": q.Status})
	}

	trigger := workflow.TriggerQuotationApproved
	if status == repository.StatusRejected {
		trigger = workflow.TriggerQuotationRejected
	}
	to, err := workflow.Apply(sr.Status, trigger)
	if err != nil {
		return transport.QuotationResponse{}, err
	}

	decided, err := s.repo.DecideWithTransition(ctx, id, status, reason, sr.ID, sr.Status, to)
	if err != nil {
		return transport.QuotationResponse{}, err
	}

	s.log.WorkflowTransition(sr.RequestCode, string(sr.Status), string(to), string(trigger))
	s.publishDecision(ctx, decided, sr, reason)
	return toResponse(decided), nil
}

// Delete removes a pending quotation. The parent request returns to REQUESTED.
func (s *Service) Delete(ctx context.Context, caller Caller, id uuid.UUID) error {
	if err := authz.Authorize(caller.Role, authz.OpQuotationDelete, false); err != nil {
		return err
	}

	q, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if q.Status != repository.StatusPending {
		return apperr.InvalidState("only pending quotations can be deleted").
			WithDetails(map[string]interface{}{"quotationStatus": q.Status})
	}

	sr, err := s.requests.GetByID(ctx, q.RequestID)
	if err != nil {
		return err
	}
	to, err := workflow.Apply(sr.Status, workflow.TriggerQuotationDeleted)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteWithTransition(ctx, id, sr.ID, sr.Status, to); err != nil {
		return err
	}

	s.log.WorkflowTransition(sr.RequestCode, string(sr.Status), string(to), string(workflow.TriggerQuotationDeleted))
	return nil
}

func (s *Service) publishDecision(ctx context.Context, q repository.Quotation, sr requestsrepo.ServiceRequest, reason *string) {
	if q.Status == repository.StatusApproved {
		s.bus.Publish(ctx, events.QuotationApproved{
			BaseEvent:       events.NewBaseEvent(),
			QuotationID:     q.ID,
			QuotationNumber: q.QuotationNumber,
			RequestID:       sr.ID,
			RequestCode:     sr.RequestCode,
			CustomerEmail:   sr.CustomerEmail,
			TotalAmount:     q.TotalAmount,
		})
		return
	}

	var reasonText string
	if reason != nil {
		reasonText = *reason
	}
	s.bus.Publish(ctx, events.QuotationRejected{
		BaseEvent:       events.NewBaseEvent(),
		QuotationID:     q.ID,
		QuotationNumber: q.QuotationNumber,
		RequestID:       sr.ID,
		RequestCode:     sr.RequestCode,
		CustomerEmail:   sr.CustomerEmail,
		Reason:          reasonText,
	})
}

func toResponse(q repository.Quotation) transport.QuotationResponse {
	return transport.QuotationResponse{
		ID:              q.ID,
		QuotationNumber: q.QuotationNumber,
		RequestID:       q.RequestID,
		BaseAmount:      q.BaseAmount,
		ServiceTax:      q.ServiceTax,
		GSTRate:         q.GSTRate,
		GSTAmount:       q.GSTAmount,
		TotalAmount:     q.TotalAmount,
		Status:          q.Status,
		Notes:           q.Notes,
		RejectionReason: q.RejectionReason,
		CreatedAt:       q.CreatedAt,
		UpdatedAt:       q.UpdatedAt,
	}
}
