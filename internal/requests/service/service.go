// Package service implements service request business logic.
package service

import (
	"context"

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

// Caller identifies who is performing an operation.
type Caller struct {
	ID   uuid.UUID
	Role string
}

// CatalogReader is the slice of the catalog module the requests service needs.
type CatalogReader interface {
	ActiveServiceExists(ctx context.Context, code string) (bool, error)
}

// Service provides service request operations.
type Service struct {
	repo    repository.Repository
	codes   *codegen.RequestCodeGenerator
	catalog CatalogReader
	bus     events.Bus
	log     *logger.Logger
}

// New creates a new requests service.
func New(repo repository.Repository, codes *codegen.RequestCodeGenerator, catalog CatalogReader, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, codes: codes, catalog: catalog, bus: bus, log: log}
}

// Create submits a new service request on behalf of the caller.
func (s *Service) Create(ctx context.Context, caller Caller, req transport.CreateRequest) (transport.RequestResponse, error) {
	if err := authz.Authorize(caller.Role, authz.OpRequestCreate, true); err != nil {
		return transport.RequestResponse{}, err
	}

	active, err := s.catalog.ActiveServiceExists(ctx, req.ServiceTypeCode)
	if err != nil {
		return transport.RequestResponse{}, err
	}
	if !active {
		return transport.RequestResponse{}, apperr.NotFound("unknown or inactive service type").
			WithDetails(map[string]interface{}{"serviceTypeCode": req.ServiceTypeCode})
	}

	code, err := s.codes.Next(ctx)
	if err != nil {
		return transport.RequestResponse{}, err
	}

	sr, err := s.repo.Create(ctx, repository.CreateParams{
		RequestCode:     code,
		CustomerID:      caller.ID,
		ServiceTypeCode: req.ServiceTypeCode,
		Description:     req.Description,
		Address:         req.Address,
		PreferredDate:   req.PreferredDate,
	})
	if err != nil {
		return transport.RequestResponse{}, err
	}

	s.log.Info("service request created", "requestCode", sr.RequestCode, "serviceType", sr.ServiceTypeCode)
	s.bus.Publish(ctx, events.RequestCreated{
		BaseEvent:     events.NewBaseEvent(),
		RequestID:     sr.ID,
		RequestCode:   sr.RequestCode,
		CustomerID:    sr.CustomerID,
		CustomerEmail: sr.CustomerEmail,
		ServiceType:   sr.ServiceTypeCode,
	})

	return toResponse(sr), nil
}

// List returns the caller's requests, or all requests for admins.
func (s *Service) List(ctx context.Context, caller Caller, query transport.ListQuery) (transport.RequestListResponse, error) {
	if query.Limit <= 0 || query.Limit > 100 {
		query.Limit = 50
	}
	if query.Offset < 0 {
		query.Offset = 0
	}
	filter := repository.ListFilter{Limit: query.Limit, Offset: query.Offset}

	// Customers only ever see their own requests.
	if caller.Role != authz.RoleAdmin {
		if err := authz.Authorize(caller.Role, authz.OpRequestList, true); err != nil {
			return transport.RequestListResponse{}, err
		}
		customerID := caller.ID
		filter.CustomerID = &customerID
	}

	if query.Status != "" {
		status := workflow.Status(query.Status)
		if !workflow.IsValid(status) {
			return transport.RequestListResponse{}, apperr.Validation("unknown status filter")
		}
		filter.Status = &status
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return transport.RequestListResponse{}, err
	}

	out := transport.RequestListResponse{
		Items:  make([]transport.RequestResponse, 0, len(items)),
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	for _, sr := range items {
		out.Items = append(out.Items, toResponse(sr))
	}
	return out, nil
}

// Get returns a single request if the caller may see it.
func (s *Service) Get(ctx context.Context, caller Caller, id uuid.UUID) (transport.RequestResponse, error) {
	sr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.RequestResponse{}, err
	}
	if err := authz.Authorize(caller.Role, authz.OpRequestRead, sr.CustomerID == caller.ID); err != nil {
		return transport.RequestResponse{}, err
	}
	return toResponse(sr), nil
}

// UpdateDetails changes a request's description, address or preferred date.
// Allowed only while the request is still in REQUESTED status.
func (s *Service) UpdateDetails(ctx context.Context, caller Caller, id uuid.UUID, req transport.UpdateDetailsRequest) (transport.RequestResponse, error) {
	sr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.RequestResponse{}, err
	}
	if err := authz.Authorize(caller.Role, authz.OpRequestUpdate, sr.CustomerID == caller.ID); err != nil {
		return transport.RequestResponse{}, err
	}
	if sr.Status != workflow.StatusRequested {
		return transport.RequestResponse{}, apperr.InvalidState("request details can only be changed before a quotation is issued").
			WithDetails(map[string]interface{}{"currentStatus": string(sr.Status)})
	}

	updated, err := s.repo.UpdateDetails(ctx, repository.UpdateDetailsParams{
		ID:            id,
		Description:   req.Description,
		Address:       req.Address,
		PreferredDate: req.PreferredDate,
	})
	if err != nil {
		return transport.RequestResponse{}, err
	}
	return toResponse(updated), nil
}

// AdvanceStatus moves a request to the named status. Only the immediate next
// status in the lifecycle is accepted.
func (s *Service) AdvanceStatus(ctx context.Context, caller Caller, id uuid.UUID, target workflow.Status) (transport.RequestResponse, error) {
	if err := authz.Authorize(caller.Role, authz.OpRequestAdvance, false); err != nil {
		return transport.RequestResponse{}, err
	}

	sr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.RequestResponse{}, err
	}

	if err := workflow.CanAdvance(sr.Status, target); err != nil {
		return transport.RequestResponse{}, err
	}

	if err := s.repo.UpdateStatus(ctx, id, sr.Status, target); err != nil {
		return transport.RequestResponse{}, err
	}

	s.log.WorkflowTransition(sr.RequestCode, string(sr.Status), string(target), "DIRECT_ADVANCE")
	s.bus.Publish(ctx, events.RequestStatusAdvanced{
		BaseEvent:     events.NewBaseEvent(),
		RequestID:     sr.ID,
		RequestCode:   sr.RequestCode,
		CustomerID:    sr.CustomerID,
		CustomerEmail: sr.CustomerEmail,
		FromStatus:    string(sr.Status),
		ToStatus:      string(target),
		Trigger:       "DIRECT_ADVANCE",
	})

	return s.Get(ctx, caller, id)
}

func toResponse(sr repository.ServiceRequest) transport.RequestResponse {
	return transport.RequestResponse{
		ID:              sr.ID,
		RequestCode:     sr.RequestCode,
		CustomerID:      sr.CustomerID,
		ServiceTypeCode: sr.ServiceTypeCode,
		Description:     sr.Description,
		Address:         sr.Address,
		PreferredDate:   sr.PreferredDate,
		Status:          string(sr.Status),
		PaymentStatus:   sr.PaymentStatus,
		CreatedAt:       sr.CreatedAt,
		UpdatedAt:       sr.UpdatedAt,
	}
}
