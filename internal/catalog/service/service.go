// Package service implements catalog business logic.
package service

import (
	"context"

	"github.com/google/uuid"

	"contractor_portal_backend/internal/catalog/repository"
	"contractor_portal_backend/internal/catalog/transport"
	"contractor_portal_backend/platform/logger"
)

// Service provides catalog operations.
type Service struct {
	repo repository.Repository
	log  *logger.Logger
}

// New creates a new catalog service.
func New(repo repository.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// ListActive returns all active service types for customer-facing listing.
func (s *Service) ListActive(ctx context.Context) (transport.ServiceTypeListResponse, error) {
	items, err := s.repo.ListActive(ctx)
	if err != nil {
		return transport.ServiceTypeListResponse{}, err
	}
	return toListResponse(items), nil
}

// List returns all service types, including disabled ones.
func (s *Service) List(ctx context.Context) (transport.ServiceTypeListResponse, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return transport.ServiceTypeListResponse{}, err
	}
	return toListResponse(items), nil
}

// GetByCode returns a single service type by its business code.
func (s *Service) GetByCode(ctx context.Context, code string) (transport.ServiceTypeResponse, error) {
	st, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return transport.ServiceTypeResponse{}, err
	}
	return toResponse(st), nil
}

// Create adds a new service type to the catalog.
func (s *Service) Create(ctx context.Context, req transport.CreateServiceTypeRequest) (transport.ServiceTypeResponse, error) {
	st, err := s.repo.Create(ctx, repository.CreateParams{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return transport.ServiceTypeResponse{}, err
	}

	s.log.Info("service type created", "code", st.Code, "name", st.Name)
	return toResponse(st), nil
}

// Update changes a service type's name or description.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateServiceTypeRequest) (transport.ServiceTypeResponse, error) {
	st, err := s.repo.Update(ctx, repository.UpdateParams{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return transport.ServiceTypeResponse{}, err
	}
	return toResponse(st), nil
}

// SetActive enables or disables a service type.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, isActive bool) error {
	return s.repo.SetActive(ctx, id, isActive)
}

func toResponse(st repository.ServiceType) transport.ServiceTypeResponse {
	return transport.ServiceTypeResponse{
		ID:          st.ID,
		Code:        st.Code,
		Name:        st.Name,
		Description: st.Description,
		IsActive:    st.IsActive,
		CreatedAt:   st.CreatedAt,
		UpdatedAt:   st.UpdatedAt,
	}
}

func toListResponse(items []repository.ServiceType) transport.ServiceTypeListResponse {
	out := transport.ServiceTypeListResponse{Items: make([]transport.ServiceTypeResponse, 0, len(items))}
	for _, st := range items {
		out.Items = append(out.Items, toResponse(st))
	}
	out.Total = len(out.Items)
	return out
}
